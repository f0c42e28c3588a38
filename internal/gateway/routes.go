package gateway

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"

	"visionserver/internal/logger"
	"visionserver/internal/middleware"
)

// SetupRoutes registers the public endpoints of the gateway.
func SetupRoutes(g *Gateway, logger *logger.Logger) http.Handler {
	router := mux.NewRouter()

	router.Handle("/", gzhttp.GzipHandler(g.IndexHandler())).Methods(http.MethodGet)
	router.Handle("/detect", gzhttp.GzipHandler(g.DetectHandler())).Methods(http.MethodPost)
	router.HandleFunc("/health", g.HealthHandler()).Methods(http.MethodGet)
	router.PathPrefix("/outputs/").Handler(g.OutputsHandler()).Methods(http.MethodGet, http.MethodHead)

	return middleware.LoggingMiddleware(logger)(middleware.CORSMiddleware(router))
}
