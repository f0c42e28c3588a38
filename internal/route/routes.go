package route

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"

	"visionserver/internal/config"
	"visionserver/internal/handler"
	"visionserver/internal/logger"
	"visionserver/internal/middleware"
	"visionserver/internal/repository"
	"visionserver/internal/service"
	"visionserver/internal/service/websocket"
)

// SetupRoutes registers the detection API, artifact retrieval, history, live
// events and log endpoints. results and detections may be nil when history is
// disabled.
func SetupRoutes(detectionService *service.DetectionService, hub *websocket.HubService, cfg *config.Config, logger *logger.Logger,
	results repository.ResultRepository, detections repository.DetectionRepository) http.Handler {
	router := mux.NewRouter()

	// Prediction and artifacts
	router.Handle("/predict", gzhttp.GzipHandler(handler.PredictHandler(detectionService, cfg, logger))).Methods(http.MethodPost)
	router.HandleFunc("/outputs/{filename}", handler.OutputsHandler(detectionService, logger)).Methods(http.MethodGet, http.MethodHead)

	// Service status
	router.HandleFunc("/health", handler.HealthHandler(cfg)).Methods(http.MethodGet)
	router.HandleFunc("/metrics", handler.MetricsHandler(detectionService, logger)).Methods(http.MethodGet)

	// History API
	api := router.PathPrefix("/api").Subrouter()
	api.Handle("/detections", gzhttp.GzipHandler(handler.ListDetectionsHandler(results, logger))).Methods(http.MethodGet)
	api.Handle("/detections/classes", gzhttp.GzipHandler(handler.ClassesHandler(detections, logger))).Methods(http.MethodGet)
	api.Handle("/detections/{id}", gzhttp.GzipHandler(handler.GetDetectionHandler(results, logger))).Methods(http.MethodGet)
	api.HandleFunc("/events", handler.EventsWebsocketHandler(hub, logger))

	// Log endpoints
	router.Handle("/logs/{level}", gzhttp.GzipHandler(handler.ShowLogsHandler(logger))).Methods(http.MethodGet)
	router.HandleFunc("/logs/{level}/clear", handler.ClearLogsHandler(logger)).Methods(http.MethodPost)

	// Apply middleware
	return middleware.LoggingMiddleware(logger)(middleware.CORSMiddleware(router))
}
