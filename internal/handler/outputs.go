package handler

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"visionserver/internal/logger"
	"visionserver/internal/service"
)

// OutputsHandler serves a persisted artifact. The content type follows the
// file extension.
func OutputsHandler(detectionService *service.DetectionService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := mux.Vars(r)["filename"]

		data, err := detectionService.Fetch(filename)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
		http.ServeContent(w, r, filename, time.Time{}, bytes.NewReader(data))
	}
}
