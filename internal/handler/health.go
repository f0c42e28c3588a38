package handler

import (
	"net/http"

	"visionserver/internal/apperror"
	"visionserver/internal/config"
	"visionserver/internal/logger"
	"visionserver/internal/service"
)

// HealthHandler reports liveness together with the loaded model.
func HealthHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"model":   cfg.ModelName,
			"backend": cfg.DetectorBackend,
		})
	}
}

// MetricsHandler returns the session pool counters of the detector.
func MetricsHandler(detectionService *service.DetectionService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, ok := detectionService.Metrics()
		if !ok {
			respondError(w, logger, apperror.Newf(apperror.KindNotFound, "metrics", "detector backend keeps no session pool"))
			return
		}
		respondJSON(w, http.StatusOK, stats)
	}
}
