package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"visionserver/internal/apperror"
	"visionserver/internal/dto"
	"visionserver/internal/logger"
)

// respondJSON writes payload as JSON with the given status.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// respondError maps err to its status and writes the error body. Server-side
// failures are logged; the message of an unclassified error is not exposed.
func respondError(w http.ResponseWriter, logger *logger.Logger, err error) {
	kind := apperror.KindOf(err)
	status := kind.Status()

	message := err.Error()
	var appErr *apperror.Error
	if errors.As(err, &appErr) && appErr.Err != nil {
		message = appErr.Err.Error()
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed: %v", err)
		if kind == apperror.KindInternal {
			message = "internal server error"
		}
	}

	respondJSON(w, status, dto.ErrorResponse{
		Success: false,
		Code:    kind.Code(),
		Message: message,
	})
}
