package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"visionserver/internal/apperror"
	"visionserver/internal/dto"
	"visionserver/internal/logger"
	"visionserver/internal/model"
	"visionserver/internal/repository"
)

const (
	defaultPageSize = 24
	maxPageSize     = 100
)

var errHistoryDisabled = apperror.Newf(apperror.KindNotFound, "history", "detection history is disabled")

// ListDetectionsHandler returns a page of persisted predictions, newest first,
// optionally filtered by ?class=.
func ListDetectionsHandler(results repository.ResultRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if results == nil {
			respondError(w, logger, errHistoryDisabled)
			return
		}

		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), defaultPageSize)
		if limit > maxPageSize {
			limit = maxPageSize
		}

		filter := &model.ResultFilter{
			Class:  q.Get("class"),
			Limit:  limit,
			Offset: (page - 1) * limit,
		}

		records, err := results.List(r.Context(), filter)
		if err != nil {
			logger.Error("Error querying detection history: %v", err)
			respondError(w, logger, err)
			return
		}

		total, err := results.Count(r.Context(), filter)
		if err != nil {
			logger.Error("Error counting detection history: %v", err)
			total = len(records)
		}

		entries := make([]dto.HistoryEntry, 0, len(records))
		for i := range records {
			entries = append(entries, dto.NewHistoryEntry(&records[i], false))
		}

		respondJSON(w, http.StatusOK, dto.HistoryPage{
			Results:     entries,
			Length:      total,
			TotalPages:  (total + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// GetDetectionHandler returns one persisted prediction with its detections.
func GetDetectionHandler(results repository.ResultRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if results == nil {
			respondError(w, logger, errHistoryDisabled)
			return
		}

		record, err := results.GetByID(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			respondError(w, logger, err)
			return
		}
		respondJSON(w, http.StatusOK, dto.NewHistoryEntry(record, true))
	}
}

// ClassesHandler lists every class present in the history with its count.
func ClassesHandler(detections repository.DetectionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if detections == nil {
			respondError(w, logger, errHistoryDisabled)
			return
		}

		names, err := detections.ClassNames(r.Context())
		if err != nil {
			respondError(w, logger, err)
			return
		}
		counts, err := detections.CountByClass(r.Context())
		if err != nil {
			respondError(w, logger, err)
			return
		}

		respondJSON(w, http.StatusOK, dto.ClassSummary{Classes: names, Counts: counts})
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
