package dto

import (
	"encoding/json"
	"path"
	"time"

	"visionserver/internal/model"
)

// HistoryEntry summarizes one persisted prediction.
type HistoryEntry struct {
	ID             string            `json:"id"`
	CreatedAt      time.Time         `json:"created_at"`
	Count          int               `json:"count"`
	Classes        []string          `json:"classes"`
	AnnotatedImage string            `json:"annotated_image"`
	JSONFile       string            `json:"json_file"`
	Detections     []model.Detection `json:"detections,omitempty"`
}

// MarshalJSON formats the creation time as RFC 3339 in UTC.
func (h HistoryEntry) MarshalJSON() ([]byte, error) {
	type Alias HistoryEntry
	return json.Marshal(&struct {
		CreatedAt string `json:"created_at"`
		Alias
	}{
		CreatedAt: h.CreatedAt.UTC().Format(time.RFC3339),
		Alias:     (Alias)(h),
	})
}

// NewHistoryEntry converts a stored record. Detections are included only when
// withDetections is set.
func NewHistoryEntry(record *model.ResultRecord, withDetections bool) HistoryEntry {
	classes := make([]string, 0)
	seen := make(map[string]bool)
	for _, d := range record.Detections {
		if !seen[d.Class] {
			seen[d.Class] = true
			classes = append(classes, d.Class)
		}
	}

	entry := HistoryEntry{
		ID:             record.ID,
		CreatedAt:      record.CreatedAt,
		Count:          record.Count(),
		Classes:        classes,
		AnnotatedImage: path.Join(OutputsPrefix, record.ImageFile),
		JSONFile:       path.Join(OutputsPrefix, record.JSONFile),
	}
	if withDetections {
		entry.Detections = record.Detections
		if entry.Detections == nil {
			entry.Detections = []model.Detection{}
		}
	}
	return entry
}

// HistoryPage is a paginated list of persisted predictions.
type HistoryPage struct {
	Results     []HistoryEntry `json:"results"`
	Length      int            `json:"length"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Limit       int            `json:"pageSize"`
}

// ClassSummary lists the detected classes with their detection counts.
type ClassSummary struct {
	Classes []string       `json:"classes"`
	Counts  map[string]int `json:"counts"`
}
