package model

import (
	"fmt"
	"time"
)

// ArtifactKind selects the file type of a persisted artifact.
type ArtifactKind string

const (
	ArtifactImage ArtifactKind = "jpg"
	ArtifactJSON  ArtifactKind = "json"
)

// ArtifactFilename returns the deterministic filename for an artifact of the given result id.
func ArtifactFilename(id string, kind ArtifactKind) string {
	return fmt.Sprintf("detection_%s.%s", id, kind)
}

// ResultRecord is a persisted prediction as kept in the history index.
type ResultRecord struct {
	ID           string      `json:"id"`
	CreatedAt    time.Time   `json:"created_at"`
	ImageFile    string      `json:"image_file"`
	JSONFile     string      `json:"json_file"`
	SourceDigest string      `json:"source_digest,omitempty"`
	SourceSize   int64       `json:"source_size"`
	Detections   []Detection `json:"detections"`
}

// Count returns the number of detections in the record.
func (r *ResultRecord) Count() int {
	return len(r.Detections)
}

// ResultFilter narrows history queries.
type ResultFilter struct {
	Class  string
	Limit  int
	Offset int
}
