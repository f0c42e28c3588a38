package dto

import (
	"path"

	"visionserver/internal/model"
)

// SchemaVersion is announced in the X-Detection-Schema header of every
// prediction response. Bump it whenever a field of DetectionResponse or
// DetectionRecord changes.
const SchemaVersion = "1"

// OutputsPrefix is the URL path under which artifacts are served.
const OutputsPrefix = "/outputs/"

// DetectionResponse is the wire shape of a prediction.
type DetectionResponse struct {
	Success        bool              `json:"success"`
	Count          int               `json:"count"`
	Detections     []model.Detection `json:"detections"`
	AnnotatedImage string            `json:"annotated_image,omitempty"`
	JSONFile       string            `json:"json_file,omitempty"`
}

// NewDetectionResponse builds a response from a result. Count is always
// derived from the detection slice.
func NewDetectionResponse(result *model.DetectionResult) *DetectionResponse {
	detections := result.Detections
	if detections == nil {
		detections = []model.Detection{}
	}
	return &DetectionResponse{
		Success:    true,
		Count:      len(detections),
		Detections: detections,
	}
}

// WithArtifacts attaches artifact references as served URL paths.
func (r *DetectionResponse) WithArtifacts(imageFile, jsonFile string) *DetectionResponse {
	r.AnnotatedImage = path.Join(OutputsPrefix, imageFile)
	r.JSONFile = path.Join(OutputsPrefix, jsonFile)
	return r
}
