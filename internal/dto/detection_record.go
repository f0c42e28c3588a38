package dto

import "visionserver/internal/model"

// DetectionRecord is the persisted JSON artifact: the response without the
// artifact URLs, plus the bare image filename.
type DetectionRecord struct {
	Success    bool              `json:"success"`
	Count      int               `json:"count"`
	Detections []model.Detection `json:"detections"`
	ImageFile  string            `json:"image_file"`
}

// NewDetectionRecord builds the persisted record for a result.
func NewDetectionRecord(result *model.DetectionResult, imageFile string) *DetectionRecord {
	detections := result.Detections
	if detections == nil {
		detections = []model.Detection{}
	}
	return &DetectionRecord{
		Success:    true,
		Count:      len(detections),
		Detections: detections,
		ImageFile:  imageFile,
	}
}
