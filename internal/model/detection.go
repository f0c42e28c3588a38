package model

import "time"

// RawDetection is one box as emitted by an inference backend, before the
// class id is resolved and the box normalized.
type RawDetection struct {
	ClassID    int
	Confidence float64
	Box        [4]float64 // x1, y1, x2, y2 in source pixel space
}

// Detection is one recognized object instance.
type Detection struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

// DetectionResult holds the detections of one prediction request.
type DetectionResult struct {
	ID         string
	Detections []Detection
	CreatedAt  time.Time
}

// Count returns the number of detections.
func (r *DetectionResult) Count() int {
	return len(r.Detections)
}

// Classes returns the distinct class names in emission order.
func (r *DetectionResult) Classes() []string {
	seen := make(map[string]bool, len(r.Detections))
	classes := make([]string, 0, len(r.Detections))
	for _, d := range r.Detections {
		if !seen[d.Class] {
			seen[d.Class] = true
			classes = append(classes, d.Class)
		}
	}
	return classes
}
