package dto

// DetectionEvent is broadcast to live viewers after each successful prediction.
type DetectionEvent struct {
	Type           string   `json:"type"`
	ID             string   `json:"id"`
	Count          int      `json:"count"`
	Classes        []string `json:"classes"`
	AnnotatedImage string   `json:"annotated_image,omitempty"`
}
