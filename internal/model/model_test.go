package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArtifactFilename(t *testing.T) {
	require.Equal(t, "detection_0123456789abcdef.jpg", ArtifactFilename("0123456789abcdef", ArtifactImage))
	require.Equal(t, "detection_0123456789abcdef.json", ArtifactFilename("0123456789abcdef", ArtifactJSON))
}

func TestDetectionResult_CountAndClasses(t *testing.T) {
	r := &DetectionResult{Detections: []Detection{
		{Class: "person", Confidence: 0.9},
		{Class: "dog", Confidence: 0.8},
		{Class: "person", Confidence: 0.7},
	}}

	require.Equal(t, 3, r.Count())
	require.Equal(t, []string{"person", "dog"}, r.Classes())

	empty := &DetectionResult{}
	require.Equal(t, 0, empty.Count())
	require.Empty(t, empty.Classes())
}
