package ai

import (
	"context"
	"fmt"
	"image"

	"visionserver/internal/config"
	"visionserver/internal/logger"
	"visionserver/internal/model"
)

// Detector wraps an inference backend. Implementations load model state once
// at construction and are safe for concurrent Infer calls.
type Detector interface {
	// Infer returns the raw detections with confidence >= threshold, in the
	// order the backend emits them.
	Infer(ctx context.Context, raster *image.RGBA, threshold float64) ([]model.RawDetection, error)
	// ClassNames is the label table indexed by RawDetection.ClassID.
	ClassNames() []string
	Close() error
}

// MetricsReporter is implemented by backends that run on a session pool.
type MetricsReporter interface {
	Metrics() PoolStats
}

// New builds the detector selected by cfg.DetectorBackend.
func New(cfg *config.Config, logger *logger.Logger) (Detector, error) {
	switch cfg.DetectorBackend {
	case config.BackendONNX:
		d, err := NewYOLODetector(cfg, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	case config.BackendOpenCV:
		return NewOpenCVDetector(cfg, logger)
	case config.BackendRemote:
		return NewRemoteDetector(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.DetectorBackend)
	}
}

// FilterByConfidence keeps detections with confidence >= threshold, preserving order.
func FilterByConfidence(raws []model.RawDetection, threshold float64) []model.RawDetection {
	kept := make([]model.RawDetection, 0, len(raws))
	for _, r := range raws {
		if r.Confidence >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}
