//go:build !gocv
// +build !gocv

package ai

import (
	"errors"

	"visionserver/internal/config"
	"visionserver/internal/logger"
)

// NewOpenCVDetector returns an error when built without the gocv tag.
func NewOpenCVDetector(_ *config.Config, _ *logger.Logger) (Detector, error) {
	return nil, errors.New("opencv backend requires the gocv build tag")
}
