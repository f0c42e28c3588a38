//go:build !gocv
// +build !gocv

package ai

import (
	"testing"

	"github.com/stretchr/testify/require"

	"visionserver/internal/config"
	"visionserver/internal/logger"
)

func TestNew_OpenCVWithoutBuildTag(t *testing.T) {
	cfg := config.Default()
	cfg.DetectorBackend = config.BackendOpenCV
	d, err := New(cfg, logger.NewDiscard())
	require.ErrorContains(t, err, "gocv build tag")
	require.Nil(t, d)
}
