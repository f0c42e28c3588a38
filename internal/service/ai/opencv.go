//go:build gocv
// +build gocv

package ai

import (
	"context"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"visionserver/internal/apperror"
	"visionserver/internal/config"
	"visionserver/internal/logger"
	"visionserver/internal/model"
)

// OpenCVDetector runs the YOLOv8 ONNX export through the OpenCV DNN module.
// gocv.Net is not safe for concurrent Forward calls, so each request takes a
// network from the pool.
type OpenCVDetector struct {
	pool   *Pool[*gocv.Net]
	labels []string
	iou    float64
	logger *logger.Logger
}

// NewOpenCVDetector loads cfg.SessionPoolSize copies of the network.
func NewOpenCVDetector(cfg *config.Config, logger *logger.Logger) (Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	pool, err := NewPool(cfg.SessionPoolSize, func() (*gocv.Net, error) {
		return loadNet(cfg.ModelPath)
	}, func(net *gocv.Net) {
		net.Close()
	})
	if err != nil {
		return nil, err
	}

	logger.Info("OpenCV detector ready: model=%s networks=%d", cfg.ModelPath, cfg.SessionPoolSize)
	return &OpenCVDetector{
		pool:   pool,
		labels: COCOLabels,
		iou:    cfg.IoUThreshold,
		logger: logger,
	}, nil
}

// loadNet loads the network and sets backend/target preferences.
func loadNet(modelPath string) (*gocv.Net, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}
	return &net, nil
}

// Infer implements Detector.
func (d *OpenCVDetector) Infer(ctx context.Context, raster *image.RGBA, threshold float64) ([]model.RawDetection, error) {
	net, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, apperror.New(apperror.KindInferenceFailure, "acquire network", err)
	}
	defer d.pool.Release(net)

	mat, err := gocv.ImageToMatRGB(raster)
	if err != nil {
		return nil, apperror.New(apperror.KindInferenceFailure, "convert raster", err)
	}
	defer mat.Close()

	// ImageToMatRGB yields BGR channel order; swapRB restores RGB for the model.
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(InputSize, InputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	net.SetInput(blob, "")
	output := net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, apperror.New(apperror.KindInferenceFailure, "read network output", err)
	}

	bounds := raster.Bounds()
	raws := decodeYOLOv8(data, len(d.labels), NumAnchors, bounds.Dx(), bounds.Dy(), threshold, d.iou)
	return FilterByConfidence(raws, threshold), nil
}

// ClassNames implements Detector.
func (d *OpenCVDetector) ClassNames() []string {
	return d.labels
}

// Metrics implements MetricsReporter.
func (d *OpenCVDetector) Metrics() PoolStats {
	return d.pool.Stats()
}

// Close releases every network.
func (d *OpenCVDetector) Close() error {
	d.pool.Close()
	return nil
}
