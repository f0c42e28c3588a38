package ai

import (
	"context"
	"fmt"
	"image"
	"os"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"

	"visionserver/internal/apperror"
	"visionserver/internal/config"
	"visionserver/internal/logger"
	"visionserver/internal/model"
)

// onnxSession is one ONNX Runtime session with its preallocated tensors.
type onnxSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (s *onnxSession) destroy() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}

// YOLODetector runs a YOLOv8 ONNX export through ONNX Runtime.
type YOLODetector struct {
	pool   *Pool[*onnxSession]
	labels []string
	iou    float64
	logger *logger.Logger
}

// NewYOLODetector initializes the ONNX Runtime environment and a pool of
// cfg.SessionPoolSize sessions over cfg.ModelPath.
func NewYOLODetector(cfg *config.Config, logger *logger.Logger) (*YOLODetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(cfg.OnnxLibraryPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize onnx runtime: %w", err)
		}
	}

	labels := COCOLabels
	threads := runtime.NumCPU() / cfg.SessionPoolSize
	if threads < 1 {
		threads = 1
	}

	pool, err := NewPool(cfg.SessionPoolSize, func() (*onnxSession, error) {
		return newONNXSession(cfg.ModelPath, len(labels), threads)
	}, (*onnxSession).destroy)
	if err != nil {
		return nil, err
	}

	logger.Info("ONNX detector ready: model=%s sessions=%d threads/session=%d", cfg.ModelPath, cfg.SessionPoolSize, threads)
	return &YOLODetector{
		pool:   pool,
		labels: labels,
		iou:    cfg.IoUThreshold,
		logger: logger,
	}, nil
}

func newONNXSession(modelPath string, numClasses, threads int) (*onnxSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(threads); err != nil {
		return nil, fmt.Errorf("error setting intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("error setting inter-op threads: %w", err)
	}

	s := &onnxSession{}
	s.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, InputSize, InputSize))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}
	s.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+numClasses), NumAnchors))
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	s.session, err = ort.NewAdvancedSession(
		modelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{s.input},
		[]ort.ArbitraryTensor{s.output},
		options,
	)
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return s, nil
}

// Infer implements Detector.
func (d *YOLODetector) Infer(ctx context.Context, raster *image.RGBA, threshold float64) ([]model.RawDetection, error) {
	session, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, apperror.New(apperror.KindInferenceFailure, "acquire session", err)
	}
	defer d.pool.Release(session)

	fillInput(raster, session.input.GetData())
	if err := session.session.Run(); err != nil {
		return nil, apperror.New(apperror.KindInferenceFailure, "model inference", err)
	}

	bounds := raster.Bounds()
	raws := decodeYOLOv8(session.output.GetData(), len(d.labels), NumAnchors, bounds.Dx(), bounds.Dy(), threshold, d.iou)
	return FilterByConfidence(raws, threshold), nil
}

// ClassNames implements Detector.
func (d *YOLODetector) ClassNames() []string {
	return d.labels
}

// Metrics implements MetricsReporter.
func (d *YOLODetector) Metrics() PoolStats {
	return d.pool.Stats()
}

// Close destroys the sessions and the ONNX Runtime environment.
func (d *YOLODetector) Close() error {
	d.pool.Close()
	return ort.DestroyEnvironment()
}
