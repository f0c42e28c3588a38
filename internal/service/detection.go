// Package service wires the detection pipeline together: decode, infer,
// build, persist and publish.
package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"image"

	"github.com/zeebo/blake3"

	"visionserver/internal/apperror"
	"visionserver/internal/config"
	"visionserver/internal/dto"
	"visionserver/internal/logger"
	"visionserver/internal/model"
	"visionserver/internal/repository"
	"visionserver/internal/service/ai"
	"visionserver/internal/service/imagecodec"
	"visionserver/internal/service/result"
	"visionserver/internal/service/storage"
)

// EventPublisher receives an event after every successful prediction.
type EventPublisher interface {
	Publish(event dto.DetectionEvent)
}

// Options control a single prediction.
type Options struct {
	Threshold float64
	Persist   bool
}

// DefaultOptions returns the configured threshold and persistence mode.
func DefaultOptions(cfg *config.Config) Options {
	return Options{Threshold: cfg.ConfidenceThreshold, Persist: cfg.PersistArtifacts}
}

// DetectionService runs predictions and owns their artifacts.
type DetectionService struct {
	detector  ai.Detector
	builder   *result.Builder
	store     *storage.ArtifactStore
	results   repository.ResultRepository
	publisher EventPublisher
	logger    *logger.Logger
}

// NewDetectionService creates the service. results and publisher may be nil.
func NewDetectionService(detector ai.Detector, store *storage.ArtifactStore, results repository.ResultRepository, publisher EventPublisher, logger *logger.Logger) *DetectionService {
	return &DetectionService{
		detector:  detector,
		builder:   result.NewBuilder(detector.ClassNames(), logger),
		store:     store,
		results:   results,
		publisher: publisher,
		logger:    logger,
	}
}

// Predict decodes data, runs the detector and, when opts.Persist is set,
// writes the JSON record and the annotated image. Either a complete response
// is returned or an *apperror.Error; a failed persist leaves no artifacts.
func (s *DetectionService) Predict(ctx context.Context, data []byte, opts Options) (*dto.DetectionResponse, error) {
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return nil, apperror.Newf(apperror.KindInvalidRequest, "predict", "confidence threshold must be in [0,1], got %v", opts.Threshold)
	}

	raster, err := imagecodec.Decode(data)
	if err != nil {
		return nil, err
	}

	raws, err := s.detector.Infer(ctx, raster, opts.Threshold)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindInternal {
			err = apperror.New(apperror.KindInferenceFailure, "infer", err)
		}
		s.logger.Error("Inference failed: %v", err)
		return nil, err
	}

	res, annotated, err := s.builder.Build(raster, raws, opts.Persist)
	if err != nil {
		s.logger.Error("Building result failed: %v", err)
		return nil, err
	}

	response := dto.NewDetectionResponse(res)
	if opts.Persist {
		imageFile, jsonFile, err := s.persist(ctx, res, annotated, data)
		if err != nil {
			return nil, err
		}
		response.WithArtifacts(imageFile, jsonFile)
	}

	s.logger.Info("Prediction %s: %d detection(s) %v", res.ID, res.Count(), res.Classes())
	if s.publisher != nil {
		s.publisher.Publish(dto.DetectionEvent{
			Type:           "detection",
			ID:             res.ID,
			Count:          res.Count(),
			Classes:        res.Classes(),
			AnnotatedImage: response.AnnotatedImage,
		})
	}
	return response, nil
}

// persist writes the JSON record, then the image, then the history row.
// Anything already written is removed when a later step fails.
func (s *DetectionService) persist(ctx context.Context, res *model.DetectionResult, annotated *image.RGBA, source []byte) (string, string, error) {
	imageFile := model.ArtifactFilename(res.ID, model.ArtifactImage)

	record, err := json.MarshalIndent(dto.NewDetectionRecord(res, imageFile), "", "  ")
	if err != nil {
		return "", "", apperror.New(apperror.KindInternal, "encode record", err)
	}
	jpeg, err := imagecodec.EncodeJPEG(annotated)
	if err != nil {
		return "", "", apperror.New(apperror.KindInternal, "encode annotated image", err)
	}

	jsonFile, err := s.store.Put(res.ID, model.ArtifactJSON, record)
	if err != nil {
		s.logger.Error("Saving %s failed: %v", res.ID, err)
		return "", "", err
	}

	if _, err := s.store.Put(res.ID, model.ArtifactImage, jpeg); err != nil {
		s.logger.Error("Saving %s failed: %v", res.ID, err)
		s.rollback(jsonFile)
		return "", "", err
	}

	if s.results != nil {
		digest := blake3.Sum256(source)
		err := s.results.Insert(ctx, &model.ResultRecord{
			ID:           res.ID,
			CreatedAt:    res.CreatedAt,
			ImageFile:    imageFile,
			JSONFile:     jsonFile,
			SourceDigest: hex.EncodeToString(digest[:]),
			SourceSize:   int64(len(source)),
			Detections:   res.Detections,
		})
		if err != nil {
			s.logger.Error("Indexing %s failed: %v", res.ID, err)
			s.rollback(jsonFile, imageFile)
			return "", "", apperror.New(apperror.KindStorageWrite, "index result", err)
		}
	}

	return imageFile, jsonFile, nil
}

func (s *DetectionService) rollback(filenames ...string) {
	for _, name := range filenames {
		if err := s.store.Remove(name); err != nil {
			s.logger.Error("Rollback of %s failed: %v", name, err)
		}
	}
}

// Fetch returns a stored artifact by filename.
func (s *DetectionService) Fetch(filename string) ([]byte, error) {
	return s.store.Get(filename)
}

// Metrics returns the session pool counters when the backend keeps a pool.
func (s *DetectionService) Metrics() (ai.PoolStats, bool) {
	if reporter, ok := s.detector.(ai.MetricsReporter); ok {
		return reporter.Metrics(), true
	}
	return ai.PoolStats{}, false
}
