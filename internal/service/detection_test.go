package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"visionserver/internal/apperror"
	"visionserver/internal/dto"
	"visionserver/internal/logger"
	"visionserver/internal/model"
	"visionserver/internal/repository/sqlite"
	"visionserver/internal/service/ai"
	"visionserver/internal/service/storage"
)

type fakeDetector struct {
	raws []model.RawDetection
	err  error
}

func (f *fakeDetector) Infer(_ context.Context, _ *image.RGBA, threshold float64) ([]model.RawDetection, error) {
	if f.err != nil {
		return nil, f.err
	}
	return ai.FilterByConfidence(f.raws, threshold), nil
}

func (f *fakeDetector) ClassNames() []string { return ai.COCOLabels }

func (f *fakeDetector) Close() error { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []dto.DetectionEvent
}

func (p *recordingPublisher) Publish(e dto.DetectionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

type failingResults struct {
	*sqlite.ResultRepository
}

func (failingResults) Insert(context.Context, *model.ResultRecord) error {
	return errors.New("disk I/O error")
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

var personAt = model.RawDetection{ClassID: 0, Confidence: 0.91, Box: [4]float64{10, 10, 50, 90}}

func newService(t *testing.T, det ai.Detector) (*DetectionService, *storage.ArtifactStore, *sqlite.ResultRepository, *recordingPublisher) {
	t.Helper()
	dir := t.TempDir()
	store := storage.NewArtifactStore(filepath.Join(dir, "outputs"), logger.NewDiscard())

	db, err := sqlite.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	results := sqlite.NewResultRepository(db)

	pub := &recordingPublisher{}
	return NewDetectionService(det, store, results, pub, logger.NewDiscard()), store, results, pub
}

func TestPredict_BlackImageNoObjects(t *testing.T) {
	svc, store, _, _ := newService(t, &fakeDetector{})

	resp, err := svc.Predict(context.Background(), pngBytes(t, 10, 10), Options{Threshold: 0.25})
	require.NoError(t, err)

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true,"count":0,"detections":[]}`, string(out))

	_, err = os.Stat(store.Root())
	require.True(t, os.IsNotExist(err), "stateless prediction must not touch storage")
}

func TestPredict_NotAnImage(t *testing.T) {
	svc, _, _, pub := newService(t, &fakeDetector{raws: []model.RawDetection{personAt}})

	for _, data := range [][]byte{[]byte("not-an-image"), nil, pngBytes(t, 10, 10)[:20]} {
		_, err := svc.Predict(context.Background(), data, Options{Threshold: 0.25, Persist: true})
		require.ErrorIs(t, err, apperror.ErrInvalidImage)
	}
	require.Empty(t, pub.events)
}

func TestPredict_PersistWritesMatchingRecord(t *testing.T) {
	svc, store, results, pub := newService(t, &fakeDetector{raws: []model.RawDetection{personAt}})
	ctx := context.Background()

	resp, err := svc.Predict(ctx, pngBytes(t, 100, 100), Options{Threshold: 0.25, Persist: true})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	require.Equal(t, len(resp.Detections), resp.Count)
	require.Equal(t, []model.Detection{{Class: "person", Confidence: 0.91, BBox: [4]float64{10, 10, 50, 90}}}, resp.Detections)
	require.Regexp(t, `^/outputs/detection_[0-9a-f]{16}\.jpg$`, resp.AnnotatedImage)
	require.Regexp(t, `^/outputs/detection_[0-9a-f]{16}\.json$`, resp.JSONFile)

	raw, err := store.Get(filepath.Base(resp.JSONFile))
	require.NoError(t, err)
	var record map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &record))

	wantDetections, err := json.Marshal(resp.Detections)
	require.NoError(t, err)
	require.JSONEq(t, string(wantDetections), string(record["detections"]))
	require.JSONEq(t, `"`+filepath.Base(resp.AnnotatedImage)+`"`, string(record["image_file"]))
	require.NotContains(t, record, "annotated_image")
	require.NotContains(t, record, "json_file")

	jpeg, err := store.Get(filepath.Base(resp.AnnotatedImage))
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0xd8}, jpeg[:2])

	id := filepath.Base(resp.JSONFile)
	id = id[len("detection_") : len(id)-len(".json")]
	indexed, err := results.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, resp.Detections, indexed.Detections)
	require.Len(t, indexed.SourceDigest, 64)

	require.Len(t, pub.events, 1)
	require.Equal(t, id, pub.events[0].ID)
	require.Equal(t, []string{"person"}, pub.events[0].Classes)
}

func TestPredict_UniqueIDsAndDeterministicDetections(t *testing.T) {
	svc, _, _, _ := newService(t, &fakeDetector{raws: []model.RawDetection{personAt}})
	data := pngBytes(t, 100, 100)

	first, err := svc.Predict(context.Background(), data, Options{Threshold: 0.25, Persist: true})
	require.NoError(t, err)
	second, err := svc.Predict(context.Background(), data, Options{Threshold: 0.25, Persist: true})
	require.NoError(t, err)

	require.Equal(t, first.Detections, second.Detections)
	require.NotEqual(t, first.JSONFile, second.JSONFile)
}

func TestPredict_ThresholdFilters(t *testing.T) {
	svc, _, _, _ := newService(t, &fakeDetector{raws: []model.RawDetection{personAt}})

	resp, err := svc.Predict(context.Background(), pngBytes(t, 100, 100), Options{Threshold: 0.95})
	require.NoError(t, err)
	require.Zero(t, resp.Count)

	_, err = svc.Predict(context.Background(), pngBytes(t, 100, 100), Options{Threshold: 1.5})
	require.ErrorIs(t, err, apperror.ErrInvalidRequest)
}

func TestPredict_InferenceFailure(t *testing.T) {
	svc, _, _, _ := newService(t, &fakeDetector{err: errors.New("onnx exploded")})

	_, err := svc.Predict(context.Background(), pngBytes(t, 10, 10), Options{Threshold: 0.25})
	require.ErrorIs(t, err, apperror.ErrInferenceFailure)
}

func TestPredict_UnknownClassID(t *testing.T) {
	svc, _, _, _ := newService(t, &fakeDetector{raws: []model.RawDetection{{ClassID: 80, Confidence: 0.5, Box: [4]float64{1, 1, 5, 5}}}})

	_, err := svc.Predict(context.Background(), pngBytes(t, 10, 10), Options{Threshold: 0.25})
	require.ErrorIs(t, err, apperror.ErrUnknownClassID)
}

func TestPredict_StorageFailure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "outputs")
	require.NoError(t, os.WriteFile(root, []byte("not a directory"), 0o644))
	store := storage.NewArtifactStore(root, logger.NewDiscard())
	pub := &recordingPublisher{}
	svc := NewDetectionService(&fakeDetector{raws: []model.RawDetection{personAt}}, store, nil, pub, logger.NewDiscard())

	resp, err := svc.Predict(context.Background(), pngBytes(t, 100, 100), Options{Threshold: 0.25, Persist: true})
	require.Nil(t, resp)
	require.ErrorIs(t, err, apperror.ErrStorageWrite)
	require.Empty(t, pub.events)
}

func TestPredict_IndexFailureRollsBackArtifacts(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewArtifactStore(filepath.Join(dir, "outputs"), logger.NewDiscard())
	svc := NewDetectionService(&fakeDetector{raws: []model.RawDetection{personAt}}, store, failingResults{}, nil, logger.NewDiscard())

	_, err := svc.Predict(context.Background(), pngBytes(t, 100, 100), Options{Threshold: 0.25, Persist: true})
	require.ErrorIs(t, err, apperror.ErrStorageWrite)

	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestMetrics_WithoutPool(t *testing.T) {
	svc, _, _, _ := newService(t, &fakeDetector{})
	_, ok := svc.Metrics()
	require.False(t, ok)
}
