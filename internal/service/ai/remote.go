package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"visionserver/internal/apperror"
	"visionserver/internal/config"
	"visionserver/internal/logger"
	"visionserver/internal/model"
	"visionserver/internal/service/imagecodec"
)

// maxRemoteResponse bounds how much of an inference response is read.
const maxRemoteResponse = 8 << 20

// RemoteDetector delegates inference to an HTTP endpoint that accepts a
// multipart "file" upload and answers with raw class-id detections.
type RemoteDetector struct {
	url    string
	client *http.Client
	labels []string
	logger *logger.Logger
}

type remoteResponse struct {
	Detections []struct {
		ClassID    int        `json:"class_id"`
		Confidence float64    `json:"confidence"`
		Box        [4]float64 `json:"box"`
	} `json:"detections"`
}

// NewRemoteDetector targets cfg.RemoteInferenceURL.
func NewRemoteDetector(cfg *config.Config, logger *logger.Logger) *RemoteDetector {
	return &RemoteDetector{
		url:    cfg.RemoteInferenceURL,
		client: &http.Client{Timeout: time.Duration(cfg.UpstreamTimeoutSeconds) * time.Second},
		labels: COCOLabels,
		logger: logger,
	}
}

// Infer implements Detector.
func (d *RemoteDetector) Infer(ctx context.Context, raster *image.RGBA, threshold float64) ([]model.RawDetection, error) {
	payload, err := imagecodec.EncodeJPEG(raster)
	if err != nil {
		return nil, apperror.New(apperror.KindInferenceFailure, "encode raster", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, apperror.New(apperror.KindInferenceFailure, "build request", err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, apperror.New(apperror.KindInferenceFailure, "build request", err)
	}
	if err := writer.Close(); err != nil {
		return nil, apperror.New(apperror.KindInferenceFailure, "build request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, &body)
	if err != nil {
		return nil, apperror.New(apperror.KindInferenceFailure, "build request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Error("Remote inference request failed: %v", err)
		return nil, apperror.New(apperror.KindInferenceFailure, "remote inference", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteResponse))
	if err != nil {
		return nil, apperror.New(apperror.KindInferenceFailure, "read inference response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperror.New(apperror.KindInferenceFailure, "remote inference",
			fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(data)))
	}

	var decoded remoteResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, apperror.New(apperror.KindInferenceFailure, "decode inference response", err)
	}

	raws := make([]model.RawDetection, 0, len(decoded.Detections))
	for _, det := range decoded.Detections {
		raws = append(raws, model.RawDetection{
			ClassID:    det.ClassID,
			Confidence: det.Confidence,
			Box:        det.Box,
		})
	}
	return FilterByConfidence(raws, threshold), nil
}

// ClassNames implements Detector.
func (d *RemoteDetector) ClassNames() []string {
	return d.labels
}

// Close implements Detector.
func (d *RemoteDetector) Close() error {
	d.client.CloseIdleConnections()
	return nil
}
