// Package result turns raw detector output into the public detection result
// and, on request, its annotated raster.
package result

import (
	"encoding/hex"
	"image"
	"time"

	"github.com/google/uuid"

	"visionserver/internal/apperror"
	"visionserver/internal/logger"
	"visionserver/internal/model"
	"visionserver/internal/service/annotate"
)

// IDLength is the number of hex characters in a result id.
const IDLength = 16

// NewID returns a random result id: the first IDLength hex characters of a
// version 4 UUID.
func NewID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:IDLength/2])
}

// Builder maps raw detections onto a label table.
type Builder struct {
	labels []string
	newID  func() string
	now    func() time.Time
	logger *logger.Logger
}

// NewBuilder creates a Builder resolving class ids through labels.
func NewBuilder(labels []string, logger *logger.Logger) *Builder {
	return &Builder{
		labels: labels,
		newID:  NewID,
		now:    time.Now,
		logger: logger,
	}
}

// Build resolves and normalizes raws in order. When render is set the second
// return value is an annotated copy of raster; raster itself is never changed.
func (b *Builder) Build(raster *image.RGBA, raws []model.RawDetection, render bool) (*model.DetectionResult, *image.RGBA, error) {
	bounds := raster.Bounds()
	detections := make([]model.Detection, 0, len(raws))

	for i, raw := range raws {
		if raw.ClassID < 0 || raw.ClassID >= len(b.labels) {
			return nil, nil, apperror.Newf(apperror.KindUnknownClassID, "build result",
				"class id %d outside label table of %d", raw.ClassID, len(b.labels))
		}

		confidence := raw.Confidence
		if !(confidence > 0) {
			b.logger.Warning("Dropping detection %d (%s): invalid confidence %v", i, b.labels[raw.ClassID], confidence)
			continue
		}
		if confidence > 1 {
			confidence = 1
		}

		box, ok := NormalizeBox(raw.Box, bounds)
		if !ok {
			b.logger.Warning("Dropping detection %d (%s): degenerate box %v", i, b.labels[raw.ClassID], raw.Box)
			continue
		}

		detections = append(detections, model.Detection{
			Class:      b.labels[raw.ClassID],
			Confidence: confidence,
			BBox:       box,
		})
	}

	result := &model.DetectionResult{
		ID:         b.newID(),
		Detections: detections,
		CreatedAt:  b.now().UTC(),
	}

	if !render {
		return result, nil, nil
	}
	return result, annotate.Draw(raster, detections), nil
}

// NormalizeBox orders the corners of box so x1<x2 and y1<y2 and clamps it to
// bounds. It reports false when the result has no area.
func NormalizeBox(box [4]float64, bounds image.Rectangle) ([4]float64, bool) {
	x1, y1, x2, y2 := box[0], box[1], box[2], box[3]
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}

	minX, minY := float64(bounds.Min.X), float64(bounds.Min.Y)
	maxX, maxY := float64(bounds.Max.X), float64(bounds.Max.Y)
	x1, x2 = clamp(x1, minX, maxX), clamp(x2, minX, maxX)
	y1, y2 = clamp(y1, minY, maxY), clamp(y2, minY, maxY)

	if !(x1 < x2) || !(y1 < y2) {
		return [4]float64{}, false
	}
	return [4]float64{x1, y1, x2, y2}, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
