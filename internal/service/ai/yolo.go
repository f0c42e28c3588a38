package ai

import (
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"visionserver/internal/model"
)

// InputSize is the square input resolution of the YOLOv8 export.
const InputSize = 640

// NumAnchors is the number of candidate boxes a 640x640 YOLOv8 head emits.
const NumAnchors = 8400

// fillInput resizes raster to InputSize and writes it into dst as planar
// RGB float32 in [0,1] (CHW order).
func fillInput(raster image.Image, dst []float32) {
	resized := imaging.Resize(raster, InputSize, InputSize, imaging.Linear)
	plane := InputSize * InputSize
	for y := 0; y < InputSize; y++ {
		row := resized.Pix[y*resized.Stride : y*resized.Stride+InputSize*4]
		for x := 0; x < InputSize; x++ {
			i := y*InputSize + x
			dst[i] = float32(row[x*4]) / 255.0
			dst[plane+i] = float32(row[x*4+1]) / 255.0
			dst[2*plane+i] = float32(row[x*4+2]) / 255.0
		}
	}
}

// decodeYOLOv8 converts a [4+numClasses, numAnchors] output into raw
// detections in source pixel space. Each anchor contributes its best class
// when that score reaches threshold; overlapping boxes of the same class are
// then suppressed. The result is ordered by descending confidence.
func decodeYOLOv8(out []float32, numClasses, numAnchors int, srcW, srcH int, threshold, iou float64) []model.RawDetection {
	if len(out) < (4+numClasses)*numAnchors {
		return nil
	}
	scaleX := float64(srcW) / InputSize
	scaleY := float64(srcH) / InputSize

	candidates := make([]model.RawDetection, 0, 64)
	for i := 0; i < numAnchors; i++ {
		classID, score := 0, float32(-1)
		for c := 0; c < numClasses; c++ {
			if v := out[(4+c)*numAnchors+i]; v > score {
				score, classID = v, c
			}
		}
		if float64(score) < threshold {
			continue
		}

		cx := float64(out[i])
		cy := float64(out[numAnchors+i])
		w := float64(out[2*numAnchors+i])
		h := float64(out[3*numAnchors+i])

		candidates = append(candidates, model.RawDetection{
			ClassID:    classID,
			Confidence: float64(score),
			Box: [4]float64{
				(cx - w/2) * scaleX,
				(cy - h/2) * scaleY,
				(cx + w/2) * scaleX,
				(cy + h/2) * scaleY,
			},
		})
	}

	return nonMaxSuppression(candidates, iou)
}

// nonMaxSuppression keeps the highest-confidence box of every overlapping
// same-class group whose IoU exceeds threshold.
func nonMaxSuppression(dets []model.RawDetection, threshold float64) []model.RawDetection {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})

	suppressed := make([]bool, len(dets))
	kept := make([]model.RawDetection, 0, len(dets))
	for i := range dets {
		if suppressed[i] {
			continue
		}
		kept = append(kept, dets[i])
		for j := i + 1; j < len(dets); j++ {
			if suppressed[j] || dets[j].ClassID != dets[i].ClassID {
				continue
			}
			if intersectionOverUnion(dets[i].Box, dets[j].Box) > threshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func intersectionOverUnion(a, b [4]float64) float64 {
	ix1 := math.Max(a[0], b[0])
	iy1 := math.Max(a[1], b[1])
	ix2 := math.Min(a[2], b[2])
	iy2 := math.Min(a[3], b[3])

	inter := math.Max(0, ix2-ix1) * math.Max(0, iy2-iy1)
	areaA := math.Abs(a[2]-a[0]) * math.Abs(a[3]-a[1])
	areaB := math.Abs(b[2]-b[0]) * math.Abs(b[3]-b[1])
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
