package ai

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"visionserver/internal/model"
)

// yoloOutput lays out anchors in the [4+classes, anchors] order the model emits.
func yoloOutput(numClasses int, anchors [][]float32) []float32 {
	n := len(anchors)
	out := make([]float32, (4+numClasses)*n)
	for i, a := range anchors {
		for row, v := range a {
			out[row*n+i] = v
		}
	}
	return out
}

func TestDecodeYOLOv8_ScalesToSourceAndPicksBestClass(t *testing.T) {
	out := yoloOutput(2, [][]float32{
		{320, 320, 64, 128, 0.1, 0.8},
		{100, 100, 10, 10, 0.05, 0.1},
	})

	dets := decodeYOLOv8(out, 2, 2, 1280, 640, 0.25, 0.7)

	require.Len(t, dets, 1)
	require.Equal(t, 1, dets[0].ClassID)
	require.InDelta(t, 0.8, dets[0].Confidence, 1e-6)
	require.InDeltaSlice(t, []float64{576, 256, 704, 384}, dets[0].Box[:], 1e-6)
}

func TestDecodeYOLOv8_ShortOutput(t *testing.T) {
	require.Empty(t, decodeYOLOv8(make([]float32, 10), 80, NumAnchors, 640, 640, 0.25, 0.7))
}

func TestNonMaxSuppression_PerClassDescending(t *testing.T) {
	dets := []model.RawDetection{
		{ClassID: 0, Confidence: 0.6, Box: [4]float64{0, 0, 100, 100}},
		{ClassID: 0, Confidence: 0.9, Box: [4]float64{2, 2, 100, 100}},
		{ClassID: 1, Confidence: 0.7, Box: [4]float64{0, 0, 100, 100}},
		{ClassID: 0, Confidence: 0.5, Box: [4]float64{200, 200, 250, 250}},
	}

	kept := nonMaxSuppression(dets, 0.7)

	require.Len(t, kept, 3)
	require.InDelta(t, 0.9, kept[0].Confidence, 1e-9)
	require.Equal(t, 1, kept[1].ClassID)
	require.InDelta(t, 0.5, kept[2].Confidence, 1e-9)
}

func TestIntersectionOverUnion(t *testing.T) {
	require.InDelta(t, 1.0, intersectionOverUnion([4]float64{0, 0, 10, 10}, [4]float64{0, 0, 10, 10}), 1e-9)
	require.InDelta(t, 0.0, intersectionOverUnion([4]float64{0, 0, 10, 10}, [4]float64{20, 20, 30, 30}), 1e-9)
	require.InDelta(t, 25.0/175.0, intersectionOverUnion([4]float64{0, 0, 10, 10}, [4]float64{5, 5, 15, 15}), 1e-9)
	require.Zero(t, intersectionOverUnion([4]float64{}, [4]float64{}))
}

func TestFillInput_PlanarNormalized(t *testing.T) {
	raster := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			raster.SetRGBA(x, y, color.RGBA{R: 255, G: 0, B: 51, A: 255})
		}
	}
	dst := make([]float32, 3*InputSize*InputSize)

	fillInput(raster, dst)

	plane := InputSize * InputSize
	for _, i := range []int{0, plane / 2, plane - 1} {
		require.InDelta(t, 1.0, dst[i], 1e-3)
		require.InDelta(t, 0.0, dst[plane+i], 1e-3)
		require.InDelta(t, 0.2, dst[2*plane+i], 1e-3)
	}
}

func TestFilterByConfidence(t *testing.T) {
	raws := []model.RawDetection{
		{ClassID: 3, Confidence: 0.3},
		{ClassID: 1, Confidence: 0.1},
		{ClassID: 2, Confidence: 0.25},
	}

	kept := FilterByConfidence(raws, 0.25)

	require.Len(t, kept, 2)
	require.Equal(t, 3, kept[0].ClassID)
	require.Equal(t, 2, kept[1].ClassID)
}
