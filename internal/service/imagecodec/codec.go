// Package imagecodec turns uploaded bytes into the canonical RGB raster used
// by the pipeline, and encodes rasters back into JPEG artifacts.
package imagecodec

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"visionserver/internal/apperror"
)

// JPEGQuality is used for every encoded artifact.
const JPEGQuality = 90

// Decode decodes data with any registered format, applies EXIF orientation
// and returns an opaque RGB raster. Alpha is discarded, not composited.
func Decode(data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, apperror.New(apperror.KindInvalidImage, "decode", errors.New("empty body"))
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperror.New(apperror.KindInvalidImage, "decode", err)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, apperror.New(apperror.KindInvalidImage, "decode", errors.New("zero-sized image"))
	}

	return ToRGB(img), nil
}

// ToRGB copies img into a zero-origin RGBA raster with every alpha set to 255.
func ToRGB(img image.Image) *image.RGBA {
	// Clone un-premultiplies into NRGBA, so the color channels keep their
	// stored values once alpha is forced opaque.
	n := imaging.Clone(img)
	for i := 3; i < len(n.Pix); i += 4 {
		n.Pix[i] = 0xff
	}
	return &image.RGBA{Pix: n.Pix, Stride: n.Stride, Rect: n.Rect}
}

// EncodeJPEG encodes a raster as JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
