// Package annotate renders detection boxes and labels onto a copy of a raster.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"visionserver/internal/model"
)

const (
	// LineWidth is the rectangle outline thickness in pixels.
	LineWidth = 3
	// LabelOffset is how far above the box the label's top edge sits.
	LabelOffset = 10
)

// BoxColor is used for outlines and label text.
var BoxColor = color.RGBA{R: 255, A: 255}

var labelFace = basicfont.Face7x13

// Label formats the caption drawn for a detection.
func Label(d model.Detection) string {
	return fmt.Sprintf("%s %.2f", d.Class, d.Confidence)
}

// LabelOrigin returns the top-left corner of the label for a box. The label
// sits LabelOffset pixels above the box, clamped so it never leaves the top
// edge of the image.
func LabelOrigin(bbox [4]float64) image.Point {
	x := int(math.Round(bbox[0]))
	y := int(math.Round(bbox[1])) - LabelOffset
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return image.Pt(x, y)
}

// Draw returns a copy of src with every detection outlined and labelled. src
// is not modified.
func Draw(src *image.RGBA, detections []model.Detection) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)

	for _, d := range detections {
		rect := image.Rect(
			int(math.Round(d.BBox[0])), int(math.Round(d.BBox[1])),
			int(math.Round(d.BBox[2])), int(math.Round(d.BBox[3])),
		)
		outline(dst, rect, LineWidth, BoxColor)
		text(dst, LabelOrigin(d.BBox), Label(d), BoxColor)
	}
	return dst
}

// outline draws a rectangle border of the given width inside rect.
func outline(dst *image.RGBA, rect image.Rectangle, width int, c color.Color) {
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	if width > rect.Dx()/2+1 {
		width = rect.Dx()/2 + 1
	}
	if width > rect.Dy()/2+1 {
		width = rect.Dy()/2 + 1
	}

	fill := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+width), // top
		image.Rect(rect.Min.X, rect.Max.Y-width, rect.Max.X, rect.Max.Y), // bottom
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+width, rect.Max.Y), // left
		image.Rect(rect.Max.X-width, rect.Min.Y, rect.Max.X, rect.Max.Y), // right
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(rect), fill, image.Point{}, draw.Src)
	}
}

// text draws s with its top-left corner at origin.
func text(dst *image.RGBA, origin image.Point, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: labelFace,
		Dot:  fixed.P(origin.X, origin.Y+labelFace.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
}
