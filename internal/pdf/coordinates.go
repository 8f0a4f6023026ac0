package pdf

import (
	"math"

	"pdf-editor/internal/annotation"
)

// Auto-sizing caps for images without an explicit size, as fractions of the
// page's visual width and height. Images are never upscaled.
const (
	maxAutoWidthRatio  = 0.4
	maxAutoHeightRatio = 0.2
)

// Mapper converts editor space (top-left origin, y down) into PDF content
// space (bottom-left origin, y up) for a page whose visual size, after
// rotation normalization, is W x H.
type Mapper struct {
	W, H float64
}

func NewMapper(w, h float64) Mapper {
	return Mapper{W: w, H: h}
}

// ToPDF maps an editor point to PDF space.
func (m Mapper) ToPDF(x, y float64) (float64, float64) {
	return x, m.H - y
}

// ToEditor is the inverse of ToPDF.
func (m Mapper) ToEditor(px, py float64) (float64, float64) {
	return px, m.H - py
}

// TextOrigin is the baseline origin for a text annotation.
func (m Mapper) TextOrigin(a annotation.Annotation) (float64, float64) {
	return m.ToPDF(a.X, a.Y)
}

// ImageAnchor returns the PDF-space lower-left corner of an image whose top
// edge sits at the editor point (x, y).
func (m Mapper) ImageAnchor(x, y, drawH float64) (float64, float64) {
	px, py := m.ToPDF(x, y)
	return px, py - drawH
}

// AutoSize scales an imgW x imgH raster to fit within 40% of the page width
// and 20% of its height, preserving aspect ratio.
func (m Mapper) AutoSize(imgW, imgH float64) (float64, float64) {
	if imgW <= 0 || imgH <= 0 {
		return 0, 0
	}
	scale := math.Min(math.Min(maxAutoWidthRatio*m.W/imgW, maxAutoHeightRatio*m.H/imgH), 1)
	return imgW * scale, imgH * scale
}

// DrawSize is the annotation's explicit size when both dimensions were
// given, otherwise AutoSize. Explicit sizes are not clamped to the page.
func (m Mapper) DrawSize(a annotation.Annotation, imgW, imgH int) (float64, float64) {
	if w, h, ok := a.ExplicitSize(); ok {
		return w, h
	}
	return m.AutoSize(float64(imgW), float64(imgH))
}
