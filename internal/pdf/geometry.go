package pdf

import (
	"fmt"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// pageBoxes are the page boundary entries, MediaBox first.
var pageBoxes = []string{"MediaBox", "CropBox", "BleedBox", "TrimBox", "ArtBox"}

// matrix is a PDF transformation [a b c d e f]:
// x' = a*x + c*y + e, y' = b*x + d*y + f.
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

func (m matrix) isIdentity() bool {
	return m == identity
}

// applyRect transforms both corners of r and returns their bounding box.
func (m matrix) applyRect(r *types.Rectangle) *types.Rectangle {
	x1, y1 := m.apply(r.LL.X, r.LL.Y)
	x2, y2 := m.apply(r.UR.X, r.UR.Y)
	return types.NewRectangle(math.Min(x1, x2), math.Min(y1, y2), math.Max(x1, x2), math.Max(y1, y2))
}

// normalizeRotation reduces a /Rotate value to 0, 90, 180 or 270.
func normalizeRotation(rot int) (int, error) {
	if rot%90 != 0 {
		return 0, fmt.Errorf("rotation %d is not a multiple of 90", rot)
	}
	return ((rot % 360) + 360) % 360, nil
}

// rotationMatrix maps the media box into an upright box at the origin, so
// content drawn with it displays the same without /Rotate. rot is the
// clockwise display rotation.
func rotationMatrix(rot int, media *types.Rectangle) matrix {
	w, h := media.Width(), media.Height()
	var r matrix
	switch rot {
	case 90:
		r = matrix{0, -1, 1, 0, 0, w}
	case 180:
		r = matrix{-1, 0, 0, -1, w, h}
	case 270:
		r = matrix{0, 1, -1, 0, h, 0}
	default:
		r = identity
	}
	// translate the media box origin to (0, 0) first
	lx, ly := media.LL.X, media.LL.Y
	r[4] -= r[0]*lx + r[2]*ly
	r[5] -= r[1]*lx + r[3]*ly
	return r
}

// visualSize is the displayed width and height of a media box under rot.
func visualSize(rot int, media *types.Rectangle) (float64, float64) {
	if rot == 90 || rot == 270 {
		return media.Height(), media.Width()
	}
	return media.Width(), media.Height()
}

// rectFromArray parses a 4-number rectangle array, normalizing corner order.
func rectFromArray(arr types.Array) (*types.Rectangle, error) {
	if len(arr) != 4 {
		return nil, fmt.Errorf("rectangle has %d elements", len(arr))
	}
	var v [4]float64
	for i, o := range arr {
		f, ok := number(o)
		if !ok {
			return nil, fmt.Errorf("rectangle element %d is not a number", i)
		}
		v[i] = f
	}
	r := types.NewRectangle(math.Min(v[0], v[2]), math.Min(v[1], v[3]), math.Max(v[0], v[2]), math.Max(v[1], v[3]))
	if r.Width() <= 0 || r.Height() <= 0 {
		return nil, fmt.Errorf("degenerate rectangle %v", v)
	}
	return r, nil
}

// number reads an Integer or Float.
func number(o types.Object) (float64, bool) {
	switch v := o.(type) {
	case types.Integer:
		return float64(v), true
	case types.Float:
		return float64(v), true
	}
	return 0, false
}
