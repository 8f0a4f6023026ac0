package fonts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/encoding/charmap"
)

const (
	firstChar = 32
	lastChar  = 255
)

// glyph space is 1000 units per em; sfnt scales to ppem in 26.6 fixed point
var glyphPPEM = fixed.I(1000)

// TrueType is an embedded simple TrueType font with WinAnsi encoding. Its
// metrics are computed once at load time.
type TrueType struct {
	data     []byte
	baseFont string

	widths    [lastChar - firstChar + 1]float64
	missing   float64
	bbox      [4]float64
	ascent    float64
	descent   float64
	capHeight float64
}

// NewTrueType parses a TrueType/OpenType (glyf) font program.
func NewTrueType(data []byte, psName string) (*TrueType, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, err
	}
	var buf sfnt.Buffer

	if psName == "" {
		psName, err = f.Name(&buf, sfnt.NameIDPostScript)
		if err != nil || psName == "" {
			return nil, errors.New("font has no PostScript name")
		}
	}

	t := &TrueType{data: data, baseFont: sanitizeName(psName)}

	if gi, err := f.GlyphIndex(&buf, ' '); err == nil {
		if adv, err := f.GlyphAdvance(&buf, gi, glyphPPEM, font.HintingNone); err == nil {
			t.missing = units(adv)
		}
	}
	for c := firstChar; c <= lastChar; c++ {
		r := charmap.Windows1252.DecodeByte(byte(c))
		gi, err := f.GlyphIndex(&buf, r)
		if err != nil || gi == 0 {
			t.widths[c-firstChar] = t.missing
			continue
		}
		adv, err := f.GlyphAdvance(&buf, gi, glyphPPEM, font.HintingNone)
		if err != nil {
			return nil, fmt.Errorf("advance for %q: %w", r, err)
		}
		t.widths[c-firstChar] = units(adv)
	}

	m, err := f.Metrics(&buf, glyphPPEM, font.HintingNone)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	t.ascent = units(m.Ascent)
	t.descent = -units(m.Descent)
	t.capHeight = units(m.CapHeight)
	if t.capHeight == 0 {
		t.capHeight = t.ascent
	}

	b, err := f.Bounds(&buf, glyphPPEM, font.HintingNone)
	if err != nil {
		return nil, fmt.Errorf("bounds: %w", err)
	}
	// sfnt bounds are y-down
	t.bbox = [4]float64{units(b.Min.X), -units(b.Max.Y), units(b.Max.X), -units(b.Min.Y)}

	return t, nil
}

func units(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// sanitizeName drops characters not allowed in a PDF name token.
func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		if r <= ' ' || r > '~' || strings.ContainsRune("()<>[]{}/%#", r) {
			return -1
		}
		return r
	}, s)
}

func (t *TrueType) BaseFont() string { return t.baseFont }

func (t *TrueType) Encode(s string) []byte { return encodeWinAnsi(s) }

func (t *TrueType) Object(ctx *model.Context) (types.Object, error) {
	sd, err := ctx.NewStreamDictForBuf(t.data)
	if err != nil {
		return nil, err
	}
	sd.Dict["Length1"] = types.Integer(len(t.data))
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	fileRef, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return nil, err
	}

	descriptor := types.Dict{
		"Type":         types.Name("FontDescriptor"),
		"FontName":     types.Name(t.baseFont),
		"Flags":        types.Integer(32), // nonsymbolic
		"FontBBox":     floats(t.bbox[:]...),
		"ItalicAngle":  types.Integer(0),
		"Ascent":       types.Float(t.ascent),
		"Descent":      types.Float(t.descent),
		"CapHeight":    types.Float(t.capHeight),
		"StemV":        types.Integer(80),
		"MissingWidth": types.Float(t.missing),
		"FontFile2":    *fileRef,
	}
	descRef, err := ctx.IndRefForNewObject(descriptor)
	if err != nil {
		return nil, err
	}

	return types.Dict{
		"Type":           types.Name("Font"),
		"Subtype":        types.Name("TrueType"),
		"BaseFont":       types.Name(t.baseFont),
		"FirstChar":      types.Integer(firstChar),
		"LastChar":       types.Integer(lastChar),
		"Widths":         floats(t.widths[:]...),
		"FontDescriptor": *descRef,
		"Encoding":       types.Name("WinAnsiEncoding"),
	}, nil
}

func floats(vs ...float64) types.Array {
	arr := make(types.Array, 0, len(vs))
	for _, v := range vs {
		arr = append(arr, types.Float(v))
	}
	return arr
}
