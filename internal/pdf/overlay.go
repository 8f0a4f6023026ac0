package pdf

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"pdf-editor/internal/annotation"
	"pdf-editor/internal/fonts"
	"pdf-editor/internal/imaging"
	"pdf-editor/internal/logger"
)

const (
	DefaultTextSize      = 12
	DefaultSignatureSize = 32
)

// SignatureSource resolves saved signature filenames to image bytes.
type SignatureSource interface {
	Resolve(ctx context.Context, filename string) ([]byte, error)
}

// Overlay is a synthesized single page holding only new marks. It owns its
// resources by value; the compositor allocates them into the target
// document when merging.
type Overlay struct {
	MediaBox *types.Rectangle
	CropBox  *types.Rectangle
	BleedBox *types.Rectangle
	TrimBox  *types.Rectangle
	ArtBox   *types.Rectangle

	Content []byte
	Fonts   map[string]fonts.Face
	Images  map[string]*imaging.Raster
	Drawn   int
}

// Empty reports whether the overlay has no marks.
func (o *Overlay) Empty() bool {
	return o.Drawn == 0
}

// SetBox sets one of the named page boxes on the overlay.
func (o *Overlay) SetBox(name string, r *types.Rectangle) error {
	switch name {
	case "MediaBox":
		o.MediaBox = r
	case "CropBox":
		o.CropBox = r
	case "BleedBox":
		o.BleedBox = r
	case "TrimBox":
		o.TrimBox = r
	case "ArtBox":
		o.ArtBox = r
	default:
		return fmt.Errorf("overlay has no %s", name)
	}
	return nil
}

// Renderer draws a page's annotations into an Overlay.
type Renderer struct {
	Fonts         *fonts.Registry
	Signatures    SignatureSource
	TextSize      float64
	SignatureSize float64
	Log           logger.Logger
}

// NewRenderer returns a renderer with the default text styles. fonts may be
// nil, in which case typed signatures always use the oblique fallback.
func NewRenderer(registry *fonts.Registry, signatures SignatureSource) *Renderer {
	return &Renderer{
		Fonts:         registry,
		Signatures:    signatures,
		TextSize:      DefaultTextSize,
		SignatureSize: DefaultSignatureSize,
		Log:           logger.GetLogger(),
	}
}

// overlayBuilder is the per-page render state.
type overlayBuilder struct {
	ov        *Overlay
	prefix    string
	mapper    Mapper
	cw        contentWriter
	fontNames map[fonts.Face]string
}

func (b *overlayBuilder) fontName(f fonts.Face) string {
	if name, ok := b.fontNames[f]; ok {
		return name
	}
	name := b.prefix + "F" + strconv.Itoa(len(b.fontNames)+1)
	b.fontNames[f] = name
	b.ov.Fonts[name] = f
	return name
}

func (b *overlayBuilder) addImage(r *imaging.Raster) string {
	name := b.prefix + "Im" + strconv.Itoa(len(b.ov.Images)+1)
	b.ov.Images[name] = r
	return name
}

// Render draws anns, in order, onto a w x h overlay in PDF space. Resource
// names all start with prefix. Each annotation is isolated: a failure is
// recorded in its outcome and the rest still render.
func (r *Renderer) Render(ctx context.Context, w, h float64, prefix string, anns []annotation.Annotation) (*Overlay, []AnnotationOutcome) {
	b := &overlayBuilder{
		ov: &Overlay{
			MediaBox: types.NewRectangle(0, 0, w, h),
			Fonts:    make(map[string]fonts.Face),
			Images:   make(map[string]*imaging.Raster),
		},
		prefix:    prefix,
		mapper:    NewMapper(w, h),
		fontNames: make(map[fonts.Face]string),
	}

	outcomes := make([]AnnotationOutcome, 0, len(anns))
	for _, a := range anns {
		out := r.renderOne(ctx, b, a)
		if out.Status == StatusDrawn {
			b.ov.Drawn++
			r.log().Debug("annotation drawn", logger.Int("index", a.Index), logger.Int("page", a.PageIndex), logger.String("variant", out.Variant))
		} else {
			r.log().Warn("annotation skipped",
				logger.Int("index", a.Index),
				logger.Int("page", a.PageIndex),
				logger.String("variant", out.Variant),
				logger.String("reason", out.Reason),
				logger.Err(out.Err))
		}
		outcomes = append(outcomes, out)
	}

	b.ov.Content = b.cw.Bytes()
	return b.ov, outcomes
}

func (r *Renderer) log() logger.Logger {
	if r.Log == nil {
		return logger.Nop()
	}
	return r.Log
}

func (r *Renderer) renderOne(ctx context.Context, b *overlayBuilder, a annotation.Annotation) (out AnnotationOutcome) {
	out = AnnotationOutcome{Index: a.Index, Page: a.PageIndex, Variant: variant(a), Status: StatusSkipped}

	// decoders see untrusted bytes
	defer func() {
		if p := recover(); p != nil {
			out.Status = StatusSkipped
			out.Reason = ReasonPanic
			out.Err = fmt.Errorf("panic: %v", p)
		}
	}()

	switch p := a.Payload.(type) {
	case annotation.Text:
		if p.Value == "" {
			out.Reason = ReasonEmptyText
			return out
		}
		r.drawText(b, a, fonts.Helvetica, r.TextSize, p.Value)

	case annotation.TypedSignature:
		face, ok := r.Fonts.Lookup(fonts.Cursive)
		if !ok {
			face = fonts.HelveticaOblique
			out.FontFallback = true
		}
		if p.Text == "" {
			out.Reason = ReasonEmptyText
			return out
		}
		r.drawText(b, a, face, r.SignatureSize, p.Text)

	case annotation.DrawnSignature:
		raster, err := imaging.LoadDataURL(p.DataURL)
		if err != nil {
			out.Reason = ReasonBadDataURL
			if !errors.Is(err, imaging.ErrInvalidDataURL) {
				out.Reason = ReasonBadImage
			}
			out.Err = err
			return out
		}
		r.drawImage(b, a, raster)

	case annotation.SavedSignature:
		data, err := r.resolveSaved(ctx, p.Filename)
		if err != nil {
			out.Reason = ReasonSignatureMissing
			out.Err = err
			return out
		}
		raster, err := imaging.Load(data)
		if err != nil {
			out.Reason = ReasonBadImage
			out.Err = err
			return out
		}
		r.drawImage(b, a, raster)

	default:
		out.Reason = ReasonUnsupported
		return out
	}

	out.Status = StatusDrawn
	return out
}

func (r *Renderer) resolveSaved(ctx context.Context, filename string) ([]byte, error) {
	if filename == "" {
		return nil, errors.New("no filename")
	}
	if r.Signatures == nil {
		return nil, errors.New("no signature store configured")
	}
	return r.Signatures.Resolve(ctx, filename)
}

func (r *Renderer) drawText(b *overlayBuilder, a annotation.Annotation, face fonts.Face, size float64, s string) {
	x, y := b.mapper.TextOrigin(a)
	lines := splitLines(s)
	encoded := make([][]byte, len(lines))
	for i, l := range lines {
		encoded[i] = face.Encode(l)
	}
	b.cw.text(b.fontName(face), size, x, y, encoded)
}

func (r *Renderer) drawImage(b *overlayBuilder, a annotation.Annotation, raster *imaging.Raster) {
	w, h := b.mapper.DrawSize(a, raster.Width, raster.Height)
	x, y := b.mapper.ImageAnchor(a.X, a.Y, h)
	b.cw.image(b.addImage(raster), x, y, w, h)
}

func variant(a annotation.Annotation) string {
	if a.Payload == nil {
		return "unsupported/"
	}
	return a.Payload.Variant()
}
