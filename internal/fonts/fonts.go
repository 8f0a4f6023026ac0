// Package fonts provides the faces overlays draw with: the standard Helvetica
// faces and an optional embedded TrueType face for typed signatures. All
// faces use single-byte WinAnsi encoding.
package fonts

import (
	"fmt"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/charmap"

	"pdf-editor/internal/logger"
)

// Cursive is the registry name the overlay renderer asks for when drawing a
// typed signature.
const Cursive = "cursive"

// Face is a font usable in overlay content streams.
type Face interface {
	// BaseFont is the PostScript name written to the font dictionary.
	BaseFont() string
	// Encode maps s to WinAnsi codes. Runes outside the encoding become '?'.
	Encode(s string) []byte
	// Object allocates the font dictionary (and any embedded font program)
	// in ctx and returns the object to reference from page resources.
	Object(ctx *model.Context) (types.Object, error)
}

// Registry maps names to faces. It is built once at startup and shared
// read-only by concurrent exports.
type Registry struct {
	mu    sync.RWMutex
	faces map[string]Face
}

func NewRegistry() *Registry {
	return &Registry{faces: make(map[string]Face)}
}

func (r *Registry) Register(name string, f Face) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faces[name] = f
}

// RegisterFile loads a TrueType font from path under name. psName overrides
// the PostScript name read from the font when non-empty.
func (r *Registry) RegisterFile(name, path, psName string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	face, err := NewTrueType(data, psName)
	if err != nil {
		return fmt.Errorf("load font %s: %w", path, err)
	}
	r.Register(name, face)
	logger.Info("font registered", logger.String("name", name), logger.String("baseFont", face.BaseFont()))
	return nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Lookup is nil-safe: a nil registry has no faces.
func (r *Registry) Lookup(name string) (Face, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.faces[name]
	return f, ok
}

// Standard is one of the 14 standard Type1 fonts; viewers supply the glyphs.
type Standard struct {
	Name string
}

var (
	Helvetica        Face = Standard{Name: "Helvetica"}
	HelveticaOblique Face = Standard{Name: "Helvetica-Oblique"}
)

func (s Standard) BaseFont() string { return s.Name }

func (s Standard) Encode(str string) []byte { return encodeWinAnsi(str) }

func (s Standard) Object(ctx *model.Context) (types.Object, error) {
	return types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name(s.Name),
		"Encoding": types.Name("WinAnsiEncoding"),
	}, nil
}

func encodeWinAnsi(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}
