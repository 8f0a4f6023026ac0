// Package inspect reads exported documents back for verification. It uses an
// independent PDF reader so checks do not share code with the writer.
package inspect

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/ledongthuc/pdf"
)

// Run is a sequence of characters drawn with one font and size on one
// baseline.
type Run struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Font string  `json:"font"`
	Size float64 `json:"size"`
}

// Document is a parsed PDF.
type Document struct {
	r *pdf.Reader
}

// Open parses data.
func Open(data []byte) (doc *Document, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed PDF: %v", p)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return &Document{r: r}, nil
}

// OpenFile parses the PDF at path.
func OpenFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Open(data)
}

func (d *Document) PageCount() int {
	return d.r.NumPage()
}

func (d *Document) page(n int) (pdf.Page, error) {
	if n < 1 || n > d.PageCount() {
		return pdf.Page{}, fmt.Errorf("page %d out of range 1..%d", n, d.PageCount())
	}
	p := d.r.Page(n)
	if p.V.IsNull() {
		return pdf.Page{}, fmt.Errorf("page %d not found", n)
	}
	return p, nil
}

// Runs returns the text drawn on page n (one-based), in content order.
func (d *Document) Runs(n int) (runs []Run, err error) {
	p, err := d.page(n)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: unreadable content: %v", n, r)
		}
	}()

	var cur *Run
	var lastX float64
	for _, t := range p.Content().Text {
		if cur != nil && t.Font == cur.Font && t.FontSize == cur.Size &&
			math.Abs(t.Y-cur.Y) < 0.01 && t.X >= lastX {
			cur.Text += t.S
			lastX = t.X
			continue
		}
		if cur != nil {
			runs = append(runs, *cur)
		}
		cur = &Run{Text: t.S, X: t.X, Y: t.Y, Font: t.Font, Size: t.FontSize}
		lastX = t.X
	}
	if cur != nil {
		runs = append(runs, *cur)
	}
	return runs, nil
}

// Find returns the first run on page n whose text is s.
func (d *Document) Find(n int, s string) (Run, bool, error) {
	runs, err := d.Runs(n)
	if err != nil {
		return Run{}, false, err
	}
	for _, r := range runs {
		if r.Text == s {
			return r, true, nil
		}
	}
	return Run{}, false, nil
}

// Rotate is the page's effective /Rotate value.
func (d *Document) Rotate(n int) (int, error) {
	p, err := d.page(n)
	if err != nil {
		return 0, err
	}
	return int(inherited(p, "Rotate").Int64()), nil
}

// MediaBox is the page's effective media box as [llx lly urx ury].
func (d *Document) MediaBox(n int) ([4]float64, error) {
	var box [4]float64
	p, err := d.page(n)
	if err != nil {
		return box, err
	}
	v := inherited(p, "MediaBox")
	if v.Len() != 4 {
		return box, fmt.Errorf("page %d: no MediaBox", n)
	}
	for i := range box {
		box[i] = v.Index(i).Float64()
	}
	return box, nil
}

// NeedAppearances reports the AcroForm flag of the catalog.
func (d *Document) NeedAppearances() (present, set bool) {
	form := d.r.Trailer().Key("Root").Key("AcroForm")
	if form.IsNull() {
		return false, false
	}
	return true, form.Key("NeedAppearances").Bool()
}

func inherited(p pdf.Page, key string) pdf.Value {
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		if r := v.Key(key); !r.IsNull() {
			return r
		}
	}
	return pdf.Value{}
}
