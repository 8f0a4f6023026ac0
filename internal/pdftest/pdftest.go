// Package pdftest builds small PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Page describes one page of a fixture document.
type Page struct {
	Width, Height float64
	// MediaBox overrides the [0 0 Width Height] media box when set.
	MediaBox []float64
	CropBox  []float64
	TrimBox  []float64
	Rotate   int
	// Content is the raw, unfiltered content stream. It may use /F1.
	Content string
	// NoContents omits the /Contents entry altogether.
	NoContents bool
	// Widget adds a text field widget annotation at this rectangle.
	Widget []float64
}

// Doc describes a fixture document.
type Doc struct {
	Pages []Page
	// AcroForm adds a form dictionary listing the widgets as fields.
	AcroForm bool
	// InheritResources puts the resource dictionary on the page tree node
	// instead of on each page.
	InheritResources bool
}

// Letter is a blank US Letter page.
func Letter() Page {
	return Page{Width: 612, Height: 792}
}

// Text returns a page showing s in Helvetica at (x, y).
func Text(w, h float64, s string, x, y float64) Page {
	return Page{
		Width:   w,
		Height:  h,
		Content: fmt.Sprintf("BT /F1 10 Tf %s %s Td (%s) Tj ET", fnum(x), fnum(y), s),
	}
}

type writer struct {
	buf     bytes.Buffer
	offsets []int
}

func (w *writer) object(nr int, body string) {
	for len(w.offsets) < nr {
		w.offsets = append(w.offsets, 0)
	}
	w.offsets[nr-1] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\nendobj\n", nr, body)
}

// Build serializes d with a classic cross-reference table.
func Build(d Doc) []byte {
	if len(d.Pages) == 0 {
		d.Pages = []Page{Letter()}
	}

	const (
		catalogNr = 1
		pagesNr   = 2
		fontNr    = 3
		firstPage = 4
	)
	// per page: page, content, optional widget
	pageNr := make([]int, len(d.Pages))
	contentNr := make([]int, len(d.Pages))
	widgetNr := make([]int, len(d.Pages))
	next := firstPage
	for i, p := range d.Pages {
		pageNr[i] = next
		next++
		if !p.NoContents {
			contentNr[i] = next
			next++
		}
		if p.Widget != nil {
			widgetNr[i] = next
			next++
		}
	}
	formNr := 0
	if d.AcroForm {
		formNr = next
		next++
	}

	resources := fmt.Sprintf("<< /Font << /F1 %d 0 R >> >>", fontNr)

	w := &writer{}
	w.buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	catalog := fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R", pagesNr)
	if formNr != 0 {
		catalog += fmt.Sprintf(" /AcroForm %d 0 R", formNr)
	}
	w.object(catalogNr, catalog+" >>")

	kids := make([]string, len(d.Pages))
	for i := range d.Pages {
		kids[i] = fmt.Sprintf("%d 0 R", pageNr[i])
	}
	pages := fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d", strings.Join(kids, " "), len(d.Pages))
	if d.InheritResources {
		pages += " /Resources " + resources
	}
	w.object(pagesNr, pages+" >>")

	w.object(fontNr, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var fields []string
	for i, p := range d.Pages {
		media := p.MediaBox
		if media == nil {
			media = []float64{0, 0, p.Width, p.Height}
		}
		page := fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox %s", pagesNr, array(media))
		if contentNr[i] != 0 {
			page += fmt.Sprintf(" /Contents %d 0 R", contentNr[i])
		}
		if !d.InheritResources {
			page += " /Resources " + resources
		}
		if p.CropBox != nil {
			page += " /CropBox " + array(p.CropBox)
		}
		if p.TrimBox != nil {
			page += " /TrimBox " + array(p.TrimBox)
		}
		if p.Rotate != 0 {
			page += fmt.Sprintf(" /Rotate %d", p.Rotate)
		}
		if widgetNr[i] != 0 {
			page += fmt.Sprintf(" /Annots [%d 0 R]", widgetNr[i])
		}
		w.object(pageNr[i], page+" >>")
		if contentNr[i] != 0 {
			w.object(contentNr[i], fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(p.Content), p.Content))
		}

		if widgetNr[i] != 0 {
			name := fmt.Sprintf("field%d", i+1)
			w.object(widgetNr[i], fmt.Sprintf("<< /Type /Annot /Subtype /Widget /FT /Tx /T (%s) /Rect %s /P %d 0 R /F 4 >>",
				name, array(p.Widget), pageNr[i]))
			fields = append(fields, fmt.Sprintf("%d 0 R", widgetNr[i]))
		}
	}

	if formNr != 0 {
		w.object(formNr, fmt.Sprintf("<< /Fields [%s] /DA (/Helv 0 Tf 0 g) >>", strings.Join(fields, " ")))
	}

	xref := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n0000000000 65535 f \n", len(w.offsets)+1)
	for _, off := range w.offsets {
		fmt.Fprintf(&w.buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&w.buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(w.offsets)+1, catalogNr, xref)
	return w.buf.Bytes()
}

func array(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fnum(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func fnum(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", f), "0"), ".")
}
