package pdf

import (
	"bytes"
	"errors"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// DocumentInfo summarizes a stored document.
type DocumentInfo struct {
	PageCount int  `json:"page_count"`
	HasForm   bool `json:"has_form"`
}

// ValidateDocument checks that src is a readable, unencrypted PDF with at
// least one page. Upload uses it before storing anything.
func ValidateDocument(src []byte) (DocumentInfo, error) {
	if len(src) == 0 {
		return DocumentInfo{}, NewPDFError(ErrPDFInvalid, "Invalid PDF", errors.New("empty document"))
	}
	ctx, err := api.ReadContext(bytes.NewReader(src), newConfiguration())
	if err != nil {
		return DocumentInfo{}, NewPDFError(readErrorCode(err), "Invalid PDF", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return DocumentInfo{}, NewPDFError(ErrPDFInvalid, "Invalid PDF", err)
	}
	if ctx.PageCount < 1 {
		return DocumentInfo{}, NewPDFError(ErrPDFInvalid, "Invalid PDF", errors.New("document has no pages"))
	}
	info := DocumentInfo{PageCount: ctx.PageCount}
	if ctx.RootDict != nil {
		_, info.HasForm = ctx.RootDict.Find("AcroForm")
	}
	return info, nil
}
