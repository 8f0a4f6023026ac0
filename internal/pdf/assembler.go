package pdf

import (
	"bytes"
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"pdf-editor/internal/annotation"
	"pdf-editor/internal/logger"
)

// DocumentSource resolves a stored document id to its bytes.
type DocumentSource interface {
	Resolve(ctx context.Context, id string) ([]byte, error)
}

// ExportRequest is one export: a stored document and the annotations to
// composite onto it.
type ExportRequest struct {
	Filename     string
	OriginalName string
	Annotations  []annotation.Annotation
}

// ExportResult is the serialized document and what happened to each
// annotation.
type ExportResult struct {
	PDF          []byte
	DownloadName string
	Report       *Report
}

// Exporter is the document assembler. It holds no per-export state and is
// safe for concurrent use.
type Exporter struct {
	Documents DocumentSource
	Renderer  *Renderer
	Log       logger.Logger
}

func NewExporter(documents DocumentSource, renderer *Renderer) *Exporter {
	return &Exporter{
		Documents: documents,
		Renderer:  renderer,
		Log:       logger.GetLogger(),
	}
}

// Export resolves req.Filename and composites the annotations onto it.
func (e *Exporter) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	src, err := e.Documents.Resolve(ctx, req.Filename)
	if err != nil {
		return nil, NewPDFErrorWithDetails(ErrPDFNotFound, "File not found", req.Filename, err)
	}

	out, report, err := e.ExportBytes(ctx, src, req.Annotations)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		PDF:          out,
		DownloadName: DownloadName(req.OriginalName, req.Filename),
		Report:       report,
	}, nil
}

// ExportBytes composites anns onto the document in src and serializes the
// result. Only an unreadable source or a serialization failure is an error.
func (e *Exporter) ExportBytes(ctx context.Context, src []byte, anns []annotation.Annotation) ([]byte, *Report, error) {
	start := time.Now()
	log := e.log()

	doc, err := readDocument(src)
	if err != nil {
		log.Error("failed to read PDF", err, logger.Int("bytes", len(src)))
		return nil, nil, err
	}

	report := &Report{PageCount: doc.PageCount}
	groups := annotation.Group(anns)
	comp := NewCompositor(doc, e.Renderer, log)

	for _, pageIndex := range annotation.Pages(groups) {
		group := groups[pageIndex]
		if pageIndex < 0 || pageIndex >= doc.PageCount {
			log.Warn("annotations target a missing page",
				logger.Int("page", pageIndex), logger.Int("pageCount", doc.PageCount), logger.Int("count", len(group)))
			report.Annotations = append(report.Annotations, skipAll(group, ReasonPageOutOfRange, nil)...)
		}
	}

	for i := 0; i < doc.PageCount; i++ {
		group := groups[i]
		if len(group) == 0 {
			continue
		}
		po, outcomes := comp.ComposePage(ctx, i, group)
		report.Pages = append(report.Pages, po)
		report.Annotations = append(report.Annotations, outcomes...)
	}

	report.Form = attachForm(doc)
	if report.Form.Err != nil {
		log.Warn("form not preserved", logger.Err(report.Form.Err))
	}

	var buf bytes.Buffer
	if err := api.WriteContext(doc, &buf); err != nil {
		log.Error("failed to write PDF", err)
		return nil, nil, NewPDFError(ErrWriteFailed, "Failed to write PDF", err)
	}

	log.Info("export finished",
		logger.Int("pages", doc.PageCount),
		logger.Int("annotations", len(anns)),
		logger.Int("drawn", report.Drawn()),
		logger.Int("skipped", report.Skipped()),
		logger.Bool("formPreserved", report.Form.Preserved),
		logger.Int64("ms", time.Since(start).Milliseconds()))

	return buf.Bytes(), report, nil
}

func (e *Exporter) log() logger.Logger {
	if e.Log == nil {
		return logger.Nop()
	}
	return e.Log
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// readDocument parses src into a fresh working context. The output document
// is this context after compositing.
func readDocument(src []byte) (*model.Context, error) {
	if len(src) == 0 {
		return nil, NewPDFError(ErrPDFInvalid, "Failed to read PDF", errors.New("empty document"))
	}
	doc, err := api.ReadAndValidate(bytes.NewReader(src), newConfiguration())
	if err != nil {
		return nil, NewPDFError(readErrorCode(err), "Failed to read PDF", err)
	}
	if err := doc.EnsurePageCount(); err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "Failed to read PDF", err)
	}
	return doc, nil
}

func readErrorCode(err error) PDFErrorCode {
	if strings.Contains(strings.ToLower(err.Error()), "encrypt") {
		return ErrPDFEncrypted
	}
	return ErrPDFInvalid
}

// attachForm gives the document root its own copy of the AcroForm
// dictionary with NeedAppearances set, so viewers regenerate field
// appearances. Field and widget objects stay shared by reference.
func attachForm(doc *model.Context) FormOutcome {
	var fo FormOutcome
	if doc.RootDict == nil {
		fo.Err = errors.New("document has no catalog")
		return fo
	}
	o, found := doc.RootDict.Find("AcroForm")
	if !found {
		return fo
	}
	fo.Present = true

	form, err := derefDict(doc, o)
	if err != nil {
		fo.Err = err
		return fo
	}
	if form == nil {
		fo.Err = errors.New("AcroForm is null")
		return fo
	}

	owned := copyDict(form)
	owned["NeedAppearances"] = types.Boolean(true)
	ref, err := doc.IndRefForNewObject(owned)
	if err != nil {
		fo.Err = err
		return fo
	}
	doc.RootDict["AcroForm"] = *ref
	fo.Preserved = true
	return fo
}

// DownloadName derives "<stem>-edited.pdf" from the client's original name,
// or from the stored filename when none was given.
func DownloadName(originalName, filename string) string {
	name := strings.TrimSpace(originalName)
	if name == "" {
		name = filename
	}
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		stem = "document"
	}
	return stem + "-edited.pdf"
}
