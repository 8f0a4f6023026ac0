// Package server is the HTTP surface of the editor: document upload,
// export, and the saved-signature library.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"pdf-editor/internal/annotation"
	journal "pdf-editor/internal/errors"
	"pdf-editor/internal/imaging"
	"pdf-editor/internal/logger"
	"pdf-editor/internal/pdf"
	"pdf-editor/internal/store"
	"pdf-editor/internal/types"
)

// DefaultMaxUploadBytes bounds upload request bodies when Options leaves it unset.
const DefaultMaxUploadBytes = 50 << 20

// maxJSONBytes bounds export and signature request bodies. Drawn signatures
// arrive inline as data URLs.
const maxJSONBytes = 32 << 20

// Documents is the uploaded document store.
type Documents interface {
	Save(ctx context.Context, data []byte) (string, error)
	Resolve(ctx context.Context, name string) ([]byte, error)
}

type Options struct {
	Documents      Documents
	Signatures     store.SignatureStore
	Exporter       *pdf.Exporter
	Journal        *journal.ErrorManager // optional
	MaxUploadBytes int64
	Log            logger.Logger
}

type Server struct {
	docs      Documents
	sigs      store.SignatureStore
	exporter  *pdf.Exporter
	journal   *journal.ErrorManager
	maxUpload int64
	log       logger.Logger
	mux       *http.ServeMux
}

func New(opts Options) *Server {
	s := &Server{
		docs:      opts.Documents,
		sigs:      opts.Signatures,
		exporter:  opts.Exporter,
		journal:   opts.Journal,
		maxUpload: opts.MaxUploadBytes,
		log:       opts.Log,
		mux:       http.NewServeMux(),
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadBytes
	}
	if s.log == nil {
		s.log = logger.GetLogger()
	}

	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("POST /export", s.handleExport)
	s.mux.HandleFunc("POST /save_signature", s.handleSaveSignature)
	s.mux.HandleFunc("GET /list_signatures", s.handleListSignatures)
	s.mux.HandleFunc("GET /signatures/{name}", s.handleServeSignature)
	s.mux.HandleFunc("GET /uploads/{name}", s.handleServeUpload)
	s.mux.HandleFunc("GET /failures", s.handleFailures)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s
}

// Handler returns the routes wrapped with panic recovery and request logging.
func (s *Server) Handler() http.Handler {
	return withRequestLog(s.log, withRecover(s.log, s.mux))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("pdf")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	originalName := store.SecureFilename(header.Filename)
	if originalName == "" {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	if strings.ToLower(filepath.Ext(originalName)) != ".pdf" {
		writeError(w, http.StatusBadRequest, "File must be a PDF")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}
	info, err := pdf.ValidateDocument(data)
	if err != nil {
		s.log.Warn("upload rejected", logger.String("originalName", originalName), logger.Err(err))
		s.recordFailure(originalName, originalName, types.StageUpload, err)
		writeError(w, http.StatusBadRequest, "Invalid PDF: "+err.Error())
		return
	}

	name, err := s.docs.Save(r.Context(), data)
	if err != nil {
		s.log.Error("failed to store upload", err, logger.String("originalName", originalName))
		writeError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	s.log.Info("document uploaded",
		logger.String("filename", name),
		logger.String("originalName", originalName),
		logger.Int("pages", info.PageCount),
		logger.Bool("form", info.HasForm))
	writeJSON(w, http.StatusOK, map[string]any{
		"filename":      name,
		"original_name": originalName,
		"page_count":    info.PageCount,
	})
}

type exportRequest struct {
	Filename     string          `json:"filename"`
	OriginalName string          `json:"original_name"`
	Annotations  json.RawMessage `json:"annotations"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}
	if store.ValidName(req.Filename) != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	var anns []annotation.Annotation
	if len(req.Annotations) > 0 && string(req.Annotations) != "null" {
		var err error
		anns, err = annotation.Decode(req.Annotations)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	res, err := s.exporter.Export(r.Context(), pdf.ExportRequest{
		Filename:     req.Filename,
		OriginalName: req.OriginalName,
		Annotations:  anns,
	})
	if err != nil {
		s.recordFailure(req.Filename, req.OriginalName, types.StageExport, err)
		var pdfErr *pdf.PDFError
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "file not found")
		case errors.As(err, &pdfErr) && pdfErr.Code == pdf.ErrPDFNotFound:
			s.log.Error("failed to load document", err, logger.String("filename", req.Filename))
			writeError(w, http.StatusInternalServerError, "Failed to load PDF")
		case errors.As(err, &pdfErr) && pdfErr.Code == pdf.ErrWriteFailed:
			writeError(w, http.StatusInternalServerError, "Failed to write PDF: "+causeMessage(err))
		default:
			writeError(w, http.StatusInternalServerError, "Failed to read PDF: "+causeMessage(err))
		}
		return
	}
	if s.journal != nil {
		if err := s.journal.Resolve(req.Filename); err != nil {
			s.log.Warn("failed to clear failure record", logger.String("filename", req.Filename), logger.Err(err))
		}
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.DownloadName))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.PDF)))
	w.Header().Set("X-Skipped-Annotations", strconv.Itoa(res.Report.Skipped()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.PDF); err != nil {
		s.log.Warn("failed to write export response", logger.Err(err))
	}
}

// causeMessage is the underlying reason of an export failure.
func causeMessage(err error) string {
	var pdfErr *pdf.PDFError
	if errors.As(err, &pdfErr) && pdfErr.Cause != nil {
		return pdfErr.Cause.Error()
	}
	return err.Error()
}

type signatureRequest struct {
	DataURL any `json:"dataURL"`
}

func (s *Server) handleSaveSignature(w http.ResponseWriter, r *http.Request) {
	var req signatureRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	dataURL, ok := req.DataURL.(string)
	if !ok || dataURL == "" {
		writeError(w, http.StatusBadRequest, "No dataURL provided")
		return
	}
	if !strings.Contains(dataURL, ",") {
		writeError(w, http.StatusBadRequest, "Invalid dataURL")
		return
	}
	raw, err := imaging.DecodeDataURL(dataURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to decode image data")
		return
	}

	name, err := s.sigs.Save(r.Context(), raw)
	if err != nil {
		s.log.Warn("failed to save signature", logger.Err(err))
		s.recordFailure("signature", "", types.StageSaveSignature, err)
		writeError(w, http.StatusInternalServerError, "Failed to save signature: "+err.Error())
		return
	}
	s.log.Info("signature saved", logger.String("filename", name))
	writeJSON(w, http.StatusOK, map[string]string{"filename": name})
}

func (s *Server) handleListSignatures(w http.ResponseWriter, r *http.Request) {
	files, err := s.sigs.List(r.Context())
	if err != nil {
		s.log.Warn("failed to list signatures", logger.Err(err))
	}
	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"files": files})
}

func (s *Server) handleServeSignature(w http.ResponseWriter, r *http.Request) {
	s.serveBlob(w, r, s.sigs.Resolve, "image/png")
}

func (s *Server) handleServeUpload(w http.ResponseWriter, r *http.Request) {
	s.serveBlob(w, r, s.docs.Resolve, "application/pdf")
}

func (s *Server) serveBlob(w http.ResponseWriter, r *http.Request, resolve func(context.Context, string) ([]byte, error), contentType string) {
	name := r.PathValue("name")
	data, err := resolve(r.Context(), name)
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidName):
		writeError(w, http.StatusNotFound, "file not found")
		return
	case err != nil:
		s.log.Error("failed to read stored file", err, logger.String("name", name))
		writeError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

type failureView struct {
	*journal.FailureRecord
	StageName string `json:"stage_name"`
}

func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	views := []failureView{}
	if s.journal != nil {
		for _, rec := range s.journal.List(types.Stage(r.URL.Query().Get("stage"))) {
			views = append(views, failureView{FailureRecord: rec, StageName: journal.StageDisplayName(rec.Stage)})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"failures": views})
}

func (s *Server) recordFailure(id, originalName string, stage types.Stage, err error) {
	if s.journal == nil {
		return
	}
	if jerr := s.journal.RecordFailure(id, originalName, stage, err); jerr != nil {
		s.log.Warn("failed to record failure", logger.Err(jerr))
	}
}
