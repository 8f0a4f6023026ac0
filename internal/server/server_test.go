package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	journal "pdf-editor/internal/errors"
	"pdf-editor/internal/fonts"
	"pdf-editor/internal/inspect"
	"pdf-editor/internal/logger"
	"pdf-editor/internal/pdf"
	"pdf-editor/internal/pdftest"
	"pdf-editor/internal/store"
	"pdf-editor/internal/types"
)

type testEnv struct {
	srv     *httptest.Server
	docs    *store.Documents
	sigs    *store.FileSignatures
	journal *journal.ErrorManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	docs, err := store.NewDocuments(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatal(err)
	}
	sigs, err := store.NewFileSignatures(filepath.Join(dir, "signatures"))
	if err != nil {
		t.Fatal(err)
	}
	jm, err := journal.NewErrorManager(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatal(err)
	}

	renderer := pdf.NewRenderer(fonts.NewRegistry(), sigs)
	renderer.Log = logger.Nop()
	exporter := pdf.NewExporter(docs, renderer)
	exporter.Log = logger.Nop()

	s := New(Options{
		Documents:  docs,
		Signatures: sigs,
		Exporter:   exporter,
		Journal:    jm,
		Log:        logger.Nop(),
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: ts, docs: docs, sigs: sigs, journal: jm}
}

func (e *testEnv) upload(t *testing.T, filename string, data []byte) (*http.Response, map[string]any) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("pdf", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	mw.Close()

	resp, err := http.Post(e.srv.URL+"/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, decodeBody(t, resp)
}

func (e *testEnv) postJSON(t *testing.T, path string, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return out
}

func signatureDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 30, 10))
	img.Set(1, 1, color.NRGBA{0, 0, 0, 0xff})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func fixture() []byte {
	return pdftest.Build(pdftest.Doc{Pages: []pdftest.Page{
		pdftest.Text(200, 400, "Page one", 20, 100),
		pdftest.Letter(),
	}})
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.upload(t, "My Doc.PDF", fixture())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, body)
	}
	name, _ := body["filename"].(string)
	if !strings.HasSuffix(name, ".pdf") {
		t.Errorf("unexpected filename %q", name)
	}
	if body["original_name"] != "My_Doc.PDF" {
		t.Errorf("unexpected original name %v", body["original_name"])
	}
	if body["page_count"] != 2.0 {
		t.Errorf("unexpected page count %v", body["page_count"])
	}

	served, err := http.Get(env.srv.URL + "/uploads/" + name)
	if err != nil {
		t.Fatal(err)
	}
	defer served.Body.Close()
	data, _ := io.ReadAll(served.Body)
	if served.StatusCode != http.StatusOK || served.Header.Get("Content-Type") != "application/pdf" {
		t.Errorf("serving upload: %d %s", served.StatusCode, served.Header.Get("Content-Type"))
	}
	if !bytes.Equal(data, fixture()) {
		t.Error("served bytes differ from upload")
	}
}

func TestUploadRejections(t *testing.T) {
	env := newTestEnv(t)

	testCases := []struct {
		name     string
		filename string
		data     []byte
		status   int
		message  string
	}{
		{"no file", "", nil, http.StatusBadRequest, "No file uploaded"},
		{"wrong extension", "notes.txt", []byte("hello"), http.StatusBadRequest, "File must be a PDF"},
		{"not a pdf", "fake.pdf", []byte("hello"), http.StatusBadRequest, "Invalid PDF"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := env.upload(t, tc.filename, tc.data)
			if resp.StatusCode != tc.status {
				t.Errorf("expected %d, got %d", tc.status, resp.StatusCode)
			}
			if msg, _ := body["error"].(string); !strings.HasPrefix(msg, tc.message) {
				t.Errorf("expected error %q, got %q", tc.message, msg)
			}
		})
	}

	if recs := env.journal.List(types.StageUpload); len(recs) != 1 || recs[0].ID != "fake.pdf" {
		t.Errorf("expected one upload failure record, got %+v", recs)
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	_, body := env.upload(t, "contract.pdf", fixture())
	name := body["filename"].(string)

	resp := env.postJSON(t, "/export", map[string]any{
		"filename":      name,
		"original_name": "contract.pdf",
		"annotations": []any{
			map[string]any{"type": "text", "pageIndex": 0, "x": 10, "y": 20, "value": "Hi"},
			map[string]any{"type": "signature", "pageIndex": 1, "x": 0, "y": 0,
				"value": map[string]any{"type": "drawn", "dataURL": "garbage"}},
			map[string]any{"type": "signature", "pageIndex": 1, "x": 50, "y": 50,
				"value": map[string]any{"type": "drawn", "dataURL": signatureDataURL(t)}},
		},
	})
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, out)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="contract-edited.pdf"` {
		t.Errorf("unexpected disposition %q", cd)
	}
	if n := resp.Header.Get("X-Skipped-Annotations"); n != "1" {
		t.Errorf("expected 1 skipped annotation, got %q", n)
	}

	doc, err := inspect.Open(out)
	if err != nil {
		t.Fatalf("export is not a readable PDF: %v", err)
	}
	if doc.PageCount() != 2 {
		t.Errorf("expected 2 pages, got %d", doc.PageCount())
	}
	run, found, err := doc.Find(1, "Hi")
	if err != nil || !found {
		t.Fatalf("Hi not found: %v", err)
	}
	if run.X != 10 || run.Y != 380 {
		t.Errorf("Hi drawn at (%v, %v)", run.X, run.Y)
	}
	if _, found, _ := doc.Find(1, "Page one"); !found {
		t.Error("original text lost")
	}
}

func TestExportErrors(t *testing.T) {
	env := newTestEnv(t)
	broken, err := env.docs.Save(t.Context(), []byte("%PDF-1.4\ngarbage"))
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name    string
		payload any
		status  int
		message string
	}{
		{"missing filename", map[string]any{"annotations": []any{}}, http.StatusBadRequest, "filename is required"},
		{"unknown file", map[string]any{"filename": "nope.pdf"}, http.StatusNotFound, "file not found"},
		{"path traversal", map[string]any{"filename": "../secret.pdf"}, http.StatusNotFound, "file not found"},
		{"annotations not a list", map[string]any{"filename": broken, "annotations": "x"}, http.StatusBadRequest, "annotations must be a JSON array"},
		{"unreadable pdf", map[string]any{"filename": broken}, http.StatusInternalServerError, "Failed to read PDF: "},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.postJSON(t, "/export", tc.payload)
			body := decodeBody(t, resp)
			if resp.StatusCode != tc.status {
				t.Errorf("expected %d, got %d: %v", tc.status, resp.StatusCode, body)
			}
			if msg, _ := body["error"].(string); !strings.HasPrefix(msg, tc.message) {
				t.Errorf("expected error starting %q, got %q", tc.message, msg)
			}
		})
	}

	rec, ok := env.journal.Get(broken)
	if !ok || rec.Stage != types.StageExport || rec.Code != string(pdf.ErrPDFInvalid) {
		t.Errorf("expected an export failure record, got %+v", rec)
	}

	resp, err := http.Get(env.srv.URL + "/failures?stage=export")
	if err != nil {
		t.Fatal(err)
	}
	failures, _ := decodeBody(t, resp)["failures"].([]any)
	if len(failures) != 2 {
		t.Errorf("expected 2 export failures (unknown file and unreadable pdf), got %v", failures)
	}
}

func TestExportClearsFailureRecord(t *testing.T) {
	env := newTestEnv(t)
	_, body := env.upload(t, "a.pdf", fixture())
	name := body["filename"].(string)

	if err := env.journal.RecordFailure(name, "a.pdf", types.StageExport, pdf.NewPDFError(pdf.ErrWriteFailed, "Failed to write PDF", nil)); err != nil {
		t.Fatal(err)
	}
	resp := env.postJSON(t, "/export", map[string]any{"filename": name})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if _, ok := env.journal.Get(name); ok {
		t.Error("successful export should clear the failure record")
	}
}

func TestSignatures(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/save_signature", map[string]any{"dataURL": signatureDataURL(t)})
	body := decodeBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, body)
	}
	name, _ := body["filename"].(string)
	if !strings.HasSuffix(name, ".png") {
		t.Fatalf("unexpected filename %q", name)
	}

	listResp, err := http.Get(env.srv.URL + "/list_signatures")
	if err != nil {
		t.Fatal(err)
	}
	files, _ := decodeBody(t, listResp)["files"].([]any)
	if len(files) != 1 || files[0] != name {
		t.Errorf("unexpected list %v", files)
	}

	img, err := http.Get(env.srv.URL + "/signatures/" + name)
	if err != nil {
		t.Fatal(err)
	}
	img.Body.Close()
	if img.StatusCode != http.StatusOK || img.Header.Get("Content-Type") != "image/png" {
		t.Errorf("serving signature: %d %s", img.StatusCode, img.Header.Get("Content-Type"))
	}

	missing, err := http.Get(env.srv.URL + "/signatures/nope.png")
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", missing.StatusCode)
	}

	// the saved signature can be placed by name
	_, up := env.upload(t, "doc.pdf", fixture())
	exp := env.postJSON(t, "/export", map[string]any{
		"filename": up["filename"],
		"annotations": []any{map[string]any{"kind": "signature", "pageIndex": 0, "x": 10, "y": 10,
			"value": map[string]any{"type": "saved", "filename": name}}},
	})
	exp.Body.Close()
	if exp.StatusCode != http.StatusOK || exp.Header.Get("X-Skipped-Annotations") != "0" {
		t.Errorf("export with saved signature: %d skipped=%s", exp.StatusCode, exp.Header.Get("X-Skipped-Annotations"))
	}
}

func TestSaveSignatureRejections(t *testing.T) {
	env := newTestEnv(t)

	testCases := []struct {
		name    string
		payload any
		status  int
		message string
	}{
		{"missing", map[string]any{}, http.StatusBadRequest, "No dataURL provided"},
		{"not a string", map[string]any{"dataURL": 5}, http.StatusBadRequest, "No dataURL provided"},
		{"no comma", map[string]any{"dataURL": "data:image/png;base64"}, http.StatusBadRequest, "Invalid dataURL"},
		{"bad base64", map[string]any{"dataURL": "data:image/png;base64,@@@"}, http.StatusBadRequest, "Failed to decode image data"},
		{"not an image", map[string]any{"dataURL": "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("text"))},
			http.StatusInternalServerError, "Failed to save signature"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.postJSON(t, "/save_signature", tc.payload)
			body := decodeBody(t, resp)
			if resp.StatusCode != tc.status {
				t.Errorf("expected %d, got %d", tc.status, resp.StatusCode)
			}
			if msg, _ := body["error"].(string); !strings.HasPrefix(msg, tc.message) {
				t.Errorf("expected error %q, got %q", tc.message, msg)
			}
		})
	}
}
