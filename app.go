package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"pdf-editor/internal/annotation"
	"pdf-editor/internal/config"
	journal "pdf-editor/internal/errors"
	"pdf-editor/internal/fonts"
	"pdf-editor/internal/inspect"
	"pdf-editor/internal/logger"
	"pdf-editor/internal/pdf"
	"pdf-editor/internal/server"
	"pdf-editor/internal/store"
	"pdf-editor/internal/types"
)

const shutdownTimeout = 10 * time.Second

// App wires configuration, stores and the export pipeline, and runs them
// either as the HTTP service or as one-shot CLI commands.
type App struct {
	config     *config.ConfigManager
	fonts      *fonts.Registry
	documents  *store.Documents
	signatures store.SignatureStore
	exporter   *pdf.Exporter
	errorMgr   *journal.ErrorManager

	started bool
}

// NewAppWithConfig creates an App for configPath. An empty path uses the
// default config location. Nothing is opened until startup.
func NewAppWithConfig(configPath string) (*App, error) {
	configMgr, err := config.NewConfigManager(configPath)
	if err != nil {
		return nil, err
	}
	return &App{config: configMgr}, nil
}

// startup loads configuration and opens every dependency. A missing cursive
// font or failure journal only degrades the service; an unusable store is
// fatal.
func (a *App) startup(ctx context.Context) error {
	if err := a.config.Load(); err != nil {
		logger.Warn("failed to load config, using defaults", logger.Err(err))
	}
	cfg := a.config.GetConfig()

	if err := initLogger(cfg); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to initialize logger", err)
	}
	logger.Info("application starting up", logger.String("config", a.config.GetConfigPath()))

	a.fonts = fonts.NewRegistry()
	if cfg.CursiveFontPath != "" {
		if err := a.fonts.RegisterFile(fonts.Cursive, cfg.CursiveFontPath, cfg.CursiveFontName); err != nil {
			logger.Warn("cursive font unavailable, typed signatures use Helvetica-Oblique",
				logger.String("path", cfg.CursiveFontPath), logger.Err(err))
		}
	}

	docs, err := store.NewDocuments(cfg.UploadDir)
	if err != nil {
		return types.NewAppError(types.ErrStorage, "failed to open upload directory", err)
	}
	a.documents = docs

	sigs, err := openSignatures(ctx, cfg)
	if err != nil {
		return types.NewAppError(types.ErrStorage, "failed to open signature store", err)
	}
	a.signatures = sigs

	errorMgr, err := journal.NewErrorManager(cfg.DataDir)
	if err != nil {
		logger.Warn("failed to initialize error manager", logger.Err(err))
	} else {
		a.errorMgr = errorMgr
	}

	a.exporter = pdf.NewExporter(a.documents, pdf.NewRenderer(a.fonts, a.signatures))
	a.started = true

	logger.Info("application startup complete",
		logger.String("uploads", docs.Dir()),
		logger.String("signatureBackend", string(cfg.SignatureBackend)),
		logger.Bool("cursiveFont", a.fonts.Has(fonts.Cursive)))
	return nil
}

func initLogger(cfg *types.Config) error {
	logCfg := logger.DefaultConfig()
	logCfg.LogFilePath = cfg.LogFile
	if level, ok := logger.ParseLevel(cfg.LogLevel); ok {
		logCfg.Level = level
	}
	return logger.Init(logCfg)
}

func openSignatures(ctx context.Context, cfg *types.Config) (store.SignatureStore, error) {
	switch cfg.SignatureBackend {
	case types.SignatureBackendRedis:
		return store.NewRedisSignatures(ctx, store.RedisConf{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
	case types.SignatureBackendFS, "":
		return store.NewFileSignatures(cfg.SignatureDir)
	default:
		return nil, fmt.Errorf("unknown signature backend %q", cfg.SignatureBackend)
	}
}

// shutdown releases the signature store and flushes the log.
func (a *App) shutdown() {
	logger.Info("application shutting down")
	if a.signatures != nil {
		if err := a.signatures.Close(); err != nil {
			logger.Warn("failed to close signature store", logger.Err(err))
		}
	}
	a.started = false
	logger.Close()
}

func (a *App) ensureStarted(ctx context.Context) error {
	if a.started {
		return nil
	}
	return a.startup(ctx)
}

// Handler returns the HTTP handler serving the editor API.
func (a *App) Handler() http.Handler {
	cfg := a.config.GetConfig()
	return server.New(server.Options{
		Documents:      a.documents,
		Signatures:     a.signatures,
		Exporter:       a.exporter,
		Journal:        a.errorMgr,
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
		Log:            logger.GetLogger(),
	}).Handler()
}

// RunServer serves the API on addr (the configured address when empty)
// until ctx is cancelled or the process is interrupted.
func (a *App) RunServer(ctx context.Context, addr string) error {
	if err := a.ensureStarted(ctx); err != nil {
		return err
	}
	if addr == "" {
		addr = a.config.GetConfig().ListenAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.Run(ctx, srv, a.shutdown, shutdownTimeout)
}

// ExportSummary describes a CLI export.
type ExportSummary struct {
	Output string      `json:"output"`
	Bytes  int         `json:"bytes"`
	Report *pdf.Report `json:"report"`
}

// ExportFile composites the annotations in annotationsPath (a JSON array;
// empty path means none) onto the PDF at pdfPath and writes the result to
// outPath, or next to the input as "<stem>-edited.pdf".
func (a *App) ExportFile(ctx context.Context, pdfPath, annotationsPath, outPath string) (*ExportSummary, error) {
	if err := a.ensureStarted(ctx); err != nil {
		return nil, err
	}

	src, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "failed to read PDF", pdfPath, err)
	}

	var anns []annotation.Annotation
	if annotationsPath != "" {
		data, err := os.ReadFile(annotationsPath)
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "failed to read annotations", annotationsPath, err)
		}
		anns, err = annotation.Decode(data)
		if err != nil {
			return nil, types.NewAppError(types.ErrInvalidInput, "invalid annotations", err)
		}
	}

	out, report, err := a.exporter.ExportBytes(ctx, src, anns)
	if err != nil {
		a.recordFailure(filepath.Base(pdfPath), pdfPath, err)
		return nil, types.NewAppErrorWithDetails(types.ErrExport, "export failed", pdfPath, err)
	}

	if outPath == "" {
		outPath = filepath.Join(filepath.Dir(pdfPath), pdf.DownloadName(filepath.Base(pdfPath), ""))
	}
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrStorage, "failed to write output", outPath, err)
	}
	if a.errorMgr != nil {
		if err := a.errorMgr.Resolve(filepath.Base(pdfPath)); err != nil {
			logger.Warn("failed to clear failure record", logger.String("pdf", pdfPath), logger.Err(err))
		}
	}

	logger.Info("export written", logger.String("output", outPath), logger.Int("bytes", len(out)))
	return &ExportSummary{Output: outPath, Bytes: len(out), Report: report}, nil
}

func (a *App) recordFailure(id, originalName string, err error) {
	if a.errorMgr == nil {
		return
	}
	if jerr := a.errorMgr.RecordFailure(id, originalName, types.StageExport, err); jerr != nil {
		logger.Warn("failed to record failure", logger.Err(jerr))
	}
}

// PageSummary is the text found on one page.
type PageSummary struct {
	Page     int           `json:"page"` // 1-based
	Rotate   int           `json:"rotate"`
	MediaBox [4]float64    `json:"media_box"`
	Runs     []inspect.Run `json:"runs"`
	Err      string        `json:"error,omitempty"`
}

// InspectSummary is what InspectFile reports about a document.
type InspectSummary struct {
	Path            string        `json:"path"`
	PageCount       int           `json:"page_count"`
	HasForm         bool          `json:"has_form"`
	NeedAppearances bool          `json:"need_appearances"`
	Pages           []PageSummary `json:"pages"`
}

// InspectFile validates the PDF at path and lists its positioned text runs.
func (a *App) InspectFile(path string) (*InspectSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "failed to read PDF", path, err)
	}
	info, err := pdf.ValidateDocument(data)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "invalid PDF", path, err)
	}
	doc, err := inspect.Open(data)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "failed to parse PDF text", path, err)
	}

	sum := &InspectSummary{Path: path, PageCount: info.PageCount, HasForm: info.HasForm}
	_, sum.NeedAppearances = doc.NeedAppearances()
	for n := 1; n <= doc.PageCount(); n++ {
		ps := PageSummary{Page: n}
		ps.Rotate, _ = doc.Rotate(n)
		ps.MediaBox, _ = doc.MediaBox(n)
		runs, err := doc.Runs(n)
		if err != nil {
			ps.Err = err.Error()
		}
		ps.Runs = runs
		sum.Pages = append(sum.Pages, ps)
	}
	return sum, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
