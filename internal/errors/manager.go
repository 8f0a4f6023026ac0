// Package errors keeps a persisted journal of failed uploads, exports and
// signature saves so operators can see which stored documents keep failing.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"pdf-editor/internal/types"
)

const journalFile = "errors.json"

// FailureRecord is the latest failure for one stored document or signature.
type FailureRecord struct {
	ID           string      `json:"id"` // stored filename
	OriginalName string      `json:"original_name,omitempty"`
	Stage        types.Stage `json:"stage"`
	Code         string      `json:"code,omitempty"`
	ErrorMsg     string      `json:"error_msg"`
	Timestamp    time.Time   `json:"timestamp"`
	Attempts     int         `json:"attempts"`
}

// ErrorManager is safe for concurrent use by request handlers.
type ErrorManager struct {
	baseDir string
	mu      sync.RWMutex
	records map[string]*FailureRecord
}

// NewErrorManager opens (or creates) the journal in baseDir. An empty baseDir
// resolves to ~/.pdf-editor/errors.
func NewErrorManager(baseDir string) (*ErrorManager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".pdf-editor", "errors")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create errors directory: %w", err)
	}

	em := &ErrorManager{
		baseDir: baseDir,
		records: make(map[string]*FailureRecord),
	}
	if err := em.load(); err != nil {
		return nil, err
	}
	return em, nil
}

// RecordFailure stores a failure for id, bumping Attempts when a record for
// the same id already exists.
func (em *ErrorManager) RecordFailure(id, originalName string, stage types.Stage, failure error) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	rec := &FailureRecord{
		ID:           id,
		OriginalName: originalName,
		Stage:        stage,
		ErrorMsg:     failure.Error(),
		Timestamp:    time.Now(),
		Attempts:     1,
	}
	if coded, ok := failure.(interface{ ErrorCode() string }); ok {
		rec.Code = coded.ErrorCode()
	}
	if existing, ok := em.records[id]; ok {
		rec.Attempts = existing.Attempts + 1
		if rec.OriginalName == "" {
			rec.OriginalName = existing.OriginalName
		}
	}

	em.records[id] = rec
	return em.save()
}

// Resolve drops the record for id after a later success. Unknown ids are a no-op.
func (em *ErrorManager) Resolve(id string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if _, ok := em.records[id]; !ok {
		return nil
	}
	delete(em.records, id)
	return em.save()
}

// Get returns a copy of the record for id.
func (em *ErrorManager) Get(id string) (*FailureRecord, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()

	rec, ok := em.records[id]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// List returns copies of all records, newest first. A non-empty stage
// filters to that stage.
func (em *ErrorManager) List(stage types.Stage) []*FailureRecord {
	em.mu.RLock()
	defer em.mu.RUnlock()

	out := make([]*FailureRecord, 0, len(em.records))
	for _, rec := range em.records {
		if stage != "" && rec.Stage != stage {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func (em *ErrorManager) ClearAll() error {
	em.mu.Lock()
	defer em.mu.Unlock()

	em.records = make(map[string]*FailureRecord)
	return em.save()
}

func (em *ErrorManager) load() error {
	data, err := os.ReadFile(filepath.Join(em.baseDir, journalFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read errors file: %w", err)
	}

	var records []*FailureRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal errors: %w", err)
	}
	for _, rec := range records {
		em.records[rec.ID] = rec
	}
	return nil
}

// save must be called with em.mu held.
func (em *ErrorManager) save() error {
	records := make([]*FailureRecord, 0, len(em.records))
	for _, rec := range em.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}
	if err := os.WriteFile(filepath.Join(em.baseDir, journalFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write errors file: %w", err)
	}
	return nil
}

// StageDisplayName returns a human-readable label for stage.
func StageDisplayName(stage types.Stage) string {
	switch stage {
	case types.StageUpload:
		return "Upload"
	case types.StageExport:
		return "Export"
	case types.StageSaveSignature:
		return "Save signature"
	default:
		return string(stage)
	}
}
