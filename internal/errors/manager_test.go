package errors

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"pdf-editor/internal/types"
)

type codedError struct{ code string }

func (e codedError) Error() string     { return "coded: " + e.code }
func (e codedError) ErrorCode() string { return e.code }

func TestErrorManager(t *testing.T) {
	em, err := NewErrorManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create error manager: %v", err)
	}

	if err := em.RecordFailure("abc.pdf", "contract.pdf", types.StageExport, stderrors.New("bad xref")); err != nil {
		t.Fatalf("Failed to record failure: %v", err)
	}

	rec, ok := em.Get("abc.pdf")
	if !ok {
		t.Fatal("failure record not found")
	}
	if rec.Stage != types.StageExport || rec.ErrorMsg != "bad xref" || rec.Attempts != 1 {
		t.Errorf("unexpected record %+v", rec)
	}

	// second failure keeps the original name and counts attempts
	if err := em.RecordFailure("abc.pdf", "", types.StageExport, codedError{"PDF_INVALID"}); err != nil {
		t.Fatalf("Failed to record failure: %v", err)
	}
	rec, _ = em.Get("abc.pdf")
	if rec.Attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", rec.Attempts)
	}
	if rec.OriginalName != "contract.pdf" {
		t.Errorf("Expected original name kept, got %q", rec.OriginalName)
	}
	if rec.Code != "PDF_INVALID" {
		t.Errorf("Expected code PDF_INVALID, got %q", rec.Code)
	}

	if err := em.Resolve("abc.pdf"); err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if len(em.List("")) != 0 {
		t.Errorf("Expected 0 records after resolve, got %d", len(em.List("")))
	}
	if err := em.Resolve("unknown.pdf"); err != nil {
		t.Errorf("Resolve of unknown id should be a no-op, got %v", err)
	}
}

func TestErrorManagerPersistence(t *testing.T) {
	tempDir := t.TempDir()

	em1, err := NewErrorManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create error manager: %v", err)
	}
	em1.RecordFailure("a.pdf", "a.pdf", types.StageUpload, stderrors.New("too large"))
	em1.RecordFailure("b.png", "", types.StageSaveSignature, stderrors.New("bad data url"))

	if _, err := os.Stat(filepath.Join(tempDir, journalFile)); err != nil {
		t.Fatalf("journal not written: %v", err)
	}

	em2, err := NewErrorManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to reopen error manager: %v", err)
	}
	if got := len(em2.List("")); got != 2 {
		t.Fatalf("Expected 2 persisted records, got %d", got)
	}
	sigs := em2.List(types.StageSaveSignature)
	if len(sigs) != 1 || sigs[0].ID != "b.png" {
		t.Errorf("stage filter returned %+v", sigs)
	}

	if err := em2.ClearAll(); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	em3, _ := NewErrorManager(tempDir)
	if len(em3.List("")) != 0 {
		t.Error("ClearAll should persist an empty journal")
	}
}

func TestNewErrorManagerCorruptJournal(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, journalFile), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewErrorManager(dir); err == nil {
		t.Error("expected error for corrupt journal")
	}
}

func TestStageDisplayName(t *testing.T) {
	tests := []struct {
		stage types.Stage
		want  string
	}{
		{types.StageUpload, "Upload"},
		{types.StageExport, "Export"},
		{types.StageSaveSignature, "Save signature"},
		{types.Stage("other"), "other"},
	}
	for _, tt := range tests {
		if got := StageDisplayName(tt.stage); got != tt.want {
			t.Errorf("StageDisplayName(%q) = %q, want %q", tt.stage, got, tt.want)
		}
	}
}
