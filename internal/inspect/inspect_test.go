package inspect

import (
	"testing"

	"pdf-editor/internal/pdftest"
)

func TestRunsReadsFixtureText(t *testing.T) {
	data := pdftest.Build(pdftest.Doc{Pages: []pdftest.Page{pdftest.Text(612, 792, "Hello", 72, 700)}})

	doc, err := Open(data)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if doc.PageCount() != 1 {
		t.Fatalf("expected 1 page, got %d", doc.PageCount())
	}

	run, found, err := doc.Find(1, "Hello")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if !found {
		runs, _ := doc.Runs(1)
		t.Fatalf("run not found in %+v", runs)
	}
	if run.X != 72 || run.Y != 700 {
		t.Errorf("expected origin (72, 700), got (%v, %v)", run.X, run.Y)
	}
	if run.Font != "Helvetica" || run.Size != 10 {
		t.Errorf("expected Helvetica 10, got %s %v", run.Font, run.Size)
	}
}

func TestPageAttributes(t *testing.T) {
	data := pdftest.Build(pdftest.Doc{
		Pages: []pdftest.Page{
			pdftest.Letter(),
			{Width: 400, Height: 300, Rotate: 90},
		},
		AcroForm:         true,
		InheritResources: true,
	})

	doc, err := Open(data)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if doc.PageCount() != 2 {
		t.Fatalf("expected 2 pages, got %d", doc.PageCount())
	}

	rot, err := doc.Rotate(2)
	if err != nil || rot != 90 {
		t.Errorf("expected rotate 90, got %d (%v)", rot, err)
	}
	box, err := doc.MediaBox(2)
	if err != nil {
		t.Fatalf("MediaBox failed: %v", err)
	}
	if box != [4]float64{0, 0, 400, 300} {
		t.Errorf("unexpected media box %v", box)
	}

	present, set := doc.NeedAppearances()
	if !present || set {
		t.Errorf("expected a form without NeedAppearances, got present=%v set=%v", present, set)
	}

	if _, err := doc.Runs(3); err == nil {
		t.Error("expected an error for a missing page")
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	if _, err := Open([]byte("not a pdf")); err == nil {
		t.Error("expected an error")
	}
}
