package main

import (
	"strings"
	"testing"

	"pdf-editor/internal/inspect"
	"pdf-editor/internal/pdftest"
)

func open(t *testing.T, pages ...pdftest.Page) *inspect.Document {
	t.Helper()
	doc, err := inspect.Open(pdftest.Build(pdftest.Doc{Pages: pages}))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestCompare(t *testing.T) {
	original := open(t, pdftest.Text(200, 400, "Title", 20, 100), pdftest.Letter())

	testCases := []struct {
		name     string
		edited   *inspect.Document
		complete bool
		contains string
	}{
		{
			name:     "unchanged",
			edited:   open(t, pdftest.Text(200, 400, "Title", 20, 100), pdftest.Letter()),
			complete: true,
			contains: "Page count matches: 2",
		},
		{
			name:     "moved text still counts",
			edited:   open(t, pdftest.Text(400, 200, "Title", 50, 50), pdftest.Letter()),
			complete: true,
		},
		{
			name:     "lost page",
			edited:   open(t, pdftest.Text(200, 400, "Title", 20, 100)),
			complete: false,
			contains: "Page count differs",
		},
		{
			name:     "lost text",
			edited:   open(t, pdftest.Text(200, 400, "Other", 20, 100), pdftest.Letter()),
			complete: false,
			contains: `- "Title"`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := compare(original, tc.edited)
			if res.complete() != tc.complete {
				t.Errorf("complete() = %v, want %v", res.complete(), tc.complete)
			}
			if out := res.format(); !strings.Contains(out, tc.contains) {
				t.Errorf("format() missing %q:\n%s", tc.contains, out)
			}
		})
	}
}

func TestCompareListsAddedRuns(t *testing.T) {
	original := open(t, pdftest.Letter())
	edited := open(t, pdftest.Text(612, 792, "Signed", 72, 72))

	res := compare(original, edited)
	if !res.complete() {
		t.Fatal("adding text should not make the result incomplete")
	}
	if len(res.pages) != 1 || len(res.pages[0].added) != 1 || res.pages[0].added[0].Text != "Signed" {
		t.Fatalf("unexpected added runs %+v", res.pages)
	}
	if out := res.format(); !strings.Contains(out, `+ "Signed" at (72.0, 72.0)`) {
		t.Errorf("unexpected report:\n%s", out)
	}
}
