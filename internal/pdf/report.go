package pdf

// Status is the result of drawing one annotation.
type Status string

const (
	StatusDrawn   Status = "drawn"
	StatusSkipped Status = "skipped"
)

// Skip reasons recorded in AnnotationOutcome.Reason.
const (
	ReasonEmptyText        = "empty text"
	ReasonBadDataURL       = "undecodable data URL"
	ReasonSignatureMissing = "saved signature not found"
	ReasonBadImage         = "undecodable image"
	ReasonUnsupported      = "unsupported annotation kind"
	ReasonPageOutOfRange   = "page out of range"
	ReasonPageFailed       = "page could not be composited"
	ReasonPanic            = "renderer panic"
)

// AnnotationOutcome records what happened to one request annotation.
type AnnotationOutcome struct {
	Index   int    `json:"index"`
	Page    int    `json:"page"` // zero-based
	Variant string `json:"variant"`
	Status  Status `json:"status"`
	Reason  string `json:"reason,omitempty"`
	// FontFallback is set when a typed signature used the oblique fallback.
	FontFallback bool  `json:"font_fallback,omitempty"`
	Err          error `json:"-"`
}

// PageOutcome records how one annotated page was composited.
type PageOutcome struct {
	Page        int `json:"page"` // zero-based
	Annotations int `json:"annotations"`
	Drawn       int `json:"drawn"`

	Rotation           int   `json:"rotation"`
	RotationNormalized bool  `json:"rotation_normalized"`
	RotationErr        error `json:"-"`

	BoxesCopied []string         `json:"boxes_copied,omitempty"`
	BoxErrors   map[string]error `json:"-"`

	Merged   bool  `json:"merged"`
	MergeErr error `json:"-"`
}

// FormOutcome records AcroForm preservation.
type FormOutcome struct {
	Present   bool  `json:"present"`
	Preserved bool  `json:"preserved"`
	Err       error `json:"-"`
}

// Report aggregates the recoverable outcomes of one export.
type Report struct {
	PageCount   int                 `json:"page_count"`
	Pages       []PageOutcome       `json:"pages"`
	Annotations []AnnotationOutcome `json:"annotations"`
	Form        FormOutcome         `json:"form"`
}

// Drawn counts annotations that made it onto a page.
func (r *Report) Drawn() int {
	n := 0
	for _, a := range r.Annotations {
		if a.Status == StatusDrawn {
			n++
		}
	}
	return n
}

// Skipped counts annotations that were not drawn.
func (r *Report) Skipped() int {
	return len(r.Annotations) - r.Drawn()
}

// Outcome returns the outcome for the request annotation at index.
func (r *Report) Outcome(index int) (AnnotationOutcome, bool) {
	for _, a := range r.Annotations {
		if a.Index == index {
			return a, true
		}
	}
	return AnnotationOutcome{}, false
}
