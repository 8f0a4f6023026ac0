// Package pdf composites editor annotations onto existing PDF documents.
//
// The pipeline is: group annotations by page, render one overlay per
// annotated page in PDF space, merge it over the page's content with rotation
// normalized away, reattach the AcroForm and serialize. Only an unreadable
// source document fails an export; every other problem is recorded in the
// returned Report and the affected annotation or page is skipped.
package pdf

// PDFErrorCode classifies a PDFError.
type PDFErrorCode string

const (
	ErrPDFNotFound    PDFErrorCode = "PDF_NOT_FOUND"
	ErrPDFInvalid     PDFErrorCode = "PDF_INVALID"
	ErrPDFEncrypted   PDFErrorCode = "PDF_ENCRYPTED"
	ErrGenerateFailed PDFErrorCode = "GENERATE_FAILED"
	ErrWriteFailed    PDFErrorCode = "WRITE_FAILED"
)

// PDFError is returned by fatal export failures.
type PDFError struct {
	Code    PDFErrorCode `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Page    int          `json:"page,omitempty"`
	Cause   error        `json:"-"`
}

func (e *PDFError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PDFError) Unwrap() error {
	return e.Cause
}

// ErrorCode exposes the code to callers that only see an error value.
func (e *PDFError) ErrorCode() string {
	return string(e.Code)
}

func NewPDFError(code PDFErrorCode, message string, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NewPDFErrorWithDetails(code PDFErrorCode, message, details string, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

func NewPDFErrorWithPage(code PDFErrorCode, message string, page int, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Page:    page,
		Cause:   cause,
	}
}
