package printing

import "context"

// Margins in millimeters
type Margins struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// DefaultMargins returns the margins used for DANFE pages
func DefaultMargins() Margins {
	return Margins{Top: 10, Right: 10, Bottom: 10, Left: 10}
}

// A4 page size in millimeters
const (
	a4WidthMM  = 210
	a4HeightMM = 297
)

// PageRequest is a complete HTML document to print on A4 paper
type PageRequest struct {
	HTML    string
	Margins Margins
	// FooterHTML is repeated at the bottom of every page; Chrome fills
	// pageNumber and totalPages spans
	FooterHTML string
}

// PDFPrinter turns HTML documents into PDF bytes
type PDFPrinter interface {
	PrintPDF(ctx context.Context, req PageRequest) ([]byte, error)
	Close() error
}

// RenderError is a DANFE rendering failure tagged with a code
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering failures
const (
	ErrCodeRenderTimeout = "RENDER_TIMEOUT"
	ErrCodeRenderFailed  = "RENDER_FAILED"
	ErrCodeInvalidHTML   = "INVALID_HTML"
	ErrCodeInvalidOrder  = "INVALID_ORDER"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{Code: code, Message: message, Cause: cause}
}
