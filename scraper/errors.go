package scraper

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMissingURL marks an input entry with no resolvable link.
	ErrMissingURL = errors.New("target has no resolvable url")
	// ErrNoReviewData means the page carried no review payload at all.
	ErrNoReviewData = errors.New("no review data on page")
)

// NavigationError covers timeouts, transport failures and bad HTTP statuses
// while loading a page. Status is zero for browser sessions.
type NavigationError struct {
	URL    string
	Status int
	Err    error
}

func (e *NavigationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("navigate %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// ExtractionError wraps anything that failed after the page was loaded:
// scrolling, reading the document, or mapping fields.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ErrorTypeLabel classifies err for metrics and the run summary.
func ErrorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var nav *NavigationError
	if errors.As(err, &nav) {
		if nav.Status != 0 {
			return "http_status"
		}
		return "navigation"
	}
	var ext *ExtractionError
	if errors.As(err, &ext) {
		return "extraction"
	}
	return "other"
}
