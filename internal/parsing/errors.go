package parsing

import "fmt"

// ExtractionError is returned when a document cannot be parsed as HTML.
type ExtractionError struct {
	URL   string
	Cause error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction error for %s: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("extraction error for %s", e.URL)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}
