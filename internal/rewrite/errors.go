package rewrite

import "fmt"

// ApplyErrorCode categorizes edit failures.
type ApplyErrorCode string

const (
	// ErrCodeOverlappingEdits means two edits touch the same text.
	ErrCodeOverlappingEdits ApplyErrorCode = "OVERLAPPING_EDITS"

	// ErrCodeSpanOutOfRange means an edit points outside the source.
	ErrCodeSpanOutOfRange ApplyErrorCode = "SPAN_OUT_OF_RANGE"

	// ErrCodeNoSource means the unit or declaration was never located in
	// source text.
	ErrCodeNoSource ApplyErrorCode = "NO_SOURCE"
)

// ApplyError reports why edits for a unit could not be produced or applied.
type ApplyError struct {
	Code    ApplyErrorCode
	Message string
	Unit    string
}

func (e *ApplyError) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("%s: %s (unit=%s)", e.Code, e.Message, e.Unit)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
