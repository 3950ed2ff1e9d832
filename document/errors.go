package document

import (
	"errors"
	"fmt"
)

var (
	// ErrPageOutOfRange reports a page number outside [1, PageCount].
	ErrPageOutOfRange = errors.New("page number out of range")

	// ErrUnsupportedFormat reports a file extension no adapter handles.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// PageRangeError wraps ErrPageOutOfRange with the offending page number and
// the valid bound.
func PageRangeError(pageNum, pageCount int) error {
	return fmt.Errorf("page %d outside [1, %d]: %w", pageNum, pageCount, ErrPageOutOfRange)
}

// CheckPage validates a 1-based page number against a page count.
func CheckPage(pageNum, pageCount int) error {
	if pageNum < 1 || pageNum > pageCount {
		return PageRangeError(pageNum, pageCount)
	}
	return nil
}

// CheckZoom validates a render zoom factor.
func CheckZoom(zoom float64) error {
	if zoom <= 0 {
		return fmt.Errorf("zoom must be positive, got %v", zoom)
	}
	return nil
}
