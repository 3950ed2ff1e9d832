// Package document defines the capability contract every format adapter
// exposes: page rendering, text extraction, geometry, search and cleanup.
// Concrete engines live in the formats and flow packages; callers work
// against the Engine interface and select an engine by file extension.
package document

import (
	"math"

	"github.com/deepread/docview/geom"
)

// Metadata describes an open document. PageCount is fixed once the engine
// is constructed and must be stable across repeated calls.
type Metadata struct {
	FileName  string
	PageCount int
	Title     string
	Author    string
	Subject   string
}

// SearchResult is one occurrence of a search query. Rect is in document
// points; its coordinate origin follows the adapter's rendered geometry.
type SearchResult struct {
	Page int
	Rect geom.Rect
}

// Engine is the contract every format adapter implements.
//
// Page numbers are 1-based throughout; operations on pages outside
// [1, PageCount] fail with ErrPageOutOfRange.
type Engine interface {
	// Metadata returns document metadata. It has no side effects and must
	// succeed once construction succeeds.
	Metadata() Metadata

	// RenderPage rasterizes a page to an encoded PNG at the given zoom
	// factor (zoom 1.0 renders at the page's point dimensions). Zoom must
	// be positive. Results are cached per (page, zoom rounded to two
	// decimals).
	RenderPage(pageNum int, zoom float64) ([]byte, error)

	// ExtractText returns the page text. A nil clip extracts the whole
	// page; a non-nil clip restricts extraction to the region where the
	// adapter supports it (synthetic adapters ignore the clip).
	ExtractText(pageNum int, clip *geom.Rect) (string, error)

	// PageSize returns the page dimensions in document points. The result
	// is cached after the first computation.
	PageSize(pageNum int) (width, height float64, err error)

	// Search performs a case-insensitive substring search. pageNum 0 scans
	// every page in ascending order; a positive pageNum restricts the scan
	// to that page.
	Search(query string, pageNum int) ([]SearchResult, error)

	// Close releases caches and any underlying resource handle. It is
	// idempotent.
	Close() error
}

// RenderKey is the render-cache key shared by the engines: page number plus
// the zoom factor rounded to two decimals.
type RenderKey struct {
	Page int
	Zoom int64 // hundredths
}

// NewRenderKey builds a cache key for (pageNum, zoom).
func NewRenderKey(pageNum int, zoom float64) RenderKey {
	return RenderKey{Page: pageNum, Zoom: int64(math.Round(zoom * 100))}
}
