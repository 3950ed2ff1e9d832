package ocr

import (
	"context"

	"github.com/deepread/docview/geom"
)

// Line is one recognized text line in rendered-image pixel coordinates,
// with the origin in the upper-left corner of the image.
type Line struct {
	Text string
	// Confidence is the provider's recognition confidence in [0, 1].
	Confidence float64
	// Polygon outlines the line region. Providers that only report boxes
	// emit the four box corners; rotated text may produce a tilted quad.
	Polygon geom.Polygon
}

// Annotation is a recognized text line positioned in document points with
// the origin at the lower-left corner of the page.
type Annotation struct {
	Text       string
	Confidence float64
	X          float64
	Y          float64
	Width      float64
	Height     float64
}

// Request describes one rendered page image submitted for recognition.
type Request struct {
	// ImagePath locates the encoded page image on disk.
	ImagePath string
	// Languages is a list of language hints (e.g., "eng", "deu") that
	// providers can use to select trained data.
	Languages []string
	// DPI carries the dots-per-inch the image was rendered at. Providers
	// use this for scaling and layout heuristics; zero means unknown.
	DPI int
	// Variables allows callers to pass through engine-specific knobs
	// (e.g., "tessedit_pageseg_mode" for Tesseract) without hard-coding
	// them into the API surface.
	Variables map[string]string
}

// Engine is the OCR provider contract: one page image in, recognized
// lines out.
type Engine interface {
	Name() string
	// Available reports whether the provider can run. Failures wrap
	// ErrMissingDependency when the native stack is absent and
	// ErrModelUnavailable when no trained language data is installed.
	Available(ctx context.Context) error
	Recognize(ctx context.Context, req Request) ([]Line, error)
}

// Healer is implemented by engines that can repair a broken local model
// installation, typically by purging partially downloaded language data.
// The orchestrator calls Heal at most once, after an availability probe
// reports ErrModelUnavailable, and then probes one more time.
type Healer interface {
	Heal(ctx context.Context) error
}
