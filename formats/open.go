// Package formats selects and constructs the document engine for a file.
// Fixed-layout PDF gets a native adapter; word-processor documents, plain
// text, Markdown and HTML are normalized into paragraphs and served by the
// shared synthetic pagination engine.
package formats

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/deepread/docview/document"
	"github.com/deepread/docview/fonts"
	"github.com/deepread/docview/observability"
)

type options struct {
	log observability.Logger
	lib *fonts.Library
}

// Option configures engine construction.
type Option func(*options)

// WithLogger routes adapter diagnostics through the given logger.
func WithLogger(log observability.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithFontLibrary shares a font library across engines instead of parsing
// the font family per document.
func WithFontLibrary(lib *fonts.Library) Option {
	return func(o *options) { o.lib = lib }
}

// supportedExtensions lists the file extensions with an adapter.
var supportedExtensions = map[string]bool{
	".pdf":      true,
	".docx":     true,
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
}

// IsSupported reports whether a file extension has an adapter.
func IsSupported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Open constructs the engine for path, dispatching on the lowercased file
// extension. Unknown extensions fail with document.ErrUnsupportedFormat.
func Open(path string, opts ...Option) (document.Engine, error) {
	o := options{log: observability.NopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" && o.lib == nil {
		lib, err := fonts.NewLibrary()
		if err != nil {
			return nil, fmt.Errorf("load font library: %w", err)
		}
		o.lib = lib
	}

	switch ext {
	case ".pdf":
		return openPDF(path, o)
	case ".docx":
		return openDocx(path, o)
	case ".txt":
		return openText(path, o)
	case ".md", ".markdown":
		return openMarkdown(path, o)
	case ".html", ".htm":
		return openHTML(path, o)
	default:
		return nil, fmt.Errorf("%q: %w", ext, document.ErrUnsupportedFormat)
	}
}

// headingStyleName maps a heading level onto the style table. The table
// only distinguishes levels 1 through 3; deeper headings keep the
// level-3 style instead of falling back to the body default.
func headingStyleName(level int) string {
	if level > 3 {
		level = 3
	}
	return fmt.Sprintf("heading %d", level)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
