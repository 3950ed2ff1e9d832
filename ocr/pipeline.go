package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/deepread/docview/document"
	"github.com/deepread/docview/observability"
)

// DefaultDPI is the render resolution used when none is configured.
const DefaultDPI = 150

// PageAnnotations carries the normalized annotations of one page.
type PageAnnotations struct {
	Page        int
	Annotations []Annotation
}

// Pipeline runs the three annotation stages for a document: render pages
// to images, recognize text lines, normalize geometry into document
// points. The DPI is fixed at construction so rendered geometry and the
// normalization scale always agree. The pipeline itself is stateless
// between calls and does no caching.
type Pipeline struct {
	engine Engine
	dpi    int
	langs  []string
	vars   map[string]string
	dir    string
	log    observability.Logger
	open   func(path string) (Rasterizer, error)
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithDPI sets the render resolution.
func WithDPI(dpi int) PipelineOption {
	return func(p *Pipeline) { p.dpi = dpi }
}

// WithLanguages sets recognition language hints.
func WithLanguages(langs ...string) PipelineOption {
	return func(p *Pipeline) { p.langs = append([]string(nil), langs...) }
}

// WithVariables passes provider-specific knobs through to the engine.
func WithVariables(vars map[string]string) PipelineOption {
	return func(p *Pipeline) {
		if len(vars) == 0 {
			p.vars = nil
			return
		}
		p.vars = make(map[string]string, len(vars))
		for k, v := range vars {
			p.vars[k] = v
		}
	}
}

// WithWorkDir sets the directory page images are rendered into.
func WithWorkDir(dir string) PipelineOption {
	return func(p *Pipeline) { p.dir = dir }
}

// WithPipelineLogger routes pipeline diagnostics through the given logger.
func WithPipelineLogger(log observability.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = log }
}

// NewPipeline builds a pipeline around the given engine.
func NewPipeline(engine Engine, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		engine: engine,
		dpi:    DefaultDPI,
		dir:    filepath.Join(os.TempDir(), "docview-ocr"),
		log:    observability.NopLogger{},
		open:   OpenRasterizer,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DPI reports the render resolution the pipeline was built with.
func (p *Pipeline) DPI() int { return p.dpi }

// WorkDir reports the directory page images are rendered into.
func (p *Pipeline) WorkDir() string { return p.dir }

// PageCount opens the document and reports its page count.
func (p *Pipeline) PageCount(docPath string) (int, error) {
	ras, err := p.open(docPath)
	if err != nil {
		return 0, err
	}
	defer ras.Close()
	return ras.PageCount(), nil
}

// ProcessPage runs the full pipeline for a single page.
func (p *Pipeline) ProcessPage(ctx context.Context, docPath string, page int) ([]Annotation, error) {
	results, err := p.ProcessRange(ctx, docPath, page, page)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("page %d: %w", page, document.ErrPageOutOfRange)
	}
	return results[0].Annotations, nil
}

// ProcessRange runs the full pipeline for pages [first, last], following
// the renderer's clamping rules. Internal stage errors are wrapped in
// ErrPipelineFailure; range and cancellation errors pass through.
func (p *Pipeline) ProcessRange(ctx context.Context, docPath string, first, last int) ([]PageAnnotations, error) {
	renderer := &Renderer{dir: p.dir, dpi: p.dpi, log: p.log, open: p.open}
	images, err := renderer.RenderRange(ctx, docPath, first, last)
	if err != nil {
		return nil, p.wrap(err)
	}

	norm := Normalizer{DPI: p.dpi}
	results := make([]PageAnnotations, 0, len(images))
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		lines, err := p.engine.Recognize(ctx, Request{
			ImagePath: img.Path,
			Languages: p.langs,
			DPI:       p.dpi,
			Variables: p.vars,
		})
		if err != nil {
			return nil, p.wrap(fmt.Errorf("recognize page %d: %w", img.Page, err))
		}
		anns, err := norm.Normalize(img.Path, lines)
		if err != nil {
			return nil, p.wrap(fmt.Errorf("normalize page %d: %w", img.Page, err))
		}
		p.log.Debug("annotated page",
			observability.Int("page", img.Page),
			observability.Int(observability.MetricOCRLineCount, len(anns)),
			observability.Float64(observability.MetricOCRPageTime, time.Since(start).Seconds()))
		results = append(results, PageAnnotations{Page: img.Page, Annotations: anns})
	}
	return results, nil
}

// wrap marks internal failures as pipeline failures while letting caller
// errors (bad page ranges, cancellation) pass through untouched.
func (p *Pipeline) wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, document.ErrPageOutOfRange),
		errors.Is(err, ErrModelUnavailable),
		errors.Is(err, ErrMissingDependency):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrPipelineFailure, err)
	}
}
