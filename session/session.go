// Package session holds one open document and its OCR binding. A session
// owns the active engine, forwards the viewing operations, and routes OCR
// requests to an annotator for the formats that support it.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/deepread/docview/document"
	"github.com/deepread/docview/fonts"
	"github.com/deepread/docview/formats"
	"github.com/deepread/docview/geom"
	"github.com/deepread/docview/observability"
	"github.com/deepread/docview/ocr"
)

// ErrNoDocument is returned by document operations before Open succeeds.
var ErrNoDocument = errors.New("no document open")

// Annotator is the OCR surface a session binds to PDF documents.
// *ocr.Orchestrator implements it.
type Annotator interface {
	SetDocument(path string) error
	OCRPage(ctx context.Context, page int) ([]ocr.Annotation, error)
	StartDocumentJob(ctx context.Context) (bool, error)
	Progress() ocr.Progress
	Cancel()
	Close() error
}

// Session is the stateful view over one document at a time.
type Session struct {
	log       observability.Logger
	lib       *fonts.Library
	annotator Annotator

	mu       sync.Mutex
	engine   document.Engine
	path     string
	ocrBound bool
}

// Option configures a session.
type Option func(*Session)

// WithLogger routes session diagnostics through the given logger.
func WithLogger(log observability.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithFontLibrary shares a font library across the documents the session
// opens.
func WithFontLibrary(lib *fonts.Library) Option {
	return func(s *Session) { s.lib = lib }
}

// WithAnnotator binds an OCR annotator. Without one, OCR operations fail.
func WithAnnotator(a Annotator) Option {
	return func(s *Session) { s.annotator = a }
}

// New builds an empty session.
func New(opts ...Option) *Session {
	s := &Session{log: observability.NopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open replaces the session's document. The previous engine is closed
// first; a failed open leaves the session empty. OCR binds only to PDF
// documents, where rendered geometry matches the annotation space.
func (s *Session) Open(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()

	engOpts := []formats.Option{formats.WithLogger(s.log)}
	if s.lib != nil {
		engOpts = append(engOpts, formats.WithFontLibrary(s.lib))
	}
	eng, err := formats.Open(path, engOpts...)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}

	isPDF := strings.EqualFold(filepath.Ext(path), ".pdf")
	if isPDF && s.annotator != nil {
		if err := s.annotator.SetDocument(path); err != nil {
			eng.Close()
			return fmt.Errorf("bind ocr: %w", err)
		}
	}

	s.engine = eng
	s.path = path
	s.ocrBound = isPDF && s.annotator != nil
	s.log.Info("document opened",
		observability.String("file", filepath.Base(path)),
		observability.Int("pages", eng.Metadata().PageCount))
	return nil
}

// Metadata returns the open document's metadata.
func (s *Session) Metadata() (document.Metadata, error) {
	eng, err := s.current()
	if err != nil {
		return document.Metadata{}, err
	}
	return eng.Metadata(), nil
}

// RenderPage rasterizes a page of the open document.
func (s *Session) RenderPage(pageNum int, zoom float64) ([]byte, error) {
	eng, err := s.current()
	if err != nil {
		return nil, err
	}
	return eng.RenderPage(pageNum, zoom)
}

// ExtractText extracts text from a page of the open document.
func (s *Session) ExtractText(pageNum int, clip *geom.Rect) (string, error) {
	eng, err := s.current()
	if err != nil {
		return "", err
	}
	return eng.ExtractText(pageNum, clip)
}

// PageSize reports the page dimensions of the open document.
func (s *Session) PageSize(pageNum int) (float64, float64, error) {
	eng, err := s.current()
	if err != nil {
		return 0, 0, err
	}
	return eng.PageSize(pageNum)
}

// Search searches the open document.
func (s *Session) Search(query string, pageNum int) ([]document.SearchResult, error) {
	eng, err := s.current()
	if err != nil {
		return nil, err
	}
	return eng.Search(query, pageNum)
}

// OCRPage annotates one page of the open document.
func (s *Session) OCRPage(ctx context.Context, page int) ([]ocr.Annotation, error) {
	a, err := s.boundAnnotator()
	if err != nil {
		return nil, err
	}
	return a.OCRPage(ctx, page)
}

// StartOCRJob launches background annotation of the whole document.
func (s *Session) StartOCRJob(ctx context.Context) (bool, error) {
	a, err := s.boundAnnotator()
	if err != nil {
		return false, err
	}
	return a.StartDocumentJob(ctx)
}

// OCRProgress reports the state of the background annotation job.
func (s *Session) OCRProgress() (ocr.Progress, error) {
	a, err := s.boundAnnotator()
	if err != nil {
		return ocr.Progress{}, err
	}
	return a.Progress(), nil
}

// CancelOCR requests cancellation of the background annotation job.
func (s *Session) CancelOCR() {
	s.mu.Lock()
	bound := s.ocrBound
	s.mu.Unlock()
	if bound {
		s.annotator.Cancel()
	}
}

// Close releases the open document and the OCR binding. It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	var err error
	if s.engine != nil {
		err = s.engine.Close()
		s.engine = nil
	}
	if s.ocrBound {
		s.annotator.Close()
		s.ocrBound = false
	}
	s.path = ""
	return err
}

func (s *Session) current() (document.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil, ErrNoDocument
	}
	return s.engine, nil
}

func (s *Session) boundAnnotator() (Annotator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil, ErrNoDocument
	}
	if !s.ocrBound {
		return nil, fmt.Errorf("ocr for %q: %w", filepath.Ext(s.path), document.ErrUnsupportedFormat)
	}
	return s.annotator, nil
}
