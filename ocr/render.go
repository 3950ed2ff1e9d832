package ocr

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/deepread/docview/document"
	"github.com/deepread/docview/observability"
)

// Rasterizer renders the pages of one open document.
type Rasterizer interface {
	PageCount() int
	// RenderPNG rasterizes the 1-based page at the given DPI and writes
	// the encoded PNG to path.
	RenderPNG(pageNum, dpi int, path string) error
	Close() error
}

// OpenRasterizer opens a document with the MuPDF binding.
func OpenRasterizer(path string) (Rasterizer, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return &fitzRasterizer{doc: doc}, nil
}

type fitzRasterizer struct {
	doc *fitz.Document
}

func (r *fitzRasterizer) PageCount() int { return r.doc.NumPage() }

func (r *fitzRasterizer) RenderPNG(pageNum, dpi int, path string) error {
	img, err := r.doc.ImageDPI(pageNum-1, float64(dpi))
	if err != nil {
		return fmt.Errorf("rasterize page %d: %w", pageNum, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create page image: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encode page image: %w", err)
	}
	return f.Close()
}

func (r *fitzRasterizer) Close() error { return r.doc.Close() }

// PageImage locates one rendered page on disk.
type PageImage struct {
	Page int
	Path string
}

// Renderer writes page images into a working directory with deterministic
// names, so repeated runs of the same document and DPI overwrite rather
// than accumulate.
type Renderer struct {
	dir  string
	dpi  int
	log  observability.Logger
	open func(path string) (Rasterizer, error)
}

// NewRenderer builds a renderer that writes page images into dir.
func NewRenderer(dir string, dpi int, log observability.Logger) *Renderer {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Renderer{dir: dir, dpi: dpi, log: log, open: OpenRasterizer}
}

// RenderRange rasterizes pages [first, last] of the document. A last page
// of zero or below means "to the end"; one past the end of the document
// is clamped. first past last yields no images. first below 1 fails with
// document.ErrPageOutOfRange.
func (r *Renderer) RenderRange(ctx context.Context, docPath string, first, last int) ([]PageImage, error) {
	if first < 1 {
		return nil, fmt.Errorf("first page %d: %w", first, document.ErrPageOutOfRange)
	}

	ras, err := r.open(docPath)
	if err != nil {
		return nil, err
	}
	defer ras.Close()

	if count := ras.PageCount(); last <= 0 || last > count {
		last = count
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	var images []PageImage
	for page := first; page <= last; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(r.dir, pageImageName(docPath, page, r.dpi))
		if err := ras.RenderPNG(page, r.dpi, path); err != nil {
			return nil, err
		}
		r.log.Debug("rendered page image",
			observability.String("image", filepath.Base(path)),
			observability.Int("page", page),
			observability.Int("dpi", r.dpi))
		images = append(images, PageImage{Page: page, Path: path})
	}
	return images, nil
}

// pageImageName is the deterministic file name for one rendered page.
func pageImageName(docPath string, page, dpi int) string {
	base := filepath.Base(docPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s_page%d_dpi%d.png", stem, page, dpi)
}
