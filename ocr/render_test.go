package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/deepread/docview/document"
)

// fakeRasterizer writes real PNG files so the normalizer can read their
// dimensions back.
type fakeRasterizer struct {
	pages    int
	width    int
	height   int
	rendered []int
	fail     map[int]int // page -> remaining failures
}

func (f *fakeRasterizer) PageCount() int { return f.pages }

func (f *fakeRasterizer) RenderPNG(pageNum, dpi int, path string) error {
	if n := f.fail[pageNum]; n > 0 {
		f.fail[pageNum] = n - 1
		return fmt.Errorf("simulated render failure on page %d", pageNum)
	}
	f.rendered = append(f.rendered, pageNum)
	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return png.Encode(file, img)
}

func (f *fakeRasterizer) Close() error { return nil }

func newFakeOpener(ras *fakeRasterizer) func(string) (Rasterizer, error) {
	return func(string) (Rasterizer, error) { return ras, nil }
}

func TestPageImageName(t *testing.T) {
	got := pageImageName("/docs/report final.pdf", 3, 150)
	if got != "report final_page3_dpi150.png" {
		t.Fatalf("unexpected image name %q", got)
	}
}

func TestRenderRange(t *testing.T) {
	ras := &fakeRasterizer{pages: 5, width: 100, height: 200}
	r := NewRenderer(t.TempDir(), 150, nil)
	r.open = newFakeOpener(ras)

	images, err := r.RenderRange(context.Background(), "/docs/a.pdf", 2, 4)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("expected 3 images, got %d", len(images))
	}
	for i, img := range images {
		wantPage := i + 2
		if img.Page != wantPage {
			t.Fatalf("image %d for page %d, want %d", i, img.Page, wantPage)
		}
		wantName := fmt.Sprintf("a_page%d_dpi150.png", wantPage)
		if filepath.Base(img.Path) != wantName {
			t.Fatalf("unexpected image name %q", filepath.Base(img.Path))
		}
		if _, err := os.Stat(img.Path); err != nil {
			t.Fatalf("image not on disk: %v", err)
		}
	}
}

func TestRenderRangeClampsLastPage(t *testing.T) {
	ras := &fakeRasterizer{pages: 3, width: 10, height: 10}
	r := NewRenderer(t.TempDir(), 72, nil)
	r.open = newFakeOpener(ras)

	images, err := r.RenderRange(context.Background(), "b.pdf", 2, 99)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("expected pages 2..3, got %d images", len(images))
	}
}

func TestRenderRangeZeroLastMeansToEnd(t *testing.T) {
	ras := &fakeRasterizer{pages: 3, width: 10, height: 10}
	r := NewRenderer(t.TempDir(), 72, nil)
	r.open = newFakeOpener(ras)

	images, err := r.RenderRange(context.Background(), "b.pdf", 1, 0)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("last 0 should cover the whole document, got %d images", len(images))
	}
	for i, img := range images {
		if img.Page != i+1 {
			t.Fatalf("image %d has page %d", i, img.Page)
		}
	}
}

func TestRenderRangeEmptyWhenFirstPastLast(t *testing.T) {
	ras := &fakeRasterizer{pages: 3, width: 10, height: 10}
	r := NewRenderer(t.TempDir(), 72, nil)
	r.open = newFakeOpener(ras)

	images, err := r.RenderRange(context.Background(), "b.pdf", 5, 4)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(images) != 0 {
		t.Fatalf("expected no images, got %d", len(images))
	}
}

func TestRenderRangeRejectsFirstBelowOne(t *testing.T) {
	r := NewRenderer(t.TempDir(), 72, nil)
	r.open = newFakeOpener(&fakeRasterizer{pages: 3, width: 10, height: 10})

	_, err := r.RenderRange(context.Background(), "b.pdf", 0, 2)
	if !errors.Is(err, document.ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
}

func TestRenderRangeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRenderer(t.TempDir(), 72, nil)
	r.open = newFakeOpener(&fakeRasterizer{pages: 3, width: 10, height: 10})

	_, err := r.RenderRange(ctx, "b.pdf", 1, 3)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
