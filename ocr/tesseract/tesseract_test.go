package tesseract

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/deepread/docview/ocr"
)

// ensureTesseractAvailable checks that the tesseract binary is reachable.
func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func TestEngineName(t *testing.T) {
	if got := New().Name(); got != "tesseract" {
		t.Fatalf("unexpected engine name %q", got)
	}
}

func TestBoxPolygon(t *testing.T) {
	p := boxPolygon(image.Rect(10, 20, 110, 60))
	if len(p) != 4 {
		t.Fatalf("expected 4 vertices, got %d", len(p))
	}
	b := p.Bounds()
	if b.X1 != 10 || b.Y1 != 20 || b.X2 != 110 || b.Y2 != 60 {
		t.Fatalf("unexpected bounds %+v", b)
	}
}

func TestLinesFromBoxes(t *testing.T) {
	boxes := []gosseract.BoundingBox{
		{Box: image.Rect(0, 0, 100, 20), Word: " first line \n", Confidence: 91.5},
		{Box: image.Rect(0, 30, 100, 50), Word: "   ", Confidence: 10},
		{Box: image.Rect(0, 60, 100, 80), Word: "second", Confidence: 80},
	}
	lines := linesFromBoxes(boxes)
	if len(lines) != 2 {
		t.Fatalf("expected whitespace-only line dropped, got %d lines", len(lines))
	}
	if lines[0].Text != "first line" {
		t.Fatalf("unexpected text %q", lines[0].Text)
	}
	if lines[0].Confidence != 0.915 {
		t.Fatalf("confidence not scaled to [0,1]: %g", lines[0].Confidence)
	}
	if b := lines[1].Polygon.Bounds(); b.Y1 != 60 || b.Y2 != 80 {
		t.Fatalf("unexpected polygon bounds %+v", b)
	}
}

func TestEngineRecognize(t *testing.T) {
	ensureTesseractAvailable(t)

	img := image.NewRGBA(image.Rect(0, 0, 200, 80))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 50),
	}
	d.DrawString("Hello Page")

	path := filepath.Join(t.TempDir(), "page.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create image: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode image: %v", err)
	}
	f.Close()

	eng := New()
	if err := eng.Available(context.Background()); err != nil {
		t.Skipf("tesseract unavailable: %v", err)
	}
	lines, err := eng.Recognize(context.Background(), ocr.Request{
		ImagePath: path,
		Languages: []string{"eng"},
		DPI:       300,
	})
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	var all strings.Builder
	for _, line := range lines {
		all.WriteString(strings.ToLower(line.Text))
		all.WriteByte(' ')
	}
	if !strings.Contains(all.String(), "hello") {
		t.Fatalf("unexpected recognition output %q", all.String())
	}
}

func TestHealPurgesPartialDownloads(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "eng.traineddata")
	stale := filepath.Join(dir, "deu.traineddata.tmp")
	partial := filepath.Join(dir, "fra.traineddata.download")
	for _, path := range []string{keep, stale, partial} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	e := &Engine{clientFactory: gosseract.NewClient, dataDir: dir}
	if err := e.Heal(context.Background()); err != nil {
		t.Fatalf("heal: %v", err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("heal removed installed language data: %v", err)
	}
	for _, path := range []string{stale, partial} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("heal left %s behind", path)
		}
	}

	// Nothing left to purge; the caller must not re-probe.
	if err := e.Heal(context.Background()); err == nil {
		t.Fatalf("expected error when nothing to purge")
	}
}
