// Package tesseract backs the OCR provider contract with the gosseract
// client, the default engine for local recognition.
package tesseract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/deepread/docview/geom"
	"github.com/deepread/docview/ocr"
)

// Engine implements ocr.Engine using Tesseract via gosseract.
type Engine struct {
	clientFactory func() *gosseract.Client
	dataDir       string // overrides TESSDATA_PREFIX when set
}

// New constructs a Tesseract-backed OCR engine.
func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Available probes the installed Tesseract stack. A probe failure means
// the native libraries are missing; an empty language list means no
// trained data is installed.
func (e *Engine) Available(ctx context.Context) error {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return fmt.Errorf("%w: %v", ocr.ErrMissingDependency, err)
	}
	if len(langs) == 0 {
		return ocr.ErrModelUnavailable
	}
	return nil
}

// Heal removes leftover partial downloads from the language data
// directory. An interrupted traineddata install leaves *.tmp and
// *.download files behind, making the language look present but
// unloadable. Returns an error when there was nothing to purge, so the
// caller knows a re-probe is pointless.
func (e *Engine) Heal(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := e.dataDir
	if dir == "" {
		dir = os.Getenv("TESSDATA_PREFIX")
	}
	if dir == "" {
		return errors.New("tessdata directory unknown: TESSDATA_PREFIX is not set")
	}
	removed := 0
	for _, pattern := range []string{"*.tmp", "*.download"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return fmt.Errorf("scan %s: %w", dir, err)
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil {
				return fmt.Errorf("purge %s: %w", m, err)
			}
			removed++
		}
	}
	if removed == 0 {
		return errors.New("no stale model data to purge")
	}
	return nil
}

// Recognize runs Tesseract over one page image and returns line-level
// results with pixel geometry.
func (e *Engine) Recognize(ctx context.Context, req ocr.Request) ([]ocr.Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImage(req.ImagePath); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if len(req.Languages) > 0 {
		if err := c.SetLanguage(req.Languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if req.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(req.DPI)); err != nil {
			return nil, fmt.Errorf("set dpi: %w", err)
		}
	}
	for k, v := range req.Variables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return nil, fmt.Errorf("set variable %s: %w", k, err)
		}
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize lines: %w", err)
	}
	return linesFromBoxes(boxes), nil
}

func linesFromBoxes(boxes []gosseract.BoundingBox) []ocr.Line {
	lines := make([]ocr.Line, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		lines = append(lines, ocr.Line{
			Text:       text,
			Confidence: b.Confidence / 100.0,
			Polygon:    boxPolygon(b.Box),
		})
	}
	return lines
}

// boxPolygon emits the four corners of an axis-aligned box clockwise from
// the top-left, matching the quad layout of providers that report rotated
// text.
func boxPolygon(r image.Rectangle) geom.Polygon {
	return geom.Polygon{
		{X: float64(r.Min.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Max.Y)},
		{X: float64(r.Min.X), Y: float64(r.Max.Y)},
	}
}
