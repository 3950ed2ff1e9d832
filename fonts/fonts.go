// Package fonts resolves and measures the fonts used by the synthetic
// pagination engine. One font family (the Go fonts, regular and bold) backs
// every flow-layout document; glyph advances come from a HarfBuzz shaper so
// measured line widths track what the rasterizer draws, and draw faces are
// resolved lazily per (size, bold) and cached.
package fonts

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/go-text/typesetting/di"
	tsfont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/width"
)

// measureUPEM is the size glyphs are shaped at; advances are scaled from
// these units to the requested point size.
const measureUPEM = 1000

// Fallback advances, in em, for runes the family has no glyph for. East
// Asian wide and fullwidth runes occupy a full em; everything else uses the
// usual average-width estimate.
const (
	fallbackWideEm   = 1.0
	fallbackNarrowEm = 0.6
)

type advanceKey struct {
	r    rune
	bold bool
}

type faceKey struct {
	size int64 // hundredths of a point
	bold bool
}

// Library owns the parsed font family and its measurement and face caches.
// It is safe for concurrent use.
type Library struct {
	mu sync.Mutex

	shaper       shaping.HarfbuzzShaper
	measRegular  *tsfont.Face
	measBold     *tsfont.Face
	drawRegular  *sfnt.Font
	drawBold     *sfnt.Font
	advances     map[advanceKey]float64 // units per em at measureUPEM
	faces        map[faceKey]font.Face
}

// NewLibrary parses the embedded Go font family once. The same TTF bytes
// back both the measuring faces and the draw faces, keeping wrap decisions
// and rendered glyphs consistent.
func NewLibrary() (*Library, error) {
	measRegular, err := tsfont.ParseTTF(bytes.NewReader(goregular.TTF))
	if err != nil {
		return nil, fmt.Errorf("parse regular measuring face: %w", err)
	}
	measBold, err := tsfont.ParseTTF(bytes.NewReader(gobold.TTF))
	if err != nil {
		return nil, fmt.Errorf("parse bold measuring face: %w", err)
	}
	drawRegular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular draw font: %w", err)
	}
	drawBold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold draw font: %w", err)
	}
	return &Library{
		measRegular: measRegular,
		measBold:    measBold,
		drawRegular: drawRegular,
		drawBold:    drawBold,
		advances:    make(map[advanceKey]float64),
		faces:       make(map[faceKey]font.Face),
	}, nil
}

// Advance returns the horizontal advance of r at the given point size. Runes
// without a glyph in the family get an east-asian-width aware estimate, so
// the result is always positive for visible runes.
func (l *Library) Advance(r rune, size float64, bold bool) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.advanceLocked(r, bold) * size / measureUPEM
}

// StringWidth sums the advances of every rune in s at the given point size.
func (l *Library) StringWidth(s string, size float64, bold bool) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var units float64
	for _, r := range s {
		units += l.advanceLocked(r, bold)
	}
	return units * size / measureUPEM
}

func (l *Library) advanceLocked(r rune, bold bool) float64 {
	key := advanceKey{r: r, bold: bold}
	if adv, ok := l.advances[key]; ok {
		return adv
	}

	face := l.measRegular
	if bold {
		face = l.measBold
	}
	out := l.shaper.Shape(shaping.Input{
		Text:      []rune{r},
		RunStart:  0,
		RunEnd:    1,
		Direction: di.DirectionLTR,
		Face:      face,
		Size:      fixed.Int26_6(measureUPEM * 64),
		Script:    language.Latin,
		Language:  language.DefaultLanguage(),
	})

	adv := fallbackAdvance(r)
	if len(out.Glyphs) == 1 && out.Glyphs[0].GlyphID != 0 {
		adv = float64(out.Glyphs[0].XAdvance) / 64.0
	}
	l.advances[key] = adv
	return adv
}

// fallbackAdvance estimates, in measureUPEM units, the advance of a rune the
// family cannot shape.
func fallbackAdvance(r rune) float64 {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return fallbackWideEm * measureUPEM
	default:
		return fallbackNarrowEm * measureUPEM
	}
}

// Face returns a draw face for the given point size, resolving and caching
// it on first use. An unseen (size, bold) pair at render time resolves here
// rather than failing.
func (l *Library) Face(size float64, bold bool) (font.Face, error) {
	if size <= 0 {
		return nil, fmt.Errorf("font size must be positive, got %v", size)
	}
	key := faceKey{size: int64(size*100 + 0.5), bold: bold}

	l.mu.Lock()
	defer l.mu.Unlock()
	if f, ok := l.faces[key]; ok {
		return f, nil
	}

	src := l.drawRegular
	if bold {
		src = l.drawBold
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve face size=%v bold=%v: %w", size, bold, err)
	}
	l.faces[key] = f
	return f, nil
}
