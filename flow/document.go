package flow

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/deepread/docview/document"
	"github.com/deepread/docview/fonts"
	"github.com/deepread/docview/geom"
)

// Document serves the document engine contract over a laid-out page model.
// The model is produced once at construction and is immutable thereafter;
// only the render cache mutates afterwards.
type Document struct {
	meta  document.Metadata
	cfg   Config
	paras []Paragraph
	pages []Page
	lib   *fonts.Library

	mu    sync.Mutex
	cache map[document.RenderKey][]byte
}

// NewDocument lays out the paragraphs and binds the result to the supplied
// metadata. The metadata's PageCount is overwritten with the layout result.
func NewDocument(meta document.Metadata, paras []Paragraph, cfg Config, lib *fonts.Library) *Document {
	pages := Layout(paras, cfg, lib)
	meta.PageCount = len(pages)
	return &Document{
		meta:  meta,
		cfg:   cfg,
		paras: paras,
		pages: pages,
		lib:   lib,
		cache: make(map[document.RenderKey][]byte),
	}
}

func (d *Document) Metadata() document.Metadata { return d.meta }

// RenderPage draws the page's lines onto a white canvas scaled by zoom and
// returns the PNG encoding. Zoom scales raster resolution, not geometry.
func (d *Document) RenderPage(pageNum int, zoom float64) ([]byte, error) {
	if err := document.CheckZoom(zoom); err != nil {
		return nil, err
	}
	if err := document.CheckPage(pageNum, d.meta.PageCount); err != nil {
		return nil, err
	}

	key := document.NewRenderKey(pageNum, zoom)
	d.mu.Lock()
	if buf, ok := d.cache[key]; ok {
		d.mu.Unlock()
		return buf, nil
	}
	d.mu.Unlock()

	page := d.pages[pageNum-1]
	w := int(d.cfg.PageWidth * zoom)
	h := int(d.cfg.PageHeight * zoom)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for _, line := range page.Lines {
		if line.Text == "" {
			continue
		}
		face, err := d.lib.Face(line.Size*zoom, line.Bold)
		if err != nil {
			return nil, err
		}
		drawer := font.Drawer{
			Dst:  img,
			Src:  image.Black,
			Face: face,
			// Baseline sits one font size below the line's top edge.
			Dot: fixed.P(int(d.cfg.MarginLeft*zoom), int((d.cfg.MarginTop+line.Y+line.Size)*zoom)),
		}
		drawer.DrawString(line.Text)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	encoded := buf.Bytes()

	d.mu.Lock()
	d.cache[key] = encoded
	d.mu.Unlock()
	return encoded, nil
}

// ExtractText joins the original paragraph texts recorded for the page, not
// the wrapped line texts, so extraction reproduces paragraph boundaries
// rather than wrap points. The clip region is ignored by synthetic engines.
func (d *Document) ExtractText(pageNum int, _ *geom.Rect) (string, error) {
	if err := document.CheckPage(pageNum, d.meta.PageCount); err != nil {
		return "", err
	}
	page := d.pages[pageNum-1]
	texts := make([]string, 0, page.ParaEnd-page.ParaStart)
	for _, p := range d.paras[page.ParaStart:page.ParaEnd] {
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "\n"), nil
}

func (d *Document) PageSize(pageNum int) (float64, float64, error) {
	if err := document.CheckPage(pageNum, d.meta.PageCount); err != nil {
		return 0, 0, err
	}
	return d.cfg.PageWidth, d.cfg.PageHeight, nil
}

// Search scans the wrapped line texts case-insensitively, reporting every
// match start (overlapping occurrences included) with a rectangle rebuilt
// from cumulative glyph advances. pageNum 0 scans all pages.
func (d *Document) Search(query string, pageNum int) ([]document.SearchResult, error) {
	if query == "" {
		return nil, nil
	}
	if pageNum != 0 {
		if err := document.CheckPage(pageNum, d.meta.PageCount); err != nil {
			return nil, err
		}
	}

	first, last := 1, d.meta.PageCount
	if pageNum != 0 {
		first, last = pageNum, pageNum
	}

	queryRunes := lowerRunes(query)
	var results []document.SearchResult
	for pn := first; pn <= last; pn++ {
		for _, line := range d.pages[pn-1].Lines {
			lineRunes := []rune(line.Text)
			lowered := lowerRunes(line.Text)
			for start := 0; ; {
				pos := indexRunes(lowered, queryRunes, start)
				if pos < 0 {
					break
				}
				x1 := d.cfg.MarginLeft + d.runesWidth(lineRunes[:pos], line.Size, line.Bold)
				x2 := x1 + d.runesWidth(lineRunes[pos:pos+len(queryRunes)], line.Size, line.Bold)
				y1 := d.cfg.MarginTop + line.Y
				y2 := y1 + line.Size*d.cfg.LineHeightRatio
				results = append(results, document.SearchResult{
					Page: pn,
					Rect: geom.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2},
				})
				start = pos + 1
			}
		}
	}
	return results, nil
}

// Close drops the render cache. The page model stays intact so the call is
// idempotent and metadata remains answerable.
func (d *Document) Close() error {
	d.mu.Lock()
	d.cache = make(map[document.RenderKey][]byte)
	d.mu.Unlock()
	return nil
}

func (d *Document) runesWidth(runes []rune, size float64, bold bool) float64 {
	var w float64
	for _, r := range runes {
		w += d.lib.Advance(r, size, bold)
	}
	return w
}

// lowerRunes lowercases rune-by-rune so offsets stay aligned with the
// original text.
func lowerRunes(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = unicode.ToLower(r)
	}
	return runes
}

// indexRunes returns the first index >= start where needle occurs in
// haystack, or -1.
func indexRunes(haystack, needle []rune, start int) int {
	if len(needle) == 0 {
		return -1
	}
	for i := start; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
