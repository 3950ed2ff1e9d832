package formats

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"

	"github.com/deepread/docview/document"
	"github.com/deepread/docview/geom"
	"github.com/deepread/docview/observability"
)

// Y tolerance in points for grouping positioned characters into one row.
const rowTolerance = 3.0

// Gap between adjacent characters, as a fraction of the font size, beyond
// which a word break is assumed.
const wordGapRatio = 0.3

// pdfEngine serves fixed-layout PDF files. Rendering, plain extraction and
// page geometry come from the MuPDF binding; the positioned-character layer
// backs clipped extraction and search rectangles. When the positioned layer
// cannot be opened the engine degrades: search returns no hits and clipped
// extraction falls back to full-page text.
type pdfEngine struct {
	meta document.Metadata
	log  observability.Logger

	mu      sync.Mutex
	fz      *fitz.Document
	reader  *pdf.Reader
	readerF *os.File
	renders map[document.RenderKey][]byte
	rows    map[int][]textRow
	heights map[int]float64
	closed  bool
}

func openPDF(path string, o options) (document.Engine, error) {
	fz, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	e := &pdfEngine{
		log:     o.log,
		fz:      fz,
		renders: make(map[document.RenderKey][]byte),
		rows:    make(map[int][]textRow),
		heights: make(map[int]float64),
	}

	info := fz.Metadata()
	e.meta = document.Metadata{
		FileName:  filepath.Base(path),
		PageCount: fz.NumPage(),
		Title:     info["title"],
		Author:    info["author"],
		Subject:   info["subject"],
	}
	if e.meta.Title == "" {
		e.meta.Title = stem(path)
	}

	if f, reader, err := pdf.Open(path); err == nil {
		e.readerF, e.reader = f, reader
	} else {
		o.log.Warn("positioned text layer unavailable, search disabled",
			observability.String("file", e.meta.FileName),
			observability.Error("error", err))
	}
	return e, nil
}

func (e *pdfEngine) Metadata() document.Metadata { return e.meta }

func (e *pdfEngine) PageSize(pageNum int) (float64, float64, error) {
	if err := document.CheckPage(pageNum, e.meta.PageCount); err != nil {
		return 0, 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, 0, errEngineClosed
	}
	h, err := e.pageHeightLocked(pageNum)
	if err != nil {
		return 0, 0, err
	}
	bound, err := e.fz.Bound(pageNum - 1)
	if err != nil {
		return 0, 0, fmt.Errorf("page bounds: %w", err)
	}
	return float64(bound.Dx()), h, nil
}

func (e *pdfEngine) RenderPage(pageNum int, zoom float64) ([]byte, error) {
	if err := document.CheckZoom(zoom); err != nil {
		return nil, err
	}
	if err := document.CheckPage(pageNum, e.meta.PageCount); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errEngineClosed
	}

	key := document.NewRenderKey(pageNum, zoom)
	if data, ok := e.renders[key]; ok {
		return data, nil
	}

	start := time.Now()
	img, err := e.fz.ImageDPI(pageNum-1, 72*zoom)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", pageNum, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page %d: %w", pageNum, err)
	}
	e.log.Debug("rendered page",
		observability.Int("page", pageNum),
		observability.Float64(observability.MetricRenderTime, time.Since(start).Seconds()))
	e.renders[key] = buf.Bytes()
	return buf.Bytes(), nil
}

func (e *pdfEngine) ExtractText(pageNum int, clip *geom.Rect) (string, error) {
	if err := document.CheckPage(pageNum, e.meta.PageCount); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", errEngineClosed
	}

	if clip == nil || e.reader == nil {
		text, err := e.fz.Text(pageNum - 1)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", pageNum, err)
		}
		return text, nil
	}

	rows, err := e.pageRowsLocked(pageNum)
	if err != nil {
		return "", err
	}
	pageH, err := e.pageHeightLocked(pageNum)
	if err != nil {
		return "", err
	}

	var clipped []pdf.Text
	for _, row := range rows {
		for _, t := range row.chars {
			if clip.Contains(t.X, pageH-t.Y) {
				clipped = append(clipped, t)
			}
		}
	}
	var lines []string
	for _, row := range buildRows(clipped) {
		lines = append(lines, string(row.runes))
	}
	return strings.Join(lines, "\n"), nil
}

func (e *pdfEngine) Search(query string, pageNum int) ([]document.SearchResult, error) {
	if query == "" {
		return nil, nil
	}
	if pageNum != 0 {
		if err := document.CheckPage(pageNum, e.meta.PageCount); err != nil {
			return nil, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errEngineClosed
	}
	if e.reader == nil {
		e.log.Warn("search skipped, no positioned text layer",
			observability.String("file", e.meta.FileName))
		return nil, nil
	}

	first, last := 1, e.meta.PageCount
	if pageNum != 0 {
		first, last = pageNum, pageNum
	}

	needle := lowerRunes([]rune(query))
	var results []document.SearchResult
	for p := first; p <= last; p++ {
		rows, err := e.pageRowsLocked(p)
		if err != nil {
			return nil, err
		}
		pageH, err := e.pageHeightLocked(p)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			haystack := lowerRunes(row.runes)
			for start := 0; ; {
				pos := indexRunes(haystack[start:], needle)
				if pos < 0 {
					break
				}
				pos += start
				end := pos + len(needle) - 1
				results = append(results, document.SearchResult{
					Page: p,
					Rect: geom.Rect{
						X1: row.x[pos],
						Y1: pageH - row.yMax - row.maxFont,
						X2: row.x[end] + row.w[end],
						Y2: pageH - row.yMin,
					},
				})
				start = pos + 1
			}
		}
	}
	return results, nil
}

func (e *pdfEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.renders = nil
	e.rows = nil
	var err error
	if e.fz != nil {
		err = e.fz.Close()
		e.fz = nil
	}
	if e.readerF != nil {
		e.readerF.Close()
		e.readerF = nil
		e.reader = nil
	}
	return err
}

func (e *pdfEngine) pageHeightLocked(pageNum int) (float64, error) {
	if h, ok := e.heights[pageNum]; ok {
		return h, nil
	}
	bound, err := e.fz.Bound(pageNum - 1)
	if err != nil {
		return 0, fmt.Errorf("page bounds: %w", err)
	}
	h := float64(bound.Dy())
	e.heights[pageNum] = h
	return h, nil
}

func (e *pdfEngine) pageRowsLocked(pageNum int) ([]textRow, error) {
	if rows, ok := e.rows[pageNum]; ok {
		return rows, nil
	}
	page := e.reader.Page(pageNum)
	if page.V.IsNull() {
		e.rows[pageNum] = nil
		return nil, nil
	}
	rows := buildRows(page.Content().Text)
	e.rows[pageNum] = rows
	return rows, nil
}

// textRow is one visual line of positioned characters. runes holds the
// assembled row text, with x and w giving the horizontal start and width
// of each rune in page points.
type textRow struct {
	yMin, yMax float64 // baseline extremes, PDF coordinates (origin bottom-left)
	maxFont    float64
	chars      []pdf.Text
	runes      []rune
	x, w       []float64
}

// buildRows groups positioned characters into visual rows and assembles
// the row text, inserting a space wherever the horizontal gap between
// neighbours exceeds the word-break threshold.
func buildRows(texts []pdf.Text) []textRow {
	var rows []textRow
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		placed := false
		for i := range rows {
			if t.Y >= rows[i].yMin-rowTolerance && t.Y <= rows[i].yMax+rowTolerance {
				rows[i].chars = append(rows[i].chars, t)
				if t.Y < rows[i].yMin {
					rows[i].yMin = t.Y
				}
				if t.Y > rows[i].yMax {
					rows[i].yMax = t.Y
				}
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, textRow{yMin: t.Y, yMax: t.Y, chars: []pdf.Text{t}})
		}
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].yMax > rows[j].yMax })
	for i := range rows {
		rows[i].assemble()
	}
	return rows
}

func (r *textRow) assemble() {
	sort.Slice(r.chars, func(i, j int) bool { return r.chars[i].X < r.chars[j].X })

	var prevEnd float64
	for i, t := range r.chars {
		if t.FontSize > r.maxFont {
			r.maxFont = t.FontSize
		}
		if i > 0 {
			gap := t.X - prevEnd
			threshold := wordGapRatio * t.FontSize
			if threshold == 0 {
				threshold = 3.0
			}
			if gap > threshold {
				r.runes = append(r.runes, ' ')
				r.x = append(r.x, prevEnd)
				r.w = append(r.w, gap)
			}
		}
		chunk := []rune(t.S)
		per := t.W / float64(len(chunk))
		for j, c := range chunk {
			r.runes = append(r.runes, c)
			r.x = append(r.x, t.X+per*float64(j))
			r.w = append(r.w, per)
		}
		prevEnd = t.X + t.W
	}
}

var errEngineClosed = fmt.Errorf("document engine is closed")

func lowerRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
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
