// Package flow implements the synthetic pagination engine shared by the
// flow-layout formats (Word documents, plain text, Markdown, HTML). It turns
// an ordered paragraph sequence into a deterministic page/line model and
// serves rendering, extraction and search against that model without ever
// re-running layout.
package flow

import "strings"

// Style carries the effective presentation attributes of one paragraph.
type Style struct {
	Size       float64 // font size in points
	Bold       bool
	SpaceAfter float64 // trailing spacing in points
}

// StyleRule maps a style-name prefix to a Style. Matching is
// case-insensitive and the first matching rule wins.
type StyleRule struct {
	Prefix string
	Style  Style
}

// StyleTable resolves paragraph style names. Names matching no rule fall
// back to Default.
type StyleTable struct {
	Rules   []StyleRule
	Default Style
}

// DefaultStyles mirrors the word-processor style mapping: title and heading
// prefixes with decreasing sizes, and a 12pt default body style.
func DefaultStyles() StyleTable {
	return StyleTable{
		Rules: []StyleRule{
			{Prefix: "title", Style: Style{Size: 20, Bold: true, SpaceAfter: 16}},
			{Prefix: "heading 1", Style: Style{Size: 18, Bold: true, SpaceAfter: 14}},
			{Prefix: "heading 2", Style: Style{Size: 16, Bold: true, SpaceAfter: 12}},
			{Prefix: "heading 3", Style: Style{Size: 14, Bold: true, SpaceAfter: 10}},
			{Prefix: "subtitle", Style: Style{Size: 14, Bold: false, SpaceAfter: 12}},
		},
		Default: Style{Size: 12, Bold: false, SpaceAfter: 8},
	}
}

// Resolve returns the style for a paragraph. allRunsBold upgrades a
// non-bold resolved style to bold, for paragraphs whose every run carries
// explicit bold formatting.
func (t StyleTable) Resolve(styleName string, allRunsBold bool) Style {
	name := strings.ToLower(styleName)
	st := t.Default
	for _, rule := range t.Rules {
		if strings.HasPrefix(name, rule.Prefix) {
			st = rule.Style
			break
		}
	}
	if allRunsBold && !st.Bold {
		st.Bold = true
	}
	return st
}

// Paragraph is one input paragraph with its resolved style.
type Paragraph struct {
	Text  string
	Style Style
}

// Config fixes the nominal page geometry for a flow document. Every page of
// one engine shares this geometry.
type Config struct {
	PageWidth    float64
	PageHeight   float64
	MarginLeft   float64
	MarginTop    float64
	MarginRight  float64
	MarginBottom float64

	// LineHeightRatio scales font size into line height.
	LineHeightRatio float64
}

// DefaultConfig is US Letter with word-processor margins.
func DefaultConfig() Config {
	return Config{
		PageWidth:       612,
		PageHeight:      792,
		MarginLeft:      50,
		MarginTop:       55,
		MarginRight:     50,
		MarginBottom:    55,
		LineHeightRatio: 1.4,
	}
}

// TextConfig is US Letter with the tighter plain-text margins.
func TextConfig() Config {
	cfg := DefaultConfig()
	cfg.MarginLeft, cfg.MarginTop, cfg.MarginRight, cfg.MarginBottom = 40, 40, 40, 40
	cfg.LineHeightRatio = 1.5
	return cfg
}

func (c Config) usableWidth() float64  { return c.PageWidth - c.MarginLeft - c.MarginRight }
func (c Config) usableHeight() float64 { return c.PageHeight - c.MarginTop - c.MarginBottom }

// Line is one wrapped line positioned within a page.
type Line struct {
	Text string
	Y    float64 // vertical offset from the top of the usable area
	Size float64
	Bold bool
}

// Page holds the lines laid out on one page plus the half-open paragraph
// index range [ParaStart, ParaEnd) that contributed them.
type Page struct {
	Lines     []Line
	ParaStart int
	ParaEnd   int
}

// Measurer supplies per-rune horizontal advances in points.
type Measurer interface {
	Advance(r rune, size float64, bold bool) float64
}

// Layout wraps and paginates paragraphs in a single deterministic pass.
// Zero paragraphs still yield exactly one page with zero lines.
func Layout(paras []Paragraph, cfg Config, m Measurer) []Page {
	usableW := cfg.usableWidth()
	usableH := cfg.usableHeight()

	var pages []Page
	cur := Page{ParaStart: 0}
	y := 0.0

	for i, para := range paras {
		lineHeight := para.Style.Size * cfg.LineHeightRatio
		for _, text := range wrap(para.Text, para.Style, usableW, m) {
			// Break only when the page already holds a line, so the first
			// line of a page always fits.
			if y+lineHeight > usableH && len(cur.Lines) > 0 {
				cur.ParaEnd = i
				pages = append(pages, cur)
				cur = Page{ParaStart: i}
				y = 0
			}
			cur.Lines = append(cur.Lines, Line{Text: text, Y: y, Size: para.Style.Size, Bold: para.Style.Bold})
			y += lineHeight
		}
		// Trailing spacing moves the cursor; any resulting overflow is
		// detected when the next paragraph lays out its first line.
		y += para.Style.SpaceAfter
	}

	cur.ParaEnd = len(paras)
	pages = append(pages, cur)
	return pages
}

// wrap splits paragraph text into lines by greedy character accumulation:
// runes accumulate while their measured total stays within maxWidth. This
// also handles scripts without word-delimiting spaces. An empty paragraph
// produces one empty line so blank lines keep their page slot.
func wrap(text string, st Style, maxWidth float64, m Measurer) []string {
	if text == "" {
		return []string{""}
	}

	var lines []string
	var cur strings.Builder
	curWidth := 0.0

	for _, r := range text {
		w := m.Advance(r, st.Size, st.Bold)
		if curWidth+w <= maxWidth {
			cur.WriteRune(r)
			curWidth += w
			continue
		}
		if cur.Len() > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		cur.WriteRune(r)
		curWidth = w
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}
