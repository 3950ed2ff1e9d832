package formats

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/fumiama/go-docx"

	"github.com/deepread/docview/document"
	"github.com/deepread/docview/flow"
)

// openDocx parses a Word document and paginates its paragraphs. Paragraph
// styles map onto the flow style table; everything else renders with the
// default body style.
func openDocx(path string, o options) (document.Engine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat docx: %w", err)
	}
	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	styles := flow.DefaultStyles()
	var paras []flow.Paragraph
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text, bold := docxParagraphText(para)
		paras = append(paras, flow.Paragraph{
			Text:  text,
			Style: styles.Resolve(normalizeStyleName(docxStyleName(para)), bold),
		})
	}

	meta := document.Metadata{
		FileName: filepath.Base(path),
		Title:    stem(path),
		Subject:  "Word Document",
	}
	return flow.NewDocument(meta, paras, flow.DefaultConfig(), o.lib), nil
}

func docxStyleName(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

// docxParagraphText joins the paragraph's run text and reports whether
// every text-bearing run carries the bold run property, which upgrades
// the resolved style to its bold variant.
func docxParagraphText(para *docx.Paragraph) (string, bool) {
	var buf strings.Builder
	allBold := true
	seen := false
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		var runText strings.Builder
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				runText.WriteString(t.Text)
			}
		}
		buf.WriteString(runText.String())
		if strings.TrimSpace(runText.String()) == "" {
			continue
		}
		seen = true
		if run.RunProperties == nil || run.RunProperties.Bold == nil {
			allBold = false
		}
	}
	return buf.String(), seen && allBold
}

// normalizeStyleName separates a trailing level number from a style
// identifier, so "Heading1" and "Heading 1" resolve the same way.
func normalizeStyleName(name string) string {
	var buf strings.Builder
	var prev rune
	for _, r := range name {
		if unicode.IsDigit(r) && unicode.IsLetter(prev) {
			buf.WriteByte(' ')
		}
		buf.WriteRune(r)
		prev = r
	}
	return buf.String()
}
