package formats

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/deepread/docview/document"
	"github.com/deepread/docview/flow"
)

// openMarkdown parses a Markdown file with goldmark and paginates its
// block structure. Headings take the matching heading style; a paragraph
// written entirely in strong emphasis renders bold.
func openMarkdown(path string, o options) (document.Engine, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}

	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	styles := flow.DefaultStyles()
	var paras []flow.Paragraph
	appendBlock := func(n ast.Node) {
		t := strings.TrimSpace(markdownText(n, src))
		if t == "" {
			return
		}
		paras = append(paras, flow.Paragraph{
			Text:  t,
			Style: styles.Resolve("", markdownAllStrong(n, src)),
		})
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := strings.TrimSpace(markdownText(node, src))
			if title == "" {
				continue
			}
			paras = append(paras, flow.Paragraph{
				Text:  title,
				Style: styles.Resolve(headingStyleName(node.Level), false),
			})
		case *ast.List:
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				appendBlock(item)
			}
		default:
			appendBlock(n)
		}
	}

	meta := document.Metadata{
		FileName: filepath.Base(path),
		Title:    stem(path),
		Subject:  "Markdown Document",
	}
	return flow.NewDocument(meta, paras, flow.DefaultConfig(), o.lib), nil
}

// markdownText collects the plain text of a node, preferring the inline
// tree and falling back to raw block lines for leaves such as code blocks.
func markdownText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.HasChildren() {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				buf.Write(t.Value(src))
				if t.SoftLineBreak() || t.HardLineBreak() {
					buf.WriteByte(' ')
				}
			} else {
				buf.WriteString(markdownText(c, src))
				if c.Type() == ast.TypeBlock && c.NextSibling() != nil {
					buf.WriteByte(' ')
				}
			}
		}
		return buf.String()
	}
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
	}
	return buf.String()
}

// markdownAllStrong reports whether every visible inline of a paragraph
// sits inside strong emphasis.
func markdownAllStrong(n ast.Node, src []byte) bool {
	para, ok := n.(*ast.Paragraph)
	if !ok {
		return false
	}
	seen := false
	for c := para.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Emphasis:
			if node.Level < 2 {
				return false
			}
			seen = true
		case *ast.Text:
			if len(bytes.TrimSpace(node.Value(src))) != 0 {
				return false
			}
		default:
			return false
		}
	}
	return seen
}
