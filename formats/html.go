package formats

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/deepread/docview/document"
	"github.com/deepread/docview/flow"
)

// openHTML parses an HTML file and paginates its visible text. Heading
// tags map onto heading styles; p, li, td and blockquote become body
// paragraphs. Script, style and page-chrome elements are skipped.
func openHTML(path string, o options) (document.Engine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open html: %w", err)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	styles := flow.DefaultStyles()
	var paras []flow.Paragraph
	appendPara := func(styleName string, n *html.Node) {
		t := textContent(n)
		if t == "" {
			return
		}
		paras = append(paras, flow.Paragraph{
			Text:  t,
			Style: styles.Resolve(styleName, htmlAllBold(n)),
		})
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				appendPara(headingStyleName(level), n)
				return
			}
			switch n.Data {
			case "script", "style", "nav", "footer", "header":
				return
			case "p", "li", "td", "blockquote":
				appendPara("", n)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	root := doc
	if body := findElement(doc, "body"); body != nil {
		root = body
	}
	walk(root)

	title := stem(path)
	if t := findTitleText(doc); t != "" {
		title = t
	}
	meta := document.Metadata{
		FileName: filepath.Base(path),
		Title:    title,
		Subject:  "HTML Document",
	}
	return flow.NewDocument(meta, paras, flow.DefaultConfig(), o.lib), nil
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

// htmlAllBold reports whether every text node under n sits inside a b or
// strong element.
func htmlAllBold(n *html.Node) bool {
	seen := false
	var check func(*html.Node, bool) bool
	check = func(n *html.Node, bold bool) bool {
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" {
			if !bold {
				return false
			}
			seen = true
		}
		if n.Type == html.ElementNode && (n.Data == "b" || n.Data == "strong") {
			bold = true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !check(c, bold) {
				return false
			}
		}
		return true
	}
	return check(n, false) && seen
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if e := findElement(c, tag); e != nil {
			return e
		}
	}
	return nil
}

func findTitleText(doc *html.Node) string {
	if t := findElement(doc, "title"); t != nil {
		return textContent(t)
	}
	return ""
}
