package formats

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/deepread/docview/document"
	"github.com/deepread/docview/flow"
	"github.com/deepread/docview/fonts"
)

var (
	testLibOnce sync.Once
	testLib     *fonts.Library
	testLibErr  error
)

func testLibrary(t *testing.T) *fonts.Library {
	t.Helper()
	testLibOnce.Do(func() {
		testLib, testLibErr = fonts.NewLibrary()
	})
	if testLibErr != nil {
		t.Fatalf("load font library: %v", testLibErr)
	}
	return testLib
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestOpenUnsupportedExtension(t *testing.T) {
	_, err := Open("notes.xyz", WithFontLibrary(testLibrary(t)))
	if !errors.Is(err, document.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := Open("archive.zip"); !errors.Is(err, document.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestIsSupported(t *testing.T) {
	for _, path := range []string{"a.pdf", "b.DOCX", "c.txt", "d.md", "e.markdown", "f.html", "g.HTM"} {
		if !IsSupported(path) {
			t.Fatalf("expected %s to be supported", path)
		}
	}
	for _, path := range []string{"a.odt", "b.rtf", "c"} {
		if IsSupported(path) {
			t.Fatalf("expected %s to be unsupported", path)
		}
	}
}

func TestOpenText(t *testing.T) {
	path := writeTemp(t, "notes.txt", []byte("first line\nsecond line\n"))

	eng, err := Open(path, WithFontLibrary(testLibrary(t)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer eng.Close()

	meta := eng.Metadata()
	if meta.FileName != "notes.txt" {
		t.Fatalf("unexpected file name %q", meta.FileName)
	}
	if meta.Title != "notes" {
		t.Fatalf("unexpected title %q", meta.Title)
	}
	if meta.Subject != "Plain Text Document" {
		t.Fatalf("unexpected subject %q", meta.Subject)
	}
	if meta.PageCount < 1 {
		t.Fatalf("unexpected page count %d", meta.PageCount)
	}

	text, err := eng.ExtractText(1, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(text, "first line") || !strings.Contains(text, "second line") {
		t.Fatalf("extracted text missing lines: %q", text)
	}

	w, h, err := eng.PageSize(1)
	if err != nil {
		t.Fatalf("page size: %v", err)
	}
	if w != 612 || h != 792 {
		t.Fatalf("unexpected page size %gx%g", w, h)
	}
}

func TestOpenTextCRLFAndSearch(t *testing.T) {
	path := writeTemp(t, "dos.txt", []byte("Alpha\r\nBeta gamma\r\n"))

	eng, err := Open(path, WithFontLibrary(testLibrary(t)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer eng.Close()

	text, err := eng.ExtractText(1, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if strings.Contains(text, "\r") {
		t.Fatalf("carriage returns survived decoding: %q", text)
	}

	results, err := eng.Search("GAMMA", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Page != 1 {
		t.Fatalf("unexpected page %d", results[0].Page)
	}
}

func TestDecodeText(t *testing.T) {
	if got, enc := decodeText([]byte("plain ascii")); got != "plain ascii" || enc != "utf-8" {
		t.Fatalf("utf-8 decode failed: %q %q", got, enc)
	}

	// GBK for U+4E2D U+6587.
	gbk := []byte{0xD6, 0xD0, 0xCE, 0xC4}
	if got, enc := decodeText(gbk); got != "中文" || enc != "gbk" {
		t.Fatalf("gbk decode failed: %q %q", got, enc)
	}

	// 0xFF is not a valid GBK lead byte, so this falls back to Latin-1.
	latin := []byte{0xFF, 0x41}
	got, enc := decodeText(latin)
	if enc != "latin-1" {
		t.Fatalf("expected latin-1 fallback, got %q", enc)
	}
	if got != "ÿA" {
		t.Fatalf("latin-1 decode failed: %q", got)
	}
}

func TestNormalizeStyleName(t *testing.T) {
	cases := map[string]string{
		"Heading1":  "Heading 1",
		"heading 2": "heading 2",
		"Title":     "Title",
		"":          "",
		"h2o":       "h2o", // digit after letter still split once: "h 2o"
	}
	// The h2o case documents actual behavior.
	cases["h2o"] = "h 2o"
	for in, want := range cases {
		if got := normalizeStyleName(in); got != want {
			t.Fatalf("normalizeStyleName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenMarkdown(t *testing.T) {
	src := `# Report Title

Intro paragraph with **inline** emphasis.

**Entirely bold statement.**

- item one
- item two
`
	path := writeTemp(t, "report.md", []byte(src))

	eng, err := Open(path, WithFontLibrary(testLibrary(t)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer eng.Close()

	meta := eng.Metadata()
	if meta.Title != "report" {
		t.Fatalf("unexpected title %q", meta.Title)
	}
	if meta.Subject != "Markdown Document" {
		t.Fatalf("unexpected subject %q", meta.Subject)
	}

	text, err := eng.ExtractText(1, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	for _, want := range []string{"Report Title", "Intro paragraph with inline emphasis.", "Entirely bold statement.", "item one", "item two"} {
		if !strings.Contains(text, want) {
			t.Fatalf("extracted text missing %q: %q", want, text)
		}
	}

	results, err := eng.Search("entirely bold", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestOpenHTML(t *testing.T) {
	src := `<html><head><title>Quarterly Numbers</title><style>p{color:red}</style></head>
<body>
<header><p>chrome text</p></header>
<h1>Summary</h1>
<p>Revenue   grew
steadily.</p>
<p><strong>All bold here.</strong></p>
<script>var x = "ignore me";</script>
<ul><li>first</li><li>second</li></ul>
</body></html>`
	path := writeTemp(t, "q3.html", []byte(src))

	eng, err := Open(path, WithFontLibrary(testLibrary(t)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer eng.Close()

	meta := eng.Metadata()
	if meta.Title != "Quarterly Numbers" {
		t.Fatalf("unexpected title %q", meta.Title)
	}
	if meta.Subject != "HTML Document" {
		t.Fatalf("unexpected subject %q", meta.Subject)
	}

	text, err := eng.ExtractText(1, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	for _, want := range []string{"Summary", "Revenue grew steadily.", "All bold here.", "first", "second"} {
		if !strings.Contains(text, want) {
			t.Fatalf("extracted text missing %q: %q", want, text)
		}
	}
	for _, banned := range []string{"ignore me", "chrome text", "color:red"} {
		if strings.Contains(text, banned) {
			t.Fatalf("extracted text leaked %q: %q", banned, text)
		}
	}
}

func TestHTMLTitleFallsBackToStem(t *testing.T) {
	path := writeTemp(t, "bare.htm", []byte("<p>just a paragraph</p>"))

	eng, err := Open(path, WithFontLibrary(testLibrary(t)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer eng.Close()

	if got := eng.Metadata().Title; got != "bare" {
		t.Fatalf("unexpected title %q", got)
	}
}

func TestHeadingLevel(t *testing.T) {
	cases := map[string]int{"h1": 1, "h3": 3, "h6": 6, "h7": 0, "hr": 0, "p": 0, "h": 0}
	for tag, want := range cases {
		if got := headingLevel(tag); got != want {
			t.Fatalf("headingLevel(%q) = %d, want %d", tag, got, want)
		}
	}
}

func TestHeadingStyleNameClampsDeepLevels(t *testing.T) {
	cases := map[int]string{1: "heading 1", 2: "heading 2", 3: "heading 3", 4: "heading 3", 6: "heading 3"}
	for level, want := range cases {
		if got := headingStyleName(level); got != want {
			t.Fatalf("headingStyleName(%d) = %q, want %q", level, got, want)
		}
	}

	// A deep heading still lands on a heading style, not the body default.
	style := flow.DefaultStyles().Resolve(headingStyleName(5), false)
	if style.Size != 14 || !style.Bold {
		t.Fatalf("h5 resolved to %+v, want the level-3 heading style", style)
	}
}
