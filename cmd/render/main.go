// Command render opens a document, prints its metadata and writes page
// rasterizations to disk. It exercises the same engine dispatch the
// viewing session uses, so it doubles as a quick smoke test for any
// supported format.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/deepread/docview/document"
	"github.com/deepread/docview/formats"
	"github.com/deepread/docview/geom"
	"github.com/deepread/docview/observability"
)

type options struct {
	docPath string
	outDir  string
	page    int
	zoom    float64
	text    bool
	search  string
	verbose bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "render: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "render: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: render [flags] <document>\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&opts.outDir, "out", "render_output", "Directory for rendered pages")
	flag.IntVar(&opts.page, "page", 0, "Render a single page (0 renders all)")
	flag.Float64Var(&opts.zoom, "zoom", 1.0, "Zoom factor for rendering")
	flag.BoolVar(&opts.text, "text", false, "Print extracted page text instead of rendering")
	flag.StringVar(&opts.search, "search", "", "Search the document and print hit rectangles")
	flag.BoolVar(&opts.verbose, "v", false, "Enable debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing document path")
	}
	opts.docPath = flag.Arg(0)
	return opts, nil
}

func run(opts options) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := observability.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	eng, err := formats.Open(opts.docPath, formats.WithLogger(log))
	if err != nil {
		return err
	}
	defer eng.Close()

	meta := eng.Metadata()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return err
	}

	if opts.search != "" {
		return printSearch(eng, opts.search)
	}
	if opts.text {
		return printText(eng, meta.PageCount, opts.page)
	}
	return renderPages(eng, meta.PageCount, opts)
}

func printSearch(eng document.Engine, query string) error {
	results, err := eng.Search(query, 0)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("page %d: (%.1f, %.1f) - (%.1f, %.1f)\n",
			r.Page, r.Rect.X1, r.Rect.Y1, r.Rect.X2, r.Rect.Y2)
	}
	fmt.Printf("%d match(es) for %q\n", len(results), query)
	return nil
}

func printText(eng textExtractor, pageCount, page int) error {
	first, last := pageRange(pageCount, page)
	for p := first; p <= last; p++ {
		text, err := eng.ExtractText(p, nil)
		if err != nil {
			return err
		}
		fmt.Printf("--- page %d ---\n%s\n", p, text)
	}
	return nil
}

type textExtractor interface {
	ExtractText(pageNum int, clip *geom.Rect) (string, error)
}

func renderPages(eng pageRenderer, pageCount int, opts options) error {
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return err
	}
	base := filepath.Base(opts.docPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	first, last := pageRange(pageCount, opts.page)
	for p := first; p <= last; p++ {
		data, err := eng.RenderPage(p, opts.zoom)
		if err != nil {
			return err
		}
		out := filepath.Join(opts.outDir, fmt.Sprintf("%s_page%d.png", stem, p))
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
	}
	return nil
}

type pageRenderer interface {
	RenderPage(pageNum int, zoom float64) ([]byte, error)
}

func pageRange(pageCount, page int) (int, int) {
	if page > 0 {
		return page, page
	}
	return 1, pageCount
}
