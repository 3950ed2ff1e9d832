// Command ocrun runs the OCR annotation pipeline over a PDF and prints
// the recognized lines with their page-point geometry, either for one
// page on demand or for the whole document as a background job with
// progress reporting.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/deepread/docview/observability"
	"github.com/deepread/docview/ocr"
	"github.com/deepread/docview/ocr/tesseract"
)

type options struct {
	docPath string
	page    int
	dpi     int
	langs   string
	workDir string
	asJSON  bool
	verbose bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ocrun: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "ocrun: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: ocrun [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	flag.IntVar(&opts.page, "page", 0, "Annotate a single page (0 runs the whole document)")
	flag.IntVar(&opts.dpi, "dpi", ocr.DefaultDPI, "Render resolution for recognition")
	flag.StringVar(&opts.langs, "langs", "eng", "Comma-separated language hints")
	flag.StringVar(&opts.workDir, "workdir", "", "Directory for rendered page images (default temp)")
	flag.BoolVar(&opts.asJSON, "json", false, "Emit annotations as JSON")
	flag.BoolVar(&opts.verbose, "v", false, "Enable debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing pdf path")
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

	pipeOpts := []ocr.PipelineOption{
		ocr.WithDPI(opts.dpi),
		ocr.WithLanguages(strings.Split(opts.langs, ",")...),
		ocr.WithPipelineLogger(log),
	}
	if opts.workDir != "" {
		pipeOpts = append(pipeOpts, ocr.WithWorkDir(opts.workDir))
	}
	pipeline := ocr.NewPipeline(tesseract.New(), pipeOpts...)
	orch := ocr.NewOrchestrator(pipeline, log)
	defer orch.Close()

	if err := orch.SetDocument(opts.docPath); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if opts.page > 0 {
		anns, err := orch.OCRPage(ctx, opts.page)
		if err != nil {
			return err
		}
		return printAnnotations(opts, opts.page, anns)
	}
	return runDocumentJob(ctx, orch, opts)
}

func runDocumentJob(ctx context.Context, orch *ocr.Orchestrator, opts options) error {
	started, err := orch.StartDocumentJob(ctx)
	if err != nil {
		return err
	}
	if !started {
		return fmt.Errorf("job already running")
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	canceling := false
	for {
		select {
		case <-ctx.Done():
			if !canceling {
				canceling = true
				orch.Cancel()
				fmt.Fprintln(os.Stderr, "canceling...")
			}
			<-ticker.C
		case <-ticker.C:
		}

		p := orch.Progress()
		switch p.State {
		case ocr.JobCompleted:
			fmt.Fprintf(os.Stderr, "done: %d/%d pages\n", p.Done, p.Total)
			return printAllPages(ctx, orch, opts, p.Total)
		case ocr.JobCanceled:
			fmt.Fprintf(os.Stderr, "canceled after %d/%d pages\n", p.Done, p.Total)
			return nil
		case ocr.JobFailed:
			return p.Err
		default:
			fmt.Fprintf(os.Stderr, "progress: %s %.0f%% (%d lines)\n", p.Stage, p.Percent(), p.Lines)
		}
	}
}

func printAllPages(ctx context.Context, orch *ocr.Orchestrator, opts options, total int) error {
	for page := 1; page <= total; page++ {
		anns, err := orch.OCRPage(ctx, page)
		if err != nil {
			return err
		}
		if err := printAnnotations(opts, page, anns); err != nil {
			return err
		}
	}
	return nil
}

func printAnnotations(opts options, page int, anns []ocr.Annotation) error {
	if opts.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Page        int              `json:"page"`
			Annotations []ocr.Annotation `json:"annotations"`
		}{Page: page, Annotations: anns})
	}
	fmt.Printf("--- page %d (%d lines) ---\n", page, len(anns))
	for _, a := range anns {
		fmt.Printf("[%.2f] (%.1f, %.1f) %.1fx%.1f  %s\n",
			a.Confidence, a.X, a.Y, a.Width, a.Height, a.Text)
	}
	return nil
}
