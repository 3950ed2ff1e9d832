package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/deepread/docview/document"
	"github.com/deepread/docview/observability"
)

// JobState is the lifecycle state of a whole-document annotation job.
type JobState string

const (
	JobIdle      JobState = "idle"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobCanceled  JobState = "canceled"
	JobFailed    JobState = "failed"
)

// JobStage is the coarse phase the document job is in. Loading the
// recognition model can dominate a cold start, so it gets its own stage.
type JobStage string

const (
	StageIdle         JobStage = "idle"
	StageLoadingModel JobStage = "loading_model"
	StageOCRPages     JobStage = "ocr_pages"
	StageCompleted    JobStage = "completed"
	StageError        JobStage = "error"
)

// Progress is a point-in-time snapshot of the document job. Lines counts
// every annotation cached so far, across both the job and synchronous
// single-page calls.
type Progress struct {
	State JobState
	Stage JobStage
	Done  int
	Total int
	Lines int
	Err   error
}

// Percent reports completion in [0, 100].
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return 100 * float64(p.Done) / float64(p.Total)
}

// Orchestrator coordinates page annotation for one document at a time.
// Single pages run synchronously through OCRPage; StartDocumentJob
// annotates every page in the background. Completed pages land in a
// cache shared by both paths, so a page is never recognized twice.
//
// Cancellation uses a generation counter: switching documents, Cancel and
// Close bump it, and the background worker observes the bump at the next
// page boundary. A page already being recognized runs to completion.
type Orchestrator struct {
	pipeline *Pipeline
	log      observability.Logger

	generation atomic.Int64

	mu        sync.Mutex // guards document identity, init and job state
	docPath   string
	pageCount int
	initDone  bool
	initErr   error
	running   bool
	jobGen    int64 // generation the running job was started for
	progress  Progress

	cacheMu sync.Mutex
	cache   map[int][]Annotation
}

// NewOrchestrator builds an orchestrator around the given pipeline.
func NewOrchestrator(pipeline *Pipeline, log observability.Logger) *Orchestrator {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Orchestrator{
		pipeline: pipeline,
		log:      log,
		cache:    make(map[int][]Annotation),
	}
}

// SetDocument points the orchestrator at a document. Any in-flight job is
// canceled at its next page boundary and the annotation cache is cleared.
func (o *Orchestrator) SetDocument(path string) error {
	count, err := o.pipeline.PageCount(path)
	if err != nil {
		return fmt.Errorf("inspect document: %w", err)
	}

	o.generation.Add(1)
	o.cacheMu.Lock()
	o.cache = make(map[int][]Annotation)
	o.cacheMu.Unlock()

	o.mu.Lock()
	o.docPath = path
	o.pageCount = count
	o.running = false
	o.progress = Progress{State: JobIdle, Stage: StageIdle, Total: count}
	o.mu.Unlock()
	return nil
}

// PageCount reports the current document's page count.
func (o *Orchestrator) PageCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pageCount
}

// ensureInitialized probes the OCR provider once per orchestrator. The
// probe is deferred to first use so constructing an orchestrator stays
// cheap on systems without an OCR stack. When the probe reports missing
// model data and the engine can repair its local installation, the
// repair and a second probe run exactly once before the error sticks.
func (o *Orchestrator) ensureInitialized(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.initDone {
		return o.initErr
	}
	o.initErr = o.pipeline.engine.Available(ctx)
	if errors.Is(o.initErr, ErrModelUnavailable) {
		if h, ok := o.pipeline.engine.(Healer); ok {
			o.log.Warn("ocr model unavailable, repairing model data",
				observability.String("engine", o.pipeline.engine.Name()),
				observability.Error("error", o.initErr))
			if herr := h.Heal(ctx); herr != nil {
				o.log.Warn("model repair failed", observability.Error("error", herr))
			} else {
				o.initErr = o.pipeline.engine.Available(ctx)
			}
		}
	}
	o.initDone = true
	if o.initErr != nil {
		o.log.Warn("ocr engine unavailable",
			observability.String("engine", o.pipeline.engine.Name()),
			observability.Error("error", o.initErr))
	}
	return o.initErr
}

// OCRPage annotates one page synchronously. Cached results return
// immediately; a fresh result is cached for later calls and for the
// background job.
func (o *Orchestrator) OCRPage(ctx context.Context, page int) ([]Annotation, error) {
	o.mu.Lock()
	docPath, count := o.docPath, o.pageCount
	o.mu.Unlock()
	if docPath == "" {
		return nil, errors.New("no document set")
	}
	if err := document.CheckPage(page, count); err != nil {
		return nil, err
	}

	if anns, ok := o.cached(page); ok {
		return anns, nil
	}
	if err := o.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	gen := o.generation.Load()
	anns, err := o.processPage(ctx, docPath, page)
	if err != nil {
		return nil, err
	}
	o.store(gen, page, anns)
	return anns, nil
}

// StartDocumentJob launches background annotation of every page. It
// reports false when a job is already running. When every page is cached
// the job completes immediately without a worker.
func (o *Orchestrator) StartDocumentJob(ctx context.Context) (bool, error) {
	o.mu.Lock()
	docPath, count := o.docPath, o.pageCount
	if docPath == "" {
		o.mu.Unlock()
		return false, errors.New("no document set")
	}
	if o.running {
		o.mu.Unlock()
		return false, nil
	}
	if o.cachedCount() == count {
		o.progress = Progress{State: JobCompleted, Stage: StageCompleted, Done: count, Total: count, Lines: o.cachedLines()}
		o.mu.Unlock()
		return true, nil
	}
	gen := o.generation.Load()
	o.running = true
	o.jobGen = gen
	o.progress = Progress{State: JobRunning, Stage: StageLoadingModel, Done: o.cachedCount(), Total: count, Lines: o.cachedLines()}
	o.mu.Unlock()

	if err := o.ensureInitialized(ctx); err != nil {
		o.finish(gen, Progress{State: JobFailed, Stage: StageError, Total: count, Err: err})
		return false, err
	}

	go o.runJob(gen, docPath, count)
	return true, nil
}

func (o *Orchestrator) runJob(gen int64, docPath string, count int) {
	ctx := context.Background()
	done := 0
	for page := 1; page <= count; page++ {
		if o.generation.Load() != gen {
			o.finish(gen, Progress{State: JobCanceled, Stage: StageIdle, Done: done, Total: count, Lines: o.cachedLines()})
			o.log.Info("document job canceled",
				observability.Int("done", done),
				observability.Int("total", count))
			return
		}
		if _, ok := o.cached(page); ok {
			done++
			o.setProgress(gen, Progress{State: JobRunning, Stage: StageOCRPages, Done: done, Total: count, Lines: o.cachedLines()})
			continue
		}
		anns, err := o.processPage(ctx, docPath, page)
		if err != nil {
			o.finish(gen, Progress{State: JobFailed, Stage: StageError, Done: done, Total: count, Lines: o.cachedLines(), Err: err})
			o.log.Warn("document job failed",
				observability.Int("page", page),
				observability.Error("error", err))
			return
		}
		o.store(gen, page, anns)
		done++
		o.setProgress(gen, Progress{State: JobRunning, Stage: StageOCRPages, Done: done, Total: count, Lines: o.cachedLines()})
	}
	o.finish(gen, Progress{State: JobCompleted, Stage: StageCompleted, Done: done, Total: count, Lines: o.cachedLines()})
}

// Cancel requests cancellation of the background job. The worker stops at
// its next page boundary.
func (o *Orchestrator) Cancel() {
	o.generation.Add(1)
}

// Progress returns a snapshot of the document job.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

// Close cancels any running job and drops the cache. The orchestrator can
// be reused by calling SetDocument again.
func (o *Orchestrator) Close() error {
	o.generation.Add(1)
	o.cacheMu.Lock()
	o.cache = make(map[int][]Annotation)
	o.cacheMu.Unlock()
	o.mu.Lock()
	o.docPath = ""
	o.pageCount = 0
	o.running = false
	o.progress = Progress{State: JobIdle, Stage: StageIdle}
	o.mu.Unlock()
	return nil
}

// processPage runs the pipeline for one page, retrying once after purging
// the page's rendered image. A stale or truncated image in the work dir
// can poison recognition and normalization; removing it forces a clean
// render on the retry.
func (o *Orchestrator) processPage(ctx context.Context, docPath string, page int) ([]Annotation, error) {
	anns, err := o.pipeline.ProcessPage(ctx, docPath, page)
	if err == nil || !errors.Is(err, ErrPipelineFailure) {
		return anns, err
	}
	img := filepath.Join(o.pipeline.WorkDir(), pageImageName(docPath, page, o.pipeline.DPI()))
	os.Remove(img)
	o.log.Warn("retrying page after pipeline failure",
		observability.Int("page", page),
		observability.Error("error", err))
	return o.pipeline.ProcessPage(ctx, docPath, page)
}

// cached and store copy in both directions so callers can never mutate
// annotations already in the cache through a returned slice.
func (o *Orchestrator) cached(page int) ([]Annotation, bool) {
	o.cacheMu.Lock()
	defer o.cacheMu.Unlock()
	anns, ok := o.cache[page]
	if !ok {
		return nil, false
	}
	return append([]Annotation(nil), anns...), true
}

// store writes anns for page only while gen is still the live generation.
// The check runs under cacheMu; SetDocument and Close bump the generation
// before clearing the cache under the same lock, so a writer holding a
// stale generation either fails the check or has its entry wiped by the
// clear that follows the bump. Stale results are discarded, never merged.
func (o *Orchestrator) store(gen int64, page int, anns []Annotation) {
	o.cacheMu.Lock()
	defer o.cacheMu.Unlock()
	if o.generation.Load() != gen {
		return
	}
	o.cache[page] = append([]Annotation(nil), anns...)
}

// cachedCount must be called with o.mu held only when pairing it with job
// state transitions; the cache has its own lock.
func (o *Orchestrator) cachedCount() int {
	o.cacheMu.Lock()
	defer o.cacheMu.Unlock()
	return len(o.cache)
}

func (o *Orchestrator) cachedLines() int {
	o.cacheMu.Lock()
	defer o.cacheMu.Unlock()
	n := 0
	for _, anns := range o.cache {
		n += len(anns)
	}
	return n
}

// setProgress publishes p on behalf of the job started for gen. Once the
// document changes underneath a job (SetDocument or Close clears running,
// a newer job overwrites jobGen) the stale worker's writes are dropped.
func (o *Orchestrator) setProgress(gen int64, p Progress) {
	o.mu.Lock()
	if o.running && o.jobGen == gen {
		o.progress = p
	}
	o.mu.Unlock()
}

func (o *Orchestrator) finish(gen int64, p Progress) {
	o.mu.Lock()
	if o.running && o.jobGen == gen {
		o.running = false
		o.progress = p
	}
	o.mu.Unlock()
}
