// ABOUTME: Batch conversion engine with a bounded admission gate
// ABOUTME: Converts many documents in parallel or sequence and aggregates ordered results

package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/2389/quarkdown-mcp/internal/quarkdown"
)

// Worker limits.
const (
	DefaultMaxWorkers = 4
	MinWorkers        = 1
	MaxWorkers        = 16
)

// Request validation errors. They surface as Outcome.Err.
var (
	ErrDuplicateOutput   = errors.New("duplicate output name")
	ErrInvalidOutputName = errors.New("invalid output name")
	ErrInvalidDocument   = errors.New("invalid document")
)

// Converter compiles one document. *quarkdown.Compiler satisfies it.
type Converter interface {
	Compile(ctx context.Context, req quarkdown.CompileRequest) *quarkdown.CompileResult
}

// Document is one conversion input. Names need only be unique within a batch.
type Document struct {
	Name       string `json:"name"`
	Content    string `json:"content"`
	OutputName string `json:"output_name,omitempty"`
}

// Request describes a batch conversion.
type Request struct {
	Documents       []Document
	Format          string
	Variables       map[string]string
	OutputDir       string // created when missing; empty for a fresh temp dir
	Parallel        bool
	MaxWorkers      int // clamped to [MinWorkers, MaxWorkers]; zero means DefaultMaxWorkers
	ContinueOnError bool
	GenerateIndex   bool
	Options         quarkdown.CompileOptions
}

// Result is the outcome for one document. It is created once and never updated.
type Result struct {
	Name       string        `json:"name"`
	Success    bool          `json:"success"`
	OutputFile string        `json:"output_file,omitempty"`
	Size       int64         `json:"size"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Outcome aggregates a batch. Results are in submission order and contain one
// entry per attempted document; documents skipped by fail-fast are absent.
type Outcome struct {
	ID         string
	Format     string
	OutputDir  string
	Results    []Result
	Submitted  int
	Parallel   bool
	MaxWorkers int
	IndexFile  string
	StartedAt  time.Time
	Elapsed    time.Duration
	Err        error // setup failure covering the whole batch
}

// Total returns the number of results.
func (o *Outcome) Total() int { return len(o.Results) }

// Successful returns the successful results in submission order.
func (o *Outcome) Successful() []Result { return o.filter(true) }

// Failed returns the failed results in submission order.
func (o *Outcome) Failed() []Result { return o.filter(false) }

// SuccessCount returns the number of successful results.
func (o *Outcome) SuccessCount() int { return len(o.Successful()) }

// FailedCount returns the number of failed results.
func (o *Outcome) FailedCount() int { return len(o.Failed()) }

// Skipped returns how many submitted documents were never attempted.
func (o *Outcome) Skipped() int { return o.Submitted - len(o.Results) }

func (o *Outcome) filter(success bool) []Result {
	var out []Result
	for _, r := range o.Results {
		if r.Success == success {
			out = append(out, r)
		}
	}
	return out
}

// Engine runs batch conversions. It is safe for concurrent use.
type Engine struct {
	converter Converter
	tempRoot  string
	observer  Observer
	now       func() time.Time
	logger    *slog.Logger
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	Converter Converter
	TempRoot  string   // parent of default output dirs; os.TempDir() when empty
	Observer  Observer // optional progress callback
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Converter == nil {
		return nil, fmt.Errorf("converter is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		converter: cfg.Converter,
		tempRoot:  cfg.TempRoot,
		observer:  cfg.Observer,
		now:       now,
		logger:    logger.With("component", "batch"),
	}, nil
}

// ClampWorkers bounds n to the supported worker range.
func ClampWorkers(n int) int {
	switch {
	case n == 0:
		return DefaultMaxWorkers
	case n < MinWorkers:
		return MinWorkers
	case n > MaxWorkers:
		return MaxWorkers
	}
	return n
}

// Convert runs req and returns its outcome. It never panics and never
// returns a nil Outcome.
func (e *Engine) Convert(ctx context.Context, req Request) *Outcome {
	out := &Outcome{
		ID:         uuid.New().String(),
		Submitted:  len(req.Documents),
		MaxWorkers: ClampWorkers(req.MaxWorkers),
		StartedAt:  e.now(),
	}
	out.Parallel = req.Parallel && len(req.Documents) > 1
	logger := e.logger.With("batch_id", out.ID)

	format, err := quarkdown.NormalizeFormat(req.Format)
	if err != nil {
		out.Err = err
		return out
	}
	out.Format = format

	names, err := outputNames(req.Documents, format, req.GenerateIndex)
	if err != nil {
		out.Err = err
		return out
	}

	dir, err := e.resolveOutputDir(req.OutputDir)
	if err != nil {
		out.Err = err
		return out
	}
	out.OutputDir = dir

	e.emit(Event{Kind: EventBatchStarted, BatchID: out.ID, Total: len(req.Documents)})
	logger.Info("batch started", "documents", len(req.Documents), "format", format,
		"parallel", out.Parallel, "max_workers", out.MaxWorkers)

	job := &job{
		engine:    e,
		id:        out.ID,
		req:       req,
		format:    format,
		dir:       dir,
		names:     names,
		variables: sortedVariables(req.Variables),
	}
	if out.Parallel {
		out.Results = job.runParallel(ctx, out.MaxWorkers)
	} else {
		out.Results = job.runSequential(ctx)
	}
	out.Elapsed = e.now().Sub(out.StartedAt)

	if req.GenerateIndex && len(out.Successful()) > 0 {
		index, err := writeIndex(dir, format, out.Successful(), e.now())
		if err != nil {
			logger.Warn("failed to write index", "error", err)
		} else {
			out.IndexFile = index
		}
	}

	e.emit(Event{Kind: EventBatchFinished, BatchID: out.ID, Total: out.Total(),
		Succeeded: out.SuccessCount(), Failed: out.FailedCount()})
	logger.Info("batch finished", "succeeded", out.SuccessCount(), "failed", out.FailedCount(),
		"skipped", out.Skipped(), "elapsed", out.Elapsed)
	return out
}

func (e *Engine) resolveOutputDir(dir string) (string, error) {
	if dir == "" {
		if e.tempRoot != "" {
			if err := os.MkdirAll(e.tempRoot, 0o755); err != nil {
				return "", fmt.Errorf("creating output root: %w", err)
			}
		}
		created, err := os.MkdirTemp(e.tempRoot, "quarkdown_batch_")
		if err != nil {
			return "", fmt.Errorf("creating output directory: %w", err)
		}
		return created, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	return dir, nil
}

func (e *Engine) emit(ev Event) {
	if e.observer == nil {
		return
	}
	ev.Time = e.now()
	e.observer(ev)
}

// outputNames returns the effective output file name for every document and
// rejects names that are empty, escape the output directory or collide.
func outputNames(docs []Document, format string, withIndex bool) ([]string, error) {
	names := make([]string, len(docs))
	seen := make(map[string]int, len(docs))
	if withIndex {
		seen[indexName(format)] = -1
	}
	for i, doc := range docs {
		if strings.TrimSpace(doc.Name) == "" {
			return nil, fmt.Errorf("%w: document %d has no name", ErrInvalidDocument, i+1)
		}
		name := doc.OutputName
		if name == "" {
			name = doc.Name + "." + format
		}
		if !filepath.IsLocal(name) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidOutputName, name)
		}
		name = filepath.Clean(name)
		if prev, dup := seen[name]; dup {
			if prev < 0 {
				return nil, fmt.Errorf("%w: %q is reserved for the index", ErrDuplicateOutput, name)
			}
			return nil, fmt.Errorf("%w: %q used by documents %d and %d", ErrDuplicateOutput, name, prev+1, i+1)
		}
		seen[name] = i
		names[i] = name
	}
	return names, nil
}

type variable struct{ placeholder, value string }

func sortedVariables(vars map[string]string) []variable {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]variable, len(keys))
	for i, k := range keys {
		out[i] = variable{placeholder: "${" + k + "}", value: vars[k]}
	}
	return out
}

// Substitute replaces each literal ${key} with its value. Values are not
// escaped and replacements are not expanded again.
func Substitute(content string, vars map[string]string) string {
	return substitute(content, sortedVariables(vars))
}

func substitute(content string, vars []variable) string {
	if len(vars) == 0 {
		return content
	}
	pairs := make([]string, 0, 2*len(vars))
	for _, v := range vars {
		pairs = append(pairs, v.placeholder, v.value)
	}
	return strings.NewReplacer(pairs...).Replace(content)
}

// job is the state of one Convert call.
type job struct {
	engine    *Engine
	id        string
	req       Request
	format    string
	dir       string
	names     []string
	variables []variable
}

// runSequential converts in input order and stops at the first failure
// unless ContinueOnError is set.
func (j *job) runSequential(ctx context.Context) []Result {
	results := make([]Result, 0, len(j.req.Documents))
	for i := range j.req.Documents {
		if err := ctx.Err(); err != nil {
			if !j.req.ContinueOnError {
				break
			}
			results = append(results, j.notStarted(i, err))
			continue
		}
		r := j.convert(ctx, i)
		results = append(results, r)
		if !r.Success && !j.req.ContinueOnError {
			j.engine.logger.Info("stopping batch after failure", "batch_id", j.id, "document", r.Name)
			break
		}
	}
	return results
}

// runParallel admits documents through a weighted semaphore in submission
// order. Each slot of the result slice is written by exactly one goroutine.
// In fail-fast mode the first failure stops admission; in-flight work
// completes and never-admitted documents are left out.
func (j *job) runParallel(ctx context.Context, workers int) []Result {
	docs := j.req.Documents
	slots := make([]*Result, len(docs))
	sem := semaphore.NewWeighted(int64(workers))
	var stop atomic.Bool
	var wg sync.WaitGroup

	for i := range docs {
		if stop.Load() {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			if !j.req.ContinueOnError {
				break
			}
			r := j.notStarted(i, err)
			slots[i] = &r
			continue
		}
		if stop.Load() {
			sem.Release(1)
			break
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			r := j.convert(ctx, i)
			if !r.Success && !j.req.ContinueOnError {
				stop.Store(true)
			}
			slots[i] = &r
		}(i)
	}
	wg.Wait()

	results := make([]Result, 0, len(docs))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results
}

func (j *job) notStarted(i int, err error) Result {
	r := Result{Name: j.req.Documents[i].Name, Error: fmt.Sprintf("not started: %v", err)}
	j.engine.emit(Event{Kind: EventDocumentFinished, BatchID: j.id, Index: i, Name: r.Name, Result: &r})
	return r
}

// convert runs one document. Panics become failed results.
func (j *job) convert(ctx context.Context, i int) (r Result) {
	doc := j.req.Documents[i]
	start := j.engine.now()
	j.engine.emit(Event{Kind: EventDocumentStarted, BatchID: j.id, Index: i, Name: doc.Name})

	defer func() {
		if p := recover(); p != nil {
			j.engine.logger.Error("document conversion panicked", "batch_id", j.id, "document", doc.Name, "panic", p)
			r = Result{Name: doc.Name, Error: fmt.Sprintf("internal error: %v", p)}
		}
		r.Duration = j.engine.now().Sub(start)
		j.engine.emit(Event{Kind: EventDocumentFinished, BatchID: j.id, Index: i, Name: doc.Name, Result: &r})
	}()

	res := j.engine.converter.Compile(ctx, quarkdown.CompileRequest{
		Content: substitute(doc.Content, j.variables),
		Format:  j.format,
		Options: j.req.Options,
	})
	if res == nil {
		return Result{Name: doc.Name, Error: "compiler returned no result"}
	}
	if !res.Success {
		msg := strings.Join(res.Errors, "; ")
		if msg == "" {
			msg = "compilation failed"
		}
		return Result{Name: doc.Name, Error: msg}
	}

	path := filepath.Join(j.dir, j.names[i])
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Result{Name: doc.Name, Error: fmt.Sprintf("creating output directory: %v", err)}
	}
	if err := os.WriteFile(path, res.Content, 0o644); err != nil {
		return Result{Name: doc.Name, Error: fmt.Sprintf("writing output: %v", err)}
	}
	return Result{Name: doc.Name, Success: true, OutputFile: path, Size: int64(len(res.Content))}
}
