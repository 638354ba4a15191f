// ABOUTME: Scriptable in-memory Invoker used by tests across packages
// ABOUTME: Records calls and the peak number of concurrent invocations

package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FakeHandler produces the outcome of a faked invocation.
type FakeHandler func(ctx context.Context, inv Invocation) (*Result, error)

// FakeInvoker is an Invoker whose responses are scripted per subcommand.
type FakeInvoker struct {
	mu          sync.Mutex
	handlers    map[string]FakeHandler
	fallback    FakeHandler
	calls       []Invocation
	inFlight    int
	maxInFlight int
	starter     func(Invocation) (Handle, error)
	starts      []Invocation
}

// NewFakeInvoker creates a FakeInvoker. Unscripted subcommands exit 0 with no output.
func NewFakeInvoker() *FakeInvoker {
	return &FakeInvoker{
		handlers: make(map[string]FakeHandler),
		fallback: func(context.Context, Invocation) (*Result, error) { return &Result{}, nil },
	}
}

// Handle scripts the handler for a subcommand ("c", "validate", "--version", ...).
func (f *FakeInvoker) Handle(subcommand string, h FakeHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[subcommand] = h
}

// Respond scripts a fixed result for a subcommand.
func (f *FakeInvoker) Respond(subcommand string, result Result) {
	f.Handle(subcommand, func(context.Context, Invocation) (*Result, error) {
		r := result
		return &r, nil
	})
}

// Fail scripts an invocation error for a subcommand.
func (f *FakeInvoker) Fail(subcommand string, err error) {
	f.Handle(subcommand, func(_ context.Context, inv Invocation) (*Result, error) {
		return nil, newError(err, inv.Args, nil)
	})
}

// Run implements Invoker.
func (f *FakeInvoker) Run(ctx context.Context, inv Invocation) (*Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cloneInvocation(inv))
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	h, ok := f.handlers[inv.Subcommand()]
	if !ok {
		h = f.fallback
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	return h(ctx, inv)
}

// Calls returns a copy of every invocation received so far.
func (f *FakeInvoker) Calls() []Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Invocation, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of invocations of subcommand.
func (f *FakeInvoker) CallCount(subcommand string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Subcommand() == subcommand {
			n++
		}
	}
	return n
}

// MaxConcurrent returns the peak number of simultaneous Run calls.
func (f *FakeInvoker) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

// HandleStart scripts the result of Start.
func (f *FakeInvoker) HandleStart(fn func(Invocation) (Handle, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starter = fn
}

// Start implements Starter. Unscripted starts return a running FakeProcess.
func (f *FakeInvoker) Start(inv Invocation) (Handle, error) {
	f.mu.Lock()
	f.starts = append(f.starts, cloneInvocation(inv))
	fn := f.starter
	pid := 1000 + len(f.starts)
	f.mu.Unlock()

	if fn == nil {
		return NewFakeProcess(pid), nil
	}
	return fn(inv)
}

// Starts returns a copy of every Start invocation.
func (f *FakeInvoker) Starts() []Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Invocation, len(f.starts))
	copy(out, f.starts)
	return out
}

func cloneInvocation(inv Invocation) Invocation {
	args := make([]string, len(inv.Args))
	copy(args, inv.Args)
	inv.Args = args
	return inv
}

// CompileFunc renders a compile input into the output body, or fails.
type CompileFunc func(source string) (output string, err error)

// CompileHandler emulates `c <input> -o <dir> -r <format>`: it reads the input
// file, waits delay(source) while honouring ctx, and writes render's output to
// <dir>/<input base>.<format>. A render error becomes exit code 1 with the
// error text on stderr.
func CompileHandler(render CompileFunc, delay func(source string) time.Duration) FakeHandler {
	return func(ctx context.Context, inv Invocation) (*Result, error) {
		if len(inv.Args) < 2 {
			return &Result{ExitCode: 2, Stderr: "Error: missing input file"}, nil
		}
		data, err := os.ReadFile(inv.Args[1])
		if err != nil {
			return &Result{ExitCode: 2, Stderr: fmt.Sprintf("Error: %v", err)}, nil
		}
		source := string(data)

		if delay != nil {
			if d := delay(source); d > 0 {
				select {
				case <-time.After(d):
				case <-ctx.Done():
					return nil, newError(ErrTimeout, inv.Args, ctx.Err())
				}
			}
		}

		out, err := render(source)
		if err != nil {
			return &Result{ExitCode: 1, Stderr: err.Error()}, nil
		}

		outDir := inv.Flag("-o")
		format := inv.Flag("-r")
		if outDir == "" || format == "" {
			return &Result{ExitCode: 2, Stderr: "Error: missing -o or -r"}, nil
		}
		base := strings.TrimSuffix(filepath.Base(inv.Args[1]), filepath.Ext(inv.Args[1]))
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, newError(ErrExecution, inv.Args, err)
		}
		if err := os.WriteFile(filepath.Join(outDir, base+"."+format), []byte(out), 0o644); err != nil {
			return nil, newError(ErrExecution, inv.Args, err)
		}
		return &Result{Stdout: "Compiled " + base}, nil
	}
}

// FakeProcess is an in-memory Handle. It runs until Exit or Stop.
type FakeProcess struct {
	pid     int
	mu      sync.Mutex
	done    chan struct{}
	err     error
	stdout  string
	stderr  string
	stopped int
}

// NewFakeProcess returns a running fake process.
func NewFakeProcess(pid int) *FakeProcess {
	return &FakeProcess{pid: pid, done: make(chan struct{})}
}

// Exit ends the process with err and the given stderr. Later calls are no-ops.
func (p *FakeProcess) Exit(err error, stderr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.done:
		return
	default:
	}
	p.err = err
	p.stderr = stderr
	close(p.done)
}

func (p *FakeProcess) Pid() int              { return p.pid }
func (p *FakeProcess) Done() <-chan struct{} { return p.done }

func (p *FakeProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *FakeProcess) Err() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *FakeProcess) Stdout() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stdout
}

func (p *FakeProcess) Stderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stderr
}

// Stop ends the process and counts the call.
func (p *FakeProcess) Stop(time.Duration) error {
	p.mu.Lock()
	p.stopped++
	p.mu.Unlock()
	p.Exit(errors.New("signal: terminated"), p.Stderr())
	return nil
}

// StopCount returns how many times Stop was called.
func (p *FakeProcess) StopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}
