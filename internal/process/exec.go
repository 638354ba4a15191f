// ABOUTME: os/exec backed Invoker with per-call timeout and process-group cleanup
// ABOUTME: Also starts long-lived compiler processes for preview servers

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/2389/quarkdown-mcp/internal/config"
)

// waitDelay bounds how long Wait blocks on inherited pipes after a kill.
const waitDelay = 2 * time.Second

// ExecInvoker runs the compiler described by config.Settings.
type ExecInvoker struct {
	settings config.Settings
	logger   *slog.Logger
}

// NewExecInvoker creates an invoker. Pass nil logger for default.
func NewExecInvoker(settings config.Settings, logger *slog.Logger) *ExecInvoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecInvoker{
		settings: settings,
		logger:   logger.With("component", "process"),
	}
}

// Settings returns the settings the invoker was built with.
func (e *ExecInvoker) Settings() config.Settings { return e.settings }

// Run executes inv and waits for it. The whole call, including output
// collection, is bounded by the configured timeout; on expiry the child's
// process group is killed before ErrTimeout is returned.
func (e *ExecInvoker) Run(ctx context.Context, inv Invocation) (*Result, error) {
	enc, err := codec(e.settings.Encoding())
	if err != nil {
		return nil, newError(ErrExecution, inv.Args, err)
	}

	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = e.settings.Timeout()
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name, argv := e.settings.Command(inv.Args...)
	cmd := exec.CommandContext(runCtx, name, argv...)
	cmd.Dir = inv.Dir
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	if inv.Stdin != nil {
		data, err := encodeString(enc, *inv.Stdin)
		if err != nil {
			return nil, newError(ErrExecution, inv.Args, err)
		}
		cmd.Stdin = bytes.NewReader(data)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("invoking compiler", "program", name, "args", inv.Args, "timeout", timeout)
	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		if isNotFound(runErr) {
			e.logger.Warn("compiler executable not found", "program", name, "error", runErr)
			return nil, newError(ErrExecutableNotFound, inv.Args, runErr)
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			e.logger.Warn("compiler invocation timed out", "args", inv.Args, "timeout", timeout)
			return nil, newError(ErrTimeout, inv.Args, context.DeadlineExceeded)
		}
		if ctx.Err() != nil {
			return nil, newError(ErrExecution, inv.Args, ctx.Err())
		}
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) && !errors.Is(runErr, exec.ErrWaitDelay) {
			return nil, newError(ErrExecution, inv.Args, runErr)
		}
	}

	result := &Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   decodeBytes(enc, stdout.Bytes()),
		Stderr:   decodeBytes(enc, stderr.Bytes()),
		Duration: elapsed,
	}

	e.logger.Debug("compiler finished",
		"args", inv.Args,
		"exit_code", result.ExitCode,
		"duration", elapsed,
	)
	if result.ExitCode != 0 && result.Stderr != "" {
		e.logger.Warn("compiler reported errors", "exit_code", result.ExitCode, "stderr", truncate(result.Stderr, 500))
	}
	return result, nil
}

// RunProgram runs an auxiliary program such as git in dir, bounded by
// timeout with the same process-group cleanup as compiler calls. Output is
// read as UTF-8. A nonzero exit is returned as a Result, not an error.
func RunProgram(ctx context.Context, dir string, timeout time.Duration, name string, args ...string) (*Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%s timed out after %s: %w", name, timeout, context.DeadlineExceeded)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", name, ctx.Err())
		}
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) && !errors.Is(runErr, exec.ErrWaitDelay) {
			return nil, fmt.Errorf("%s: %w", name, runErr)
		}
	}
	return &Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}, nil
}

// Start launches a long-lived compiler process that is not bounded by the
// invocation timeout. The caller owns the returned Process and must Stop it.
func (e *ExecInvoker) Start(inv Invocation) (Handle, error) {
	name, argv := e.settings.Command(inv.Args...)
	cmd := exec.Command(name, argv...)
	cmd.Dir = inv.Dir
	cmd.WaitDelay = waitDelay
	// No context here, so no Cancel hook; Process.Stop signals the group.
	setProcessGroup(cmd)

	p := &Process{cmd: cmd, done: make(chan struct{})}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr

	if err := cmd.Start(); err != nil {
		if isNotFound(err) {
			return nil, newError(ErrExecutableNotFound, inv.Args, err)
		}
		return nil, newError(ErrExecution, inv.Args, err)
	}

	e.logger.Debug("started compiler process", "pid", cmd.Process.Pid, "args", inv.Args)

	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Process is a running child started by ExecInvoker.Start.
type Process struct {
	cmd    *exec.Cmd
	stdout lockedBuffer
	stderr lockedBuffer

	done     chan struct{}
	waitErr  error
	stopOnce sync.Once
}

// Pid returns the child's process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Exited reports whether the process has already exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Err returns the wait error once Done is closed.
func (p *Process) Err() error {
	<-p.done
	return p.waitErr
}

// Stdout returns everything the process has written to stdout so far.
func (p *Process) Stdout() string { return p.stdout.String() }

// Stderr returns everything the process has written to stderr so far.
func (p *Process) Stderr() string { return p.stderr.String() }

// Stop asks the process group to terminate, then kills it after grace.
func (p *Process) Stop(grace time.Duration) error {
	var err error
	p.stopOnce.Do(func() {
		if p.Exited() {
			return
		}
		_ = terminate(p.cmd)
		select {
		case <-p.done:
		case <-time.After(grace):
			err = kill(p.cmd)
			<-p.done
		}
	})
	return err
}

// lockedBuffer is a bytes.Buffer safe for concurrent write and read.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
