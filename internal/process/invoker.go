// ABOUTME: Process invocation contract for the external compiler
// ABOUTME: Defines Invocation, Result, the Invoker interface and typed process errors

package process

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Process errors. Every error returned by an Invoker wraps exactly one of these.
var (
	ErrTimeout            = errors.New("compiler invocation timed out")
	ErrExecutableNotFound = errors.New("compiler executable not found")
	ErrExecution          = errors.New("compiler execution failed")
)

// Error describes a failed invocation. It unwraps to its kind sentinel and to
// the underlying cause so both errors.Is(err, ErrTimeout) and
// errors.Is(err, context.Canceled) work.
type Error struct {
	Kind  error
	Args  []string
	Cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%v (%s)", e.Kind, strings.Join(e.Args, " "))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func newError(kind error, args []string, cause error) *Error {
	return &Error{Kind: kind, Args: args, Cause: cause}
}

// Invocation is a single compiler call. Args never pass through a shell.
type Invocation struct {
	Args    []string
	Stdin   *string
	Dir     string
	Timeout time.Duration // zero uses the configured timeout
}

// Subcommand returns the first argument, or "" when there is none.
func (i Invocation) Subcommand() string {
	if len(i.Args) == 0 {
		return ""
	}
	return i.Args[0]
}

// Flag returns the value following name in Args, or "".
func (i Invocation) Flag(name string) string {
	for idx := 0; idx < len(i.Args)-1; idx++ {
		if i.Args[idx] == name {
			return i.Args[idx+1]
		}
	}
	return ""
}

// HasFlag reports whether name appears in Args.
func (i Invocation) HasFlag(name string) bool {
	for _, a := range i.Args {
		if a == name {
			return true
		}
	}
	return false
}

// Result is the captured outcome of a completed process. A nonzero ExitCode
// is a normal result, not an error.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Succeeded reports whether the process exited with status zero.
func (r *Result) Succeeded() bool { return r != nil && r.ExitCode == 0 }

// Invoker runs the compiler and captures its output.
type Invoker interface {
	Run(ctx context.Context, inv Invocation) (*Result, error)
}

// Handle is a running long-lived child process.
type Handle interface {
	Pid() int
	Done() <-chan struct{}
	Exited() bool
	Err() error
	Stdout() string
	Stderr() string
	Stop(grace time.Duration) error
}

// Starter launches long-lived compiler processes such as the preview server.
type Starter interface {
	Start(inv Invocation) (Handle, error)
}
