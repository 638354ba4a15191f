// ABOUTME: Tests for ExecInvoker against shell-script stand-ins for the compiler
// ABOUTME: Covers exit codes, stdin, encodings, timeouts with group kill, and Start/Stop

//go:build unix

package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/quarkdown-mcp/internal/config"
)

// newScriptInvoker writes script as an executable stand-in for the compiler.
func newScriptInvoker(t *testing.T, script string, mutate func(*config.SettingsOptions)) (*ExecInvoker, string) {
	t.Helper()
	dir := t.TempDir()
	bin := filepath.Join(dir, "quarkdown")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"+script), 0o755))

	opts := config.SettingsOptions{ExecutablePath: bin, TempDir: dir, Timeout: 10 * time.Second}
	if mutate != nil {
		mutate(&opts)
	}
	settings, err := config.NewSettings(opts)
	require.NoError(t, err)
	return NewExecInvoker(settings, nil), dir
}

func TestExecInvoker_CapturesOutputAndExitCode(t *testing.T) {
	inv, _ := newScriptInvoker(t, `echo "out:$1"; echo "bad thing" >&2; exit 3`, nil)

	res, err := inv.Run(context.Background(), Invocation{Args: []string{"c"}})
	require.NoError(t, err, "nonzero exit is a result, not an error")

	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out:c\n", res.Stdout)
	assert.Equal(t, "bad thing\n", res.Stderr)
	assert.False(t, res.Succeeded())
}

func TestExecInvoker_PassesStdin(t *testing.T) {
	inv, _ := newScriptInvoker(t, `cat`, nil)

	input := ".doctype {plain}\n# Hello"
	res, err := inv.Run(context.Background(), Invocation{Args: []string{"validate", "--stdin"}, Stdin: &input})
	require.NoError(t, err)

	assert.True(t, res.Succeeded())
	assert.Equal(t, input, res.Stdout)
}

func TestExecInvoker_DecodesConfiguredEncoding(t *testing.T) {
	inv, _ := newScriptInvoker(t, `printf '\351t\351'`, func(o *config.SettingsOptions) { o.Encoding = "latin1" })

	res, err := inv.Run(context.Background(), Invocation{Args: []string{"--version"}})
	require.NoError(t, err)
	assert.Equal(t, "été", res.Stdout)
}

func TestExecInvoker_ArgumentsAreNotShellInterpreted(t *testing.T) {
	inv, _ := newScriptInvoker(t, `printf '%s' "$2"`, nil)

	res, err := inv.Run(context.Background(), Invocation{Args: []string{"c", "$(touch /tmp/pwned); `id`"}})
	require.NoError(t, err)
	assert.Equal(t, "$(touch /tmp/pwned); `id`", res.Stdout)
}

func TestExecInvoker_TimeoutKillsProcessGroup(t *testing.T) {
	inv, dir := newScriptInvoker(t, `sleep 30 &
echo $! > "$1"
wait`, nil)
	pidFile := filepath.Join(dir, "child.pid")

	start := time.Now()
	_, err := inv.Run(context.Background(), Invocation{Args: []string{pidFile}, Timeout: 300 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, []string{pidFile}, perr.Args)

	data, readErr := os.ReadFile(pidFile)
	require.NoError(t, readErr)
	pid, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, convErr)

	assert.Eventually(t, func() bool {
		return errors.Is(syscall.Kill(pid, 0), syscall.ESRCH)
	}, 3*time.Second, 50*time.Millisecond, "grandchild sleep should have been killed")
}

func TestExecInvoker_ParentCancellationIsNotTimeout(t *testing.T) {
	inv, _ := newScriptInvoker(t, `sleep 30`, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := inv.Run(ctx, Invocation{Args: []string{"c"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecution)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestExecInvoker_ExecutableRemovedAfterValidation(t *testing.T) {
	inv, _ := newScriptInvoker(t, `exit 0`, nil)
	require.NoError(t, os.Remove(inv.Settings().ExecutablePath()))

	_, err := inv.Run(context.Background(), Invocation{Args: []string{"--version"}})
	assert.ErrorIs(t, err, ErrExecutableNotFound)
}

func TestExecInvoker_JarLaunchesThroughJava(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "quarkdown.jar")
	require.NoError(t, os.WriteFile(jar, []byte("PK"), 0o644))
	fakeJava := filepath.Join(dir, "java")
	require.NoError(t, os.WriteFile(fakeJava, []byte("#!/bin/sh\necho \"$@\"\n"), 0o755))

	settings, err := config.NewSettings(config.SettingsOptions{ExecutablePath: jar, TempDir: dir, JavaPath: fakeJava})
	require.NoError(t, err)

	res, err := NewExecInvoker(settings, nil).Run(context.Background(), Invocation{Args: []string{"--version"}})
	require.NoError(t, err)
	assert.Equal(t, "-jar "+jar+" --version\n", res.Stdout)
}

func TestExecInvoker_StartAndStop(t *testing.T) {
	inv, _ := newScriptInvoker(t, `echo started; exec sleep 30`, nil)

	p, err := inv.Start(Invocation{Args: []string{"start"}})
	require.NoError(t, err)
	assert.Positive(t, p.Pid())

	assert.Eventually(t, func() bool { return strings.Contains(p.Stdout(), "started") }, 2*time.Second, 20*time.Millisecond)
	assert.False(t, p.Exited())

	require.NoError(t, p.Stop(time.Second))
	select {
	case <-p.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("process did not exit after Stop")
	}
	assert.True(t, p.Exited())

	// Stop is idempotent.
	assert.NoError(t, p.Stop(time.Second))
}

func TestExecInvoker_StartDetectsEarlyExit(t *testing.T) {
	inv, _ := newScriptInvoker(t, `echo "port in use" >&2; exit 1`, nil)

	p, err := inv.Start(Invocation{Args: []string{"start"}})
	require.NoError(t, err)

	select {
	case <-p.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("process should have exited")
	}
	assert.Error(t, p.Err())
	assert.Contains(t, p.Stderr(), "port in use")
}

func TestExecInvoker_StartPlacesChildInOwnGroup(t *testing.T) {
	inv, _ := newScriptInvoker(t, `exec sleep 30`, nil)

	p, err := inv.Start(Invocation{Args: []string{"start", "--port", "9999"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Stop(time.Second) })

	pgid, err := syscall.Getpgid(p.Pid())
	require.NoError(t, err)
	assert.Equal(t, p.Pid(), pgid)
}

func TestRunProgram_CapturesResult(t *testing.T) {
	dir := t.TempDir()

	res, err := RunProgram(context.Background(), dir, 5*time.Second, "sh", "-c", `pwd -P; echo oops >&2; exit 2`)
	require.NoError(t, err)

	assert.Equal(t, 2, res.ExitCode)
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, resolved, strings.TrimSpace(res.Stdout))
	assert.Equal(t, "oops\n", res.Stderr)
}

func TestRunProgram_TimesOut(t *testing.T) {
	start := time.Now()
	_, err := RunProgram(context.Background(), t.TempDir(), 100*time.Millisecond, "sh", "-c", "sleep 30")
	require.Error(t, err)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunProgram_MissingBinary(t *testing.T) {
	_, err := RunProgram(context.Background(), t.TempDir(), time.Second, "quarkdown-no-such-binary")
	require.Error(t, err)
	assert.ErrorIs(t, err, exec.ErrNotFound)
}
