// ABOUTME: Tests for the scriptable FakeInvoker
// ABOUTME: Verifies scripting, call recording, concurrency tracking and CompileHandler

package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeInvoker_RespondAndFail(t *testing.T) {
	f := NewFakeInvoker()
	f.Respond("--version", Result{Stdout: "Quarkdown 1.6.0"})
	f.Fail("formats", ErrTimeout)

	res, err := f.Run(context.Background(), Invocation{Args: []string{"--version"}})
	require.NoError(t, err)
	assert.Equal(t, "Quarkdown 1.6.0", res.Stdout)

	_, err = f.Run(context.Background(), Invocation{Args: []string{"formats"}})
	assert.ErrorIs(t, err, ErrTimeout)

	res, err = f.Run(context.Background(), Invocation{Args: []string{"unscripted"}})
	require.NoError(t, err)
	assert.True(t, res.Succeeded())

	assert.Len(t, f.Calls(), 3)
	assert.Equal(t, 1, f.CallCount("formats"))
}

func TestFakeInvoker_TracksPeakConcurrency(t *testing.T) {
	f := NewFakeInvoker()
	f.Handle("c", func(context.Context, Invocation) (*Result, error) {
		time.Sleep(30 * time.Millisecond)
		return &Result{}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.Run(context.Background(), Invocation{Args: []string{"c"}})
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, f.MaxConcurrent(), 1)
	assert.LessOrEqual(t, f.MaxConcurrent(), 3)
}

func TestCompileHandler(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "temp_abcd1234.qmd")
	require.NoError(t, os.WriteFile(input, []byte("# Title"), 0o644))
	outDir := filepath.Join(dir, "out")

	h := CompileHandler(func(src string) (string, error) {
		if src == "boom" {
			return "", errors.New("Error: boom")
		}
		return "<h1>" + src[2:] + "</h1>", nil
	}, nil)

	res, err := h(context.Background(), Invocation{Args: []string{"c", input, "-o", outDir, "-r", "html"}})
	require.NoError(t, err)
	assert.True(t, res.Succeeded())

	data, err := os.ReadFile(filepath.Join(outDir, "temp_abcd1234.html"))
	require.NoError(t, err)
	assert.Equal(t, "<h1>Title</h1>", string(data))

	require.NoError(t, os.WriteFile(input, []byte("boom"), 0o644))
	res, err = h(context.Background(), Invocation{Args: []string{"c", input, "-o", outDir, "-r", "html"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "Error: boom", res.Stderr)
}

func TestInvocation_Flags(t *testing.T) {
	inv := Invocation{Args: []string{"c", "in.qmd", "-o", "/out", "-r", "pdf", "--strict"}}
	assert.Equal(t, "c", inv.Subcommand())
	assert.Equal(t, "/out", inv.Flag("-o"))
	assert.Equal(t, "pdf", inv.Flag("-r"))
	assert.Equal(t, "", inv.Flag("--strict"))
	assert.True(t, inv.HasFlag("--strict"))
	assert.False(t, inv.HasFlag("--clean"))
	assert.Equal(t, "", Invocation{}.Subcommand())
}
