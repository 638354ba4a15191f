// ABOUTME: Tests for the tool registry
// ABOUTME: Covers dispatch, argument checks, panic recovery and call history

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/quarkdown-mcp/internal/store"
)

func echoTool(name string, required ...string) Tool {
	return Tool{
		Definition: Definition{Name: name, Description: "echo", InputSchema: emptySchema},
		Required:   required,
		Handler: func(_ context.Context, input json.RawMessage) (*Result, error) {
			return resultOf(textBlock(string(input))), nil
		},
	}
}

func TestRegister_Collision(t *testing.T) {
	reg := NewRegistry(nil, nil)
	require.NoError(t, reg.Register(echoTool("echo")))

	err := reg.Register(echoTool("echo"))
	assert.ErrorIs(t, err, ErrToolCollision)
}

func TestRegister_RejectsIncompleteTools(t *testing.T) {
	reg := NewRegistry(nil, nil)
	assert.Error(t, reg.Register(Tool{Handler: echoTool("x").Handler}))
	assert.Error(t, reg.Register(Tool{Definition: Definition{Name: "x"}}))
}

func TestDefinitions_RegistrationOrder(t *testing.T) {
	reg := NewRegistry(nil, nil)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.Register(echoTool(name)))
	}

	var names []string
	for _, d := range reg.Definitions() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)
	assert.True(t, reg.Has("alpha"))
	assert.False(t, reg.Has("beta"))
}

func TestCall_UnknownTool(t *testing.T) {
	reg := NewRegistry(nil, nil)

	res := reg.Call(context.Background(), "nope", nil)
	assert.True(t, res.IsError)
	assert.Equal(t, "❌ **Error**: Unknown tool: nope", res.Text())
}

func TestCall_NullInputBecomesEmptyObject(t *testing.T) {
	reg := NewRegistry(nil, nil)
	require.NoError(t, reg.Register(echoTool("echo")))

	for _, input := range []string{"", "null"} {
		res := reg.Call(context.Background(), "echo", json.RawMessage(input))
		assert.False(t, res.IsError)
		assert.Equal(t, "{}", res.Text())
	}
}

func TestCall_InvalidJSON(t *testing.T) {
	reg := NewRegistry(nil, nil)
	require.NoError(t, reg.Register(echoTool("echo")))

	res := reg.Call(context.Background(), "echo", json.RawMessage(`{"a":`))
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "invalid arguments")
}

func TestCall_MissingRequiredArguments(t *testing.T) {
	reg := NewRegistry(nil, nil)
	require.NoError(t, reg.Register(echoTool("echo", "zeta", "alpha", "present")))

	res := reg.Call(context.Background(), "echo", json.RawMessage(`{"present": 1, "zeta": null}`))
	assert.True(t, res.IsError)
	assert.Equal(t, "❌ **Error**: Missing required arguments: alpha, zeta", res.Text())
}

func TestCall_HandlerErrorAndNilResult(t *testing.T) {
	reg := NewRegistry(nil, nil)
	require.NoError(t, reg.Register(Tool{
		Definition: Definition{Name: "fails"},
		Handler: func(context.Context, json.RawMessage) (*Result, error) {
			return nil, errors.New("disk full")
		},
	}))
	require.NoError(t, reg.Register(Tool{
		Definition: Definition{Name: "empty"},
		Handler: func(context.Context, json.RawMessage) (*Result, error) {
			return nil, nil
		},
	}))

	res := reg.Call(context.Background(), "fails", nil)
	assert.True(t, res.IsError)
	assert.Equal(t, "❌ **Error**: disk full", res.Text())

	res = reg.Call(context.Background(), "empty", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "tool returned no result")
}

func TestCall_RecoversPanic(t *testing.T) {
	s := store.NewMockStore()
	reg := NewRegistry(s, nil)
	require.NoError(t, reg.Register(Tool{
		Definition: Definition{Name: "boom"},
		Handler: func(context.Context, json.RawMessage) (*Result, error) {
			panic("kaboom")
		},
	}))

	res := reg.Call(context.Background(), "boom", nil)
	require.NotNil(t, res)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "internal error: kaboom")

	calls, err := s.ListToolCalls(context.Background(), store.ToolCallFilter{})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.False(t, calls[0].Success)
}

func TestCall_RecordsHistory(t *testing.T) {
	s := store.NewMockStore()
	reg := NewRegistry(s, nil)
	require.NoError(t, reg.Register(echoTool("echo")))

	ctx := WithTransport(context.Background(), store.TransportHTTP)
	long := strings.Repeat("x", 500)
	input, _ := json.Marshal(map[string]any{
		"source_content": long,
		"documents":      []any{map[string]any{"content": long}},
	})
	res := reg.Call(ctx, "echo", input)
	require.False(t, res.IsError)
	reg.Call(context.Background(), "missing", nil)

	calls, err := s.ListToolCalls(context.Background(), store.ToolCallFilter{})
	require.NoError(t, err)
	require.Len(t, calls, 2)

	byTool := map[string]store.ToolCall{}
	for _, c := range calls {
		byTool[c.Tool] = c
	}

	echo := byTool["echo"]
	assert.True(t, echo.Success)
	assert.Equal(t, store.TransportHTTP, echo.Transport)
	assert.Len(t, []rune(echo.Arguments["source_content"].(string)), maxAuditString+3)
	nested := echo.Arguments["documents"].([]any)[0].(map[string]any)
	assert.True(t, strings.HasSuffix(nested["content"].(string), "..."))

	missing := byTool["missing"]
	assert.False(t, missing.Success)
	assert.Equal(t, store.TransportStdio, missing.Transport)
	assert.Contains(t, missing.Error, "Unknown tool")
}

func TestCall_HistoryFailureDoesNotFailCall(t *testing.T) {
	s := store.NewMockStore()
	s.FailWrites(errors.New("read-only"))
	reg := NewRegistry(s, nil)
	require.NoError(t, reg.Register(echoTool("echo")))

	res := reg.Call(context.Background(), "echo", json.RawMessage(`{"a":1}`))
	assert.False(t, res.IsError)
}
