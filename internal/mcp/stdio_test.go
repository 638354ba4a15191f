// ABOUTME: Tests for the SDK-backed stdio transport.
// ABOUTME: Connects an SDK client over in-memory transports and calls registry tools.

package mcp

import (
	"context"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389/quarkdown-mcp/internal/store"
)

func connectStdio(t *testing.T) (*sdk.ClientSession, *store.MockStore) {
	t.Helper()
	reg, history := setupTestRegistry(t)
	srv, err := NewStdioServer(reg, "qd", "test", nil)
	if err != nil {
		t.Fatalf("NewStdioServer() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	clientTransport, serverTransport := sdk.NewInMemoryTransports()
	if _, err := srv.SDKServer().Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server Connect() error = %v", err)
	}

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session, history
}

func TestNewStdioServer_RequiresRegistry(t *testing.T) {
	if _, err := NewStdioServer(nil, "", "", nil); err == nil {
		t.Error("expected error without registry")
	}
}

func TestStdio_ListTools(t *testing.T) {
	session, _ := connectStdio(t)

	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if len(res.Tools) != 1 || res.Tools[0].Name != "echo" {
		t.Fatalf("unexpected tools: %+v", res.Tools)
	}
}

func TestStdio_CallTool(t *testing.T) {
	session, history := connectStdio(t)

	res, err := session.CallTool(context.Background(), &sdk.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"message": "hello"},
	})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}
	text, ok := res.Content[0].(*sdk.TextContent)
	if !ok || text.Text != "hello" {
		t.Errorf("unexpected content: %+v", res.Content)
	}

	calls, _ := history.ListToolCalls(context.Background(), store.ToolCallFilter{})
	if len(calls) != 1 || calls[0].Transport != store.TransportStdio {
		t.Errorf("expected one stdio call in history, got %+v", calls)
	}
}

func TestStdio_ToolErrorIsResult(t *testing.T) {
	session, _ := connectStdio(t)

	res, err := session.CallTool(context.Background(), &sdk.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if !res.IsError {
		t.Error("expected IsError for missing arguments")
	}
}
