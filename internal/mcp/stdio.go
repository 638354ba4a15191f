// ABOUTME: MCP stdio transport built on the official Go SDK.
// ABOUTME: Registers every registry tool with a raw schema and forwards calls unchanged.

package mcp

import (
	"context"
	"errors"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389/quarkdown-mcp/internal/store"
	"github.com/2389/quarkdown-mcp/internal/tools"
)

// StdioServer serves the tool registry over an SDK transport, normally stdin/stdout.
type StdioServer struct {
	server   *sdk.Server
	registry *tools.Registry
	logger   *slog.Logger
}

// NewStdioServer creates an SDK server holding every tool in reg.
func NewStdioServer(reg *tools.Registry, name, version string, logger *slog.Logger) (*StdioServer, error) {
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if name == "" {
		name = "quarkdown-mcp"
	}

	s := &StdioServer{
		server:   sdk.NewServer(&sdk.Implementation{Name: name, Version: version}, nil),
		registry: reg,
		logger:   logger.With("component", "mcp-stdio"),
	}
	for _, def := range reg.Definitions() {
		s.server.AddTool(&sdk.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, s.handler(def.Name))
	}
	return s, nil
}

func (s *StdioServer) handler(name string) sdk.ToolHandler {
	return func(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
		ctx = tools.WithTransport(ctx, store.TransportStdio)
		res := s.registry.Call(ctx, name, req.Params.Arguments)

		out := &sdk.CallToolResult{IsError: res.IsError}
		for _, b := range res.Content {
			out.Content = append(out.Content, &sdk.TextContent{Text: b.Text})
		}
		return out, nil
	}
}

// Run serves until the client disconnects or ctx is cancelled.
func (s *StdioServer) Run(ctx context.Context) error {
	return s.RunTransport(ctx, &sdk.StdioTransport{})
}

// RunTransport serves over t.
func (s *StdioServer) RunTransport(ctx context.Context, t sdk.Transport) error {
	s.logger.Info("serving MCP over stdio", "tools", len(s.registry.Definitions()))
	err := s.server.Run(ctx, t)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// SDKServer exposes the underlying SDK server.
func (s *StdioServer) SDKServer() *sdk.Server {
	return s.server
}
