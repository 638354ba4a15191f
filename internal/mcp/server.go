// ABOUTME: MCP Streamable HTTP server exposing the tool registry over JSON-RPC
// ABOUTME: Routes POST/DELETE on /mcp, negotiates protocol versions and binds sessions to callers

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/quarkdown-mcp/internal/auth"
	"github.com/2389/quarkdown-mcp/internal/store"
	"github.com/2389/quarkdown-mcp/internal/tools"
)

// Supported MCP protocol versions
var supportedProtocolVersions = map[string]bool{
	"2025-03-26": true,
	"2025-11-25": true,
}

// latestProtocolVersion is the version we advertise in initialize responses
const latestProtocolVersion = "2025-11-25"

// MaxRequestBodySize is the maximum allowed size for request bodies (16MB).
// Documents travel inline, so batch requests can be large.
const MaxRequestBodySize = 16 << 20

// MCPListToolsResult is the result for tools/list.
type MCPListToolsResult struct {
	Tools []tools.Definition `json:"tools"`
}

// MCPCallToolParams are the params for tools/call.
type MCPCallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Config holds configuration for the MCP server.
type Config struct {
	Registry      *tools.Registry
	Logger        *slog.Logger
	TokenVerifier auth.TokenVerifier // bearer tokens (JWT or static)
	TokenStore    *TokenStore        // launch tokens (URL path or query param)
	RequireAuth   bool               // reject initialize without a valid credential
	Name          string             // serverInfo.name
	Version       string             // serverInfo.version

	// SessionIdleTimeout defaults to DefaultSessionIdleTimeout; negative disables expiry.
	SessionIdleTimeout time.Duration
}

// rpcCall is one JSON-RPC request in flight.
type rpcCall struct {
	ctx     context.Context
	req     JSONRPCRequest
	creds   credentials
	subject string
	header  http.Header
}

type methodFunc func(c *rpcCall) (any, *JSONRPCError)

// Server implements the MCP Streamable HTTP transport.
type Server struct {
	registry    *tools.Registry
	logger      *slog.Logger
	verifier    auth.TokenVerifier
	tokenStore  *TokenStore
	requireAuth bool
	name        string
	version     string
	sessions    *sessionStore
	methods     map[string]methodFunc
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.RequireAuth && cfg.TokenVerifier == nil && cfg.TokenStore == nil {
		return nil, errors.New("token verifier or token store required when auth is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "quarkdown-mcp"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	idle := cfg.SessionIdleTimeout
	switch {
	case idle == 0:
		idle = DefaultSessionIdleTimeout
	case idle < 0:
		idle = 0
	}

	s := &Server{
		registry:    cfg.Registry,
		logger:      logger.With("component", "mcp"),
		verifier:    cfg.TokenVerifier,
		tokenStore:  cfg.TokenStore,
		requireAuth: cfg.RequireAuth,
		name:        name,
		version:     version,
		sessions:    newSessionStore(idle),
	}
	s.methods = map[string]methodFunc{
		"initialize": s.initialize,
		"ping":       func(*rpcCall) (any, *JSONRPCError) { return struct{}{}, nil },
		"tools/list": s.listTools,
		"tools/call": s.callTool,
	}
	return s, nil
}

// SessionCount returns the number of open sessions.
func (s *Server) SessionCount() int {
	return s.sessions.count()
}

// RegisterRoutes registers the MCP endpoint on the given ServeMux.
// Supports both /mcp (bare) and /mcp/<token> (token-in-path) access patterns.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/mcp/", s.handleMCP)
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		// No server-initiated streams; progress is on /events.
		w.Header().Set("Allow", "POST, DELETE")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleDelete terminates a session. Only the credential that opened it may close it.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}

	sess, ok := s.sessions.get(sessionID)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if sess.ownerToken != "" && credentialsFrom(r).token != sess.ownerToken {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	s.sessions.delete(sessionID)
	s.logger.Info("MCP session terminated", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func readRequest(r *http.Request) (JSONRPCRequest, *JSONRPCError) {
	var req JSONRPCRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		return req, rpcError(JSONRPCParseError, "failed to read request body")
	}
	if int64(len(body)) > MaxRequestBodySize {
		return req, rpcError(JSONRPCInvalidRequest, "request body too large")
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, rpcError(JSONRPCParseError, "invalid JSON")
	}
	if req.JSONRPC != "2.0" {
		return req, rpcError(JSONRPCInvalidRequest, "invalid JSON-RPC version")
	}
	return req, nil
}

// handlePost processes one JSON-RPC message. Everything except initialize
// needs a live session; clients that omit MCP-Protocol-Version are assumed
// to speak 2025-03-26.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	req, rpcErr := readRequest(r)
	if rpcErr != nil {
		writeRPCError(w, s.logger, req.ID, rpcErr)
		return
	}

	call := &rpcCall{
		ctx:    r.Context(),
		req:    req,
		creds:  credentialsFrom(r),
		header: w.Header(),
	}
	sessionID := r.Header.Get("Mcp-Session-Id")

	if req.Method == "initialize" {
		subject, err := s.authenticate(call.creds)
		switch {
		case errors.Is(err, errInvalidToken):
			writeRPCError(w, s.logger, nil, rpcError(JSONRPCInvalidRequest, "invalid or expired token"))
			return
		case err != nil && s.requireAuth:
			writeRPCError(w, s.logger, nil, rpcError(JSONRPCInvalidRequest, "authentication required"))
			return
		}
		call.subject = subject
	} else {
		if v := r.Header.Get("Mcp-Protocol-Version"); v != "" && !supportedProtocolVersions[v] {
			http.Error(w, "Bad Request: unsupported MCP-Protocol-Version", http.StatusBadRequest)
			return
		}
		if sessionID == "" {
			http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
			return
		}
		sess, ok := s.sessions.touch(sessionID)
		if !ok {
			// Unknown or expired; the client must re-initialize.
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		call.subject = sess.subject
	}

	s.logger.Debug("MCP request", "method", req.Method, "session_id", sessionID, "notification", req.IsNotification())

	if req.IsNotification() {
		if !strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Warn("received notification for non-notification method", "method", req.Method)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	method, ok := s.methods[req.Method]
	if !ok {
		writeRPCError(w, s.logger, req.ID, rpcError(JSONRPCMethodNotFound, "method not found"))
		return
	}
	result, rpcErr := method(call)
	if rpcErr != nil {
		writeRPCError(w, s.logger, req.ID, rpcErr)
		return
	}
	writeRPCResult(w, s.logger, req.ID, result)
}

// initialize opens a session bound to the caller's credential.
func (s *Server) initialize(c *rpcCall) (any, *JSONRPCError) {
	sess := s.sessions.create(negotiateVersion(c.req.Params), c.subject, c.creds.token)
	c.header.Set("Mcp-Session-Id", sess.id)

	s.logger.Info("MCP session created",
		"session_id", sess.id,
		"protocol_version", sess.protocolVersion,
		"subject", c.subject,
	)

	return map[string]any{
		"protocolVersion": sess.protocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.name,
			"version": s.version,
		},
	}, nil
}

// negotiateVersion echoes the client's requested protocol version when it is
// supported and falls back to the latest otherwise.
func negotiateVersion(params json.RawMessage) string {
	var p struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if len(params) > 0 && json.Unmarshal(params, &p) == nil && supportedProtocolVersions[p.ProtocolVersion] {
		return p.ProtocolVersion
	}
	return latestProtocolVersion
}

func (s *Server) listTools(*rpcCall) (any, *JSONRPCError) {
	return MCPListToolsResult{Tools: s.registry.Definitions()}, nil
}

// callTool runs a registry tool. Tool failures come back as results with
// isError set; only unknown tools and bad params are protocol errors.
func (s *Server) callTool(c *rpcCall) (any, *JSONRPCError) {
	var params MCPCallToolParams
	if len(c.req.Params) > 0 {
		if err := json.Unmarshal(c.req.Params, &params); err != nil {
			return nil, rpcError(JSONRPCInvalidParams, "invalid params")
		}
	}
	if params.Name == "" {
		return nil, rpcError(JSONRPCInvalidParams, "tool name is required")
	}
	if !s.registry.Has(params.Name) {
		return nil, rpcError(JSONRPCInvalidParams, "tool not found")
	}

	ctx := tools.WithTransport(c.ctx, store.TransportHTTP)
	if c.subject != "" {
		ctx = auth.WithAuth(ctx, &auth.AuthContext{Subject: c.subject})
	}

	result := s.registry.Call(ctx, params.Name, params.Arguments)
	s.logger.Debug("tools/call complete", "tool_name", params.Name, "subject", c.subject, "is_error", result.IsError)
	return result, nil
}
