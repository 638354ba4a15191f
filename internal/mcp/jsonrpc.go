// ABOUTME: JSON-RPC 2.0 envelopes and response writers for the HTTP transport
// ABOUTME: Method handlers return *JSONRPCError for protocol failures

package mcp

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// JSONRPCRequest represents a JSON-RPC 2.0 request or notification.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id.
func (r JSONRPCRequest) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *JSONRPCError) Error() string { return e.Message }

func rpcError(code int, message string) *JSONRPCError {
	return &JSONRPCError{Code: code, Message: message}
}

// writeRPC encodes resp as the HTTP body. Protocol errors still use status 200.
func writeRPC(w http.ResponseWriter, logger *slog.Logger, resp JSONRPCResponse) {
	resp.JSONRPC = "2.0"
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}

func writeRPCResult(w http.ResponseWriter, logger *slog.Logger, id json.RawMessage, result any) {
	writeRPC(w, logger, JSONRPCResponse{ID: id, Result: result})
}

func writeRPCError(w http.ResponseWriter, logger *slog.Logger, id json.RawMessage, rpcErr *JSONRPCError) {
	writeRPC(w, logger, JSONRPCResponse{ID: id, Error: rpcErr})
}
