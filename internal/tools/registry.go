// ABOUTME: Thread-safe registry of MCP tools shared by the stdio and HTTP transports
// ABOUTME: Validates required arguments, recovers handler panics and records each call

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/2389/quarkdown-mcp/internal/store"
)

// ErrToolCollision indicates a tool name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// ErrToolNotFound indicates no tool has the requested name.
var ErrToolNotFound = errors.New("tool not found")

// Definition is the protocol-facing description of a tool.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Handler executes a tool. A returned error becomes a single error block.
type Handler func(ctx context.Context, input json.RawMessage) (*Result, error)

// Tool pairs a definition with its handler. Required lists the argument names
// that must be present and non-null before Handler runs.
type Tool struct {
	Definition Definition
	Required   []string
	Handler    Handler
}

// Block is one display block of a tool result.
type Block struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is what a tool call returns to the transport.
type Result struct {
	Content []Block `json:"content"`
	IsError bool    `json:"isError,omitempty"`
}

// Text joins every block's text with blank lines.
func (r *Result) Text() string {
	parts := make([]string, len(r.Content))
	for i, b := range r.Content {
		parts[i] = b.Text
	}
	return strings.Join(parts, "\n\n")
}

type transportKey struct{}

// WithTransport tags ctx with the transport name recorded in the call history.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, transportKey{}, transport)
}

func transportFrom(ctx context.Context) string {
	if t, ok := ctx.Value(transportKey{}).(string); ok {
		return t
	}
	return store.TransportStdio
}

// Registry holds the tools exposed by the server.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	order  []string
	store  store.Store // optional call history
	now    func() time.Time
	logger *slog.Logger
}

// NewRegistry creates an empty registry. s may be nil to disable history.
func NewRegistry(s store.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		store:  s,
		now:    time.Now,
		logger: logger.With("component", "tools"),
	}
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(t Tool) error {
	if t.Definition.Name == "" {
		return errors.New("tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s has no handler", t.Definition.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Definition.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolCollision, t.Definition.Name)
	}
	tool := t
	r.tools[t.Definition.Name] = &tool
	r.order = append(r.order, t.Definition.Name)
	r.logger.Debug("registered tool", "name", t.Definition.Name)
	return nil
}

// Definitions returns every tool definition in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, len(r.order))
	for i, name := range r.order {
		defs[i] = r.tools[name].Definition
	}
	return defs
}

// Has reports whether a tool is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Call runs the named tool. It always returns a well-formed Result: unknown
// tools, malformed input, missing arguments, handler errors and panics all
// become a single error block.
func (r *Registry) Call(ctx context.Context, name string, input json.RawMessage) (res *Result) {
	start := r.now()
	var args map[string]any

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", p)
			res = errorResult(fmt.Sprintf("internal error: %v", p))
		}
		r.record(ctx, name, args, res, r.now().Sub(start))
	}()

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return errorResult(fmt.Sprintf("Unknown tool: %s", name))
	}

	if len(input) == 0 || string(input) == "null" {
		input = json.RawMessage("{}")
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err))
	}
	if missing := missingArgs(args, tool.Required); len(missing) > 0 {
		return errorResult("Missing required arguments: " + strings.Join(missing, ", "))
	}

	r.logger.Debug("calling tool", "tool", name)
	out, err := tool.Handler(ctx, input)
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "error", err)
		return errorResult(err.Error())
	}
	if out == nil {
		return errorResult("tool returned no result")
	}
	return out
}

func (r *Registry) record(ctx context.Context, name string, args map[string]any, res *Result, elapsed time.Duration) {
	if r.store == nil {
		return
	}
	call := &store.ToolCall{
		Tool:      name,
		Transport: transportFrom(ctx),
		Arguments: auditArguments(args),
		Success:   res != nil && !res.IsError,
		Duration:  elapsed,
	}
	if res != nil && res.IsError && len(res.Content) > 0 {
		call.Error = res.Content[0].Text
	}
	// History is best effort and must outlive a cancelled request.
	if err := r.store.RecordToolCall(context.WithoutCancel(ctx), call); err != nil {
		r.logger.Warn("failed to record tool call", "tool", name, "error", err)
	}
}

// missingArgs returns the required keys that are absent or null, sorted.
func missingArgs(args map[string]any, required []string) []string {
	var missing []string
	for _, key := range required {
		if v, ok := args[key]; !ok || v == nil {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

// maxAuditString bounds each string argument kept in the call history.
const maxAuditString = 200

// auditArguments copies args with long strings shortened, so document bodies
// are not duplicated into the history database.
func auditArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = trimValue(v)
	}
	return out
}

func trimValue(v any) any {
	switch val := v.(type) {
	case string:
		return truncate(val, maxAuditString)
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = trimValue(item)
		}
		return items
	case map[string]any:
		return auditArguments(val)
	default:
		return v
	}
}
