// ABOUTME: Store interface and data types for quarkdown-mcp history
// ABOUTME: Defines ToolCall and BatchRun records and the Store interface for audit persistence

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Transport names recorded on tool calls
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// ToolCall is one invocation of an MCP tool
type ToolCall struct {
	ID        string
	Tool      string
	Transport string
	Arguments map[string]any // decoded request arguments; source content is trimmed by the caller
	Success   bool
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// ToolCallFilter specifies filtering options for listing tool calls.
type ToolCallFilter struct {
	Tool    *string
	Success *bool
	Since   *time.Time
	Limit   int // default 100, max 1000
}

// BatchRun summarizes one convert_batch execution
type BatchRun struct {
	ID         string
	Format     string
	OutputDir  string
	Total      int
	Succeeded  int
	Failed     int
	Parallel   bool
	MaxWorkers int
	IndexFile  string
	Error      string // top-level failure, empty when the batch ran
	Elapsed    time.Duration
	StartedAt  time.Time
}

// Store defines the interface for tool call and batch history
type Store interface {
	RecordToolCall(ctx context.Context, call *ToolCall) error
	ListToolCalls(ctx context.Context, f ToolCallFilter) ([]ToolCall, error)

	RecordBatch(ctx context.Context, run *BatchRun) error
	GetBatch(ctx context.Context, id string) (*BatchRun, error)
	ListBatches(ctx context.Context, limit int) ([]BatchRun, error)

	// Close releases any resources held by the store
	Close() error
}

// normalizeLimit applies default (100) and cap (1000) to list limits.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}
