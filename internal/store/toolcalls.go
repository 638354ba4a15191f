// ABOUTME: Tool call history methods for SQLiteStore
// ABOUTME: Records every MCP tool invocation with its outcome and duration

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordToolCall appends a tool call to the history.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) RecordToolCall(ctx context.Context, c *ToolCall) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}

	var argsJSON *string
	if c.Arguments != nil {
		data, err := json.Marshal(c.Arguments)
		if err != nil {
			return fmt.Errorf("marshaling tool arguments: %w", err)
		}
		str := string(data)
		argsJSON = &str
	}

	query := `
		INSERT INTO tool_calls (call_id, tool, transport, arguments_json, success, error, duration_ms, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.Tool,
		c.Transport,
		argsJSON,
		boolToInt(c.Success),
		c.Error,
		c.Duration.Milliseconds(),
		c.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting tool call: %w", err)
	}

	s.logger.Debug("recorded tool call",
		"id", c.ID,
		"tool", c.Tool,
		"success", c.Success,
	)
	return nil
}

const toolCallQuery = `
	SELECT call_id, tool, transport, arguments_json, success, error, duration_ms, ts
	FROM tool_calls
	WHERE (? IS NULL OR tool = ?)
	  AND (? IS NULL OR success = ?)
	  AND (? IS NULL OR ts >= ?)
	ORDER BY ts DESC, rowid DESC
	LIMIT ?
`

// ListToolCalls returns tool calls matching the filter, newest first.
func (s *SQLiteStore) ListToolCalls(ctx context.Context, f ToolCallFilter) ([]ToolCall, error) {
	limit := normalizeLimit(f.Limit)

	var success *int
	if f.Success != nil {
		v := boolToInt(*f.Success)
		success = &v
	}
	var since *string
	if f.Since != nil {
		v := f.Since.UTC().Format(time.RFC3339)
		since = &v
	}

	rows, err := s.db.QueryContext(ctx, toolCallQuery,
		f.Tool, f.Tool,
		success, success,
		since, since,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying tool calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var calls []ToolCall
	for rows.Next() {
		c, err := scanToolCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool calls: %w", err)
	}

	if calls == nil {
		calls = []ToolCall{}
	}
	return calls, nil
}

// scanToolCall scans a row into a ToolCall.
func scanToolCall(scanner interface{ Scan(dest ...any) error }) (ToolCall, error) {
	var c ToolCall
	var argsJSON *string
	var success int
	var durationMS int64
	var tsStr string

	if err := scanner.Scan(
		&c.ID,
		&c.Tool,
		&c.Transport,
		&argsJSON,
		&success,
		&c.Error,
		&durationMS,
		&tsStr,
	); err != nil {
		return c, fmt.Errorf("scanning tool call: %w", err)
	}

	c.Success = success != 0
	c.Duration = time.Duration(durationMS) * time.Millisecond

	var err error
	c.Timestamp, err = time.Parse(time.RFC3339, tsStr)
	if err != nil {
		return c, fmt.Errorf("parsing timestamp: %w", err)
	}

	if argsJSON != nil {
		if err := json.Unmarshal([]byte(*argsJSON), &c.Arguments); err != nil {
			return c, fmt.Errorf("unmarshaling arguments: %w", err)
		}
	}
	return c, nil
}
