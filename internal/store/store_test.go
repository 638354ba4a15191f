// ABOUTME: Tests for SQLite store tool call and batch history
// ABOUTME: Uses a temporary database file per test

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func ptr[T any](v T) *T { return &v }

func TestNewSQLiteStore_CreatesParentDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "history.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	assert.FileExists(t, dbPath)
}

func TestNewSQLiteStore_Memory(t *testing.T) {
	store, err := NewSQLiteStore(MemoryPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.RecordToolCall(ctx, &ToolCall{Tool: "compiler_info", Transport: TransportStdio, Success: true}))

	calls, err := store.ListToolCalls(ctx, ToolCallFilter{})
	require.NoError(t, err)
	assert.Len(t, calls, 1)
}

func TestRecordToolCall_GeneratesIDAndTimestamp(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	call := &ToolCall{
		Tool:      "compile_document",
		Transport: TransportStdio,
		Arguments: map[string]any{"output_format": "html"},
		Success:   true,
		Duration:  1500 * time.Millisecond,
	}
	require.NoError(t, store.RecordToolCall(ctx, call))

	assert.NotEmpty(t, call.ID)
	assert.False(t, call.Timestamp.IsZero())

	calls, err := store.ListToolCalls(ctx, ToolCallFilter{})
	require.NoError(t, err)
	require.Len(t, calls, 1)

	got := calls[0]
	assert.Equal(t, call.ID, got.ID)
	assert.Equal(t, "compile_document", got.Tool)
	assert.Equal(t, TransportStdio, got.Transport)
	assert.Equal(t, "html", got.Arguments["output_format"])
	assert.True(t, got.Success)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
}

func TestListToolCalls_Filters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	records := []ToolCall{
		{Tool: "compile_document", Success: true, Timestamp: base},
		{Tool: "validate_markdown", Success: false, Error: "Missing required arguments: source_content", Timestamp: base.Add(time.Minute)},
		{Tool: "compile_document", Success: false, Error: "boom", Timestamp: base.Add(2 * time.Minute)},
	}
	for i := range records {
		records[i].Transport = TransportHTTP
		require.NoError(t, store.RecordToolCall(ctx, &records[i]))
	}

	tests := []struct {
		name   string
		filter ToolCallFilter
		want   []string
	}{
		{"all newest first", ToolCallFilter{}, []string{records[2].ID, records[1].ID, records[0].ID}},
		{"by tool", ToolCallFilter{Tool: ptr("compile_document")}, []string{records[2].ID, records[0].ID}},
		{"failures", ToolCallFilter{Success: ptr(false)}, []string{records[2].ID, records[1].ID}},
		{"since", ToolCallFilter{Since: ptr(base.Add(time.Minute))}, []string{records[2].ID, records[1].ID}},
		{"limit", ToolCallFilter{Limit: 1}, []string{records[2].ID}},
		{"no match", ToolCallFilter{Tool: ptr("preview_server")}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls, err := store.ListToolCalls(ctx, tt.filter)
			require.NoError(t, err)

			ids := make([]string, 0, len(calls))
			for _, c := range calls {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestRecordBatch_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run := &BatchRun{
		Format:     "html",
		OutputDir:  "/tmp/out",
		Total:      3,
		Succeeded:  2,
		Failed:     1,
		Parallel:   true,
		MaxWorkers: 4,
		IndexFile:  "/tmp/out/index.html",
		Elapsed:    2 * time.Second,
	}
	require.NoError(t, store.RecordBatch(ctx, run))
	assert.NotEmpty(t, run.ID)

	got, err := store.GetBatch(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 2, got.Succeeded)
	assert.Equal(t, 1, got.Failed)
	assert.True(t, got.Parallel)
	assert.Equal(t, "/tmp/out/index.html", got.IndexFile)
	assert.Equal(t, 2*time.Second, got.Elapsed)
	assert.WithinDuration(t, run.StartedAt, got.StartedAt, time.Second)

	_, err = store.GetBatch(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordBatch_DuplicateID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordBatch(ctx, &BatchRun{ID: "b1", Format: "html"}))
	assert.Error(t, store.RecordBatch(ctx, &BatchRun{ID: "b1", Format: "html"}))
}

func TestListBatches_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, store.RecordBatch(ctx, &BatchRun{
			ID:        id,
			Format:    "md",
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	runs, err := store.ListBatches(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "third", runs[0].ID)
	assert.Equal(t, "first", runs[2].ID)

	runs, err = store.ListBatches(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestListBatches_Empty(t *testing.T) {
	store := setupTestStore(t)

	runs, err := store.ListBatches(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, 100, normalizeLimit(0))
	assert.Equal(t, 100, normalizeLimit(-5))
	assert.Equal(t, 50, normalizeLimit(50))
	assert.Equal(t, 1000, normalizeLimit(5000))
}
