// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu      sync.RWMutex
	calls   []ToolCall          // in insertion order
	batches map[string]BatchRun // keyed by batch ID
	order   []string            // batch IDs in insertion order
	err     error               // returned by every write when set
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		batches: make(map[string]BatchRun),
	}
}

// FailWrites makes every subsequent Record call return err.
func (m *MockStore) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// RecordToolCall stores a copy of the call.
func (m *MockStore) RecordToolCall(ctx context.Context, c *ToolCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	m.calls = append(m.calls, *c)
	return nil
}

// ListToolCalls returns matching calls, newest first.
func (m *MockStore) ListToolCalls(ctx context.Context, f ToolCallFilter) ([]ToolCall, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := normalizeLimit(f.Limit)
	out := []ToolCall{}
	for i := len(m.calls) - 1; i >= 0 && len(out) < limit; i-- {
		c := m.calls[i]
		if f.Tool != nil && c.Tool != *f.Tool {
			continue
		}
		if f.Success != nil && c.Success != *f.Success {
			continue
		}
		if f.Since != nil && c.Timestamp.Before(*f.Since) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// RecordBatch stores a copy of the batch summary.
func (m *MockStore) RecordBatch(ctx context.Context, b *BatchRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}

	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.StartedAt.IsZero() {
		b.StartedAt = time.Now().UTC()
	}
	if _, exists := m.batches[b.ID]; exists {
		return fmt.Errorf("inserting batch run: duplicate id %s", b.ID)
	}
	m.batches[b.ID] = *b
	m.order = append(m.order, b.ID)
	return nil
}

// GetBatch retrieves a batch summary by ID.
func (m *MockStore) GetBatch(ctx context.Context, id string) (*BatchRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.batches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

// ListBatches returns the most recent batch summaries, newest first.
func (m *MockStore) ListBatches(ctx context.Context, limit int) ([]BatchRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = normalizeLimit(limit)
	out := []BatchRun{}
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.batches[m.order[i]])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}

// Compile-time check that MockStore implements Store.
var _ Store = (*MockStore)(nil)
