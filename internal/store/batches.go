// ABOUTME: Batch run history methods for SQLiteStore
// ABOUTME: Stores one summary row per convert_batch execution

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordBatch stores a batch summary. Generates ID and StartedAt if not set.
func (s *SQLiteStore) RecordBatch(ctx context.Context, b *BatchRun) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.StartedAt.IsZero() {
		b.StartedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO batch_runs (batch_id, format, output_dir, total, succeeded, failed, parallel, max_workers, index_file, error, elapsed_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		b.ID,
		b.Format,
		b.OutputDir,
		b.Total,
		b.Succeeded,
		b.Failed,
		boolToInt(b.Parallel),
		b.MaxWorkers,
		b.IndexFile,
		b.Error,
		b.Elapsed.Milliseconds(),
		b.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting batch run: %w", err)
	}

	s.logger.Debug("recorded batch run",
		"id", b.ID,
		"total", b.Total,
		"failed", b.Failed,
	)
	return nil
}

const batchColumns = `batch_id, format, output_dir, total, succeeded, failed, parallel, max_workers, index_file, error, elapsed_ms, started_at`

// GetBatch retrieves a batch summary by ID.
func (s *SQLiteStore) GetBatch(ctx context.Context, id string) (*BatchRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batch_runs WHERE batch_id = ?`, id)
	b, err := scanBatchRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBatches returns the most recent batch summaries, newest first.
func (s *SQLiteStore) ListBatches(ctx context.Context, limit int) ([]BatchRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+batchColumns+` FROM batch_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying batch runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []BatchRun
	for rows.Next() {
		b, err := scanBatchRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating batch runs: %w", err)
	}

	if runs == nil {
		runs = []BatchRun{}
	}
	return runs, nil
}

// scanBatchRun scans a row into a BatchRun. sql.ErrNoRows is returned unwrapped.
func scanBatchRun(scanner interface{ Scan(dest ...any) error }) (BatchRun, error) {
	var b BatchRun
	var parallel int
	var elapsedMS int64
	var startedStr string

	err := scanner.Scan(
		&b.ID,
		&b.Format,
		&b.OutputDir,
		&b.Total,
		&b.Succeeded,
		&b.Failed,
		&parallel,
		&b.MaxWorkers,
		&b.IndexFile,
		&b.Error,
		&elapsedMS,
		&startedStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return b, err
	}
	if err != nil {
		return b, fmt.Errorf("scanning batch run: %w", err)
	}

	b.Parallel = parallel != 0
	b.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	b.StartedAt, err = time.Parse(time.RFC3339, startedStr)
	if err != nil {
		return b, fmt.Errorf("parsing started_at: %w", err)
	}
	return b, nil
}
