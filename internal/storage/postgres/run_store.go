package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/seawork/vacancy-crawler/internal/store"
)

// RunStore implements store.RunRepository using Postgres.
type RunStore struct {
	pool dbPool
}

// NewRunStore creates a RunStore on top of an existing pool.
func NewRunStore(pool dbPool) *RunStore {
	return &RunStore{pool: pool}
}

const selectRunSQL = `
	SELECT id, started_at, finished_at, status, COALESCE(start_id, 0),
		end_id, processed, stored, missed, last_id, error_message
	FROM scan_runs
`

// StartRun inserts a new run in the running state.
func (s *RunStore) StartRun(ctx context.Context, id uuid.UUID, startedAt time.Time, startID int64, endID *int64) error {
	query := `
		INSERT INTO scan_runs (id, started_at, status, start_id, end_id)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err := s.pool.Exec(ctx, query, id, startedAt, store.RunRunning, startID, endID)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// ApplyRunCounts adds outcome deltas and advances last_id.
func (s *RunStore) ApplyRunCounts(ctx context.Context, id uuid.UUID, deltaProcessed, deltaStored, deltaMissed int64, lastID int64) error {
	query := `
		UPDATE scan_runs
		SET processed = processed + $2, stored = stored + $3,
			missed = missed + $4,
			last_id = GREATEST(COALESCE(last_id, 0), $5)
		WHERE id = $1;
	`
	_, err := s.pool.Exec(ctx, query, id, deltaProcessed, deltaStored, deltaMissed, lastID)
	if err != nil {
		return fmt.Errorf("failed to apply run counts: %w", err)
	}
	return nil
}

// CompleteRun marks the run finished with the provided status and error.
func (s *RunStore) CompleteRun(ctx context.Context, id uuid.UUID, finishedAt time.Time, status store.RunStatus, errMsg *string) error {
	query := `
		UPDATE scan_runs
		SET finished_at = $2, status = $3, error_message = $4
		WHERE id = $1;
	`
	_, err := s.pool.Exec(ctx, query, id, finishedAt, status, errMsg)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRun retrieves a single scan run by its ID.
func (s *RunStore) GetRun(ctx context.Context, id uuid.UUID) (store.ScanRun, error) {
	row := s.pool.QueryRow(ctx, selectRunSQL+` WHERE id = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return store.ScanRun{}, store.ErrNotFound
		}
		return store.ScanRun{}, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first, optionally filtered by status.
func (s *RunStore) ListRuns(ctx context.Context, status *store.RunStatus, limit, offset int) ([]store.ScanRun, error) {
	query := selectRunSQL + `
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.pool.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []store.ScanRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (store.ScanRun, error) {
	var run store.ScanRun
	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Status,
		&run.StartID,
		&run.EndID,
		&run.Processed,
		&run.Stored,
		&run.Missed,
		&run.LastID,
		&run.ErrorMessage,
	)
	return run, err
}
