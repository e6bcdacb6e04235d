package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunStatus mirrors the scan_runs status column.
type RunStatus string

// Scan run statuses persisted in scan_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// ScanRun models one invocation of the scan driver.
type ScanRun struct {
	// ID is the run identifier shared with progress events.
	ID uuid.UUID
	// StartedAt captures when the run was first marked running.
	StartedAt time.Time
	// FinishedAt is nil until the run is marked success/error.
	FinishedAt *time.Time
	// Status is running/success/error.
	Status RunStatus
	// StartID is the first vacancy ID the run attempted.
	StartID int64
	// EndID is nil for unbounded scans.
	EndID *int64
	// Processed/Stored/Missed count attempted IDs and their outcomes.
	Processed int64
	Stored    int64
	Missed    int64
	// LastID is the highest vacancy ID reached, nil before the first one.
	LastID *int64
	// ErrorMessage optionally stores the final failure reason.
	ErrorMessage *string
}

// RunRepository persists incremental scan-run progress.
type RunRepository interface {
	// StartRun inserts a new run in the running state.
	StartRun(ctx context.Context, id uuid.UUID, startedAt time.Time, startID int64, endID *int64) error
	// ApplyRunCounts adds outcome deltas and advances last_id.
	ApplyRunCounts(ctx context.Context, id uuid.UUID, deltaProcessed, deltaStored, deltaMissed int64, lastID int64) error
	// CompleteRun marks the run finished with the provided status and error.
	CompleteRun(ctx context.Context, id uuid.UUID, finishedAt time.Time, status RunStatus, errMsg *string) error
	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, id uuid.UUID) (ScanRun, error)
	// ListRuns returns runs filtered by optional status plus limit/offset,
	// newest first.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]ScanRun, error)
}
