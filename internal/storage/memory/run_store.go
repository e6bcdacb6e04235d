package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seawork/vacancy-crawler/internal/store"
)

// RunStore provides an in-memory implementation for development/testing.
type RunStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]store.ScanRun
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[uuid.UUID]store.ScanRun)}
}

// StartRun inserts a new run in the running state.
func (s *RunStore) StartRun(_ context.Context, id uuid.UUID, startedAt time.Time, startID int64, endID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[id] = store.ScanRun{
		ID:        id,
		StartedAt: startedAt,
		Status:    store.RunRunning,
		StartID:   startID,
		EndID:     endID,
	}
	return nil
}

// ApplyRunCounts adds outcome deltas and advances last_id.
func (s *RunStore) ApplyRunCounts(_ context.Context, id uuid.UUID, deltaProcessed, deltaStored, deltaMissed int64, lastID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	run.Processed += deltaProcessed
	run.Stored += deltaStored
	run.Missed += deltaMissed
	if run.LastID == nil || lastID > *run.LastID {
		last := lastID
		run.LastID = &last
	}
	s.runs[id] = run
	return nil
}

// CompleteRun marks the run finished with the provided status and error.
func (s *RunStore) CompleteRun(_ context.Context, id uuid.UUID, finishedAt time.Time, status store.RunStatus, errMsg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	ts := finishedAt
	run.FinishedAt = &ts
	run.Status = status
	run.ErrorMessage = errMsg
	s.runs[id] = run
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, id uuid.UUID) (store.ScanRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ScanRun{}, store.ErrNotFound
	}
	return run, nil
}

// ListRuns returns runs newest first, optionally filtered by status.
func (s *RunStore) ListRuns(_ context.Context, status *store.RunStatus, limit, offset int) ([]store.ScanRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.ScanRun, 0, len(s.runs))
	for _, run := range s.runs {
		if status != nil && run.Status != *status {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if offset >= len(out) {
		return []store.ScanRun{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
