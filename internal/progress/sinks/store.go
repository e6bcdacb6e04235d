package sinks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seawork/vacancy-crawler/internal/progress"
	"github.com/seawork/vacancy-crawler/internal/store"
)

// StoreSink persists scan-run progress via a store.RunRepository. Per-ID
// events are folded into count deltas per run to reduce write amplification.
type StoreSink struct {
	runs   store.RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(runs store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{runs: runs, logger: logger}
}

// Consume folds per-ID outcomes into run count deltas and forwards lifecycle
// events to the repository. It respects ctx deadlines and returns repository
// errors verbatim. Pending deltas for a run flush before its completion so the
// final row already carries the counts.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.runs == nil {
		return nil
	}
	deltas := make(map[uuid.UUID]*runDelta)

	for _, evt := range batch {
		runID := evt.RunUUID()
		switch evt.Stage {
		case progress.StageRunStart:
			if err := s.runs.StartRun(ctx, runID, evt.TS, evt.StartID, evt.EndID); err != nil {
				return fmt.Errorf("start run: %w", err)
			}
		case progress.StageIDDone:
			recordOutcome(deltas, runID, evt)
		case progress.StageRunDone, progress.StageRunError:
			if err := s.flushDelta(ctx, runID, deltas); err != nil {
				return err
			}
			if err := s.completeRun(ctx, runID, evt); err != nil {
				return err
			}
		}
	}

	for runID := range deltas {
		if err := s.flushDelta(ctx, runID, deltas); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreSink) completeRun(ctx context.Context, runID uuid.UUID, evt progress.Event) error {
	status := store.RunSuccess
	var errMsg *string
	if evt.Stage == progress.StageRunError {
		status = store.RunError
		if evt.Note != "" {
			note := evt.Note
			errMsg = &note
		}
	}
	if err := s.runs.CompleteRun(ctx, runID, evt.TS, status, errMsg); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

func (s *StoreSink) flushDelta(ctx context.Context, runID uuid.UUID, deltas map[uuid.UUID]*runDelta) error {
	delta := deltas[runID]
	if delta == nil || delta.processed == 0 {
		return nil
	}
	delete(deltas, runID)
	if err := s.runs.ApplyRunCounts(ctx, runID, delta.processed, delta.stored, delta.missed, delta.lastID); err != nil {
		return fmt.Errorf("apply run counts: %w", err)
	}
	return nil
}

func recordOutcome(deltas map[uuid.UUID]*runDelta, runID uuid.UUID, evt progress.Event) {
	delta := deltas[runID]
	if delta == nil {
		delta = &runDelta{}
		deltas[runID] = delta
	}
	delta.processed++
	switch evt.Outcome {
	case progress.OutcomeStored:
		delta.stored++
	case progress.OutcomeMiss:
		delta.missed++
	}
	if evt.VacancyID > delta.lastID {
		delta.lastID = evt.VacancyID
	}
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

type runDelta struct {
	processed int64
	stored    int64
	missed    int64
	lastID    int64
}
