package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/seawork/vacancy-crawler/internal/progress"
	"github.com/seawork/vacancy-crawler/internal/store"
)

// TestStoreSinkFoldsRunCounts ensures per-ID outcomes collapse into one counts
// delta and the completion carries the final status.
func TestStoreSinkFoldsRunCounts(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	runUUID := uuid.New()
	runID := progress.UUIDToBytes(runUUID)
	now := time.Now()

	batch := []progress.Event{
		{RunID: runID, Stage: progress.StageRunStart, TS: now, StartID: 313620},
		{
			RunID:     runID,
			Stage:     progress.StageIDDone,
			TS:        now.Add(5 * time.Second),
			VacancyID: 313620,
			Outcome:   progress.OutcomeStored,
			Attempts:  1,
		},
		{
			RunID:     runID,
			Stage:     progress.StageIDDone,
			TS:        now.Add(10 * time.Second),
			VacancyID: 313621,
			Outcome:   progress.OutcomeMiss,
			Attempts:  4,
		},
		{
			RunID:     runID,
			Stage:     progress.StageIDDone,
			TS:        now.Add(15 * time.Second),
			VacancyID: 313622,
			Outcome:   progress.OutcomeStored,
			Attempts:  2,
		},
		{RunID: runID, Stage: progress.StageRunDone, TS: now.Add(16 * time.Second), Dur: 16 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Len(t, repo.starts, 1)
	require.Equal(t, runUUID, repo.starts[0].id)
	require.Equal(t, int64(313620), repo.starts[0].startID)
	require.Nil(t, repo.starts[0].endID)

	require.Len(t, repo.counts, 1)
	counts := repo.counts[0]
	require.Equal(t, int64(3), counts.processed)
	require.Equal(t, int64(2), counts.stored)
	require.Equal(t, int64(1), counts.missed)
	require.Equal(t, int64(313622), counts.lastID)

	require.Len(t, repo.completes, 1)
	require.Equal(t, store.RunSuccess, repo.completes[0].status)
	require.Nil(t, repo.completes[0].errMsg)
}

// TestStoreSinkMidRunBatch flushes accumulated deltas even without a lifecycle event.
func TestStoreSinkMidRunBatch(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()

	batch := []progress.Event{
		{RunID: runID, Stage: progress.StageIDDone, TS: now, VacancyID: 10, Outcome: progress.OutcomeMiss},
		{RunID: runID, Stage: progress.StageIDDone, TS: now, VacancyID: 11, Outcome: progress.OutcomeMiss},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Empty(t, repo.starts)
	require.Empty(t, repo.completes)
	require.Len(t, repo.counts, 1)
	require.Equal(t, int64(2), repo.counts[0].processed)
	require.Equal(t, int64(2), repo.counts[0].missed)
	require.Equal(t, int64(11), repo.counts[0].lastID)
}

// TestStoreSinkRecordsFailureNote maps RUN_ERROR onto an error completion with the note.
func TestStoreSinkRecordsFailureNote(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	runID := progress.UUIDToBytes(uuid.New())

	batch := []progress.Event{
		{RunID: runID, Stage: progress.StageRunError, TS: time.Now(), Note: "network unreachable"},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Len(t, repo.completes, 1)
	require.Equal(t, store.RunError, repo.completes[0].status)
	require.NotNil(t, repo.completes[0].errMsg)
	require.Equal(t, "network unreachable", *repo.completes[0].errMsg)
}

// TestStoreSinkHandlesErrors surfaces repository failures back to the caller.
func TestStoreSinkHandlesErrors(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{fail: true}
	sink := NewStoreSink(repo, nil)
	runID := progress.UUIDToBytes(uuid.New())
	err := sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, Stage: progress.StageRunStart, TS: time.Now(), StartID: 1},
	})
	require.Error(t, err)
}

type fakeRunRepo struct {
	fail      bool
	starts    []startCall
	counts    []countsCall
	completes []completeCall
}

type startCall struct {
	id      uuid.UUID
	startID int64
	endID   *int64
}

type countsCall struct {
	id        uuid.UUID
	processed int64
	stored    int64
	missed    int64
	lastID    int64
}

type completeCall struct {
	id     uuid.UUID
	status store.RunStatus
	errMsg *string
}

func (f *fakeRunRepo) StartRun(_ context.Context, id uuid.UUID, startedAt time.Time, startID int64, endID *int64) error {
	if f.fail {
		return assertErr("start")
	}
	_ = startedAt
	f.starts = append(f.starts, startCall{id: id, startID: startID, endID: endID})
	return nil
}

func (f *fakeRunRepo) ApplyRunCounts(
	_ context.Context,
	id uuid.UUID,
	deltaProcessed, deltaStored, deltaMissed int64,
	lastID int64,
) error {
	if f.fail {
		return assertErr("counts")
	}
	f.counts = append(f.counts, countsCall{
		id:        id,
		processed: deltaProcessed,
		stored:    deltaStored,
		missed:    deltaMissed,
		lastID:    lastID,
	})
	return nil
}

func (f *fakeRunRepo) CompleteRun(
	_ context.Context,
	id uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	errMsg *string,
) error {
	if f.fail {
		return assertErr("complete")
	}
	_ = finishedAt
	f.completes = append(f.completes, completeCall{id: id, status: status, errMsg: errMsg})
	return nil
}

func (f *fakeRunRepo) GetRun(context.Context, uuid.UUID) (store.ScanRun, error) {
	return store.ScanRun{}, assertErr("read")
}

func (f *fakeRunRepo) ListRuns(context.Context, *store.RunStatus, int, int) ([]store.ScanRun, error) {
	return nil, assertErr("list")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
