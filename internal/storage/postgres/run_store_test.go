package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/seawork/vacancy-crawler/internal/store"
)

func TestStartRunInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rs := NewRunStore(mock)
	runID := uuid.New()
	started := time.Unix(1700000000, 0).UTC()
	var endID *int64

	mock.ExpectExec("INSERT INTO scan_runs").
		WithArgs(runID, started, store.RunRunning, int64(313621), endID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = rs.StartRun(context.Background(), runID, started, 313621, endID)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRunCountsAccumulates(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rs := NewRunStore(mock)
	runID := uuid.New()

	mock.ExpectExec("UPDATE scan_runs").
		WithArgs(runID, int64(3), int64(2), int64(1), int64(313623)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = rs.ApplyRunCounts(context.Background(), runID, 3, 2, 1, 313623)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteRunWritesStatus(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rs := NewRunStore(mock)
	runID := uuid.New()
	finished := time.Unix(1700009000, 0).UTC()
	msg := "network unreachable"

	mock.ExpectExec("UPDATE scan_runs").
		WithArgs(runID, finished, store.RunError, &msg).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = rs.CompleteRun(context.Background(), runID, finished, store.RunError, &msg)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunScansRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rs := NewRunStore(mock)
	runID := uuid.New()
	started := time.Unix(1700000000, 0).UTC()
	lastID := int64(313624)

	rows := pgxmock.NewRows([]string{
		"id", "started_at", "finished_at", "status", "start_id", "end_id",
		"processed", "stored", "missed", "last_id", "error_message",
	}).AddRow(
		runID, started, (*time.Time)(nil), store.RunRunning, int64(313621),
		(*int64)(nil), int64(4), int64(2), int64(2), &lastID, (*string)(nil),
	)

	mock.ExpectQuery("FROM scan_runs").
		WithArgs(runID).
		WillReturnRows(rows)

	run, err := rs.GetRun(context.Background(), runID)
	require.NoError(t, err)
	require.Equal(t, runID, run.ID)
	require.Equal(t, store.RunRunning, run.Status)
	require.Equal(t, int64(4), run.Processed)
	require.NotNil(t, run.LastID)
	require.Equal(t, int64(313624), *run.LastID)
	require.Nil(t, run.FinishedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRunsFiltersStatus(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rs := NewRunStore(mock)
	runID := uuid.New()
	started := time.Unix(1700000000, 0).UTC()
	finished := started.Add(time.Minute)
	msg := "network unreachable"
	failed := store.RunError

	rows := pgxmock.NewRows([]string{
		"id", "started_at", "finished_at", "status", "start_id", "end_id",
		"processed", "stored", "missed", "last_id", "error_message",
	}).AddRow(
		runID, started, &finished, store.RunError, int64(313621),
		(*int64)(nil), int64(5), int64(0), int64(5), (*int64)(nil), &msg,
	)

	mock.ExpectQuery("FROM scan_runs").
		WithArgs(&failed, 10, 0).
		WillReturnRows(rows)

	runs, err := rs.ListRuns(context.Background(), &failed, 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, store.RunError, runs[0].Status)
	require.NotNil(t, runs[0].ErrorMessage)
	require.Equal(t, "network unreachable", *runs[0].ErrorMessage)
	require.NoError(t, mock.ExpectationsWereMet())
}
