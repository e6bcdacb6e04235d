package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seawork/vacancy-crawler/internal/fetcher"
	"github.com/seawork/vacancy-crawler/internal/progress"
	"github.com/seawork/vacancy-crawler/internal/publish"
	pubmem "github.com/seawork/vacancy-crawler/internal/publish/memory"
	memstore "github.com/seawork/vacancy-crawler/internal/storage/memory"
	"github.com/seawork/vacancy-crawler/internal/store"
)

// testClock advances a fixed step on every read so event durations come out
// positive and deterministic.
type testClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newTestClock() *testClock {
	return &testClock{
		now:  time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC),
		step: 25 * time.Millisecond,
	}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

type eventRecorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *eventRecorder) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *eventRecorder) all() []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *eventRecorder) stages() []progress.Stage {
	var stages []progress.Stage
	for _, evt := range r.all() {
		stages = append(stages, evt.Stage)
	}
	return stages
}

func newTestScanner(
	cfg ScannerConfig,
	fetch Fetcher,
	vacancies store.VacancyRepository,
	rec *eventRecorder,
	pub publish.Publisher,
) *Scanner {
	proc := NewProcessor(ProcessorConfig{BaseURL: cfg.BaseURL}, fetch, vacancies, &stubResolver{id: 88}, nil, zap.NewNop())
	recordSleep(proc)
	s := NewScanner(cfg, proc, vacancies, &stubIDs{}, newTestClock(), rec, pub, zap.NewNop())
	s.sleep = func(context.Context, time.Duration) bool { return true }
	return s
}

func TestScannerBoundedRangeVisitsSpan(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{replies: []fetchReply{okReply(missPage)}}
	rec := &eventRecorder{}
	s := newTestScanner(ScannerConfig{BaseURL: "https://sea.example/eng"},
		fetch, memstore.NewVacancyStore(313620), rec, nil)

	summary := s.ScanRange(context.Background(), 10, 13)
	assert.NotEqual(t, uuid.Nil, summary.RunID)
	assert.Equal(t, int64(10), summary.StartID)
	assert.Equal(t, int64(3), summary.Processed)
	assert.Equal(t, int64(0), summary.Stored)
	assert.Equal(t, int64(3), summary.Missed)
	assert.Equal(t, int64(12), summary.LastID)

	events := rec.all()
	require.Len(t, events, 5)
	assert.Equal(t, []progress.Stage{
		progress.StageRunStart,
		progress.StageIDDone, progress.StageIDDone, progress.StageIDDone,
		progress.StageRunDone,
	}, rec.stages())

	start := events[0]
	assert.Equal(t, int64(10), start.StartID)
	require.NotNil(t, start.EndID)
	assert.Equal(t, int64(13), *start.EndID)

	for i, id := range []int64{10, 11, 12} {
		evt := events[i+1]
		assert.Equal(t, id, evt.VacancyID)
		assert.Equal(t, progress.OutcomeMiss, evt.Outcome)
		assert.Greater(t, evt.Dur, time.Duration(0))
	}
	for _, evt := range events {
		assert.NoError(t, evt.Validate())
	}
}

func TestScannerBoundedDefaultSpan(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{replies: []fetchReply{okReply(missPage)}}
	rec := &eventRecorder{}
	s := newTestScanner(ScannerConfig{BaseURL: "https://sea.example/eng", BoundedSpan: 2},
		fetch, memstore.NewVacancyStore(313620), rec, nil)

	summary := s.ScanRange(context.Background(), 10, 0)
	assert.Equal(t, int64(2), summary.Processed)
	assert.Equal(t, int64(11), summary.LastID)

	start := rec.all()[0]
	require.NotNil(t, start.EndID)
	assert.Equal(t, int64(12), *start.EndID)
}

func TestScannerUnboundedStopsAtMissThreshold(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{replies: []fetchReply{okReply(storedPage), okReply(missPage)}}
	vacancies := memstore.NewVacancyStore(313620)
	rec := &eventRecorder{}
	pub := pubmem.New()
	s := newTestScanner(ScannerConfig{
		BaseURL:       "https://sea.example/eng",
		MissThreshold: 3,
		Topic:         "vacancies.new",
	}, fetch, vacancies, rec, pub)

	summary := s.ScanForward(context.Background(), 100)
	assert.Equal(t, int64(4), summary.Processed)
	assert.Equal(t, int64(1), summary.Stored)
	assert.Equal(t, int64(3), summary.Missed)
	assert.Equal(t, int64(103), summary.LastID)

	events := rec.all()
	require.Len(t, events, 6)
	assert.Nil(t, events[0].EndID)
	assert.Equal(t, progress.OutcomeStored, events[1].Outcome)
	for _, evt := range events[2:5] {
		assert.Equal(t, progress.OutcomeMiss, evt.Outcome)
	}
	assert.Equal(t, progress.StageRunDone, events[5].Stage)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "vacancies.new", msgs[0].Topic)
	ann, ok := msgs[0].Payload.(publish.Announcement)
	require.True(t, ok)
	assert.Equal(t, int64(100), ann.ID)
	assert.Equal(t, "Chief Engineer on Container Ship", ann.Title)
	assert.Equal(t, "https://sea.example/eng/vacancy/100", ann.URL)
	require.NotNil(t, ann.CompanyID)
	assert.Equal(t, int64(88), *ann.CompanyID)
}

func TestScannerMissRunResetsOnHit(t *testing.T) {
	t.Parallel()

	// Two misses, a hit, then misses again: the consecutive counter must
	// restart after the hit.
	fetch := &scriptedFetcher{replies: []fetchReply{
		okReply(missPage), okReply(missPage), okReply(storedPage), okReply(missPage),
	}}
	rec := &eventRecorder{}
	s := newTestScanner(ScannerConfig{BaseURL: "https://sea.example/eng", MissThreshold: 3},
		fetch, memstore.NewVacancyStore(313620), rec, nil)

	summary := s.ScanForward(context.Background(), 50)
	assert.Equal(t, int64(6), summary.Processed)
	assert.Equal(t, int64(1), summary.Stored)
	assert.Equal(t, int64(5), summary.Missed)
	assert.Equal(t, int64(55), summary.LastID)
}

func TestScannerResumesPastLastKnownID(t *testing.T) {
	t.Parallel()

	vacancies := memstore.NewVacancyStore(313620)
	require.NoError(t, vacancies.UpsertVacancy(context.Background(), store.Vacancy{ID: 313625, Title: "Cook"}))

	fetch := &scriptedFetcher{replies: []fetchReply{okReply(missPage)}}
	rec := &eventRecorder{}
	s := newTestScanner(ScannerConfig{BaseURL: "https://sea.example/eng", MissThreshold: 1},
		fetch, vacancies, rec, nil)

	summary := s.ScanForward(context.Background(), 0)
	assert.Equal(t, int64(313626), summary.StartID)
	assert.Equal(t, int64(313626), summary.LastID)
	assert.Equal(t, int64(313626), rec.all()[0].StartID)
}

func TestScannerSeedStartOnEmptyStore(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{replies: []fetchReply{okReply(missPage)}}
	rec := &eventRecorder{}
	s := newTestScanner(ScannerConfig{BaseURL: "https://sea.example/eng", MissThreshold: 1},
		fetch, memstore.NewVacancyStore(313620), rec, nil)

	summary := s.ScanForward(context.Background(), 0)
	assert.Equal(t, int64(313621), summary.StartID)
}

type unavailableVacancies struct{}

func (unavailableVacancies) UpsertVacancy(context.Context, store.Vacancy) error {
	return errors.New("store offline")
}

func (unavailableVacancies) LastKnownID(context.Context) (int64, error) {
	return 0, errors.New("store offline")
}

func (unavailableVacancies) GetVacancy(context.Context, int64) (store.Vacancy, error) {
	return store.Vacancy{}, errors.New("store offline")
}

func (unavailableVacancies) RecentVacancies(context.Context, int) ([]store.Vacancy, error) {
	return nil, errors.New("store offline")
}

func TestScannerStartResolutionFailureEmitsNothing(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{replies: []fetchReply{okReply(missPage)}}
	rec := &eventRecorder{}
	s := newTestScanner(ScannerConfig{BaseURL: "https://sea.example/eng"},
		fetch, unavailableVacancies{}, rec, nil)

	summary := s.ScanForward(context.Background(), 0)
	assert.NotEqual(t, uuid.Nil, summary.RunID)
	assert.Equal(t, int64(0), summary.Processed)
	assert.Empty(t, rec.all())
	assert.Equal(t, 0, fetch.callCount())
}

func TestScannerReportsUnreachableNetwork(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{replies: []fetchReply{transportReply()}}
	rec := &eventRecorder{}
	s := newTestScanner(ScannerConfig{BaseURL: "https://sea.example/eng", MissThreshold: 2},
		fetch, memstore.NewVacancyStore(313620), rec, nil)

	summary := s.ScanForward(context.Background(), 200)
	assert.Equal(t, int64(2), summary.Processed)
	assert.Equal(t, int64(0), summary.Stored)

	events := rec.all()
	require.Len(t, events, 4)
	final := events[3]
	assert.Equal(t, progress.StageRunError, final.Stage)
	assert.Equal(t, "network unreachable", final.Note)
	assert.NoError(t, final.Validate())
}

func TestScannerHTTPErrorsAreNotUnreachable(t *testing.T) {
	t.Parallel()

	// The source answering with errors is a reachable source; the run still
	// completes as a success with zero stored vacancies.
	fetch := &scriptedFetcher{replies: []fetchReply{statusReply(500)}}
	rec := &eventRecorder{}
	s := newTestScanner(ScannerConfig{BaseURL: "https://sea.example/eng", MissThreshold: 2},
		fetch, memstore.NewVacancyStore(313620), rec, nil)

	s.ScanForward(context.Background(), 200)

	events := rec.all()
	require.NotEmpty(t, events)
	assert.Equal(t, progress.StageRunDone, events[len(events)-1].Stage)
}

func TestScannerPacingStopEndsRun(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{replies: []fetchReply{okReply(missPage)}}
	rec := &eventRecorder{}
	s := newTestScanner(ScannerConfig{BaseURL: "https://sea.example/eng", BaseDelay: time.Second},
		fetch, memstore.NewVacancyStore(313620), rec, nil)
	s.sleep = func(context.Context, time.Duration) bool { return false }

	summary := s.ScanRange(context.Background(), 5, 10)
	assert.Equal(t, int64(1), summary.Processed)
	assert.Equal(t, int64(5), summary.LastID)
	assert.Equal(t, []progress.Stage{
		progress.StageRunStart, progress.StageIDDone, progress.StageRunDone,
	}, rec.stages())
}

func TestScannerCancelDropsInFlightID(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	fetch := funcFetcher(func(context.Context, string) (fetcher.Result, error) {
		calls++
		if calls == 1 {
			return fetcher.Result{StatusCode: 200, Body: []byte(missPage)}, nil
		}
		// The stop request lands while the second ID is in flight.
		cancel()
		return fetcher.Result{}, errors.New("context canceled")
	})
	rec := &eventRecorder{}
	s := newTestScanner(ScannerConfig{BaseURL: "https://sea.example/eng"},
		fetch, memstore.NewVacancyStore(313620), rec, nil)

	summary := s.ScanRange(ctx, 5, 10)
	assert.Equal(t, int64(1), summary.Processed)
	assert.Equal(t, int64(5), summary.LastID)

	events := rec.all()
	require.Len(t, events, 3)
	assert.Equal(t, progress.StageRunDone, events[2].Stage)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, any) (string, error) {
	return "", errors.New("broker unavailable")
}

func TestScannerAnnouncementFailureTolerated(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{replies: []fetchReply{okReply(storedPage), okReply(missPage)}}
	vacancies := memstore.NewVacancyStore(313620)
	rec := &eventRecorder{}
	s := newTestScanner(ScannerConfig{BaseURL: "https://sea.example/eng", MissThreshold: 1, Topic: "vacancies.new"},
		fetch, vacancies, rec, failingPublisher{})

	summary := s.ScanForward(context.Background(), 100)
	assert.Equal(t, int64(1), summary.Stored)

	_, err := vacancies.GetVacancy(context.Background(), 100)
	assert.NoError(t, err)
}

func TestScannerMintFailureAbortsRun(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{replies: []fetchReply{okReply(missPage)}}
	rec := &eventRecorder{}
	s := newTestScanner(ScannerConfig{BaseURL: "https://sea.example/eng"},
		fetch, memstore.NewVacancyStore(313620), rec, nil)
	s.ids = &stubIDs{err: errors.New("entropy exhausted")}

	summary := s.ScanForward(context.Background(), 100)
	assert.Equal(t, uuid.Nil, summary.RunID)
	assert.Empty(t, rec.all())
	assert.Equal(t, 0, fetch.callCount())
}
