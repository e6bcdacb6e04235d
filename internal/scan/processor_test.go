package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seawork/vacancy-crawler/internal/fetcher"
	"github.com/seawork/vacancy-crawler/internal/resolve"
	memstore "github.com/seawork/vacancy-crawler/internal/storage/memory"
	"github.com/seawork/vacancy-crawler/internal/store"
)

const storedPage = `<div class="vacancy-full-content">
  <h1>Vacancy Chief Engineer on Container Ship</h1>
  <div class="colmn"><span>Salary:</span> 11200 USD</div>
  <div class="colmn"><span>Employer:</span> <a href="/company/88">Blue Anchor Crewing</a></div>
</div>`

const missPage = `<html><body><div class="vacancy-list">no posting yet</div></body></html>`

type fetchReply struct {
	res fetcher.Result
	err error
}

func okReply(body string) fetchReply {
	return fetchReply{res: fetcher.Result{
		StatusCode: 200,
		Body:       []byte(body),
		Duration:   10 * time.Millisecond,
	}}
}

func transportReply() fetchReply {
	return fetchReply{err: errors.New("dial tcp: connection refused")}
}

func statusReply(code int) fetchReply {
	return fetchReply{err: fmt.Errorf("fetch: %w", &fetcher.StatusError{Code: code})}
}

// scriptedFetcher replays canned replies in order; the last reply repeats
// once the script runs out.
type scriptedFetcher struct {
	mu      sync.Mutex
	replies []fetchReply
	calls   int
}

func (f *scriptedFetcher) Fetch(context.Context, string) (fetcher.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	idx := f.calls - 1
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	reply := f.replies[idx]
	return reply.res, reply.err
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type funcFetcher func(ctx context.Context, url string) (fetcher.Result, error)

func (f funcFetcher) Fetch(ctx context.Context, url string) (fetcher.Result, error) {
	return f(ctx, url)
}

type stubResolver struct {
	mu    sync.Mutex
	id    int64
	err   error
	names []string
}

func (r *stubResolver) Resolve(_ context.Context, name string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	return r.id, r.err
}

type stubArchiver struct {
	mu    sync.Mutex
	saved []int64
	err   error
}

func (a *stubArchiver) SavePage(_ context.Context, id int64, _ []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	a.saved = append(a.saved, id)
	return fmt.Sprintf("mem://pages/%d", id), nil
}

type stubIDs struct {
	next uuid.UUID
	err  error
}

func (g *stubIDs) NewRawID() (uuid.UUID, error) {
	if g.err != nil {
		return uuid.Nil, g.err
	}
	if g.next == uuid.Nil {
		return uuid.New(), nil
	}
	return g.next, nil
}

// recordSleep swaps the processor's backoff wait for a recorder that never
// actually blocks.
func recordSleep(p *Processor) *[]time.Duration {
	var waits []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) bool {
		waits = append(waits, d)
		return true
	}
	return &waits
}

func newProcessor(fetch Fetcher, vacancies store.VacancyRepository, resolver Resolver, archiver Archiver) *Processor {
	return NewProcessor(ProcessorConfig{
		BaseURL:    "https://sea.example/eng",
		MaxRetries: 3,
		BaseDelay:  3 * time.Second,
	}, fetch, vacancies, resolver, archiver, zap.NewNop())
}

func TestProcessorStoresVacancyFirstAttempt(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{replies: []fetchReply{okReply(storedPage)}}
	vacancies := memstore.NewVacancyStore(313620)
	resolver := &stubResolver{id: 88}
	archiver := &stubArchiver{}
	proc := newProcessor(fetch, vacancies, resolver, archiver)
	recordSleep(proc)

	out := proc.run(context.Background(), 313621)
	assert.True(t, out.stored)
	assert.True(t, out.responded)
	assert.Equal(t, 1, out.attempts)
	assert.Equal(t, 1, fetch.callCount())

	stored, err := vacancies.GetVacancy(context.Background(), 313621)
	require.NoError(t, err)
	assert.Equal(t, "Chief Engineer on Container Ship", stored.Title)
	assert.Equal(t, "Blue Anchor Crewing", stored.Agency)
	require.NotNil(t, stored.CompanyID)
	assert.Equal(t, int64(88), *stored.CompanyID)
	assert.Equal(t, []string{"Blue Anchor Crewing"}, resolver.names)
	assert.Equal(t, []int64{313621}, archiver.saved)
}

func TestProcessorCreatesAndLinksNewEmployer(t *testing.T) {
	t.Parallel()

	vacancies := memstore.NewVacancyStore(313620)
	companies := memstore.NewCompanyStore()
	fetch := funcFetcher(func(_ context.Context, url string) (fetcher.Result, error) {
		if url == "https://sea.example/eng/vacancy/313621" {
			return fetcher.Result{StatusCode: 200, Body: []byte(storedPage)}, nil
		}
		return fetcher.Result{StatusCode: 404, FinalURL: url}, &fetcher.StatusError{Code: 404}
	})
	resolver := resolve.New(companies, resolve.NewStoreMatcher(companies), fetch, "https://sea.example/eng", zap.NewNop())
	proc := newProcessor(fetch, vacancies, resolver, nil)
	recordSleep(proc)

	require.True(t, proc.Process(context.Background(), 313621))

	stored, err := vacancies.GetVacancy(context.Background(), 313621)
	require.NoError(t, err)
	require.NotNil(t, stored.CompanyID)

	company, err := companies.GetCompany(context.Background(), *stored.CompanyID)
	require.NoError(t, err)
	assert.Equal(t, "Blue anchor crewing", company.Name)

	lastID, err := vacancies.LastKnownID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(313621), lastID)
}

func TestProcessorSpendsFullRetryBudget(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{replies: []fetchReply{transportReply()}}
	proc := newProcessor(fetch, memstore.NewVacancyStore(313620), &stubResolver{}, nil)
	waits := recordSleep(proc)

	out := proc.run(context.Background(), 313621)
	assert.False(t, out.stored)
	assert.False(t, out.responded)
	assert.Equal(t, 4, out.attempts)
	assert.Equal(t, 4, fetch.callCount())

	// The wait grows linearly with the attempt number and there is no wait
	// after the last attempt.
	assert.Equal(t, []time.Duration{3 * time.Second, 6 * time.Second, 9 * time.Second}, *waits)
}

func TestProcessorMissSharesRetryBudget(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{replies: []fetchReply{okReply(missPage)}}
	vacancies := memstore.NewVacancyStore(313620)
	proc := newProcessor(fetch, vacancies, &stubResolver{}, nil)
	recordSleep(proc)

	out := proc.run(context.Background(), 313621)
	assert.False(t, out.stored)
	assert.True(t, out.responded)
	assert.Equal(t, 4, out.attempts)

	_, err := vacancies.GetVacancy(context.Background(), 313621)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProcessorHTTPErrorCountsAsResponse(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{replies: []fetchReply{statusReply(503)}}
	proc := newProcessor(fetch, memstore.NewVacancyStore(313620), &stubResolver{}, nil)
	recordSleep(proc)

	out := proc.run(context.Background(), 313621)
	assert.False(t, out.stored)
	assert.True(t, out.responded)
	assert.Equal(t, 4, out.attempts)
}

func TestProcessorRecoversAfterTransientFailure(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{replies: []fetchReply{transportReply(), okReply(storedPage)}}
	proc := newProcessor(fetch, memstore.NewVacancyStore(313620), &stubResolver{}, nil)
	waits := recordSleep(proc)

	out := proc.run(context.Background(), 313621)
	assert.True(t, out.stored)
	assert.True(t, out.responded)
	assert.Equal(t, 2, out.attempts)
	assert.Equal(t, []time.Duration{3 * time.Second}, *waits)
}

type flakyVacancies struct {
	*memstore.VacancyStore
	mu    sync.Mutex
	fails int
}

func (f *flakyVacancies) UpsertVacancy(ctx context.Context, v store.Vacancy) error {
	f.mu.Lock()
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return errors.New("connection reset by peer")
	}
	f.mu.Unlock()
	return f.VacancyStore.UpsertVacancy(ctx, v)
}

func TestProcessorRetriesStoreWriteFailure(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{replies: []fetchReply{okReply(storedPage)}}
	vacancies := &flakyVacancies{VacancyStore: memstore.NewVacancyStore(313620), fails: 1}
	proc := newProcessor(fetch, vacancies, &stubResolver{}, nil)
	recordSleep(proc)

	out := proc.run(context.Background(), 313621)
	assert.True(t, out.stored)
	assert.Equal(t, 2, out.attempts)

	stored, err := vacancies.GetVacancy(context.Background(), 313621)
	require.NoError(t, err)
	assert.Equal(t, "Chief Engineer on Container Ship", stored.Title)
}

func TestProcessorResolverFailureDegrades(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{replies: []fetchReply{okReply(storedPage)}}
	vacancies := memstore.NewVacancyStore(313620)
	resolver := &stubResolver{err: errors.New("search timed out")}
	proc := newProcessor(fetch, vacancies, resolver, nil)
	recordSleep(proc)

	assert.True(t, proc.Process(context.Background(), 313621))

	stored, err := vacancies.GetVacancy(context.Background(), 313621)
	require.NoError(t, err)
	assert.Nil(t, stored.CompanyID)
	assert.Equal(t, "Blue Anchor Crewing", stored.Agency)
}

func TestProcessorArchiveFailureTolerated(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{replies: []fetchReply{okReply(storedPage)}}
	vacancies := memstore.NewVacancyStore(313620)
	archiver := &stubArchiver{err: errors.New("bucket unavailable")}
	proc := newProcessor(fetch, vacancies, &stubResolver{}, archiver)
	recordSleep(proc)

	assert.True(t, proc.Process(context.Background(), 313621))

	_, err := vacancies.GetVacancy(context.Background(), 313621)
	assert.NoError(t, err)
}

func TestProcessorStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	fetch := funcFetcher(func(context.Context, string) (fetcher.Result, error) {
		cancel()
		return fetcher.Result{}, errors.New("dial tcp: operation canceled")
	})
	proc := newProcessor(fetch, memstore.NewVacancyStore(313620), &stubResolver{}, nil)
	waits := recordSleep(proc)

	out := proc.run(ctx, 313621)
	assert.False(t, out.stored)
	assert.Equal(t, 1, out.attempts)
	assert.Empty(t, *waits)
}

func TestVacancyURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://sea.example/eng/vacancy/313620", vacancyURL("https://sea.example/eng", 313620))
}
