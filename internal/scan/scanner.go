package scan

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seawork/vacancy-crawler/internal/progress"
	"github.com/seawork/vacancy-crawler/internal/publish"
	"github.com/seawork/vacancy-crawler/internal/store"
)

// ScannerConfig bundles the discovery loop knobs.
type ScannerConfig struct {
	// BaseURL is the source root used for announcement links.
	BaseURL string
	// BaseDelay spaces consecutive IDs; zero disables pacing.
	BaseDelay time.Duration
	// MissThreshold ends an unbounded scan after this many consecutive
	// failed IDs (default 5).
	MissThreshold int
	// BoundedSpan is the default width of a bounded scan (default 100).
	BoundedSpan int64
	// Topic names the announcement channel for newly stored vacancies.
	Topic string
}

// Scanner walks vacancy IDs forward from a start position, strictly one ID
// at a time. The source's rate-limiting tolerance is the shared bottleneck,
// so there is exactly one in-flight fetch per scan.
type Scanner struct {
	cfg       ScannerConfig
	proc      *Processor
	vacancies store.VacancyRepository
	ids       IDGenerator
	clock     Clock
	emitter   progress.Emitter
	publisher publish.Publisher
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) bool
}

// NewScanner builds a Scanner around a Processor. The emitter and publisher
// may be nil; events and announcements are then skipped.
func NewScanner(
	cfg ScannerConfig,
	proc *Processor,
	vacancies store.VacancyRepository,
	ids IDGenerator,
	clk Clock,
	emitter progress.Emitter,
	publisher publish.Publisher,
	logger *zap.Logger,
) *Scanner {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MissThreshold <= 0 {
		cfg.MissThreshold = 5
	}
	if cfg.BoundedSpan <= 0 {
		cfg.BoundedSpan = 100
	}
	if cfg.Topic == "" {
		cfg.Topic = "vacancies.new"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		cfg:       cfg,
		proc:      proc,
		vacancies: vacancies,
		ids:       ids,
		clock:     clk,
		emitter:   emitter,
		publisher: publisher,
		logger:    logger,
		sleep:     pause,
	}
}

// ScanRange processes IDs in [start, end). A non-positive end defaults to
// start plus the configured span.
func (s *Scanner) ScanRange(ctx context.Context, start, end int64) Summary {
	runID, err := s.ids.NewRawID()
	if err != nil {
		s.logger.Error("mint run id failed", zap.Error(err))
		return Summary{}
	}
	return s.scan(ctx, runID, start, &end)
}

// ScanForward processes IDs from start until the consecutive-miss threshold
// signals the scan has caught up to the frontier of published postings. A
// non-positive start resumes past the store's last known ID.
func (s *Scanner) ScanForward(ctx context.Context, start int64) Summary {
	runID, err := s.ids.NewRawID()
	if err != nil {
		s.logger.Error("mint run id failed", zap.Error(err))
		return Summary{}
	}
	return s.scan(ctx, runID, start, nil)
}

func (s *Scanner) scan(ctx context.Context, runID uuid.UUID, start int64, end *int64) Summary {
	logger := s.logger.With(zap.Stringer("run_id", runID))
	summary := Summary{RunID: runID}

	if start <= 0 {
		last, err := s.vacancies.LastKnownID(ctx)
		if err != nil {
			logger.Error("resolve scan start failed", zap.Error(err))
			return summary
		}
		start = last + 1
	}
	summary.StartID = start

	var endID *int64
	if end != nil {
		bound := *end
		if bound <= 0 {
			bound = start + s.cfg.BoundedSpan
		}
		endID = &bound
	}

	startedAt := s.clock.Now()
	s.emit(progress.Event{
		RunID:   progress.UUIDToBytes(runID),
		TS:      startedAt,
		Stage:   progress.StageRunStart,
		StartID: start,
		EndID:   endID,
	})
	logger.Info("scan started", zap.Int64("start_id", start), zap.Int64p("end_id", endID))

	misses := 0
	attempted := false
	reached := false

	for id := start; endID == nil || id < *endID; id++ {
		if id > start && !s.sleep(ctx, s.cfg.BaseDelay) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		idStart := s.clock.Now()
		outcome := s.proc.run(ctx, id)
		if !outcome.stored && ctx.Err() != nil {
			// A canceled attempt is neither a hit nor a real miss.
			break
		}

		attempted = true
		if outcome.responded {
			reached = true
		}
		summary.Processed++
		summary.LastID = id

		evt := progress.Event{
			RunID:     progress.UUIDToBytes(runID),
			TS:        s.clock.Now(),
			Stage:     progress.StageIDDone,
			VacancyID: id,
			Attempts:  outcome.attempts,
			Dur:       s.clock.Now().Sub(idStart),
		}
		if outcome.stored {
			summary.Stored++
			misses = 0
			evt.Outcome = progress.OutcomeStored
			s.announce(ctx, id)
		} else {
			summary.Missed++
			misses++
			evt.Outcome = progress.OutcomeMiss
		}
		s.emit(evt)

		if endID == nil && misses >= s.cfg.MissThreshold {
			logger.Info("scan caught up to frontier",
				zap.Int64("last_id", id), zap.Int("consecutive_misses", misses))
			break
		}
	}

	finishedAt := s.clock.Now()
	done := progress.Event{
		RunID: progress.UUIDToBytes(runID),
		TS:    finishedAt,
		Dur:   finishedAt.Sub(startedAt),
	}
	if attempted && !reached {
		done.Stage = progress.StageRunError
		done.Note = "network unreachable"
		logger.Error("scan failed", zap.String("reason", done.Note),
			zap.Int64("processed", summary.Processed))
	} else {
		done.Stage = progress.StageRunDone
		logger.Info("scan finished",
			zap.Int64("processed", summary.Processed),
			zap.Int64("stored", summary.Stored),
			zap.Int64("missed", summary.Missed),
			zap.Int64("last_id", summary.LastID))
	}
	s.emit(done)
	return summary
}

// announce publishes a newly stored vacancy. Failures are logged and never
// affect the scan.
func (s *Scanner) announce(ctx context.Context, id int64) {
	if s.publisher == nil {
		return
	}
	vacancy, err := s.vacancies.GetVacancy(ctx, id)
	if err != nil {
		s.logger.Debug("skip announcement", zap.Int64("vacancy_id", id), zap.Error(err))
		return
	}
	msg := publish.Announcement{
		ID:        id,
		Title:     vacancy.Title,
		URL:       vacancyURL(s.cfg.BaseURL, id),
		CompanyID: vacancy.CompanyID,
	}
	if _, err := s.publisher.Publish(ctx, s.cfg.Topic, msg); err != nil {
		s.logger.Warn("vacancy announcement failed", zap.Int64("vacancy_id", id), zap.Error(err))
	}
}

func (s *Scanner) emit(evt progress.Event) {
	if s.emitter != nil {
		s.emitter.Emit(evt)
	}
}
