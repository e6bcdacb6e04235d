package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seawork/vacancy-crawler/internal/extract"
	"github.com/seawork/vacancy-crawler/internal/fetcher"
	"github.com/seawork/vacancy-crawler/internal/store"
	"github.com/seawork/vacancy-crawler/internal/telemetry"
)

// ProcessorConfig bundles the per-ID retry knobs.
type ProcessorConfig struct {
	// BaseURL is the source root, possibly carrying a locale prefix.
	BaseURL string
	// MaxRetries bounds retries beyond the first attempt.
	MaxRetries int
	// BaseDelay is the backoff unit; the wait after failed attempt n is
	// BaseDelay*(n+1).
	BaseDelay time.Duration
}

// Processor drives a single vacancy ID through fetch, parse, company
// resolution, and persistence. Every failure class shares the same retry
// budget: the dominant failure mode is a posting that is not published yet,
// so nothing is treated as permanently fatal.
type Processor struct {
	cfg       ProcessorConfig
	fetch     Fetcher
	vacancies store.VacancyRepository
	resolver  Resolver
	archiver  Archiver
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) bool
}

// NewProcessor builds a Processor. The archiver may be nil to skip page
// snapshots.
func NewProcessor(
	cfg ProcessorConfig,
	fetch Fetcher,
	vacancies store.VacancyRepository,
	resolver Resolver,
	archiver Archiver,
	logger *zap.Logger,
) *Processor {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		cfg:       cfg,
		fetch:     fetch,
		vacancies: vacancies,
		resolver:  resolver,
		archiver:  archiver,
		logger:    logger,
		sleep:     pause,
	}
}

// Process reports whether a vacancy exists in the store for id once the
// attempt budget is spent.
func (p *Processor) Process(ctx context.Context, id int64) bool {
	return p.run(ctx, id).stored
}

// idOutcome carries the loop-facing result of one ID.
type idOutcome struct {
	stored bool
	// attempts counts fetch attempts spent, including the final one.
	attempts int
	// responded reports whether any attempt completed an HTTP exchange,
	// letting the scanner tell a down network from a quiet frontier.
	responded bool
}

func (p *Processor) run(ctx context.Context, id int64) idOutcome {
	url := vacancyURL(p.cfg.BaseURL, id)
	var out idOutcome
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			telemetry.ObserveRetry()
		}
		out.attempts = attempt + 1

		responded, err := p.attempt(ctx, id, url, attempt)
		if responded {
			out.responded = true
		}
		if err == nil {
			out.stored = true
			return out
		}
		if ctx.Err() != nil {
			return out
		}
		if attempt < p.cfg.MaxRetries {
			if !p.sleep(ctx, p.cfg.BaseDelay*time.Duration(attempt+1)) {
				return out
			}
		}
	}
	return out
}

// attempt runs one fetch-parse-persist cycle. The bool reports whether the
// source returned an HTTP response at all, regardless of the outcome.
func (p *Processor) attempt(ctx context.Context, id int64, url string, attempt int) (bool, error) {
	res, err := p.fetch.Fetch(ctx, url)
	if err != nil {
		responded := fetcher.ReceivedResponse(err)
		if responded {
			telemetry.ObserveFetch(telemetry.FetchHTTPError, res.Duration)
			p.logger.Warn("vacancy fetch rejected",
				zap.Int64("vacancy_id", id), zap.Int("attempt", attempt+1), zap.Error(err))
		} else {
			telemetry.ObserveFetch(telemetry.FetchTransportError, res.Duration)
			p.logger.Warn("vacancy fetch failed",
				zap.Int64("vacancy_id", id), zap.Int("attempt", attempt+1), zap.Error(err))
		}
		return responded, fmt.Errorf("fetch vacancy %d: %w", id, err)
	}
	telemetry.ObserveFetch(telemetry.FetchOK, res.Duration)

	vacancy, err := extract.Vacancy(id, res.Body)
	if err != nil {
		if errors.Is(err, extract.ErrNoContent) {
			p.logger.Info("vacancy not published yet",
				zap.Int64("vacancy_id", id), zap.Int("attempt", attempt+1))
		} else {
			p.logger.Error("vacancy parse failed",
				zap.Int64("vacancy_id", id), zap.Int("attempt", attempt+1), zap.Error(err))
		}
		return true, fmt.Errorf("parse vacancy %d: %w", id, err)
	}

	companyID, err := p.resolver.Resolve(ctx, vacancy.Agency)
	if err != nil {
		// A resolver failure degrades to a vacancy without an association.
		p.logger.Warn("company resolution failed",
			zap.Int64("vacancy_id", id), zap.String("agency", vacancy.Agency), zap.Error(err))
	} else if companyID != 0 {
		vacancy.CompanyID = &companyID
	}

	if err := p.vacancies.UpsertVacancy(ctx, vacancy); err != nil {
		p.logger.Error("vacancy store write failed",
			zap.Int64("vacancy_id", id), zap.Int("attempt", attempt+1), zap.Error(err))
		return true, fmt.Errorf("store vacancy %d: %w", id, err)
	}
	telemetry.ObserveVacancyStored()

	if p.archiver != nil {
		if uri, aerr := p.archiver.SavePage(ctx, id, res.Body); aerr != nil {
			p.logger.Warn("page archive failed", zap.Int64("vacancy_id", id), zap.Error(aerr))
		} else {
			p.logger.Debug("page archived", zap.Int64("vacancy_id", id), zap.String("uri", uri))
		}
	}

	p.logger.Info("vacancy stored",
		zap.Int64("vacancy_id", id),
		zap.String("title", vacancy.Title),
		zap.Int("attempt", attempt+1))
	return true, nil
}

func vacancyURL(base string, id int64) string {
	return fmt.Sprintf("%s/vacancy/%d", base, id)
}
