// Package enrich backfills company contact data from detail pages. The
// resolver only learns a company's name and URL; phones, e-mail, website
// and address require a later visit to the detail page itself.
package enrich

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/seawork/vacancy-crawler/internal/extract"
	"github.com/seawork/vacancy-crawler/internal/fetcher"
	"github.com/seawork/vacancy-crawler/internal/resolve"
	"github.com/seawork/vacancy-crawler/internal/store"
	"github.com/seawork/vacancy-crawler/internal/telemetry"
)

// Fetcher renders a company detail page. The contact block fills in from
// script on the source, so a plain HTTP fetch returns it empty.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetcher.Result, error)
}

// Config tunes one enrichment batch.
type Config struct {
	// Delay paces detail-page visits; zero or negative disables pacing.
	Delay time.Duration
	// Limit caps how many candidates one batch picks up (default 100).
	Limit int
}

// Summary reports one batch outcome.
type Summary struct {
	Enriched int
	Skipped  int
}

// Enricher visits company detail pages and overwrites the four contact
// fields. It runs independently of the scan loop.
type Enricher struct {
	cfg       Config
	companies store.CompanyRepository
	fetch     Fetcher
	logger    *zap.Logger
}

// New builds an Enricher.
func New(cfg Config, companies store.CompanyRepository, fetch Fetcher, logger *zap.Logger) *Enricher {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{cfg: cfg, companies: companies, fetch: fetch, logger: logger}
}

// Run executes one batch over every company that has a detail URL but no
// phone data yet. Per-company failures are logged and skipped; the batch
// only aborts when the candidate listing fails or ctx is canceled.
func (e *Enricher) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	candidates, err := e.companies.CompaniesMissingPhones(ctx, e.cfg.Limit)
	if err != nil {
		return sum, fmt.Errorf("list enrichment candidates: %w", err)
	}
	if len(candidates) == 0 {
		e.logger.Info("no companies need enrichment")
		return sum, nil
	}
	e.logger.Info("enrichment batch started", zap.Int("candidates", len(candidates)))

	limiter := rate.NewLimiter(rate.Every(e.cfg.Delay), 1)
	for _, company := range candidates {
		if err := limiter.Wait(ctx); err != nil {
			return sum, fmt.Errorf("enrichment pacing: %w", err)
		}
		if e.enrichOne(ctx, company) {
			sum.Enriched++
			telemetry.ObserveEnrichment(telemetry.EnrichmentUpdated)
		} else {
			sum.Skipped++
			telemetry.ObserveEnrichment(telemetry.EnrichmentSkipped)
		}
	}

	e.logger.Info("enrichment batch finished",
		zap.Int("enriched", sum.Enriched), zap.Int("skipped", sum.Skipped))
	return sum, nil
}

func (e *Enricher) enrichOne(ctx context.Context, company store.Company) bool {
	res, err := e.fetch.Fetch(ctx, company.URL)
	if err != nil {
		e.logger.Warn("company page fetch failed",
			zap.Int64("company_id", company.ID), zap.String("url", company.URL), zap.Error(err))
		return false
	}

	details, err := extract.Company(res.Body)
	if err != nil {
		e.logger.Warn("company page parse failed",
			zap.Int64("company_id", company.ID), zap.Error(err))
		return false
	}

	website := resolve.NormalizeWebsite(details.Website)
	if err := e.companies.UpdateCompanyContact(ctx, company.ID,
		details.Phones, details.Email, website, details.Address); err != nil {
		e.logger.Error("company contact update failed",
			zap.Int64("company_id", company.ID), zap.Error(err))
		return false
	}

	e.logger.Info("company enriched",
		zap.Int64("company_id", company.ID),
		zap.String("name", company.Name),
		zap.String("phones", details.Phones))
	return true
}
