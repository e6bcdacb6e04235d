// Package resolve turns scraped employer names into company rows, looking
// up existing companies before creating new ones from the source's search
// and detail pages.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/seawork/vacancy-crawler/internal/extract"
	"github.com/seawork/vacancy-crawler/internal/fetcher"
	"github.com/seawork/vacancy-crawler/internal/store"
	"github.com/seawork/vacancy-crawler/internal/telemetry"
)

// CompanyStore is the slice of the company repository the resolver needs.
type CompanyStore interface {
	CreateCompany(ctx context.Context, c store.Company) (int64, error)
	FindCompanyByName(ctx context.Context, name string) (store.Company, error)
	FindCompanyBySubstring(ctx context.Context, fragment string) (store.Company, error)
	AppendSearchLog(ctx context.Context, name string, found bool) error
}

// Fetcher is the page client used for search and detail lookups.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetcher.Result, error)
}

// Resolver maps employer names to company IDs, creating companies on demand.
// A name that matches nothing triggers one search round trip against the
// source; whatever that yields, exactly one new row is written so the next
// vacancy naming the same employer hits the store instead of the site.
type Resolver struct {
	companies CompanyStore
	matcher   Matcher
	fetch     Fetcher
	baseURL   string
	logger    *zap.Logger
}

// New builds a Resolver. The matcher decides when an existing company
// counts as the same employer.
func New(companies CompanyStore, matcher Matcher, fetch Fetcher, baseURL string, logger *zap.Logger) *Resolver {
	return &Resolver{
		companies: companies,
		matcher:   matcher,
		fetch:     fetch,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
	}
}

// Resolve returns the company ID for an employer name. A blank name resolves
// to zero with no error; callers treat zero as "no association".
func (r *Resolver) Resolve(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, nil
	}

	id, err := r.matcher.Match(ctx, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("match company %q: %w", name, err)
	}

	company, found := r.lookupDetails(ctx, name)
	if logErr := r.companies.AppendSearchLog(ctx, name, found); logErr != nil {
		r.logger.Warn("failed to record company search", zap.String("company", name), zap.Error(logErr))
	}

	id, err = r.companies.CreateCompany(ctx, company)
	if errors.Is(err, store.ErrDuplicate) {
		// Another worker created the row between our lookup and insert.
		return r.matcher.Match(ctx, name)
	}
	if err != nil {
		return 0, fmt.Errorf("create company %q: %w", name, err)
	}
	if found {
		telemetry.ObserveResolution(telemetry.ResolutionCreated)
	} else {
		telemetry.ObserveResolution(telemetry.ResolutionMinimal)
	}
	r.logger.Info("created company", zap.String("company", company.Name), zap.Int64("company_id", id), zap.Bool("detail_found", found))
	return id, nil
}

// lookupDetails searches the source for the company and parses its detail
// page. Any failure along the way degrades to a minimal record carrying
// only the capitalized name.
func (r *Resolver) lookupDetails(ctx context.Context, name string) (store.Company, bool) {
	searchURL := r.baseURL + "/search?query=" + url.QueryEscape(name)
	res, err := r.fetch.Fetch(ctx, searchURL)
	if err != nil {
		r.logger.Warn("company search fetch failed", zap.String("company", name), zap.Error(err))
		return minimalCompany(name), false
	}

	href, ok := extract.CompanySearchLink(res.Body, name)
	if !ok {
		r.logger.Debug("company not in search results", zap.String("company", name))
		return minimalCompany(name), false
	}

	detailURL := r.absoluteURL(href)
	detail, err := r.fetch.Fetch(ctx, detailURL)
	if err != nil {
		r.logger.Warn("company detail fetch failed", zap.String("url", detailURL), zap.Error(err))
		return minimalCompany(name), false
	}

	company, err := extract.Company(detail.Body)
	if err != nil {
		r.logger.Warn("company detail parse failed", zap.String("url", detailURL), zap.Error(err))
		return minimalCompany(name), false
	}

	company.Name = Capitalize(name)
	company.URL = detailURL
	company.Website = NormalizeWebsite(company.Website)
	return company, true
}

func (r *Resolver) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return r.baseURL + href
}

func minimalCompany(name string) store.Company {
	return store.Company{Name: Capitalize(name)}
}
