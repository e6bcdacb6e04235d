package resolve

import (
	"context"
	"errors"

	"github.com/seawork/vacancy-crawler/internal/store"
	"github.com/seawork/vacancy-crawler/internal/telemetry"
)

// Matcher finds an existing company for a scraped employer name. It returns
// store.ErrNotFound when nothing in the store matches.
type Matcher interface {
	Match(ctx context.Context, name string) (int64, error)
}

// StoreMatcher matches against stored companies: an exact name match first,
// then any company whose name contains the input as a substring. Substring
// ties go to the lowest ID, the store's natural row order.
type StoreMatcher struct {
	companies CompanyStore
}

// NewStoreMatcher builds the default matcher.
func NewStoreMatcher(companies CompanyStore) *StoreMatcher {
	return &StoreMatcher{companies: companies}
}

// Match implements Matcher.
func (m *StoreMatcher) Match(ctx context.Context, name string) (int64, error) {
	normalized := NormalizeName(name)
	if normalized == "" {
		return 0, store.ErrNotFound
	}

	company, err := m.companies.FindCompanyByName(ctx, normalized)
	if err == nil {
		telemetry.ObserveResolution(telemetry.ResolutionExact)
		return company.ID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}

	company, err = m.companies.FindCompanyBySubstring(ctx, normalized)
	if err != nil {
		return 0, err
	}
	telemetry.ObserveResolution(telemetry.ResolutionFuzzy)
	return company.ID, nil
}
