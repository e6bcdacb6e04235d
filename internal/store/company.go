package store

import (
	"context"
	"time"
)

// Company is a recruiting agency or employer referenced by vacancies.
// The pair (Name, URL) is unique.
type Company struct {
	ID      int64
	Name    string
	Country string
	City    string
	// URL is the absolute detail-page address on the source; empty when the
	// company was created from a vacancy without a matching search result.
	URL string
	// Phones holds every listed number, comma-joined.
	Phones    string
	Email     string
	Website   string
	Address   string
	CreatedAt time.Time
}

// SearchLogEntry records one company-name lookup miss and whether the
// follow-up detail fetch resolved it. Append-only.
type SearchLogEntry struct {
	ID          int64
	CompanyName string
	Found       bool
	SearchedAt  time.Time
}

// CompanyRepository persists companies and the search audit log.
type CompanyRepository interface {
	// CreateCompany inserts a new company and returns its generated ID.
	CreateCompany(ctx context.Context, c Company) (int64, error)
	// GetCompany loads a single company or returns ErrNotFound.
	GetCompany(ctx context.Context, id int64) (Company, error)
	// FindCompanyByName matches the name exactly, case-insensitively.
	FindCompanyByName(ctx context.Context, name string) (Company, error)
	// FindCompanyBySubstring returns the lowest-ID company whose name
	// contains the given fragment, case-insensitively.
	FindCompanyBySubstring(ctx context.Context, fragment string) (Company, error)
	// UpdateCompanyContact overwrites the four enrichable contact fields.
	UpdateCompanyContact(ctx context.Context, id int64, phones, email, website, address string) error
	// CompaniesMissingPhones lists enrichment candidates: companies with a
	// detail URL but no phone data yet.
	CompaniesMissingPhones(ctx context.Context, limit int) ([]Company, error)
	// AppendSearchLog records a resolver miss and its detail-fetch outcome.
	AppendSearchLog(ctx context.Context, name string, found bool) error
}
