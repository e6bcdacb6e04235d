package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/seawork/vacancy-crawler/internal/store"
)

// uniqueViolation is the Postgres error code for unique constraint hits.
const uniqueViolation = "23505"

// CompanyStore implements store.CompanyRepository using Postgres.
type CompanyStore struct {
	pool dbPool
}

// NewCompanyStore creates a CompanyStore on top of an existing pool.
func NewCompanyStore(pool dbPool) *CompanyStore {
	return &CompanyStore{pool: pool}
}

const selectCompanySQL = `
	SELECT id, name, COALESCE(country, ''), COALESCE(city, ''),
		COALESCE(url, ''), COALESCE(phones, ''), COALESCE(email, ''),
		COALESCE(website, ''), COALESCE(address, ''), created_at
	FROM companies
`

// CreateCompany inserts a new company and returns its generated ID. A
// (name, url) collision surfaces as store.ErrDuplicate so racing callers
// can retry their lookup.
func (s *CompanyStore) CreateCompany(ctx context.Context, c store.Company) (int64, error) {
	query := `
		INSERT INTO companies (name, country, city, url, phones, email, website, address)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''),
			NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''))
		RETURNING id;
	`
	var id int64
	err := s.pool.QueryRow(ctx, query,
		c.Name, c.Country, c.City, c.URL, c.Phones, c.Email, c.Website, c.Address,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, store.ErrDuplicate
		}
		return 0, fmt.Errorf("failed to create company %q: %w", c.Name, err)
	}
	return id, nil
}

// GetCompany retrieves a single company by its ID.
func (s *CompanyStore) GetCompany(ctx context.Context, id int64) (store.Company, error) {
	row := s.pool.QueryRow(ctx, selectCompanySQL+` WHERE id = $1`, id)
	c, err := scanCompany(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return store.Company{}, store.ErrNotFound
		}
		return store.Company{}, fmt.Errorf("failed to get company %d: %w", id, err)
	}
	return c, nil
}

// FindCompanyByName matches the name exactly, case-insensitively. Ties go
// to the lowest ID.
func (s *CompanyStore) FindCompanyByName(ctx context.Context, name string) (store.Company, error) {
	row := s.pool.QueryRow(ctx, selectCompanySQL+` WHERE lower(name) = lower($1) ORDER BY id LIMIT 1`, name)
	c, err := scanCompany(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return store.Company{}, store.ErrNotFound
		}
		return store.Company{}, fmt.Errorf("failed to find company by name: %w", err)
	}
	return c, nil
}

// FindCompanyBySubstring returns the lowest-ID company whose name contains
// the fragment, case-insensitively.
func (s *CompanyStore) FindCompanyBySubstring(ctx context.Context, fragment string) (store.Company, error) {
	row := s.pool.QueryRow(ctx, selectCompanySQL+` WHERE name ILIKE '%' || $1 || '%' ORDER BY id LIMIT 1`, fragment)
	c, err := scanCompany(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return store.Company{}, store.ErrNotFound
		}
		return store.Company{}, fmt.Errorf("failed to find company by substring: %w", err)
	}
	return c, nil
}

// UpdateCompanyContact overwrites the four enrichable contact fields.
func (s *CompanyStore) UpdateCompanyContact(ctx context.Context, id int64, phones, email, website, address string) error {
	query := `
		UPDATE companies
		SET phones = NULLIF($2, ''), email = NULLIF($3, ''),
			website = NULLIF($4, ''), address = NULLIF($5, '')
		WHERE id = $1;
	`
	res, err := s.pool.Exec(ctx, query, id, phones, email, website, address)
	if err != nil {
		return fmt.Errorf("failed to update company contact %d: %w", id, err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CompaniesMissingPhones lists companies with a detail URL but no phone
// data yet, lowest ID first.
func (s *CompanyStore) CompaniesMissingPhones(ctx context.Context, limit int) ([]store.Company, error) {
	rows, err := s.pool.Query(ctx, selectCompanySQL+` WHERE url IS NOT NULL AND phones IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrichment candidates: %w", err)
	}
	defer rows.Close()

	var out []store.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AppendSearchLog records a resolver miss and its detail-fetch outcome.
func (s *CompanyStore) AppendSearchLog(ctx context.Context, name string, found bool) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO company_search_log (company_name, found) VALUES ($1, $2)`, name, found)
	if err != nil {
		return fmt.Errorf("failed to append search log: %w", err)
	}
	return nil
}

func scanCompany(row pgx.Row) (store.Company, error) {
	var c store.Company
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Country,
		&c.City,
		&c.URL,
		&c.Phones,
		&c.Email,
		&c.Website,
		&c.Address,
		&c.CreatedAt,
	)
	return c, err
}
