package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/seawork/vacancy-crawler/internal/store"
)

// CompanyStore provides an in-memory implementation for development/testing.
type CompanyStore struct {
	mu        sync.RWMutex
	nextID    int64
	companies map[int64]store.Company
	searchLog []store.SearchLogEntry
}

// NewCompanyStore constructs a CompanyStore.
func NewCompanyStore() *CompanyStore {
	return &CompanyStore{
		nextID:    1,
		companies: make(map[int64]store.Company),
	}
}

// CreateCompany stores a new company and returns its generated ID. Empty
// URLs never conflict with each other, mirroring NULLs under the SQL
// unique constraint on (name, url).
func (s *CompanyStore) CreateCompany(_ context.Context, c store.Company) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.URL != "" {
		for _, existing := range s.companies {
			if existing.Name == c.Name && existing.URL == c.URL {
				return 0, store.ErrDuplicate
			}
		}
	}
	c.ID = s.nextID
	s.nextID++
	c.CreatedAt = time.Now().UTC()
	s.companies[c.ID] = c
	return c.ID, nil
}

// GetCompany fetches a company by ID.
func (s *CompanyStore) GetCompany(_ context.Context, id int64) (store.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[id]
	if !ok {
		return store.Company{}, store.ErrNotFound
	}
	return c, nil
}

// FindCompanyByName matches the name exactly, case-insensitively. Ties go
// to the lowest ID.
func (s *CompanyStore) FindCompanyByName(_ context.Context, name string) (store.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(func(c store.Company) bool {
		return strings.EqualFold(c.Name, name)
	})
}

// FindCompanyBySubstring returns the lowest-ID company whose name contains
// the fragment, case-insensitively.
func (s *CompanyStore) FindCompanyBySubstring(_ context.Context, fragment string) (store.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(fragment)
	return s.findLocked(func(c store.Company) bool {
		return strings.Contains(strings.ToLower(c.Name), needle)
	})
}

// UpdateCompanyContact overwrites the four enrichable contact fields.
func (s *CompanyStore) UpdateCompanyContact(_ context.Context, id int64, phones, email, website, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Phones = phones
	c.Email = email
	c.Website = website
	c.Address = address
	s.companies[id] = c
	return nil
}

// CompaniesMissingPhones lists companies with a detail URL but no phone
// data, lowest ID first.
func (s *CompanyStore) CompaniesMissingPhones(_ context.Context, limit int) ([]store.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Company, 0)
	for _, c := range s.companies {
		if c.URL != "" && c.Phones == "" {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AppendSearchLog records a resolver miss and its detail-fetch outcome.
func (s *CompanyStore) AppendSearchLog(_ context.Context, name string, found bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchLog = append(s.searchLog, store.SearchLogEntry{
		ID:          int64(len(s.searchLog) + 1),
		CompanyName: name,
		Found:       found,
		SearchedAt:  time.Now().UTC(),
	})
	return nil
}

// SearchLog returns a copy of the recorded search log entries.
func (s *CompanyStore) SearchLog() []store.SearchLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.SearchLogEntry, len(s.searchLog))
	copy(out, s.searchLog)
	return out
}

// findLocked scans companies in ascending ID order and returns the first
// match. Callers must hold at least a read lock.
func (s *CompanyStore) findLocked(match func(store.Company) bool) (store.Company, error) {
	ids := make([]int64, 0, len(s.companies))
	for id := range s.companies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if c := s.companies[id]; match(c) {
			return c, nil
		}
	}
	return store.Company{}, store.ErrNotFound
}
