// Package memory provides in-memory store implementations for development
// and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/seawork/vacancy-crawler/internal/store"
)

// VacancyStore provides an in-memory implementation for development/testing.
type VacancyStore struct {
	mu        sync.RWMutex
	vacancies map[int64]store.Vacancy
	seedID    int64
}

// NewVacancyStore constructs a VacancyStore. seedID is returned by
// LastKnownID while the store is empty.
func NewVacancyStore(seedID int64) *VacancyStore {
	return &VacancyStore{
		vacancies: make(map[int64]store.Vacancy),
		seedID:    seedID,
	}
}

// UpsertVacancy inserts the record or fully replaces the existing row.
func (s *VacancyStore) UpsertVacancy(_ context.Context, v store.Vacancy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.vacancies[v.ID]; ok {
		v.CreatedAt = existing.CreatedAt
	} else {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	s.vacancies[v.ID] = v
	return nil
}

// LastKnownID returns the highest stored ID, or the seed when empty.
func (s *VacancyStore) LastKnownID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last int64
	for id := range s.vacancies {
		if id > last {
			last = id
		}
	}
	if last == 0 {
		return s.seedID, nil
	}
	return last, nil
}

// GetVacancy fetches a vacancy by ID.
func (s *VacancyStore) GetVacancy(_ context.Context, id int64) (store.Vacancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vacancies[id]
	if !ok {
		return store.Vacancy{}, store.ErrNotFound
	}
	return v, nil
}

// RecentVacancies returns up to limit rows ordered by the published string
// descending, matching the text sort the SQL store performs.
func (s *VacancyStore) RecentVacancies(_ context.Context, limit int) ([]store.Vacancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Vacancy, 0, len(s.vacancies))
	for _, v := range s.vacancies {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Published == out[j].Published {
			return out[i].ID > out[j].ID
		}
		return out[i].Published > out[j].Published
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
