package store

import (
	"context"
	"time"
)

// Vacancy models one posting, keyed by the source's own sequential ID.
// Scraped attributes are kept as free text exactly as published; an empty
// string means the field was absent on the page.
type Vacancy struct {
	// ID is assigned by the source and doubles as the page locator.
	ID                   int64
	Title                string
	Published            string
	Views                string
	JoinDate             string
	ContractLength       string
	SailingArea          string
	VesselType           string
	VesselName           string
	BuiltYear            string
	DWT                  string
	EngineType           string
	EnginePower          string
	Crew                 string
	EnglishLevel         string
	AgeLimit             string
	VisaRequired         string
	Experience           string
	ExperienceTypeVessel string
	Salary               string
	Phone                string
	Email                string
	EmailSubject         string
	Manager              string
	// Agency is the employer name as scraped, before company resolution.
	Agency         string
	Website        string
	AdditionalInfo string
	// CompanyID links to the resolved company; nil when resolution failed
	// or the posting named no agency.
	CompanyID *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VacancyRepository persists vacancies with full-replace upsert semantics.
type VacancyRepository interface {
	// UpsertVacancy inserts the record or overwrites every non-ID column of
	// an existing row. A field empty in the new record clears the column.
	UpsertVacancy(ctx context.Context, v Vacancy) error
	// LastKnownID returns the highest stored vacancy ID, or the seed ID of
	// the oldest posting known to exist when the table is empty.
	LastKnownID(ctx context.Context) (int64, error)
	// GetVacancy loads a single vacancy or returns ErrNotFound.
	GetVacancy(ctx context.Context, id int64) (Vacancy, error)
	// RecentVacancies returns up to limit vacancies ordered by the stored
	// publication-date string, newest first.
	RecentVacancies(ctx context.Context, limit int) ([]Vacancy, error)
}
