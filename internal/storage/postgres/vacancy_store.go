package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/seawork/vacancy-crawler/internal/store"
)

// VacancyStore implements store.VacancyRepository using Postgres.
type VacancyStore struct {
	pool   dbPool
	seedID int64
}

// NewVacancyStore creates a VacancyStore on top of an existing pool. seedID
// is returned by LastKnownID while the vacancies table is empty.
func NewVacancyStore(pool dbPool, seedID int64) *VacancyStore {
	return &VacancyStore{pool: pool, seedID: seedID}
}

const upsertVacancySQL = `
	INSERT INTO vacancies (
		id, title, published, views, join_date, contract_length,
		sailing_area, vessel_type, vessel_name, built_year, dwt,
		engine_type, engine_power, crew, english_level, age_limit,
		visa_required, experience, experience_type_vessel, salary, phone,
		email, email_subject, manager, agency, website, additional_info,
		company_id
	) VALUES (
		$1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''),
		NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''),
		NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, ''),
		NULLIF($14, ''), NULLIF($15, ''), NULLIF($16, ''), NULLIF($17, ''),
		NULLIF($18, ''), NULLIF($19, ''), NULLIF($20, ''), NULLIF($21, ''),
		NULLIF($22, ''), NULLIF($23, ''), NULLIF($24, ''), NULLIF($25, ''),
		NULLIF($26, ''), NULLIF($27, ''), $28
	)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		published = EXCLUDED.published,
		views = EXCLUDED.views,
		join_date = EXCLUDED.join_date,
		contract_length = EXCLUDED.contract_length,
		sailing_area = EXCLUDED.sailing_area,
		vessel_type = EXCLUDED.vessel_type,
		vessel_name = EXCLUDED.vessel_name,
		built_year = EXCLUDED.built_year,
		dwt = EXCLUDED.dwt,
		engine_type = EXCLUDED.engine_type,
		engine_power = EXCLUDED.engine_power,
		crew = EXCLUDED.crew,
		english_level = EXCLUDED.english_level,
		age_limit = EXCLUDED.age_limit,
		visa_required = EXCLUDED.visa_required,
		experience = EXCLUDED.experience,
		experience_type_vessel = EXCLUDED.experience_type_vessel,
		salary = EXCLUDED.salary,
		phone = EXCLUDED.phone,
		email = EXCLUDED.email,
		email_subject = EXCLUDED.email_subject,
		manager = EXCLUDED.manager,
		agency = EXCLUDED.agency,
		website = EXCLUDED.website,
		additional_info = EXCLUDED.additional_info,
		company_id = EXCLUDED.company_id,
		updated_at = now();
`

// selectVacancySQL coalesces optional columns back to empty strings so the
// struct round-trips the way it was written.
const selectVacancySQL = `
	SELECT id, COALESCE(title, ''), COALESCE(published, ''),
		COALESCE(views, ''), COALESCE(join_date, ''),
		COALESCE(contract_length, ''), COALESCE(sailing_area, ''),
		COALESCE(vessel_type, ''), COALESCE(vessel_name, ''),
		COALESCE(built_year, ''), COALESCE(dwt, ''),
		COALESCE(engine_type, ''), COALESCE(engine_power, ''),
		COALESCE(crew, ''), COALESCE(english_level, ''),
		COALESCE(age_limit, ''), COALESCE(visa_required, ''),
		COALESCE(experience, ''), COALESCE(experience_type_vessel, ''),
		COALESCE(salary, ''), COALESCE(phone, ''), COALESCE(email, ''),
		COALESCE(email_subject, ''), COALESCE(manager, ''),
		COALESCE(agency, ''), COALESCE(website, ''),
		COALESCE(additional_info, ''), company_id, created_at, updated_at
	FROM vacancies
`

// UpsertVacancy inserts the record or fully replaces the existing row.
// Empty fields become NULLs so absent and cleared look the same.
func (s *VacancyStore) UpsertVacancy(ctx context.Context, v store.Vacancy) error {
	_, err := s.pool.Exec(ctx, upsertVacancySQL,
		v.ID,
		v.Title,
		v.Published,
		v.Views,
		v.JoinDate,
		v.ContractLength,
		v.SailingArea,
		v.VesselType,
		v.VesselName,
		v.BuiltYear,
		v.DWT,
		v.EngineType,
		v.EnginePower,
		v.Crew,
		v.EnglishLevel,
		v.AgeLimit,
		v.VisaRequired,
		v.Experience,
		v.ExperienceTypeVessel,
		v.Salary,
		v.Phone,
		v.Email,
		v.EmailSubject,
		v.Manager,
		v.Agency,
		v.Website,
		v.AdditionalInfo,
		v.CompanyID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert vacancy %d: %w", v.ID, err)
	}
	return nil
}

// LastKnownID returns the highest stored vacancy ID, or the seed when the
// table is empty.
func (s *VacancyStore) LastKnownID(ctx context.Context) (int64, error) {
	var last int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), $1) FROM vacancies`, s.seedID).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to read last vacancy id: %w", err)
	}
	return last, nil
}

// GetVacancy retrieves a single vacancy by its ID.
func (s *VacancyStore) GetVacancy(ctx context.Context, id int64) (store.Vacancy, error) {
	row := s.pool.QueryRow(ctx, selectVacancySQL+` WHERE id = $1`, id)
	v, err := scanVacancy(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return store.Vacancy{}, store.ErrNotFound
		}
		return store.Vacancy{}, fmt.Errorf("failed to get vacancy %d: %w", id, err)
	}
	return v, nil
}

// RecentVacancies returns up to limit rows ordered by the published text
// descending. The column holds the source's own date strings, so this is a
// lexicographic sort, not a chronological one.
func (s *VacancyStore) RecentVacancies(ctx context.Context, limit int) ([]store.Vacancy, error) {
	rows, err := s.pool.Query(ctx, selectVacancySQL+` ORDER BY published DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent vacancies: %w", err)
	}
	defer rows.Close()

	var out []store.Vacancy
	for rows.Next() {
		v, err := scanVacancy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vacancy row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// scanVacancy reads one row in selectVacancySQL column order. pgx.Rows
// satisfies pgx.Row, so it serves both single- and multi-row reads.
func scanVacancy(row pgx.Row) (store.Vacancy, error) {
	var v store.Vacancy
	err := row.Scan(
		&v.ID,
		&v.Title,
		&v.Published,
		&v.Views,
		&v.JoinDate,
		&v.ContractLength,
		&v.SailingArea,
		&v.VesselType,
		&v.VesselName,
		&v.BuiltYear,
		&v.DWT,
		&v.EngineType,
		&v.EnginePower,
		&v.Crew,
		&v.EnglishLevel,
		&v.AgeLimit,
		&v.VisaRequired,
		&v.Experience,
		&v.ExperienceTypeVessel,
		&v.Salary,
		&v.Phone,
		&v.Email,
		&v.EmailSubject,
		&v.Manager,
		&v.Agency,
		&v.Website,
		&v.AdditionalInfo,
		&v.CompanyID,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	return v, err
}
