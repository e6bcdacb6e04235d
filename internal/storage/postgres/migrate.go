package postgres

import (
	"context"
	"fmt"
)

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at timestamptz NOT NULL DEFAULT now()
)`

// migration is one versioned schema step, applied at most once and recorded
// in schema_migrations.
type migration struct {
	version int64
	name    string
	sql     string
}

var migrations = []migration{
	{version: 1, name: "initial_schema", sql: schemaV1},
}

// Migrate applies pending migrations in order. It runs on every startup;
// already-applied versions are skipped.
func Migrate(ctx context.Context, db dbPool) error {
	if _, err := db.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	for _, m := range migrations {
		var count int
		err := db.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = $1`, m.version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db dbPool, m migration) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, m.sql); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit(ctx)
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS companies (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	country TEXT,
	city TEXT,
	url TEXT,
	phones TEXT,
	email TEXT,
	website TEXT,
	address TEXT,
	created_at timestamptz NOT NULL DEFAULT now(),
	UNIQUE (name, url)
);

CREATE TABLE IF NOT EXISTS vacancies (
	id BIGINT PRIMARY KEY,
	title TEXT,
	published TEXT,
	views TEXT,
	join_date TEXT,
	contract_length TEXT,
	sailing_area TEXT,
	vessel_type TEXT,
	vessel_name TEXT,
	built_year TEXT,
	dwt TEXT,
	engine_type TEXT,
	engine_power TEXT,
	crew TEXT,
	english_level TEXT,
	age_limit TEXT,
	visa_required TEXT,
	experience TEXT,
	experience_type_vessel TEXT,
	salary TEXT,
	phone TEXT,
	email TEXT,
	email_subject TEXT,
	manager TEXT,
	agency TEXT,
	website TEXT,
	additional_info TEXT,
	company_id BIGINT REFERENCES companies(id) ON DELETE SET NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS company_search_log (
	id BIGSERIAL PRIMARY KEY,
	company_name TEXT NOT NULL,
	found BOOLEAN NOT NULL,
	searched_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scan_runs (
	id UUID PRIMARY KEY,
	started_at timestamptz NOT NULL,
	finished_at timestamptz,
	status TEXT NOT NULL,
	start_id BIGINT,
	end_id BIGINT,
	processed BIGINT NOT NULL DEFAULT 0,
	stored BIGINT NOT NULL DEFAULT 0,
	missed BIGINT NOT NULL DEFAULT 0,
	last_id BIGINT,
	error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_vacancies_company_id ON vacancies (company_id);
CREATE INDEX IF NOT EXISTS idx_vacancies_updated_at ON vacancies (updated_at);
CREATE INDEX IF NOT EXISTS idx_companies_name ON companies (lower(name));
CREATE INDEX IF NOT EXISTS idx_search_log_name ON company_search_log (company_name);
CREATE INDEX IF NOT EXISTS idx_scan_runs_started_at ON scan_runs (started_at);
`
