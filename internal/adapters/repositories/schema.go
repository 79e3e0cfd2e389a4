package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// InitSchema creates the reference-data and cache tables. The DDL is
// portable between Postgres and SQLite.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createVisitsQuery := `
	CREATE TABLE IF NOT EXISTS visits (
		visit_id TEXT PRIMARY KEY,
		area TEXT NOT NULL,
		visit_date TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		scheduled_at TEXT NOT NULL,
		workload_points INTEGER NOT NULL,
		dropoff_clinic TEXT NOT NULL DEFAULT '',
		dropoff_state TEXT NOT NULL DEFAULT '',
		dropoff_zip TEXT NOT NULL DEFAULT ''
	);
	`

	createVisitsIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_visits_area_date
	ON visits(area, visit_date);
	`

	createAgentsQuery := `
	CREATE TABLE IF NOT EXISTS agents (
		agent_id TEXT PRIMARY KEY,
		area TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL
	);
	`

	createWorkloadProfilesQuery := `
	CREATE TABLE IF NOT EXISTS workload_profiles (
		area TEXT PRIMARY KEY,
		average_points DOUBLE PRECISION NOT NULL
	);
	`

	createDropoffsQuery := `
	CREATE TABLE IF NOT EXISTS dropoffs (
		dropoff_id TEXT PRIMARY KEY,
		clinic TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		zip TEXT NOT NULL DEFAULT ''
	);
	`

	createDistanceCacheQuery := `
	CREATE TABLE IF NOT EXISTS distance_cache (
		cache_key TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		miles DOUBLE PRECISION NOT NULL,
		geometry TEXT NOT NULL DEFAULT ''
	);
	`

	createGeocodeCacheQuery := `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lon DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL
	);
	`

	statements := []string{
		createVisitsQuery,
		createVisitsIndexQuery,
		createAgentsQuery,
		createWorkloadProfilesQuery,
		createDropoffsQuery,
		createDistanceCacheQuery,
		createGeocodeCacheQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
