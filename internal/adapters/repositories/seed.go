package repositories

import (
	"database/sql"
	"field-route-service/internal/platform/db"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type WorkloadProfileSeed struct {
	Area          string  `yaml:"area"`
	AveragePoints float64 `yaml:"average_points"`
}

type AgentSeed struct {
	ID   string  `yaml:"id"`
	Area string  `yaml:"area"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

type DropoffSeed struct {
	ID      string  `yaml:"id"`
	Clinic  string  `yaml:"clinic"`
	Lat     float64 `yaml:"lat"`
	Lon     float64 `yaml:"lon"`
	Address string  `yaml:"address"`
	City    string  `yaml:"city"`
	State   string  `yaml:"state"`
	Zip     string  `yaml:"zip"`
}

type VisitSeed struct {
	ID             string  `yaml:"id"`
	Area           string  `yaml:"area"`
	Date           string  `yaml:"date"`
	Lat            float64 `yaml:"lat"`
	Lon            float64 `yaml:"lon"`
	ScheduledAt    string  `yaml:"scheduled_at"`
	WorkloadPoints int     `yaml:"workload_points"`
	Clinic         string  `yaml:"clinic"`
	State          string  `yaml:"state"`
	Zip            string  `yaml:"zip"`
}

// ReferenceSeed is the layout of a seed file.
type ReferenceSeed struct {
	WorkloadProfiles []WorkloadProfileSeed `yaml:"workload_profiles"`
	Agents           []AgentSeed           `yaml:"agents"`
	Dropoffs         []DropoffSeed         `yaml:"dropoffs"`
	Visits           []VisitSeed           `yaml:"visits"`
}

// Populate the database with reference data from a YAML (or JSON) file.
func SeedFromYAML(conn *sql.DB, dialect db.Dialect, path string) error {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("seed reference data: read %q: %w", path, err)
	}

	var data ReferenceSeed
	if err := yaml.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed reference data: parse yaml: %w", err)
	}

	return Seed(conn, dialect, data)
}

// Seed validates and upserts reference data in a single transaction.
func Seed(conn *sql.DB, dialect db.Dialect, data ReferenceSeed) error {
	if err := data.validate(); err != nil {
		return fmt.Errorf("seed reference data: %w", err)
	}

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("seed reference data: begin tx: %w", err)
	}
	defer tx.Rollback()

	profileStmt, err := tx.Prepare(dialect.Rebind(`
	INSERT INTO workload_profiles (area, average_points)
	VALUES ($1, $2)
	ON CONFLICT (area) DO UPDATE
	SET average_points = EXCLUDED.average_points;
	`))
	if err != nil {
		return fmt.Errorf("seed reference data: prepare profile insert: %w", err)
	}
	defer profileStmt.Close()

	for _, p := range data.WorkloadProfiles {
		if _, err := profileStmt.Exec(strings.TrimSpace(p.Area), p.AveragePoints); err != nil {
			return fmt.Errorf("seed reference data: insert profile area=%q: %w", p.Area, err)
		}
	}

	agentStmt, err := tx.Prepare(dialect.Rebind(`
	INSERT INTO agents (agent_id, area, lat, lon)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (agent_id) DO UPDATE
	SET area = EXCLUDED.area,
		lat = EXCLUDED.lat,
		lon = EXCLUDED.lon;
	`))
	if err != nil {
		return fmt.Errorf("seed reference data: prepare agent insert: %w", err)
	}
	defer agentStmt.Close()

	for _, a := range data.Agents {
		if _, err := agentStmt.Exec(strings.TrimSpace(a.ID), strings.TrimSpace(a.Area), a.Lat, a.Lon); err != nil {
			return fmt.Errorf("seed reference data: insert agent_id=%q: %w", a.ID, err)
		}
	}

	dropoffStmt, err := tx.Prepare(dialect.Rebind(`
	INSERT INTO dropoffs (dropoff_id, clinic, lat, lon, address, city, state, zip)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (dropoff_id) DO UPDATE
	SET clinic = EXCLUDED.clinic,
		lat = EXCLUDED.lat,
		lon = EXCLUDED.lon,
		address = EXCLUDED.address,
		city = EXCLUDED.city,
		state = EXCLUDED.state,
		zip = EXCLUDED.zip;
	`))
	if err != nil {
		return fmt.Errorf("seed reference data: prepare dropoff insert: %w", err)
	}
	defer dropoffStmt.Close()

	for _, d := range data.Dropoffs {
		if _, err := dropoffStmt.Exec(
			strings.TrimSpace(d.ID), strings.TrimSpace(d.Clinic), d.Lat, d.Lon,
			d.Address, d.City, d.State, d.Zip,
		); err != nil {
			return fmt.Errorf("seed reference data: insert dropoff_id=%q: %w", d.ID, err)
		}
	}

	visitStmt, err := tx.Prepare(dialect.Rebind(`
	INSERT INTO visits (
		visit_id, area, visit_date, lat, lon, scheduled_at,
		workload_points, dropoff_clinic, dropoff_state, dropoff_zip
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (visit_id) DO UPDATE
	SET area = EXCLUDED.area,
		visit_date = EXCLUDED.visit_date,
		lat = EXCLUDED.lat,
		lon = EXCLUDED.lon,
		scheduled_at = EXCLUDED.scheduled_at,
		workload_points = EXCLUDED.workload_points,
		dropoff_clinic = EXCLUDED.dropoff_clinic,
		dropoff_state = EXCLUDED.dropoff_state,
		dropoff_zip = EXCLUDED.dropoff_zip;
	`))
	if err != nil {
		return fmt.Errorf("seed reference data: prepare visit insert: %w", err)
	}
	defer visitStmt.Close()

	for _, v := range data.Visits {
		if _, err := visitStmt.Exec(
			strings.TrimSpace(v.ID), strings.TrimSpace(v.Area), v.Date, v.Lat, v.Lon, v.ScheduledAt,
			v.WorkloadPoints, strings.TrimSpace(v.Clinic), strings.TrimSpace(v.State), strings.TrimSpace(v.Zip),
		); err != nil {
			return fmt.Errorf("seed reference data: insert visit_id=%q: %w", v.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed reference data: commit tx: %w", err)
	}

	return nil
}

func (s ReferenceSeed) validate() error {
	for i, p := range s.WorkloadProfiles {
		if strings.TrimSpace(p.Area) == "" {
			return fmt.Errorf("workload profile at index %d: area cannot be empty", i+1)
		}
		if p.AveragePoints <= 0 {
			return fmt.Errorf("workload profile %q: average_points must be positive", p.Area)
		}
	}

	for i, a := range s.Agents {
		if strings.TrimSpace(a.ID) == "" {
			return fmt.Errorf("agent at index %d: id cannot be empty", i+1)
		}
	}

	for i, d := range s.Dropoffs {
		if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.Clinic) == "" {
			return fmt.Errorf("dropoff at index %d: id and clinic are required", i+1)
		}
	}

	for i, v := range s.Visits {
		if strings.TrimSpace(v.ID) == "" {
			return fmt.Errorf("visit at index %d: id cannot be empty", i+1)
		}
		if _, err := time.Parse(time.DateOnly, v.Date); err != nil {
			return fmt.Errorf("visit %q: invalid date %q: %w", v.ID, v.Date, err)
		}
		if _, err := time.Parse(time.RFC3339, v.ScheduledAt); err != nil {
			return fmt.Errorf("visit %q: invalid scheduled_at %q: %w", v.ID, v.ScheduledAt, err)
		}
		if v.WorkloadPoints < 0 {
			return fmt.Errorf("visit %q: workload_points must not be negative", v.ID)
		}
	}

	return nil
}
