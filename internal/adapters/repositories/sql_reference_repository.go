package repositories

import (
	"context"
	"database/sql"
	"errors"
	"field-route-service/internal/domain"
	"field-route-service/internal/platform/db"
	"field-route-service/internal/platform/obs"
	"fmt"
	"strings"
	"time"
)

// SQL-backed implementation of the ReferenceRepository port (Postgres or SQLite).
type SQLReferenceRepository struct {
	DB      *sql.DB
	Dialect db.Dialect
}

func NewSQLReferenceRepository(conn *sql.DB, dialect db.Dialect) *SQLReferenceRepository {
	return &SQLReferenceRepository{DB: conn, Dialect: dialect}
}

// Return the visits of one area on one date (YYYY-MM-DD), ordered by schedule.
func (s *SQLReferenceRepository) ListVisits(
	ctx context.Context,
	area string,
	date string,
) (_ []domain.Visit, err error) {
	defer obs.Time(ctx, "repository.ListVisits")(&err)

	if s.DB == nil {
		return nil, errors.New("reference repository: DB is nil")
	}

	query := s.Dialect.Rebind(`
	SELECT
		visit_id, area, visit_date, lat, lon, scheduled_at,
		workload_points, dropoff_clinic, dropoff_state, dropoff_zip
	FROM visits
	WHERE LOWER(area) = LOWER($1)
		AND visit_date = $2
	ORDER BY scheduled_at, visit_id;
	`)
	rows, err := s.DB.QueryContext(ctx, query, strings.TrimSpace(area), date)
	if err != nil {
		return nil, fmt.Errorf("list visits: query visits table: %w", err)
	}
	defer rows.Close()

	visits := make([]domain.Visit, 0, 64)
	for rows.Next() {
		var v domain.Visit
		var scheduledAt, clinic, state, zip string
		if err := rows.Scan(
			&v.ID, &v.Area, &v.Date, &v.Location.Lat, &v.Location.Lon, &scheduledAt,
			&v.WorkloadPoints, &clinic, &state, &zip,
		); err != nil {
			return nil, fmt.Errorf("list visits: scan row: %w", err)
		}

		v.ScheduledAt, err = time.Parse(time.RFC3339, scheduledAt)
		if err != nil {
			return nil, fmt.Errorf("list visits: visit_id=%q: parse scheduled_at: %w", v.ID, err)
		}

		if clinic != "" {
			v.Dropoff = &domain.DropoffRequirement{Clinic: clinic, State: state, Zip: zip}
		}
		visits = append(visits, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list visits: row iteration: %w", err)
	}

	return visits, nil
}

func (s *SQLReferenceRepository) ListAgents(ctx context.Context) ([]domain.AgentRecord, error) {
	if s.DB == nil {
		return nil, errors.New("reference repository: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT agent_id, area, lat, lon
	FROM agents
	ORDER BY agent_id;
	`)
	if err != nil {
		return nil, fmt.Errorf("list agents: query agents table: %w", err)
	}
	defer rows.Close()

	agents := make([]domain.AgentRecord, 0, 64)
	for rows.Next() {
		var a domain.AgentRecord
		if err := rows.Scan(&a.ID, &a.Area, &a.Home.Lat, &a.Home.Lon); err != nil {
			return nil, fmt.Errorf("list agents: scan row: %w", err)
		}
		agents = append(agents, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list agents: row iteration: %w", err)
	}

	return agents, nil
}

func (s *SQLReferenceRepository) ListWorkloadProfiles(ctx context.Context) ([]domain.WorkloadProfile, error) {
	if s.DB == nil {
		return nil, errors.New("reference repository: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT area, average_points
	FROM workload_profiles
	ORDER BY area;
	`)
	if err != nil {
		return nil, fmt.Errorf("list workload profiles: query workload_profiles table: %w", err)
	}
	defer rows.Close()

	profiles := make([]domain.WorkloadProfile, 0, 16)
	for rows.Next() {
		var p domain.WorkloadProfile
		if err := rows.Scan(&p.Area, &p.AveragePoints); err != nil {
			return nil, fmt.Errorf("list workload profiles: scan row: %w", err)
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list workload profiles: row iteration: %w", err)
	}

	return profiles, nil
}

// Return drop-off locations in id order; the resolver's first-encountered
// tie-break depends on this order being stable.
func (s *SQLReferenceRepository) ListDropoffs(ctx context.Context) ([]domain.DropoffLocation, error) {
	if s.DB == nil {
		return nil, errors.New("reference repository: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT dropoff_id, clinic, lat, lon, address, city, state, zip
	FROM dropoffs
	ORDER BY dropoff_id;
	`)
	if err != nil {
		return nil, fmt.Errorf("list dropoffs: query dropoffs table: %w", err)
	}
	defer rows.Close()

	dropoffs := make([]domain.DropoffLocation, 0, 32)
	for rows.Next() {
		var d domain.DropoffLocation
		if err := rows.Scan(
			&d.ID, &d.Clinic, &d.Location.Lat, &d.Location.Lon,
			&d.Address, &d.City, &d.State, &d.Zip,
		); err != nil {
			return nil, fmt.Errorf("list dropoffs: scan row: %w", err)
		}
		dropoffs = append(dropoffs, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list dropoffs: row iteration: %w", err)
	}

	return dropoffs, nil
}
