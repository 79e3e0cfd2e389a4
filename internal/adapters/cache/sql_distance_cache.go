package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"field-route-service/internal/platform/db"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
	"fmt"
)

// SQLDistanceCache is a SQL-backed DistanceCache for Postgres or SQLite.
// Entries are keyed by the rendered CacheKey.
type SQLDistanceCache struct {
	DB      *sql.DB
	Dialect db.Dialect
}

func NewSQLDistanceCache(conn *sql.DB, dialect db.Dialect) *SQLDistanceCache {
	return &SQLDistanceCache{DB: conn, Dialect: dialect}
}

func (s *SQLDistanceCache) Get(
	ctx context.Context,
	key ports.CacheKey,
) (_ ports.DistanceResult, _ bool, err error) {
	defer obs.Time(ctx, "distance.cache.Get")(&err)

	if s.DB == nil {
		return ports.DistanceResult{}, false, errors.New("distance cache: db is nil")
	}

	q := s.Dialect.Rebind(`
	SELECT miles, geometry
	FROM distance_cache
	WHERE cache_key = $1;
	`)

	var miles float64
	var geometry string
	err = s.DB.QueryRowContext(ctx, q, key.String()).Scan(&miles, &geometry)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.DistanceResult{}, false, nil
	}
	if err != nil {
		return ports.DistanceResult{}, false, fmt.Errorf("get distance cache: query distance_cache table: %w", err)
	}

	r := ports.DistanceResult{Miles: miles}
	if geometry != "" {
		if err := json.Unmarshal([]byte(geometry), &r.Geometry); err != nil {
			return ports.DistanceResult{}, false, fmt.Errorf("get distance cache: decode geometry: %w", err)
		}
	}

	return r, true, nil
}

func (s *SQLDistanceCache) Put(ctx context.Context, key ports.CacheKey, r ports.DistanceResult) error {
	if s.DB == nil {
		return errors.New("distance cache: db is nil")
	}

	geometry := ""
	if len(r.Geometry) > 0 {
		b, err := json.Marshal(r.Geometry)
		if err != nil {
			return fmt.Errorf("insert distance cache: encode geometry: %w", err)
		}
		geometry = string(b)
	}

	q := s.Dialect.Rebind(`
	INSERT INTO distance_cache (cache_key, mode, miles, geometry)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (cache_key) DO UPDATE
	SET miles = EXCLUDED.miles,
		geometry = EXCLUDED.geometry;
	`)

	if _, err := s.DB.ExecContext(ctx, q, key.String(), string(key.Mode), r.Miles, geometry); err != nil {
		return fmt.Errorf("insert distance cache key=%q: %w", key.String(), err)
	}

	return nil
}
