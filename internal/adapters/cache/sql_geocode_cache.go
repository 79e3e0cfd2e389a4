package cache

import (
	"context"
	"database/sql"
	"errors"
	"field-route-service/internal/domain"
	"field-route-service/internal/platform/db"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
	"fmt"
	"log/slog"
	"strings"
)

// SQLGeocodeCache is a read-through AreaGeocoder: it answers from the
// geocode_cache table and falls back to Next, storing fresh answers.
type SQLGeocodeCache struct {
	DB      *sql.DB
	Dialect db.Dialect
	Next    ports.AreaGeocoder
}

func NewSQLGeocodeCache(conn *sql.DB, dialect db.Dialect, next ports.AreaGeocoder) *SQLGeocodeCache {
	return &SQLGeocodeCache{DB: conn, Dialect: dialect, Next: next}
}

// normalize ensures consistent cache keys by collapsing whitespace and case.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func (s *SQLGeocodeCache) Geocode(ctx context.Context, area string) (_ domain.Coordinates, err error) {
	defer obs.Time(ctx, "geocode.cache.Geocode")(&err)

	if s.DB == nil {
		return domain.Coordinates{}, errors.New("geocode cache: db is nil")
	}

	key := normalize(area)
	if key == "" {
		return domain.Coordinates{}, errors.New("geocode cache: area must not be empty")
	}

	var c domain.Coordinates
	err = s.DB.QueryRowContext(ctx,
		s.Dialect.Rebind(`SELECT lon, lat FROM geocode_cache WHERE address = $1;`),
		key,
	).Scan(&c.Lon, &c.Lat)
	switch {
	case err == nil:
		return c, nil
	case !errors.Is(err, sql.ErrNoRows):
		return domain.Coordinates{}, fmt.Errorf("get geocode cache: query geocode_cache table: %w", err)
	}

	if s.Next == nil {
		return domain.Coordinates{}, fmt.Errorf("geocode cache: no entry for %q", area)
	}

	c, err = s.Next.Geocode(ctx, area)
	if err != nil {
		return domain.Coordinates{}, err
	}

	q := s.Dialect.Rebind(`
	INSERT INTO geocode_cache (address, lon, lat)
	VALUES ($1, $2, $3)
	ON CONFLICT (address) DO UPDATE
	SET lon = EXCLUDED.lon,
		lat = EXCLUDED.lat;
	`)
	if _, err := s.DB.ExecContext(ctx, q, key, c.Lon, c.Lat); err != nil {
		slog.WarnContext(ctx, "geocode cache write failed", "area", key, "err", err)
	}

	return c, nil
}
