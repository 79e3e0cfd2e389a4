package cache

import (
	"context"
	"errors"
	"field-route-service/internal/adapters/repositories"
	"field-route-service/internal/domain"
	"field-route-service/internal/platform/db"
	"field-route-service/internal/ports"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testKey, _ = ports.NewCacheKey(
	domain.Coordinates{Lat: 33.4484, Lon: -112.074},
	domain.Coordinates{Lat: 33.4152, Lon: -111.8315},
	ports.ModeRoad,
)

func exerciseCache(t *testing.T, c ports.DistanceCache) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, testKey); err != nil || ok {
		t.Fatalf("empty get = ok %v, err %v; want miss", ok, err)
	}

	want := ports.DistanceResult{Miles: 15.25, Geometry: [][2]float64{{-112.074, 33.4484}, {-111.8315, 33.4152}}}
	if err := c.Put(ctx, testKey, want); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := c.Get(ctx, testKey)
	if err != nil || !ok {
		t.Fatalf("get after put = ok %v, err %v", ok, err)
	}
	if got.Miles != want.Miles {
		t.Fatalf("miles = %v, want %v", got.Miles, want.Miles)
	}
	if len(got.Geometry) != 2 || got.Geometry[1] != want.Geometry[1] {
		t.Fatalf("geometry = %v, want %v", got.Geometry, want.Geometry)
	}

	want.Miles = 16
	if err := c.Put(ctx, testKey, want); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _, _ := c.Get(ctx, testKey); got.Miles != 16 {
		t.Fatalf("miles after overwrite = %v, want 16", got.Miles)
	}
}

func TestMemoryDistanceCache(t *testing.T) {
	c := NewMemoryDistanceCache()
	exerciseCache(t, c)
	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
}

func TestRedisDistanceCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	exerciseCache(t, NewRedisDistanceCache(client, time.Hour))

	if ttl := mr.TTL(redisDistancePrefix + testKey.String()); ttl != time.Hour {
		t.Fatalf("ttl = %v, want 1h", ttl)
	}
}

func TestSQLDistanceCache(t *testing.T) {
	conn, err := db.OpenSqlite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer conn.Close()

	if err := repositories.InitSchema(conn); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	exerciseCache(t, NewSQLDistanceCache(conn, db.SQLite))
}

type stubGeocoder struct {
	calls int
	point domain.Coordinates
	err   error
}

func (s *stubGeocoder) Geocode(ctx context.Context, area string) (domain.Coordinates, error) {
	s.calls++
	return s.point, s.err
}

func TestSQLGeocodeCacheReadsThrough(t *testing.T) {
	conn, err := db.OpenSqlite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer conn.Close()

	if err := repositories.InitSchema(conn); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	next := &stubGeocoder{point: domain.Coordinates{Lat: 33.4152, Lon: -111.8315}}
	gc := NewSQLGeocodeCache(conn, db.SQLite, next)

	for _, area := range []string{"Mesa, AZ", "  mesa,   az "} {
		got, err := gc.Geocode(context.Background(), area)
		if err != nil {
			t.Fatalf("geocode %q: %v", area, err)
		}
		if got != next.point {
			t.Fatalf("geocode %q = %v, want %v", area, got, next.point)
		}
	}

	if next.calls != 1 {
		t.Fatalf("upstream calls = %d, want 1", next.calls)
	}
}

func TestSQLGeocodeCachePropagatesUpstreamError(t *testing.T) {
	conn, err := db.OpenSqlite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer conn.Close()

	if err := repositories.InitSchema(conn); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	boom := errors.New("geocoder down")
	gc := NewSQLGeocodeCache(conn, db.SQLite, &stubGeocoder{err: boom})
	if _, err := gc.Geocode(context.Background(), "Nowhere"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
