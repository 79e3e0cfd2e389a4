package ports

import (
	"context"
	"field-route-service/internal/domain"
	"fmt"
)

type RoutingMode string

const (
	ModeRoad     RoutingMode = "road"
	ModeGeodesic RoutingMode = "geodesic"
)

// CachePrecision is the number of decimal places endpoints are rounded to.
const CachePrecision = 5

// CacheKey identifies a cached distance. Endpoints are rounded and ordered
// so that A->B and B->A share one entry.
type CacheKey struct {
	A    domain.Coordinates
	B    domain.Coordinates
	Mode RoutingMode
}

// NewCacheKey builds the key for from->to. reversed is true when the key's
// endpoint order is the opposite of the request's.
func NewCacheKey(from, to domain.Coordinates, mode RoutingMode) (key CacheKey, reversed bool) {
	a := from.Rounded(CachePrecision)
	b := to.Rounded(CachePrecision)
	if b.Less(a) {
		return CacheKey{A: b, B: a, Mode: mode}, true
	}
	return CacheKey{A: a, B: b, Mode: mode}, false
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%.5f_%.5f_%.5f_%.5f-%s", k.A.Lat, k.A.Lon, k.B.Lat, k.B.Lon, k.Mode)
}

// DistanceCache is a key/value store of previously computed distances.
// Get reports a miss with ok=false and a nil error.
type DistanceCache interface {
	Get(ctx context.Context, key CacheKey) (result DistanceResult, ok bool, err error)
	Put(ctx context.Context, key CacheKey, result DistanceResult) error
}
