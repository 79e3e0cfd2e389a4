package ports

import (
	"context"
	"field-route-service/internal/domain"
)

type DistanceSource string

const (
	SourceCache    DistanceSource = "cache"
	SourceRouting  DistanceSource = "routing"
	SourceGeodesic DistanceSource = "geodesic"
)

// DistanceResult is a travel distance in miles with an optional path
// geometry as [lon, lat] pairs.
type DistanceResult struct {
	Miles    float64
	Geometry [][2]float64
	Source   DistanceSource
}

// DistanceProvider returns the travel distance between two points.
// Implementations degrade to geodesic distance instead of failing; the only
// errors surfaced are context cancellation and deadline errors.
type DistanceProvider interface {
	Distance(ctx context.Context, from, to domain.Coordinates) (DistanceResult, error)
}

// RouteLeg is one routing API answer.
type RouteLeg struct {
	Miles    float64
	Geometry [][2]float64
}

// RoutingAPI is the optional road-network routing collaborator.
type RoutingAPI interface {
	Route(ctx context.Context, from, to domain.Coordinates) (RouteLeg, error)
}
