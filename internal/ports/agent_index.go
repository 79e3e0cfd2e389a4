package ports

import (
	"context"
	"field-route-service/internal/domain"
)

// AgentHit is one geospatial index match.
type AgentHit struct {
	AgentID string
	Miles   float64
}

// AgentIndex answers radius queries over agent home locations.
// Hits are returned nearest first.
type AgentIndex interface {
	Nearby(ctx context.Context, center domain.Coordinates, radiusMiles float64) ([]AgentHit, error)
}

// AgentIndexLoader is implemented by indexes that can be rebuilt from a
// roster. Callers refresh the index before querying it so agents added since
// the last load are found.
type AgentIndexLoader interface {
	Load(ctx context.Context, agents []domain.AgentRecord) error
}

// AreaGeocoder resolves an area name to a representative point.
type AreaGeocoder interface {
	Geocode(ctx context.Context, area string) (domain.Coordinates, error)
}
