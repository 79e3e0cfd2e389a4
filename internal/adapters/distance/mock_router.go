package distance

import (
	"context"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"fmt"
	"sync/atomic"
)

type MockPair struct {
	From, To domain.Coordinates
	Miles    float64
}

// MockRouter is a RoutingAPI backed by a fixed, symmetric table of pairs.
// When Err is set every call fails with it.
type MockRouter struct {
	m     map[[2]domain.Coordinates]float64
	Err   error
	calls atomic.Int64
}

func NewMockRouter(pairs []MockPair) *MockRouter {
	m := make(map[[2]domain.Coordinates]float64, 2*len(pairs))
	for _, p := range pairs {
		m[[2]domain.Coordinates{p.From, p.To}] = p.Miles
		m[[2]domain.Coordinates{p.To, p.From}] = p.Miles
	}
	return &MockRouter{m: m}
}

func (r *MockRouter) Route(ctx context.Context, from, to domain.Coordinates) (ports.RouteLeg, error) {
	r.calls.Add(1)
	if r.Err != nil {
		return ports.RouteLeg{}, r.Err
	}

	miles, ok := r.m[[2]domain.Coordinates{from, to}]
	if !ok {
		return ports.RouteLeg{}, fmt.Errorf("missing pair %v -> %v", from, to)
	}

	return ports.RouteLeg{
		Miles:    miles,
		Geometry: [][2]float64{{from.Lon, from.Lat}, {to.Lon, to.Lat}},
	}, nil
}

// Calls returns the number of Route invocations so far.
func (r *MockRouter) Calls() int { return int(r.calls.Load()) }
