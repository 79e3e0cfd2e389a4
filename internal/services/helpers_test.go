package services

import (
	"context"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"math"
	"sync/atomic"
	"time"
)

// gridProvider measures straight-line distance in coordinate units, which
// keeps expected values exact in tests.
type gridProvider struct {
	calls atomic.Int64
}

func (p *gridProvider) Distance(ctx context.Context, from, to domain.Coordinates) (ports.DistanceResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.DistanceResult{}, err
	}
	p.calls.Add(1)
	return ports.DistanceResult{
		Miles:  math.Hypot(to.Lat-from.Lat, to.Lon-from.Lon),
		Source: ports.SourceGeodesic,
	}, nil
}

func at(lon float64) domain.Coordinates { return domain.Coordinates{Lat: 0, Lon: lon} }

var baseDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func visitAt(id string, lon float64, hour int, points int) *domain.Visit {
	return &domain.Visit{
		ID:             id,
		Area:           "Phoenix",
		Date:           "2026-03-02",
		Location:       at(lon),
		ScheduledAt:    baseDay.Add(time.Duration(hour) * time.Hour),
		WorkloadPoints: points,
	}
}

func agentAt(id string, lon float64) *domain.Agent {
	return domain.NewAgent(domain.AgentRecord{ID: id, Area: "Phoenix", Home: at(lon)}, 0)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 3
	return cfg
}
