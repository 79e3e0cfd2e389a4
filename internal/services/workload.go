package services

import (
	"context"
	"field-route-service/internal/domain"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// EstimateAgentsNeeded returns max(1, ceil(total / max(1, average))).
func EstimateAgentsNeeded(total int, average float64) int {
	avg := math.Max(1, average)
	return max(1, int(math.Ceil(float64(total)/avg)))
}

type WorkloadEstimate struct {
	TotalPoints   int
	AveragePoints float64
	AgentsNeeded  int
	// Defaulted is true when the area had no workload profile.
	Defaulted bool
}

// WorkloadEstimator sizes the agent pool for an area from its historical
// per-agent average.
type WorkloadEstimator struct {
	averages       map[string]float64
	defaultAverage float64
	logger         *slog.Logger
}

func NewWorkloadEstimator(profiles []domain.WorkloadProfile, defaultAverage float64, logger *slog.Logger) *WorkloadEstimator {
	if logger == nil {
		logger = slog.Default()
	}

	averages := make(map[string]float64, len(profiles))
	for _, p := range profiles {
		averages[areaKey(p.Area)] = p.AveragePoints
	}

	return &WorkloadEstimator{averages: averages, defaultAverage: defaultAverage, logger: logger}
}

// Estimate sums the workload of the area's visits for the day. visits must
// already be filtered to the area and date.
func (w *WorkloadEstimator) Estimate(ctx context.Context, area string, visits []*domain.Visit) (WorkloadEstimate, error) {
	if len(visits) == 0 {
		return WorkloadEstimate{}, fmt.Errorf("estimate workload for %q: %w", area, domain.ErrNoVisitsFound)
	}

	total := 0
	for _, v := range visits {
		total += v.WorkloadPoints
	}

	avg, ok := w.averages[areaKey(area)]
	if !ok {
		avg = w.defaultAverage
		w.logger.WarnContext(ctx, "no workload profile for area, using default average",
			"area", area, "default_average", avg)
	}

	return WorkloadEstimate{
		TotalPoints:   total,
		AveragePoints: avg,
		AgentsNeeded:  EstimateAgentsNeeded(total, avg),
		Defaulted:     !ok,
	}, nil
}

func areaKey(area string) string {
	return strings.ToLower(strings.TrimSpace(area))
}
