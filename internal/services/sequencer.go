package services

import (
	"context"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"
)

type SequenceMode string

const (
	ModeScheduled SequenceMode = "scheduled"
	ModeNearest   SequenceMode = "nearest"
)

func ParseSequenceMode(s string) (SequenceMode, error) {
	switch SequenceMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeScheduled:
		return ModeScheduled, nil
	case ModeNearest:
		return ModeNearest, nil
	}
	return "", fmt.Errorf("unknown sequence mode %q", s)
}

// RouteSequencer orders each agent's visits and appends the consolidated
// drop-off stops after the last visit.
type RouteSequencer struct {
	provider ports.DistanceProvider
	cfg      Config
	logger   *slog.Logger
}

func NewRouteSequencer(provider ports.DistanceProvider, cfg Config, logger *slog.Logger) *RouteSequencer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RouteSequencer{provider: provider, cfg: cfg, logger: logger}
}

// Sequence builds one route per agent. Agents are sequenced concurrently;
// each agent only touches its own visits.
func (s *RouteSequencer) Sequence(
	ctx context.Context,
	mode SequenceMode,
	agents []*domain.Agent,
	visits map[string]*domain.Visit,
	locations map[string]domain.DropoffLocation,
) ([]domain.AgentRoute, error) {
	return mapConcurrent(ctx, s.cfg.Workers, len(agents), func(ctx context.Context, i int) (domain.AgentRoute, error) {
		route, err := s.sequenceAgent(ctx, mode, agents[i], visits, locations)
		if err != nil {
			return domain.AgentRoute{}, fmt.Errorf("sequence agent %q: %w", agents[i].ID, err)
		}
		return route, nil
	})
}

func (s *RouteSequencer) sequenceAgent(
	ctx context.Context,
	mode SequenceMode,
	agent *domain.Agent,
	visits map[string]*domain.Visit,
	locations map[string]domain.DropoffLocation,
) (domain.AgentRoute, error) {
	own := make([]*domain.Visit, 0, len(agent.VisitIDs))
	for _, id := range agent.VisitIDs {
		v, ok := visits[id]
		if !ok {
			return domain.AgentRoute{}, fmt.Errorf("unknown visit %q", id)
		}
		own = append(own, v)
	}

	var ordered []*domain.Visit
	switch mode {
	case ModeNearest:
		var err error
		ordered, err = s.nearestNeighbor(ctx, agent.Home, own)
		if err != nil {
			return domain.AgentRoute{}, err
		}
	default:
		ordered = slices.Clone(own)
		slices.SortStableFunc(ordered, domain.CompareSchedule)
	}

	for i, v := range ordered {
		v.TripOrder = i + 1
	}

	dropoffIDs, err := ConsolidateDropoffs(ctx, s.provider, ordered, locations)
	if err != nil {
		return domain.AgentRoute{}, err
	}

	return s.buildRoute(ctx, agent, ordered, dropoffIDs, locations)
}

// nearestNeighbor orders visits greedily from start, always moving to the
// closest remaining visit. Ties go to the earlier scheduled visit.
func (s *RouteSequencer) nearestNeighbor(
	ctx context.Context,
	start domain.Coordinates,
	visits []*domain.Visit,
) ([]*domain.Visit, error) {
	remaining := slices.Clone(visits)
	slices.SortStableFunc(remaining, domain.CompareSchedule)

	ordered := make([]*domain.Visit, 0, len(visits))
	current := start

	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		best := -1
		bestMiles := 0.0
		for i, v := range remaining {
			r, err := s.provider.Distance(ctx, current, v.Location)
			if err != nil {
				return nil, err
			}
			if best < 0 || r.Miles < bestMiles-distanceEpsilon {
				best, bestMiles = i, r.Miles
			}
		}

		next := remaining[best]
		ordered = append(ordered, next)
		current = next.Location
		remaining = slices.Delete(remaining, best, best+1)
	}

	return ordered, nil
}

// ConsolidateDropoffs merges drop-off ids that share a clinic name within
// one agent's route into the id nearest the route's last visit, then
// numbers the remaining drop-offs after the last trip order in the order
// they are first referenced. ordered must be in trip order. It returns the
// drop-off ids in stop order. Running it twice yields the same result.
func ConsolidateDropoffs(
	ctx context.Context,
	provider ports.DistanceProvider,
	ordered []*domain.Visit,
	locations map[string]domain.DropoffLocation,
) ([]string, error) {
	if len(ordered) == 0 {
		return nil, nil
	}
	last := ordered[len(ordered)-1]

	clinicOrder := make([]string, 0)
	idsByClinic := make(map[string][]string)
	for _, v := range ordered {
		if v.DropoffID == "" {
			continue
		}
		k := v.DropoffID
		if loc, ok := locations[v.DropoffID]; ok {
			k = clinicKey(loc.Clinic)
		}
		if _, ok := idsByClinic[k]; !ok {
			clinicOrder = append(clinicOrder, k)
		}
		if !slices.Contains(idsByClinic[k], v.DropoffID) {
			idsByClinic[k] = append(idsByClinic[k], v.DropoffID)
		}
	}

	for _, k := range clinicOrder {
		ids := idsByClinic[k]
		if len(ids) < 2 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		winner := ""
		winnerMiles := 0.0
		for _, id := range ids {
			r, err := provider.Distance(ctx, last.Location, locations[id].Location)
			if err != nil {
				return nil, fmt.Errorf("consolidate dropoffs: %w", err)
			}
			if winner == "" || r.Miles < winnerMiles {
				winner, winnerMiles = id, r.Miles
			}
		}

		for _, v := range ordered {
			if v.DropoffID != "" && v.DropoffID != winner && slices.Contains(ids, v.DropoffID) {
				v.DropoffID = winner
			}
		}
	}

	seq := len(ordered)
	stopOrder := make([]string, 0, len(clinicOrder))
	seqByID := make(map[string]int)
	for _, v := range ordered {
		if v.DropoffID == "" {
			continue
		}
		n, ok := seqByID[v.DropoffID]
		if !ok {
			seq++
			n = seq
			seqByID[v.DropoffID] = n
			stopOrder = append(stopOrder, v.DropoffID)
		}
		v.DropoffSeq = n
	}

	return stopOrder, nil
}

func (s *RouteSequencer) buildRoute(
	ctx context.Context,
	agent *domain.Agent,
	ordered []*domain.Visit,
	dropoffIDs []string,
	locations map[string]domain.DropoffLocation,
) (domain.AgentRoute, error) {
	route := domain.AgentRoute{
		AgentID: agent.ID,
		Stops:   make([]domain.RouteStop, 0, len(ordered)+len(dropoffIDs)),
	}

	current := agent.Home
	addStop := func(stop domain.RouteStop) error {
		r, err := s.provider.Distance(ctx, current, stop.Location)
		if err != nil {
			return err
		}
		stop.LegMiles = r.Miles
		stop.Geometry = r.Geometry
		stop.TravelTime = s.travelTime(r.Miles)

		route.TotalMiles += r.Miles
		route.TotalTravelTime += stop.TravelTime
		route.Stops = append(route.Stops, stop)
		current = stop.Location
		return nil
	}

	for _, v := range ordered {
		if err := addStop(domain.RouteStop{
			Kind:     domain.StopVisit,
			RefID:    v.ID,
			Location: v.Location,
			Sequence: v.TripOrder,
		}); err != nil {
			return domain.AgentRoute{}, fmt.Errorf("route leg to visit %q: %w", v.ID, err)
		}
	}

	for _, id := range dropoffIDs {
		loc, ok := locations[id]
		if !ok {
			s.logger.WarnContext(ctx, "drop-off location missing from reference data", "dropoff_id", id, "agent_id", agent.ID)
			continue
		}

		stop := domain.RouteStop{Kind: domain.StopDropoff, RefID: id, Location: loc.Location}
		for _, v := range ordered {
			if v.DropoffID == id {
				stop.VisitIDs = append(stop.VisitIDs, v.ID)
				stop.Sequence = v.DropoffSeq
			}
		}
		if err := addStop(stop); err != nil {
			return domain.AgentRoute{}, fmt.Errorf("route leg to dropoff %q: %w", id, err)
		}
	}

	return route, nil
}

// travelTime estimates a leg's driving time at the configured average
// speed, never less than the minimum leg time.
func (s *RouteSequencer) travelTime(miles float64) time.Duration {
	minutes := math.Round(miles * 60 / s.cfg.AverageSpeedMPH)
	d := time.Duration(minutes) * time.Minute
	return max(d, s.cfg.MinLegTravel)
}
