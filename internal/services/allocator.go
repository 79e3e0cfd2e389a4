package services

import (
	"cmp"
	"context"
	"field-route-service/internal/domain"
	"field-route-service/internal/metrics"
	"field-route-service/internal/ports"
	"fmt"
	"log/slog"
	"math"
	"slices"
)

const distanceEpsilon = 1e-9

// Allocation is the outcome of the bin-packing phase.
type Allocation struct {
	// Agents holds only agents with at least one visit, in candidate order.
	Agents []*domain.Agent
	// Overflow lists visits assigned over the capacity ceiling.
	Overflow []string
	Ceiling  float64
}

// AssignmentAllocator distributes visits over candidate agents with a
// greedy, discount-weighted distance score. Every visit ends up on exactly
// one agent; when nobody has capacity the least-loaded agent takes it.
type AssignmentAllocator struct {
	provider ports.DistanceProvider
	cfg      Config
	logger   *slog.Logger
}

func NewAssignmentAllocator(provider ports.DistanceProvider, cfg Config, logger *slog.Logger) *AssignmentAllocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssignmentAllocator{provider: provider, cfg: cfg, logger: logger}
}

// allocation carries the bookkeeping of one Allocate call.
type allocation struct {
	agents    []*domain.Agent
	visits    map[string]*domain.Visit
	queue     []string
	processed map[string]struct{}
	serving   map[string]map[string]struct{}
	ceiling   float64
	overflow  []string
}

func (s *allocation) done(id string) bool {
	_, ok := s.processed[id]
	return ok
}

func (s *allocation) markServing(agentID, dropoffID string) {
	if dropoffID == "" {
		return
	}
	if s.serving[agentID] == nil {
		s.serving[agentID] = make(map[string]struct{})
	}
	s.serving[agentID][dropoffID] = struct{}{}
}

func (s *allocation) isServing(agentID, dropoffID string) bool {
	_, ok := s.serving[agentID][dropoffID]
	return ok
}

// Allocate runs the group pass, the singleton-with-dropoff pass and the
// singleton pass in that order.
func (a *AssignmentAllocator) Allocate(
	ctx context.Context,
	visits []*domain.Visit,
	agents []*domain.Agent,
	res *Resolution,
	averageWorkload float64,
) (*Allocation, error) {
	if len(agents) == 0 {
		return nil, fmt.Errorf("allocate: %w", domain.ErrNoCandidateAgents)
	}
	if res == nil {
		res = &Resolution{ByVisit: map[string]string{}}
	}

	ordered := slices.Clone(visits)
	slices.SortStableFunc(ordered, domain.CompareSchedule)

	st := &allocation{
		agents:    agents,
		visits:    make(map[string]*domain.Visit, len(ordered)),
		queue:     make([]string, 0, len(ordered)),
		processed: make(map[string]struct{}, len(ordered)),
		serving:   make(map[string]map[string]struct{}),
		ceiling:   averageWorkload * a.cfg.CapacityMultiplier,
	}
	for _, v := range ordered {
		st.visits[v.ID] = v
		st.queue = append(st.queue, v.ID)
	}

	if err := a.assignGroups(ctx, st, res); err != nil {
		return nil, fmt.Errorf("allocate: group pass: %w", err)
	}

	if err := a.assignSingles(ctx, st, res, true); err != nil {
		return nil, fmt.Errorf("allocate: dropoff pass: %w", err)
	}

	if err := a.assignSingles(ctx, st, res, false); err != nil {
		return nil, fmt.Errorf("allocate: singleton pass: %w", err)
	}

	out := &Allocation{Overflow: st.overflow, Ceiling: st.ceiling}
	for _, ag := range agents {
		if len(ag.VisitIDs) > 0 {
			out.Agents = append(out.Agents, ag)
		}
	}

	return out, nil
}

// assignGroups places every drop-off group of two or more visits, largest
// first, on the agent with the lowest discounted distance sum that can take
// the whole group. Groups that fit nobody are left to the singleton passes.
func (a *AssignmentAllocator) assignGroups(ctx context.Context, st *allocation, res *Resolution) error {
	groups := make([]domain.DropoffGroup, 0, len(res.Groups))
	for _, g := range res.Groups {
		if len(g.VisitIDs) > 1 {
			groups = append(groups, g)
		}
	}
	slices.SortStableFunc(groups, func(x, y domain.DropoffGroup) int {
		return cmp.Compare(len(y.VisitIDs), len(x.VisitIDs))
	})

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}

		members := make([]*domain.Visit, 0, len(g.VisitIDs))
		points := 0
		for _, id := range g.VisitIDs {
			v, ok := st.visits[id]
			if !ok || st.done(id) {
				continue
			}
			members = append(members, v)
			points += v.WorkloadPoints
		}
		if len(members) < 2 {
			continue
		}

		eligible := make([]*domain.Agent, 0, len(st.agents))
		for _, ag := range st.agents {
			if ag.HasCapacity(points, st.ceiling) {
				eligible = append(eligible, ag)
			}
		}
		if len(eligible) == 0 {
			a.logger.DebugContext(ctx, "drop-off group exceeds every agent's capacity, assigning visits individually",
				"dropoff_id", g.DropoffID, "visits", len(members), "points", points)
			continue
		}

		sums, err := mapConcurrent(ctx, a.cfg.Workers, len(eligible), func(ctx context.Context, i int) (float64, error) {
			total := 0.0
			for _, m := range members {
				r, err := a.provider.Distance(ctx, eligible[i].CurrentLocation, m.Location)
				if err != nil {
					return 0, err
				}
				total += r.Miles
			}
			return total, nil
		})
		if err != nil {
			return err
		}

		scores := make([]float64, len(sums))
		for i, s := range sums {
			scores[i] = s * (1 - a.cfg.DropoffDiscount)
		}

		best := pickBest(eligible, scores, func(int) bool { return true })
		agent := eligible[best]
		agent.AssignGroup(members, sums[best])
		st.markServing(agent.ID, g.DropoffID)
		for _, m := range members {
			st.processed[m.ID] = struct{}{}
		}

		a.logger.DebugContext(ctx, "drop-off group assigned",
			"dropoff_id", g.DropoffID, "agent_id", agent.ID, "visits", len(members), "miles", sums[best])
	}

	return nil
}

// assignSingles walks the pending queue in scheduled order and places each
// remaining visit. With withDropoff set it handles visits that have a
// resolved drop-off and prefers agents already serving it; otherwise it
// handles the rest.
func (a *AssignmentAllocator) assignSingles(ctx context.Context, st *allocation, res *Resolution, withDropoff bool) error {
	for _, id := range st.queue {
		if err := ctx.Err(); err != nil {
			return err
		}
		if st.done(id) {
			continue
		}

		dropoffID := res.ByVisit[id]
		if withDropoff != (dropoffID != "") {
			continue
		}
		v := st.visits[id]

		dists, err := distancesFromAgents(ctx, a.provider, a.cfg.Workers, st.agents, v.Location)
		if err != nil {
			return err
		}

		hasCapacity := func(i int) bool { return st.agents[i].HasCapacity(v.WorkloadPoints, st.ceiling) }

		best := -1
		if withDropoff {
			discounted := make([]float64, len(dists))
			for i, d := range dists {
				discounted[i] = d * (1 - a.cfg.DropoffDiscount)
			}
			best = pickBest(st.agents, discounted, func(i int) bool {
				return st.isServing(st.agents[i].ID, dropoffID) && hasCapacity(i)
			})
		}
		if best < 0 {
			best = pickBest(st.agents, dists, hasCapacity)
		}
		if best < 0 {
			best = leastLoaded(st.agents)
			agent := st.agents[best]
			a.logger.WarnContext(ctx, "no agent has capacity, assigning to least-loaded agent",
				"visit_id", v.ID, "agent_id", agent.ID,
				"workload", agent.Workload+v.WorkloadPoints, "ceiling", st.ceiling,
				"err", domain.ErrCapacityExceeded)
			metrics.OverflowAssignments.Inc()
			st.overflow = append(st.overflow, v.ID)
		}

		agent := st.agents[best]
		agent.Assign(v, dists[best])
		st.markServing(agent.ID, dropoffID)
		st.processed[id] = struct{}{}
	}

	return nil
}

// pickBest returns the index of the allowed agent with the lowest score,
// breaking ties by lower workload and then lower agent id. It returns -1
// when no agent is allowed.
func pickBest(agents []*domain.Agent, scores []float64, allowed func(i int) bool) int {
	best := -1
	for i, ag := range agents {
		if !allowed(i) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}

		cur := agents[best]
		switch {
		case scores[i] < scores[best]-distanceEpsilon:
			best = i
		case math.Abs(scores[i]-scores[best]) <= distanceEpsilon:
			if ag.Workload < cur.Workload ||
				(ag.Workload == cur.Workload && domain.CompareAgentIDs(ag.ID, cur.ID) < 0) {
				best = i
			}
		}
	}
	return best
}

func leastLoaded(agents []*domain.Agent) int {
	best := 0
	for i, ag := range agents[1:] {
		cur := agents[best]
		if ag.Workload < cur.Workload ||
			(ag.Workload == cur.Workload && domain.CompareAgentIDs(ag.ID, cur.ID) < 0) {
			best = i + 1
		}
	}
	return best
}
