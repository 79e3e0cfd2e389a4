package services

import (
	"context"
	"errors"
	"field-route-service/internal/domain"
	"field-route-service/internal/metrics"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlanInput is everything one run needs. Visits may include other areas or
// dates; Plan keeps only those matching Area and Date.
type PlanInput struct {
	Area   string
	Date   string
	Mode   SequenceMode
	Center *domain.Coordinates

	Visits   []domain.Visit
	Roster   []domain.AgentRecord
	Profiles []domain.WorkloadProfile
	Dropoffs []domain.DropoffLocation
}

// Engine runs the assignment pipeline for one (area, date) at a time.
// Phases run strictly in order; concurrency only happens inside a phase.
type Engine struct {
	provider ports.DistanceProvider
	index    ports.AgentIndex
	geocoder ports.AreaGeocoder
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

type EngineOption func(*Engine)

func WithAgentIndex(index ports.AgentIndex) EngineOption {
	return func(e *Engine) { e.index = index }
}

func WithGeocoder(g ports.AreaGeocoder) EngineOption {
	return func(e *Engine) { e.geocoder = g }
}

func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEngine(provider ports.DistanceProvider, cfg Config, opts ...EngineOption) (*Engine, error) {
	if provider == nil {
		return nil, errors.New("new engine: distance provider is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}

	e := &Engine{provider: provider, cfg: cfg, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Plan estimates, selects, resolves, allocates and sequences. An area
// without visits yields an empty run and a warning rather than an error.
// ErrNoCandidateAgents and context errors are the only failures returned.
func (e *Engine) Plan(ctx context.Context, in PlanInput) (run *domain.AssignmentRun, err error) {
	defer obs.Time(ctx, "engine.plan")(&err)
	start := time.Now()
	defer func() {
		outcome := "ok"
		switch {
		case errors.Is(err, domain.ErrNoCandidateAgents):
			outcome = "no_candidates"
		case err != nil:
			outcome = "error"
		case run != nil && len(run.Agents) == 0:
			outcome = "empty"
		}
		metrics.PlanDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	if in.Mode == "" {
		in.Mode = ModeScheduled
	}

	run = &domain.AssignmentRun{
		RunID:     uuid.NewString(),
		Area:      in.Area,
		Date:      in.Date,
		CreatedAt: e.now().UTC(),
		Agents:    []domain.AgentResult{},
		Visits:    []domain.VisitResult{},
		Routes:    []domain.AgentRoute{},
	}
	logger := e.logger.With("run_id", run.RunID, "area", in.Area, "date", in.Date)

	visits := selectVisits(in.Visits, in.Area, in.Date)

	estimate, err := NewWorkloadEstimator(in.Profiles, e.cfg.DefaultAverageWorkload, logger).Estimate(ctx, in.Area, visits)
	if errors.Is(err, domain.ErrNoVisitsFound) {
		logger.WarnContext(ctx, "no visits for area and date")
		run.Warnings = append(run.Warnings, err.Error())
		return run, nil
	}
	if err != nil {
		return nil, err
	}
	run.AgentsNeeded = estimate.AgentsNeeded
	run.AverageWorkload = estimate.AveragePoints
	if estimate.Defaulted {
		run.Warnings = append(run.Warnings,
			fmt.Sprintf("no workload profile for area %q, using default average %v", in.Area, estimate.AveragePoints))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target, warning := e.target(ctx, in, visits)
	if warning != "" {
		run.Warnings = append(run.Warnings, warning)
	}

	agents, err := NewCandidateAgentPool(e.index, e.cfg, logger).Select(ctx, in.Area, target, in.Roster, estimate.AgentsNeeded)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := NewDropoffResolver(e.provider, logger).Resolve(ctx, visits, in.Dropoffs)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	run.Unresolved = res.Unresolved
	for _, id := range res.Unresolved {
		run.Warnings = append(run.Warnings, fmt.Sprintf("visit %s: %v", id, domain.ErrUnresolvedDropoff))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	alloc, err := NewAssignmentAllocator(e.provider, e.cfg, logger).Allocate(ctx, visits, agents, res, estimate.AveragePoints)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	run.Overflow = alloc.Overflow
	for _, id := range alloc.Overflow {
		run.Warnings = append(run.Warnings, fmt.Sprintf("visit %s: %v", id, domain.ErrCapacityExceeded))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Visit, len(visits))
	for _, v := range visits {
		byID[v.ID] = v
	}

	routes, err := NewRouteSequencer(e.provider, e.cfg, logger).Sequence(ctx, in.Mode, alloc.Agents, byID, res.Locations)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	run.Routes = routes

	for _, ag := range alloc.Agents {
		ids := slices.Clone(ag.VisitIDs)
		slices.SortFunc(ids, func(a, b string) int { return byID[a].TripOrder - byID[b].TripOrder })
		run.Agents = append(run.Agents, domain.AgentResult{
			AgentID:  ag.ID,
			Workload: ag.Workload,
			Distance: ag.Distance,
			VisitIDs: ids,
		})
	}

	for _, v := range visits {
		run.Visits = append(run.Visits, domain.VisitResult{
			VisitID:    v.ID,
			AgentID:    v.AgentID,
			TripOrder:  v.TripOrder,
			DropoffID:  v.DropoffID,
			DropoffSeq: v.DropoffSeq,
		})
	}

	logger.InfoContext(ctx, "assignment run complete",
		"visits", len(visits), "agents_needed", run.AgentsNeeded, "agents_used", len(run.Agents),
		"overflow", len(run.Overflow), "unresolved", len(run.Unresolved))

	return run, nil
}

// target picks the point candidate agents are ranked against: the caller's
// center, then the geocoded area, then the centroid of the visits.
func (e *Engine) target(ctx context.Context, in PlanInput, visits []*domain.Visit) (domain.Coordinates, string) {
	if in.Center != nil {
		return *in.Center, ""
	}

	var warning string
	if e.geocoder != nil {
		c, err := e.geocoder.Geocode(ctx, in.Area)
		if err == nil {
			return c, ""
		}
		e.logger.WarnContext(ctx, "area geocoding failed, using visit centroid", "area", in.Area, "err", err)
		warning = fmt.Sprintf("geocoding %q failed, using visit centroid", in.Area)
	}

	points := make([]domain.Coordinates, 0, len(visits))
	for _, v := range visits {
		points = append(points, v.Location)
	}
	c, _ := domain.Centroid(points)
	return c, warning
}

// selectVisits copies the visits for area and date, clears any assignment
// state and returns them in scheduled order.
func selectVisits(all []domain.Visit, area, date string) []*domain.Visit {
	out := make([]*domain.Visit, 0, len(all))
	for i := range all {
		v := all[i]
		if !strings.EqualFold(strings.TrimSpace(v.Area), strings.TrimSpace(area)) || v.Date != date {
			continue
		}
		if v.Dropoff != nil {
			d := *v.Dropoff
			v.Dropoff = &d
		}
		v.Reset()
		out = append(out, &v)
	}
	slices.SortStableFunc(out, domain.CompareSchedule)
	return out
}
