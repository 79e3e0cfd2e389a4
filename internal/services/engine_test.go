package services

import (
	"context"
	"errors"
	"field-route-service/internal/adapters/distance"
	"field-route-service/internal/domain"
	"math"
	"reflect"
	"slices"
	"testing"
	"time"
)

func phoenixInput() PlanInput {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	visit := func(id string, lat, lon float64, hour int) domain.Visit {
		return domain.Visit{
			ID:             id,
			Area:           "Phoenix",
			Date:           "2026-03-02",
			Location:       domain.Coordinates{Lat: lat, Lon: lon},
			ScheduledAt:    day.Add(time.Duration(hour) * time.Hour),
			WorkloadPoints: 10,
			Dropoff:        &domain.DropoffRequirement{Clinic: "Sonora Quest", State: "AZ"},
		}
	}

	return PlanInput{
		Area: "Phoenix",
		Date: "2026-03-02",
		Visits: []domain.Visit{
			visit("v3", 33.51, -112.1, 11),
			visit("v1", 33.45, -112.07, 8),
			visit("v2", 33.48, -112.02, 9),
			{ID: "other-area", Area: "Tucson", Date: "2026-03-02", Location: domain.Coordinates{Lat: 32.22, Lon: -110.97}, WorkloadPoints: 10},
			{ID: "other-day", Area: "Phoenix", Date: "2026-03-03", Location: domain.Coordinates{Lat: 33.45, Lon: -112.07}, WorkloadPoints: 10},
		},
		Roster: []domain.AgentRecord{
			{ID: "1", Area: "Phoenix", Home: domain.Coordinates{Lat: 33.42, Lon: -112.05}},
		},
		Dropoffs: []domain.DropoffLocation{
			{ID: "D1", Clinic: "sonora quest", State: "AZ", Location: domain.Coordinates{Lat: 33.5, Lon: -112}},
		},
	}
}

func TestPlanSingleGroupSingleAgent(t *testing.T) {
	engine, err := NewEngine(distance.NewProvider(), testConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	in := phoenixInput()
	run, err := engine.Plan(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if run.RunID == "" {
		t.Fatalf("expected run id")
	}
	if run.AgentsNeeded != 1 || run.AverageWorkload != 1000 {
		t.Fatalf("estimate = %d agents at %v, want 1 at 1000", run.AgentsNeeded, run.AverageWorkload)
	}
	if len(run.Agents) != 1 {
		t.Fatalf("agents = %+v, want one", run.Agents)
	}
	a := run.Agents[0]
	if a.AgentID != "1" || a.Workload != 30 {
		t.Fatalf("agent = %+v, want agent 1 with 30 points", a)
	}
	if got := a.VisitIDs; len(got) != 3 || got[0] != "v1" || got[1] != "v2" || got[2] != "v3" {
		t.Fatalf("agent visits = %v, want [v1 v2 v3]", got)
	}

	if len(run.Visits) != 3 {
		t.Fatalf("visits = %+v, want the three Phoenix visits for the day", run.Visits)
	}
	for i, v := range run.Visits {
		if v.AgentID != "1" || v.TripOrder != i+1 || v.DropoffID != "D1" || v.DropoffSeq != 4 {
			t.Fatalf("visit result %+v", v)
		}
	}

	if len(run.Routes) != 1 || len(run.Routes[0].Stops) != 4 {
		t.Fatalf("routes = %+v, want one route with four stops", run.Routes)
	}
	last := run.Routes[0].Stops[3]
	if last.Kind != domain.StopDropoff || last.RefID != "D1" || len(last.VisitIDs) != 3 {
		t.Fatalf("last stop = %+v, want D1 drop-off for all visits", last)
	}

	if in.Visits[1].AgentID != "" {
		t.Fatalf("input visits were mutated")
	}
}

func TestPlanFallsBackToGeodesicWhenRouterFails(t *testing.T) {
	router := distance.NewMockRouter(nil)
	router.Err = errors.New("upstream 503")

	engine, err := NewEngine(distance.NewProvider(distance.WithRouter(router)), testConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	in := phoenixInput()
	run, err := engine.Plan(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if router.Calls() == 0 {
		t.Fatalf("expected router to be tried")
	}

	prev := in.Roster[0].Home
	for _, s := range run.Routes[0].Stops {
		want := domain.GeodesicMiles(prev, s.Location)
		if math.Abs(s.LegMiles-want) > 1e-6 {
			t.Fatalf("leg to %s = %v, want geodesic %v", s.RefID, s.LegMiles, want)
		}
		prev = s.Location
	}
}

func TestPlanNoCandidateAgents(t *testing.T) {
	engine, err := NewEngine(distance.NewProvider(), testConfig(), WithAgentIndex(&fakeIndex{}))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	_, err = engine.Plan(context.Background(), phoenixInput())
	if !errors.Is(err, domain.ErrNoCandidateAgents) {
		t.Fatalf("err = %v, want ErrNoCandidateAgents", err)
	}
}

func TestPlanWithoutVisitsReturnsEmptyRun(t *testing.T) {
	engine, err := NewEngine(distance.NewProvider(), testConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	in := phoenixInput()
	in.Date = "2026-04-01"
	run, err := engine.Plan(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(run.Agents) != 0 || len(run.Visits) != 0 || len(run.Warnings) != 1 {
		t.Fatalf("run = %+v, want empty run with one warning", run)
	}
}

type failingGeocoder struct{ calls int }

func (g *failingGeocoder) Geocode(ctx context.Context, area string) (domain.Coordinates, error) {
	g.calls++
	return domain.Coordinates{}, errors.New("geocoder down")
}

func TestPlanUsesCenterBeforeGeocoder(t *testing.T) {
	geo := &failingGeocoder{}
	engine, err := NewEngine(distance.NewProvider(), testConfig(), WithGeocoder(geo))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	in := phoenixInput()
	in.Center = &domain.Coordinates{Lat: 33.45, Lon: -112.07}
	if _, err := engine.Plan(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if geo.calls != 0 {
		t.Fatalf("geocoder called %d times with an explicit center", geo.calls)
	}

	in.Center = nil
	run, err := engine.Plan(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if geo.calls != 1 || len(run.Warnings) == 0 {
		t.Fatalf("expected geocoder fallback with a warning, calls=%d warnings=%v", geo.calls, run.Warnings)
	}
}

func TestPlanHonoursCancellation(t *testing.T) {
	engine, err := NewEngine(distance.NewProvider(), testConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Plan(ctx, phoenixInput()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestNewEngineValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.DropoffDiscount = 1.5
	if _, err := NewEngine(distance.NewProvider(), cfg); err == nil {
		t.Fatalf("expected config error")
	}
	if _, err := NewEngine(nil, testConfig()); err == nil {
		t.Fatalf("expected error without provider")
	}
}

func TestPlanScheduledModeIsDeterministic(t *testing.T) {
	sameSlot := func() PlanInput {
		in := phoenixInput()
		in.Mode = ModeScheduled
		at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		for i := range in.Visits {
			in.Visits[i].ScheduledAt = at
		}
		in.Roster = append(in.Roster, domain.AgentRecord{ID: "2", Area: "Phoenix", Home: domain.Coordinates{Lat: 33.5, Lon: -112.1}})
		return in
	}

	engine, err := NewEngine(distance.NewProvider(), testConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	first, err := engine.Plan(context.Background(), sameSlot())
	if err != nil {
		t.Fatalf("first plan: %v", err)
	}

	in := sameSlot()
	slices.Reverse(in.Visits)
	slices.Reverse(in.Roster)
	second, err := engine.Plan(context.Background(), in)
	if err != nil {
		t.Fatalf("second plan: %v", err)
	}

	if !reflect.DeepEqual(first.Agents, second.Agents) {
		t.Fatalf("agents differ:\n%+v\n%+v", first.Agents, second.Agents)
	}
	if !reflect.DeepEqual(first.Visits, second.Visits) {
		t.Fatalf("visits differ:\n%+v\n%+v", first.Visits, second.Visits)
	}
	if !reflect.DeepEqual(first.Routes, second.Routes) {
		t.Fatalf("routes differ:\n%+v\n%+v", first.Routes, second.Routes)
	}

	// Equal timestamps fall back to visit id order within each agent.
	for _, a := range first.Agents {
		if !slices.IsSorted(a.VisitIDs) {
			t.Fatalf("agent %s trip order = %v, want id order", a.AgentID, a.VisitIDs)
		}
	}
}
