package services

import (
	"context"
	"errors"
	"field-route-service/internal/adapters/geoindex"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"slices"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeIndex struct {
	hits  []ports.AgentHit
	err   error
	radii []float64
}

func (f *fakeIndex) Nearby(ctx context.Context, center domain.Coordinates, radiusMiles float64) ([]ports.AgentHit, error) {
	f.radii = append(f.radii, radiusMiles)
	if f.err != nil {
		return nil, f.err
	}
	var out []ports.AgentHit
	for _, h := range f.hits {
		if h.Miles <= radiusMiles {
			out = append(out, h)
		}
	}
	return out, nil
}

func roster(areas map[string]string) []domain.AgentRecord {
	out := make([]domain.AgentRecord, 0, len(areas))
	for id, area := range areas {
		out = append(out, domain.AgentRecord{ID: id, Area: area, Home: at(0)})
	}
	slices.SortFunc(out, func(a, b domain.AgentRecord) int { return domain.CompareAgentIDs(a.ID, b.ID) })
	return out
}

func ids(agents []*domain.Agent) []string {
	out := make([]string, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.ID)
	}
	return out
}

func TestSelectWidensRadiusUntilEnoughAgents(t *testing.T) {
	idx := &fakeIndex{hits: []ports.AgentHit{
		{AgentID: "1", Miles: 10},
		{AgentID: "2", Miles: 45},
		{AgentID: "3", Miles: 85},
	}}
	pool := NewCandidateAgentPool(idx, testConfig(), nil)

	agents, err := pool.Select(context.Background(), "Phoenix", at(0),
		roster(map[string]string{"1": "Phoenix", "2": "Phoenix", "3": "Phoenix"}), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := []float64{30, 50, 70, 90}; !slices.Equal(idx.radii, want) {
		t.Fatalf("radii = %v, want %v", idx.radii, want)
	}
	if got, want := ids(agents), []string{"1", "2", "3"}; !slices.Equal(got, want) {
		t.Fatalf("agents = %v, want %v", got, want)
	}
	if agents[1].DistanceToTarget != 45 {
		t.Fatalf("distance to target = %v, want 45", agents[1].DistanceToTarget)
	}
}

func TestSelectStopsAtMaxRadius(t *testing.T) {
	idx := &fakeIndex{hits: []ports.AgentHit{
		{AgentID: "1", Miles: 10},
		{AgentID: "2", Miles: 150},
	}}
	pool := NewCandidateAgentPool(idx, testConfig(), nil)

	agents, err := pool.Select(context.Background(), "Phoenix", at(0),
		roster(map[string]string{"1": "Phoenix", "2": "Phoenix"}), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if last := idx.radii[len(idx.radii)-1]; last != 100 {
		t.Fatalf("last radius = %v, want 100", last)
	}
	if got := ids(agents); !slices.Equal(got, []string{"1"}) {
		t.Fatalf("agents = %v, want [1]", got)
	}
}

func TestSelectNoIndexedAgents(t *testing.T) {
	pool := NewCandidateAgentPool(&fakeIndex{}, testConfig(), nil)

	_, err := pool.Select(context.Background(), "Phoenix", at(0),
		roster(map[string]string{"1": "Phoenix"}), 1)
	if !errors.Is(err, domain.ErrNoCandidateAgents) {
		t.Fatalf("err = %v, want ErrNoCandidateAgents", err)
	}
}

func TestSelectIgnoresHitsOutsideRoster(t *testing.T) {
	idx := &fakeIndex{hits: []ports.AgentHit{{AgentID: "ghost", Miles: 1}}}
	pool := NewCandidateAgentPool(idx, testConfig(), nil)

	_, err := pool.Select(context.Background(), "Phoenix", at(0),
		roster(map[string]string{"1": "Phoenix"}), 1)
	if !errors.Is(err, domain.ErrNoCandidateAgents) {
		t.Fatalf("err = %v, want ErrNoCandidateAgents", err)
	}
}

func TestSelectScansRosterWhenIndexFails(t *testing.T) {
	pool := NewCandidateAgentPool(&fakeIndex{err: errors.New("connection refused")}, testConfig(), nil)

	recs := []domain.AgentRecord{
		{ID: "a", Area: "Phoenix", Home: at(0.5)},
		{ID: "b", Area: "Phoenix", Home: at(0.1)},
		{ID: "c", Area: "Phoenix", Home: at(0.2)},
	}

	agents, err := pool.Select(context.Background(), "Phoenix", at(0), recs, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := ids(agents), []string{"b", "c", "a"}; !slices.Equal(got, want) {
		t.Fatalf("agents = %v, want %v", got, want)
	}
}

func TestSelectEmptyRoster(t *testing.T) {
	pool := NewCandidateAgentPool(nil, testConfig(), nil)

	_, err := pool.Select(context.Background(), "Phoenix", at(0), nil, 1)
	if !errors.Is(err, domain.ErrNoCandidateAgents) {
		t.Fatalf("err = %v, want ErrNoCandidateAgents", err)
	}
}

func TestSelectPrioritisesInAreaAgents(t *testing.T) {
	recs := []domain.AgentRecord{
		{ID: "1", Area: "Tucson", Home: at(0.1)},
		{ID: "2", Area: "phoenix", Home: at(0.3)},
		{ID: "3", Area: "Phoenix", Home: at(0.2)},
	}

	cfg := testConfig()
	cfg.AreaOnly = false
	agents, err := NewCandidateAgentPool(nil, cfg, nil).Select(context.Background(), "Phoenix", at(0), recs, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := ids(agents), []string{"3", "2", "1"}; !slices.Equal(got, want) {
		t.Fatalf("agents = %v, want %v", got, want)
	}

	cfg.AreaOnly = true
	agents, err = NewCandidateAgentPool(nil, cfg, nil).Select(context.Background(), "Phoenix", at(0), recs, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := ids(agents), []string{"3", "2"}; !slices.Equal(got, want) {
		t.Fatalf("area-only agents = %v, want %v", got, want)
	}

	agents, err = NewCandidateAgentPool(nil, cfg, nil).Select(context.Background(), "Mesa", at(0), recs, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agents) != 3 {
		t.Fatalf("expected every agent when none is in area, got %v", ids(agents))
	}
}

func TestSelectReturnsFreshAgents(t *testing.T) {
	recs := []domain.AgentRecord{{ID: "1", Area: "Phoenix", Home: at(0.1)}}
	pool := NewCandidateAgentPool(nil, testConfig(), nil)

	first, _ := pool.Select(context.Background(), "Phoenix", at(0), recs, 1)
	first[0].Assign(visitAt("v", 1, 8, 5), 1)

	second, err := pool.Select(context.Background(), "Phoenix", at(0), recs, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := second[0]
	if a.Workload != 0 || len(a.VisitIDs) != 0 || a.Distance != 0 || a.CurrentLocation != a.Home {
		t.Fatalf("agent state leaked between runs: %+v", a)
	}
}

func TestSelectRefreshesIndexFromRoster(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	idx := geoindex.NewRedisAgentIndex(client, "")
	ctx := context.Background()

	// Loaded at startup with agent 1 only, about 35 mi out.
	if err := idx.Load(ctx, []domain.AgentRecord{{ID: "1", Area: "Phoenix", Home: at(0.5)}}); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Agent 2 joined the roster later and lives within the base radius.
	recs := []domain.AgentRecord{
		{ID: "1", Area: "Phoenix", Home: at(0.5)},
		{ID: "2", Area: "Phoenix", Home: at(0.1)},
	}
	agents, err := NewCandidateAgentPool(idx, testConfig(), nil).Select(ctx, "Phoenix", at(0), recs, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agents) == 0 || agents[0].ID != "2" {
		t.Fatalf("agents = %v, want newly added agent 2 first", ids(agents))
	}
}

type failingLoader struct {
	fakeIndex
}

func (f *failingLoader) Load(ctx context.Context, agents []domain.AgentRecord) error {
	return errors.New("redis: connection refused")
}

func TestSelectScansRosterWhenIndexRefreshFails(t *testing.T) {
	idx := &failingLoader{fakeIndex{hits: []ports.AgentHit{{AgentID: "1", Miles: 1}}}}
	recs := []domain.AgentRecord{
		{ID: "1", Area: "Phoenix", Home: at(0.5)},
		{ID: "2", Area: "Phoenix", Home: at(0.1)},
	}

	agents, err := NewCandidateAgentPool(idx, testConfig(), nil).Select(context.Background(), "Phoenix", at(0), recs, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := ids(agents), []string{"2", "1"}; !slices.Equal(got, want) {
		t.Fatalf("agents = %v, want %v", got, want)
	}
	if len(idx.radii) != 0 {
		t.Fatalf("index queried after failed refresh: radii %v", idx.radii)
	}
}
