package services

import (
	"context"
	"errors"
	"field-route-service/internal/domain"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
)

func resolutionFor(groups ...domain.DropoffGroup) *Resolution {
	res := &Resolution{ByVisit: map[string]string{}, Groups: groups}
	for _, g := range groups {
		for _, id := range g.VisitIDs {
			res.ByVisit[id] = g.DropoffID
		}
	}
	return res
}

func TestAllocateOverflowGoesToLeastLoadedAgent(t *testing.T) {
	cfg := testConfig()
	cfg.CapacityMultiplier = 1

	agents := []*domain.Agent{agentAt("1", 0), agentAt("2", 10)}
	visits := []*domain.Visit{
		visitAt("a", 1, 8, 8),
		visitAt("b", 2, 9, 8),
		visitAt("c", 3, 10, 8),
	}

	alloc, err := NewAssignmentAllocator(&gridProvider{}, cfg, nil).Allocate(context.Background(), visits, agents, nil, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if alloc.Ceiling != 10 {
		t.Fatalf("ceiling = %v, want 10", alloc.Ceiling)
	}
	if len(alloc.Overflow) != 1 {
		t.Fatalf("overflow = %v, want exactly one visit", alloc.Overflow)
	}

	loads := []int{agents[0].Workload, agents[1].Workload}
	slices.Sort(loads)
	if !slices.Equal(loads, []int{8, 16}) {
		t.Fatalf("workloads = %v, want [8 16]", loads)
	}
	for _, v := range visits {
		if v.AgentID == "" {
			t.Fatalf("visit %s left unassigned", v.ID)
		}
	}
}

func TestAllocateKeepsDropoffGroupTogether(t *testing.T) {
	agents := []*domain.Agent{agentAt("far", 20), agentAt("near", 0)}
	visits := []*domain.Visit{
		visitAt("v3", 3, 10, 5),
		visitAt("v1", 1, 8, 5),
		visitAt("v2", 2, 9, 5),
	}
	res := resolutionFor(domain.DropoffGroup{DropoffID: "D", VisitIDs: []string{"v3", "v1", "v2"}})

	alloc, err := NewAssignmentAllocator(&gridProvider{}, testConfig(), nil).Allocate(context.Background(), visits, agents, res, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(alloc.Agents) != 1 || alloc.Agents[0].ID != "near" {
		t.Fatalf("agents = %v, want [near]", ids(alloc.Agents))
	}
	near := alloc.Agents[0]
	if !slices.Equal(near.VisitIDs, []string{"v1", "v2", "v3"}) {
		t.Fatalf("visit order = %v, want [v1 v2 v3]", near.VisitIDs)
	}
	// undiscounted sum of home->member distances
	if near.Distance != 6 {
		t.Fatalf("distance = %v, want 6", near.Distance)
	}
	if near.CurrentLocation != at(3) {
		t.Fatalf("cursor = %v, want last scheduled visit", near.CurrentLocation)
	}
	for i, id := range near.VisitIDs {
		v := visits[slices.IndexFunc(visits, func(v *domain.Visit) bool { return v.ID == id })]
		if v.TripOrder != i+1 {
			t.Fatalf("visit %s trip order = %d, want %d", id, v.TripOrder, i+1)
		}
	}
}

func TestAllocatePrefersAgentServingDropoff(t *testing.T) {
	cfg := testConfig()
	cfg.CapacityMultiplier = 1

	agents := []*domain.Agent{agentAt("A", 0), agentAt("B", 10)}
	visits := []*domain.Visit{
		visitAt("v1", 1, 8, 4),
		visitAt("v2", 6, 9, 4),
		visitAt("v3", 2, 10, 4),
	}
	// 12 points do not fit the 10 point ceiling, so the group is split.
	res := resolutionFor(domain.DropoffGroup{DropoffID: "D", VisitIDs: []string{"v1", "v2", "v3"}})

	alloc, err := NewAssignmentAllocator(&gridProvider{}, cfg, nil).Allocate(context.Background(), visits, agents, res, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alloc.Overflow) != 0 {
		t.Fatalf("unexpected overflow %v", alloc.Overflow)
	}

	if !slices.Equal(agents[0].VisitIDs, []string{"v1", "v2"}) {
		t.Fatalf("agent A visits = %v, want [v1 v2]", agents[0].VisitIDs)
	}
	if !slices.Equal(agents[1].VisitIDs, []string{"v3"}) {
		t.Fatalf("agent B visits = %v, want [v3]", agents[1].VisitIDs)
	}
}

func TestAllocateTieBreaks(t *testing.T) {
	t.Run("lower workload wins", func(t *testing.T) {
		busy := agentAt("1", 0)
		busy.Workload = 5
		idle := agentAt("2", 0)

		best := pickBest([]*domain.Agent{busy, idle}, []float64{3, 3}, func(int) bool { return true })
		if best != 1 {
			t.Fatalf("best = %d, want idle agent", best)
		}
	})

	t.Run("lower id wins", func(t *testing.T) {
		agents := []*domain.Agent{agentAt("10", 0), agentAt("2", 0)}
		visits := []*domain.Visit{visitAt("v", 1, 8, 1)}

		_, err := NewAssignmentAllocator(&gridProvider{}, testConfig(), nil).Allocate(context.Background(), visits, agents, nil, 1000)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if visits[0].AgentID != "2" {
			t.Fatalf("assigned to %q, want 2", visits[0].AgentID)
		}
	})

	t.Run("nearer wins over workload", func(t *testing.T) {
		busy := agentAt("1", 0)
		busy.Workload = 5
		far := agentAt("2", 0)

		best := pickBest([]*domain.Agent{busy, far}, []float64{1, 2}, func(int) bool { return true })
		if best != 0 {
			t.Fatalf("best = %d, want nearer agent", best)
		}
	})
}

func TestAllocateDropsIdleAgents(t *testing.T) {
	agents := []*domain.Agent{agentAt("1", 0), agentAt("2", 100)}
	visits := []*domain.Visit{visitAt("v", 1, 8, 1)}

	alloc, err := NewAssignmentAllocator(&gridProvider{}, testConfig(), nil).Allocate(context.Background(), visits, agents, nil, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ids(alloc.Agents); !slices.Equal(got, []string{"1"}) {
		t.Fatalf("agents = %v, want [1]", got)
	}
}

func TestAllocateWithoutAgents(t *testing.T) {
	_, err := NewAssignmentAllocator(&gridProvider{}, testConfig(), nil).
		Allocate(context.Background(), []*domain.Visit{visitAt("v", 1, 8, 1)}, nil, nil, 1000)
	if !errors.Is(err, domain.ErrNoCandidateAgents) {
		t.Fatalf("err = %v, want ErrNoCandidateAgents", err)
	}
}

func TestAllocateAssignsEveryVisitOnce(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for round := 0; round < 20; round++ {
		var visits []*domain.Visit
		total := 0
		for i := 0; i < 40; i++ {
			v := visitAt(fmt.Sprintf("v%d", i), rng.Float64()*50, rng.IntN(10), 1+rng.IntN(20))
			total += v.WorkloadPoints
			visits = append(visits, v)
		}

		var groups []domain.DropoffGroup
		for i := 0; i < 4; i++ {
			g := domain.DropoffGroup{DropoffID: fmt.Sprintf("D%d", i)}
			for j := i; j < len(visits); j += 7 {
				g.VisitIDs = append(g.VisitIDs, visits[j].ID)
			}
			groups = append(groups, g)
		}

		var agents []*domain.Agent
		for i := 0; i < 5; i++ {
			agents = append(agents, agentAt(fmt.Sprint(i+1), rng.Float64()*50))
		}

		average := float64(total) / 5
		cfg := testConfig()
		cfg.CapacityMultiplier = 1

		alloc, err := NewAssignmentAllocator(&gridProvider{}, cfg, nil).
			Allocate(context.Background(), visits, agents, resolutionFor(groups...), average)
		if err != nil {
			t.Fatalf("round %d: unexpected error: %v", round, err)
		}

		byID := make(map[string]*domain.Visit, len(visits))
		for _, v := range visits {
			byID[v.ID] = v
		}

		seen := make(map[string]string)
		sum := 0
		for _, ag := range alloc.Agents {
			if len(ag.VisitIDs) == 0 {
				t.Fatalf("round %d: idle agent %s returned", round, ag.ID)
			}
			points := 0
			for _, id := range ag.VisitIDs {
				if prev, ok := seen[id]; ok {
					t.Fatalf("round %d: visit %s on agents %s and %s", round, id, prev, ag.ID)
				}
				seen[id] = ag.ID
				if byID[id].AgentID != ag.ID {
					t.Fatalf("round %d: visit %s AgentID = %q, want %q", round, id, byID[id].AgentID, ag.ID)
				}
				points += byID[id].WorkloadPoints
			}
			if points != ag.Workload {
				t.Fatalf("round %d: agent %s workload = %d, want %d", round, ag.ID, ag.Workload, points)
			}
			if float64(ag.Workload) > alloc.Ceiling {
				overflowed := slices.ContainsFunc(alloc.Overflow, func(id string) bool { return seen[id] == ag.ID })
				if !overflowed {
					t.Fatalf("round %d: agent %s over ceiling without overflow", round, ag.ID)
				}
			}
			sum += ag.Workload
		}

		if len(seen) != len(visits) {
			t.Fatalf("round %d: %d of %d visits assigned", round, len(seen), len(visits))
		}
		if sum != total {
			t.Fatalf("round %d: assigned workload = %d, want %d", round, sum, total)
		}
	}
}

func TestAllocateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAssignmentAllocator(&gridProvider{}, testConfig(), nil).
		Allocate(ctx, []*domain.Visit{visitAt("v", 1, 8, 1)}, []*domain.Agent{agentAt("1", 0)}, nil, 1000)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
