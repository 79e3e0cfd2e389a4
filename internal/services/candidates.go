package services

import (
	"cmp"
	"context"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

type candidate struct {
	rec   domain.AgentRecord
	miles float64
}

// CandidateAgentPool ranks roster agents by distance to an area's target
// point. With an AgentIndex it issues expanding radius queries; without one
// it scans the whole roster. An index that implements AgentIndexLoader is
// reloaded from the roster before every search.
type CandidateAgentPool struct {
	index  ports.AgentIndex
	cfg    Config
	logger *slog.Logger
}

func NewCandidateAgentPool(index ports.AgentIndex, cfg Config, logger *slog.Logger) *CandidateAgentPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &CandidateAgentPool{index: index, cfg: cfg, logger: logger}
}

// Select returns freshly initialised agents, in-area agents first, each
// group nearest first.
func (p *CandidateAgentPool) Select(
	ctx context.Context,
	area string,
	target domain.Coordinates,
	roster []domain.AgentRecord,
	needed int,
) ([]*domain.Agent, error) {
	var (
		cands []candidate
		err   error
	)

	if p.index != nil {
		cands, err = p.searchIndex(ctx, target, roster, needed)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			p.logger.WarnContext(ctx, "agent index unavailable, scanning roster", "err", err)
			cands = nil
		} else if len(cands) == 0 {
			return nil, fmt.Errorf("select candidates for %q within %.0f mi: %w", area, p.cfg.MaxRadiusMiles, domain.ErrNoCandidateAgents)
		}
	}

	if cands == nil {
		cands, err = p.scanRoster(ctx, target, roster)
		if err != nil {
			return nil, err
		}
	}

	if len(cands) == 0 {
		return nil, fmt.Errorf("select candidates for %q: empty roster: %w", area, domain.ErrNoCandidateAgents)
	}

	slices.SortStableFunc(cands, func(a, b candidate) int {
		if c := cmp.Compare(a.miles, b.miles); c != 0 {
			return c
		}
		return domain.CompareAgentIDs(a.rec.ID, b.rec.ID)
	})

	inArea := make([]candidate, 0, len(cands))
	outArea := make([]candidate, 0, len(cands))
	for _, c := range cands {
		if strings.EqualFold(strings.TrimSpace(c.rec.Area), strings.TrimSpace(area)) {
			inArea = append(inArea, c)
		} else {
			outArea = append(outArea, c)
		}
	}

	ranked := inArea
	if !p.cfg.AreaOnly || len(inArea) == 0 {
		ranked = append(ranked, outArea...)
	}

	agents := make([]*domain.Agent, 0, len(ranked))
	for _, c := range ranked {
		agents = append(agents, domain.NewAgent(c.rec, c.miles))
	}

	p.logger.DebugContext(ctx, "candidate agents selected",
		"area", area, "needed", needed, "in_area", len(inArea), "selected", len(agents))

	return agents, nil
}

// searchIndex widens the radius until needed agents are found or the
// maximum radius is reached. Hits for agents missing from the roster are
// ignored.
func (p *CandidateAgentPool) searchIndex(
	ctx context.Context,
	target domain.Coordinates,
	roster []domain.AgentRecord,
	needed int,
) ([]candidate, error) {
	if loader, ok := p.index.(ports.AgentIndexLoader); ok {
		if err := loader.Load(ctx, roster); err != nil {
			return nil, fmt.Errorf("refresh agent index: %w", err)
		}
	}

	byID := make(map[string]domain.AgentRecord, len(roster))
	for _, r := range roster {
		byID[r.ID] = r
	}

	radius := p.cfg.BaseRadiusMiles
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hits, err := p.index.Nearby(ctx, target, radius)
		if err != nil {
			return nil, fmt.Errorf("search agent index: %w", err)
		}

		cands := make([]candidate, 0, len(hits))
		for _, h := range hits {
			rec, ok := byID[h.AgentID]
			if !ok {
				continue
			}
			cands = append(cands, candidate{rec: rec, miles: h.Miles})
		}

		if len(cands) >= needed || radius >= p.cfg.MaxRadiusMiles {
			return cands, nil
		}
		radius = min(radius+p.cfg.RadiusStepMiles, p.cfg.MaxRadiusMiles)
	}
}

func (p *CandidateAgentPool) scanRoster(
	ctx context.Context,
	target domain.Coordinates,
	roster []domain.AgentRecord,
) ([]candidate, error) {
	cands := make([]candidate, 0, len(roster))
	for _, r := range roster {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cands = append(cands, candidate{rec: r, miles: domain.GeodesicMiles(target, r.Home)})
	}
	return cands, nil
}
