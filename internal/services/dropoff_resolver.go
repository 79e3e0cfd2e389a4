package services

import (
	"context"
	"field-route-service/internal/domain"
	"field-route-service/internal/metrics"
	"field-route-service/internal/ports"
	"fmt"
	"log/slog"
	"strings"
)

// Resolution maps visits to drop-off locations.
type Resolution struct {
	// ByVisit maps visit id to drop-off id for every resolved visit.
	ByVisit map[string]string
	// Groups lists drop-offs in the order they were first resolved.
	Groups    []domain.DropoffGroup
	Locations map[string]domain.DropoffLocation
	// Unresolved lists visits that named a clinic no drop-off matched.
	Unresolved []string
}

// DropoffResolver picks the concrete drop-off location for each visit that
// names a clinic.
type DropoffResolver struct {
	provider ports.DistanceProvider
	logger   *slog.Logger
}

func NewDropoffResolver(provider ports.DistanceProvider, logger *slog.Logger) *DropoffResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DropoffResolver{provider: provider, logger: logger}
}

// Resolve matches clinic names case-insensitively, narrows by state and then
// zip when that leaves at least one candidate, and picks the nearest
// remaining location (first encountered on ties). The chosen id is written
// to each visit's DropoffID.
func (r *DropoffResolver) Resolve(
	ctx context.Context,
	visits []*domain.Visit,
	locations []domain.DropoffLocation,
) (*Resolution, error) {
	res := &Resolution{
		ByVisit:   make(map[string]string),
		Locations: make(map[string]domain.DropoffLocation, len(locations)),
	}

	byClinic := make(map[string][]domain.DropoffLocation)
	for _, loc := range locations {
		res.Locations[loc.ID] = loc
		k := clinicKey(loc.Clinic)
		byClinic[k] = append(byClinic[k], loc)
	}

	groupIdx := make(map[string]int)
	for _, v := range visits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !v.NeedsDropoff() {
			continue
		}

		cands := byClinic[clinicKey(v.Dropoff.Clinic)]
		if len(cands) == 0 {
			r.logger.WarnContext(ctx, "no drop-off matches visit clinic, continuing without drop-off",
				"visit_id", v.ID, "clinic", v.Dropoff.Clinic, "err", domain.ErrUnresolvedDropoff)
			metrics.UnresolvedDropoffs.Inc()
			res.Unresolved = append(res.Unresolved, v.ID)
			continue
		}

		if state := strings.TrimSpace(v.Dropoff.State); state != "" {
			cands = narrow(cands, func(l domain.DropoffLocation) bool {
				return strings.EqualFold(strings.TrimSpace(l.State), state)
			})
		}
		if zip := strings.TrimSpace(v.Dropoff.Zip); zip != "" {
			cands = narrow(cands, func(l domain.DropoffLocation) bool {
				return strings.TrimSpace(l.Zip) == zip
			})
		}

		chosen, err := r.nearest(ctx, v.Location, cands)
		if err != nil {
			return nil, fmt.Errorf("resolve dropoff for visit %q: %w", v.ID, err)
		}

		v.DropoffID = chosen.ID
		res.ByVisit[v.ID] = chosen.ID

		i, ok := groupIdx[chosen.ID]
		if !ok {
			i = len(res.Groups)
			groupIdx[chosen.ID] = i
			res.Groups = append(res.Groups, domain.DropoffGroup{DropoffID: chosen.ID})
		}
		res.Groups[i].VisitIDs = append(res.Groups[i].VisitIDs, v.ID)
	}

	return res, nil
}

func (r *DropoffResolver) nearest(
	ctx context.Context,
	from domain.Coordinates,
	cands []domain.DropoffLocation,
) (domain.DropoffLocation, error) {
	if len(cands) == 1 {
		return cands[0], nil
	}

	best := -1
	bestMiles := 0.0
	for i, c := range cands {
		d, err := r.provider.Distance(ctx, from, c.Location)
		if err != nil {
			return domain.DropoffLocation{}, err
		}
		if best < 0 || d.Miles < bestMiles {
			best, bestMiles = i, d.Miles
		}
	}
	return cands[best], nil
}

// narrow keeps the locations matching keep, unless none do.
func narrow(cands []domain.DropoffLocation, keep func(domain.DropoffLocation) bool) []domain.DropoffLocation {
	out := make([]domain.DropoffLocation, 0, len(cands))
	for _, c := range cands {
		if keep(c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return cands
	}
	return out
}

func clinicKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
