package services

import (
	"context"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

type PlanAssignmentsRequest struct {
	Area   string
	Date   string
	Mode   SequenceMode
	Center *domain.Coordinates
}

// PlanAssignments loads the reference data for one (area, date), runs the
// engine and hands the result to publisher. A failed publish is logged and
// does not fail the run.
func PlanAssignments(
	ctx context.Context,
	req PlanAssignmentsRequest,
	repo ports.ReferenceRepository,
	engine *Engine,
	publisher ports.ResultPublisher,
) (*domain.AssignmentRun, error) {
	in := PlanInput{Area: req.Area, Date: req.Date, Mode: req.Mode, Center: req.Center}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := repo.ListVisits(gctx, req.Area, req.Date)
		if err != nil {
			return fmt.Errorf("plan assignments: list visits: %w", err)
		}
		in.Visits = v
		return nil
	})
	g.Go(func() error {
		a, err := repo.ListAgents(gctx)
		if err != nil {
			return fmt.Errorf("plan assignments: list agents: %w", err)
		}
		in.Roster = a
		return nil
	})
	g.Go(func() error {
		p, err := repo.ListWorkloadProfiles(gctx)
		if err != nil {
			return fmt.Errorf("plan assignments: list workload profiles: %w", err)
		}
		in.Profiles = p
		return nil
	})
	g.Go(func() error {
		d, err := repo.ListDropoffs(gctx)
		if err != nil {
			return fmt.Errorf("plan assignments: list dropoffs: %w", err)
		}
		in.Dropoffs = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	run, err := engine.Plan(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("plan assignments: %w", err)
	}

	if publisher != nil {
		if err := publisher.Publish(ctx, run); err != nil {
			slog.WarnContext(ctx, "publish assignment run failed", "run_id", run.RunID, "err", err)
		}
	}

	return run, nil
}
