package services

import (
	"context"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"

	"golang.org/x/sync/errgroup"
)

// mapConcurrent evaluates fn for 0..n-1 on at most workers goroutines and
// returns the results in index order. The first error cancels the rest.
func mapConcurrent[T any](
	ctx context.Context,
	workers int,
	n int,
	fn func(ctx context.Context, i int) (T, error),
) ([]T, error) {
	out := make([]T, n)
	if n == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))

	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, err := fn(gctx, i)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// distancesFromAgents returns the distance from each agent's current
// location to target.
func distancesFromAgents(
	ctx context.Context,
	provider ports.DistanceProvider,
	workers int,
	agents []*domain.Agent,
	target domain.Coordinates,
) ([]float64, error) {
	return mapConcurrent(ctx, workers, len(agents), func(ctx context.Context, i int) (float64, error) {
		r, err := provider.Distance(ctx, agents[i].CurrentLocation, target)
		if err != nil {
			return 0, err
		}
		return r.Miles, nil
	})
}
