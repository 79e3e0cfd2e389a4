package distance

import (
	"context"
	"field-route-service/internal/domain"
	"field-route-service/internal/metrics"
	"field-route-service/internal/ports"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Default memo bounds. The memo is cleared once it holds DefaultMemoLimit
// entries; geodesic answers given because routing failed expire after
// DefaultFallbackTTL so the routing API is tried again.
const (
	DefaultMemoLimit   = 50_000
	DefaultFallbackTTL = 5 * time.Minute
)

// Provider implements DistanceProvider as a memoizing oracle with two
// fallback tiers:
//
//  1. in-process memo, then the injected persistent cache
//  2. the routing API, when configured
//  3. geodesic distance
//
// Concurrent misses on the same key are collapsed into one computation that
// is detached from any single caller's cancellation; each caller only ever
// sees its own context error. The Provider is safe for concurrent use.
type Provider struct {
	router ports.RoutingAPI
	cache  ports.DistanceCache
	logger *slog.Logger

	memoLimit   int
	fallbackTTL time.Duration
	now         func() time.Time

	mu    sync.Mutex
	memo  map[string]memoEntry
	group singleflight.Group
}

type memoEntry struct {
	result ports.DistanceResult
	// expires is zero for answers that never expire.
	expires time.Time
}

type ProviderOption func(*Provider)

func WithRouter(r ports.RoutingAPI) ProviderOption {
	return func(p *Provider) { p.router = r }
}

func WithCache(c ports.DistanceCache) ProviderOption {
	return func(p *Provider) { p.cache = c }
}

func WithLogger(l *slog.Logger) ProviderOption {
	return func(p *Provider) { p.logger = l }
}

// WithMemoLimit bounds the number of memoized pairs.
func WithMemoLimit(n int) ProviderOption {
	return func(p *Provider) {
		if n > 0 {
			p.memoLimit = n
		}
	}
}

// WithFallbackTTL sets how long a geodesic answer given after a routing
// failure is reused before routing is retried.
func WithFallbackTTL(d time.Duration) ProviderOption {
	return func(p *Provider) { p.fallbackTTL = d }
}

func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{
		logger:      slog.Default(),
		memoLimit:   DefaultMemoLimit,
		fallbackTTL: DefaultFallbackTTL,
		now:         time.Now,
		memo:        make(map[string]memoEntry),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) mode() ports.RoutingMode {
	if p.router != nil {
		return ports.ModeRoad
	}
	return ports.ModeGeodesic
}

func (p *Provider) lookup(k string) (ports.DistanceResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.memo[k]
	if !ok {
		return ports.DistanceResult{}, false
	}
	if !e.expires.IsZero() && !p.now().Before(e.expires) {
		delete(p.memo, k)
		return ports.DistanceResult{}, false
	}
	return e.result, true
}

func (p *Provider) remember(k string, r ports.DistanceResult, fallback bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.memo) >= p.memoLimit {
		clear(p.memo)
	}
	e := memoEntry{result: r}
	if fallback {
		e.expires = p.now().Add(p.fallbackTTL)
	}
	p.memo[k] = e
}

// MemoLen returns the number of memoized pairs.
func (p *Provider) MemoLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.memo)
}

func (p *Provider) Distance(
	ctx context.Context,
	from domain.Coordinates,
	to domain.Coordinates,
) (ports.DistanceResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.DistanceResult{}, err
	}

	key, reversed := ports.NewCacheKey(from, to, p.mode())
	if key.A == key.B {
		return ports.DistanceResult{Miles: 0, Source: ports.SourceGeodesic}, nil
	}

	k := key.String()
	if r, ok := p.lookup(k); ok {
		return orient(r, reversed), nil
	}

	// The shared computation outlives the caller that started it; the
	// routing client's own timeout bounds it.
	shared := context.WithoutCancel(ctx)
	ch := p.group.DoChan(k, func() (any, error) {
		if r, ok := p.lookup(k); ok {
			return r, nil
		}

		r, fallback, err := p.resolve(shared, key)
		if err != nil {
			return nil, err
		}
		metrics.DistanceLookups.WithLabelValues(string(r.Source)).Inc()

		p.remember(k, r, fallback)
		return r, nil
	})

	select {
	case <-ctx.Done():
		return ports.DistanceResult{}, fmt.Errorf("distance %s: %w", k, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return ports.DistanceResult{}, fmt.Errorf("distance %s: %w", k, res.Err)
		}
		return orient(res.Val.(ports.DistanceResult), reversed), nil
	}
}

// resolve computes the distance for key in the key's endpoint order. fallback
// reports a geodesic answer given because the routing API failed.
func (p *Provider) resolve(ctx context.Context, key ports.CacheKey) (r ports.DistanceResult, fallback bool, err error) {
	if p.cache != nil {
		r, ok, err := p.cache.Get(ctx, key)
		if err != nil {
			p.logger.WarnContext(ctx, "distance cache read failed", "key", key.String(), "err", err)
		} else if ok {
			r.Source = ports.SourceCache
			return r, false, nil
		}
	}

	if p.router == nil {
		return geodesic(key), false, nil
	}

	leg, err := p.router.Route(ctx, key.A, key.B)
	if err != nil {
		p.logger.WarnContext(ctx, "routing api unavailable, using geodesic distance",
			"key", key.String(),
			"err", fmt.Errorf("%w: %w", domain.ErrDistanceProviderUnavailable, err),
		)
		metrics.RoutingFallbacks.Inc()
		return geodesic(key), true, nil
	}

	r = ports.DistanceResult{Miles: leg.Miles, Geometry: leg.Geometry, Source: ports.SourceRouting}
	if p.cache != nil {
		if err := p.cache.Put(ctx, key, r); err != nil {
			p.logger.WarnContext(ctx, "distance cache write failed", "key", key.String(), "err", err)
		}
	}

	return r, false, nil
}

func geodesic(key ports.CacheKey) ports.DistanceResult {
	return ports.DistanceResult{
		Miles:  domain.GeodesicMiles(key.A, key.B),
		Source: ports.SourceGeodesic,
	}
}

// orient reverses the path geometry when the request ran B->A.
func orient(r ports.DistanceResult, reversed bool) ports.DistanceResult {
	if !reversed || len(r.Geometry) == 0 {
		return r
	}
	g := slices.Clone(r.Geometry)
	slices.Reverse(g)
	r.Geometry = g
	return r
}
