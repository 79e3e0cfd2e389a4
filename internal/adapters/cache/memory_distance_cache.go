package cache

import (
	"context"
	"field-route-service/internal/ports"
	"sync"
)

// MemoryDistanceCache is a process-local DistanceCache. It is the default
// when no persistent store is configured and the usual fake in tests.
type MemoryDistanceCache struct {
	mu sync.RWMutex
	m  map[ports.CacheKey]ports.DistanceResult
}

func NewMemoryDistanceCache() *MemoryDistanceCache {
	return &MemoryDistanceCache{m: make(map[ports.CacheKey]ports.DistanceResult)}
}

func (c *MemoryDistanceCache) Get(_ context.Context, key ports.CacheKey) (ports.DistanceResult, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.m[key]
	return r, ok, nil
}

func (c *MemoryDistanceCache) Put(_ context.Context, key ports.CacheKey, r ports.DistanceResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.m[key] = r
	return nil
}

func (c *MemoryDistanceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
