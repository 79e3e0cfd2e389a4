package cache

import (
	"context"
	"encoding/json"
	"errors"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisDistancePrefix = "distance:"

type redisDistanceEntry struct {
	Miles    float64      `json:"miles"`
	Geometry [][2]float64 `json:"geometry,omitempty"`
}

// RedisDistanceCache shares distances between service instances.
// Entries expire after TTL; a zero TTL keeps them forever.
type RedisDistanceCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisDistanceCache(client *redis.Client, ttl time.Duration) *RedisDistanceCache {
	return &RedisDistanceCache{Client: client, TTL: ttl}
}

func (c *RedisDistanceCache) Get(ctx context.Context, key ports.CacheKey) (_ ports.DistanceResult, _ bool, err error) {
	defer obs.Time(ctx, "distance.redis.Get")(&err)

	if c.Client == nil {
		return ports.DistanceResult{}, false, errors.New("distance cache: redis client is nil")
	}

	raw, err := c.Client.Get(ctx, redisDistancePrefix+key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return ports.DistanceResult{}, false, nil
	}
	if err != nil {
		return ports.DistanceResult{}, false, fmt.Errorf("get distance cache: redis get: %w", err)
	}

	var entry redisDistanceEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return ports.DistanceResult{}, false, fmt.Errorf("get distance cache: decode entry: %w", err)
	}

	return ports.DistanceResult{Miles: entry.Miles, Geometry: entry.Geometry}, true, nil
}

func (c *RedisDistanceCache) Put(ctx context.Context, key ports.CacheKey, r ports.DistanceResult) error {
	if c.Client == nil {
		return errors.New("distance cache: redis client is nil")
	}

	raw, err := json.Marshal(redisDistanceEntry{Miles: r.Miles, Geometry: r.Geometry})
	if err != nil {
		return fmt.Errorf("insert distance cache: encode entry: %w", err)
	}

	if err := c.Client.Set(ctx, redisDistancePrefix+key.String(), raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("insert distance cache: redis set: %w", err)
	}

	return nil
}
