package geoindex

import (
	"context"
	"errors"
	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultKey = "agents:homes"

// RedisAgentIndex implements AgentIndex over a Redis GEO set of agent
// home locations.
type RedisAgentIndex struct {
	Client *redis.Client
	Key    string
}

func NewRedisAgentIndex(client *redis.Client, key string) *RedisAgentIndex {
	if key == "" {
		key = DefaultKey
	}
	return &RedisAgentIndex{Client: client, Key: key}
}

// Load replaces the indexed roster with agents.
func (x *RedisAgentIndex) Load(ctx context.Context, agents []domain.AgentRecord) (err error) {
	defer obs.Time(ctx, "geoindex.Load")(&err)

	if x.Client == nil {
		return errors.New("agent index: redis client is nil")
	}

	locations := make([]*redis.GeoLocation, 0, len(agents))
	for _, a := range agents {
		locations = append(locations, &redis.GeoLocation{
			Name:      a.ID,
			Longitude: a.Home.Lon,
			Latitude:  a.Home.Lat,
		})
	}

	_, err = x.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, x.Key)
		if len(locations) > 0 {
			pipe.GeoAdd(ctx, x.Key, locations...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load agent index: %w", err)
	}

	return nil
}

// Nearby returns agents whose home lies within radiusMiles of center,
// nearest first.
func (x *RedisAgentIndex) Nearby(
	ctx context.Context,
	center domain.Coordinates,
	radiusMiles float64,
) (_ []ports.AgentHit, err error) {
	defer obs.Time(ctx, "geoindex.Nearby")(&err)

	if x.Client == nil {
		return nil, errors.New("agent index: redis client is nil")
	}

	locs, err := x.Client.GeoRadius(ctx, x.Key, center.Lon, center.Lat, &redis.GeoRadiusQuery{
		Radius:   radiusMiles,
		Unit:     "mi",
		WithDist: true,
		Sort:     "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("query agent index radius=%.1fmi: %w", radiusMiles, err)
	}

	hits := make([]ports.AgentHit, 0, len(locs))
	for _, l := range locs {
		hits = append(hits, ports.AgentHit{AgentID: l.Name, Miles: l.Dist})
	}

	return hits, nil
}
