package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"van-dispatch-service/internal/ports"

	"github.com/redis/go-redis/v9"
)

// Redis-backed route cache shared across service instances.
// Values are JSON-encoded RouteResults stored with a TTL.
type RedisRouteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRouteCache(rdb *redis.Client, ttl time.Duration) *RedisRouteCache {
	return &RedisRouteCache{rdb: rdb, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return rdb, nil
}

func (r *RedisRouteCache) Get(ctx context.Context, key string) (ports.RouteResult, bool, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ports.RouteResult{}, false, nil
	}
	if err != nil {
		return ports.RouteResult{}, false, fmt.Errorf("get route cache: %w", err)
	}

	var res ports.RouteResult
	if err := json.Unmarshal(b, &res); err != nil {
		return ports.RouteResult{}, false, fmt.Errorf("get route cache: decode %q: %w", key, err)
	}

	return res, true, nil
}

func (r *RedisRouteCache) Put(ctx context.Context, key string, route ports.RouteResult) error {
	b, err := json.Marshal(route)
	if err != nil {
		return fmt.Errorf("put route cache: encode: %w", err)
	}

	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		return fmt.Errorf("put route cache: %w", err)
	}

	return nil
}
