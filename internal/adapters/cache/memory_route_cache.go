package cache

import (
	"context"
	"errors"
	"time"
	"van-dispatch-service/internal/ports"

	"github.com/bluele/gcache"
)

// In-process LRU cache of route results with a fixed time-to-live.
type MemoryRouteCache struct {
	c gcache.Cache
}

func NewMemoryRouteCache(size int, ttl time.Duration) *MemoryRouteCache {
	b := gcache.New(size).LRU()
	if ttl > 0 {
		b = b.Expiration(ttl)
	}
	return &MemoryRouteCache{c: b.Build()}
}

func (m *MemoryRouteCache) Get(ctx context.Context, key string) (ports.RouteResult, bool, error) {
	v, err := m.c.Get(key)
	if errors.Is(err, gcache.KeyNotFoundError) {
		return ports.RouteResult{}, false, nil
	}
	if err != nil {
		return ports.RouteResult{}, false, err
	}

	r, ok := v.(ports.RouteResult)
	if !ok {
		return ports.RouteResult{}, false, nil
	}

	// Hand out a copy so callers cannot mutate the cached legs.
	r.LegSeconds = append([]float64(nil), r.LegSeconds...)
	return r, true, nil
}

func (m *MemoryRouteCache) Put(ctx context.Context, key string, route ports.RouteResult) error {
	route.LegSeconds = append([]float64(nil), route.LegSeconds...)
	return m.c.Set(key, route)
}
