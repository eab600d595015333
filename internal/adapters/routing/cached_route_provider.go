package routing

import (
	"context"
	"log"
	"strconv"
	"strings"
	"van-dispatch-service/internal/domain"
	"van-dispatch-service/internal/platform/metrics"
	"van-dispatch-service/internal/ports"
)

// CachedRouteProvider checks a RouteCache before calling the wrapped provider.
// Cache failures are logged and never fail the routing call; only successful
// routes are stored.
type CachedRouteProvider struct {
	next    ports.RouteProvider
	cache   ports.RouteCache
	metrics *metrics.Collector
}

func NewCachedRouteProvider(next ports.RouteProvider, cache ports.RouteCache, m *metrics.Collector) *CachedRouteProvider {
	return &CachedRouteProvider{next: next, cache: cache, metrics: m}
}

func (c *CachedRouteProvider) RouteDuration(ctx context.Context, coords []domain.Coordinates) (ports.RouteResult, error) {
	key := RouteKey(coords)

	hit, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.metrics.CacheLookup("error")
		log.Printf("route cache read failed: key=%s err=%v", key, err)
	case ok && len(hit.LegSeconds) == len(coords)-1:
		c.metrics.CacheLookup("hit")
		return hit, nil
	default:
		c.metrics.CacheLookup("miss")
	}

	res, err := c.next.RouteDuration(ctx, coords)
	if err != nil {
		return ports.RouteResult{}, err
	}

	if err := c.cache.Put(ctx, key, res); err != nil {
		log.Printf("route cache write failed: key=%s err=%v", key, err)
	}

	return res, nil
}

// RouteKey quantises each coordinate to 5 decimals (~1m) so repeated queries
// over the same stops share a cache entry.
func RouteKey(coords []domain.Coordinates) string {
	var b strings.Builder
	b.WriteString("route:")
	for i, c := range coords {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.FormatFloat(c.Lat, 'f', 5, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(c.Lon, 'f', 5, 64))
	}
	return b.String()
}
