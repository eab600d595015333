package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"van-dispatch-service/internal/platform/obs"
	"van-dispatch-service/internal/ports"

	"github.com/jmoiron/sqlx"
)

// SQLRouteCache is a SQL-backed cache for route results.
// It works against Postgres and SQLite; placeholders are rebound per driver.
type SQLRouteCache struct {
	DB  *sqlx.DB
	TTL time.Duration
}

func NewSQLRouteCache(db *sqlx.DB, ttl time.Duration) *SQLRouteCache {
	return &SQLRouteCache{DB: db, TTL: ttl}
}

type routeCacheRow struct {
	TotalSeconds float64 `db:"total_seconds"`
	LegSeconds   string  `db:"leg_seconds"`
	CachedAtMs   int64   `db:"cached_at_ms"`
}

// Fetch a cached route. Entries older than TTL count as misses.
func (s *SQLRouteCache) Get(ctx context.Context, key string) (_ ports.RouteResult, _ bool, err error) {
	defer obs.Time(ctx, "route.cache.Get")(&err)

	if s.DB == nil {
		return ports.RouteResult{}, false, errors.New("route cache: db is nil")
	}

	if strings.TrimSpace(key) == "" {
		return ports.RouteResult{}, false, errors.New("get route cache: key must not be empty")
	}

	q := s.DB.Rebind(`
	SELECT total_seconds, leg_seconds, cached_at_ms
    FROM route_cache
    WHERE route_key = ?;
	`)

	var rows []routeCacheRow
	if err := s.DB.SelectContext(ctx, &rows, q, key); err != nil {
		return ports.RouteResult{}, false, fmt.Errorf("get route cache: query route_cache table: %w", err)
	}
	if len(rows) == 0 {
		return ports.RouteResult{}, false, nil
	}

	row := rows[0]
	if s.TTL > 0 && time.Since(time.UnixMilli(row.CachedAtMs)) > s.TTL {
		return ports.RouteResult{}, false, nil
	}

	var legs []float64
	if err := json.Unmarshal([]byte(row.LegSeconds), &legs); err != nil {
		return ports.RouteResult{}, false, fmt.Errorf("get route cache: decode legs: %w", err)
	}

	return ports.RouteResult{TotalSeconds: row.TotalSeconds, LegSeconds: legs}, true, nil
}

// Store a route result, replacing any previous entry for the key.
func (s *SQLRouteCache) Put(ctx context.Context, key string, route ports.RouteResult) error {
	if s.DB == nil {
		return errors.New("route cache: db is nil")
	}

	if strings.TrimSpace(key) == "" {
		return errors.New("insert route cache: key must not be empty")
	}

	legs, err := json.Marshal(route.LegSeconds)
	if err != nil {
		return fmt.Errorf("insert route cache: encode legs: %w", err)
	}

	q := s.DB.Rebind(`
	INSERT INTO route_cache (route_key, total_seconds, leg_seconds, cached_at_ms)
    VALUES (?, ?, ?, ?)
	ON CONFLICT (route_key) DO UPDATE
	SET total_seconds = EXCLUDED.total_seconds,
		leg_seconds = EXCLUDED.leg_seconds,
		cached_at_ms = EXCLUDED.cached_at_ms;
	`)

	if _, err := s.DB.ExecContext(ctx, q, key, route.TotalSeconds, string(legs), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("insert route cache key=%q: %w", key, err)
	}

	return nil
}
