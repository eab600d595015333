package ports

import "context"

// Key/value store for previously computed routes.
type RouteCache interface {
	// Return the cached route and whether it was found.
	Get(ctx context.Context, key string) (RouteResult, bool, error)
	Put(ctx context.Context, key string, route RouteResult) error
}
