package ports

import (
	"context"
	"van-dispatch-service/internal/domain"
)

// Road travel time over an ordered list of coordinates.
type RouteResult struct {
	TotalSeconds float64   `json:"total_seconds"`
	LegSeconds   []float64 `json:"leg_seconds"`
}

// Contract for retrieving road travel durations.
//
// Any error means the routing backend is unavailable for this request.
// Callers fall back or skip; an error is never fatal to a plan.
type RouteProvider interface {
	// Return total and per-leg durations through coords (at least two points).
	RouteDuration(ctx context.Context, coords []domain.Coordinates) (RouteResult, error)
}
