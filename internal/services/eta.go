package services

import (
	"context"
	"errors"
	"fmt"
	"van-dispatch-service/internal/domain"
	"van-dispatch-service/internal/platform/obs"
	"van-dispatch-service/internal/ports"
)

var (
	ErrVanPositionUnknown = errors.New("van position unknown")
	ErrRoutingUnavailable = errors.New("routing unavailable")
)

// Seconds from the van's current position to each stop of one ride.
type RideETA struct {
	ToPickupSec float64 `json:"to_pickup_sec"`
	ToDropSec   float64 `json:"to_drop_sec"`
}

type VanETAs struct {
	VanID string
	Stops []domain.PlanStop
	ETAs  map[string]RideETA
}

// ETAProjector derives per-stop arrival times for a van's persisted plan.
type ETAProjector struct {
	repo   ports.FleetRepository
	router ports.RouteProvider
}

func NewETAProjector(repo ports.FleetRepository, router ports.RouteProvider) *ETAProjector {
	return &ETAProjector{repo: repo, router: router}
}

// ProjectVanETAs routes [van position, ...stops] once and assigns every stop
// its cumulative travel time.
//
// There is no straight-line fallback. An unknown van position returns
// ErrVanPositionUnknown and a failed routing call returns
// ErrRoutingUnavailable; in both cases the result still carries the plan
// stops so callers can render the task list.
func (e *ETAProjector) ProjectVanETAs(ctx context.Context, vanID string) (_ *VanETAs, err error) {
	defer obs.Time(ctx, "eta.ProjectVanETAs")(&err)

	van, err := e.repo.GetVan(ctx, vanID)
	if err != nil {
		return nil, fmt.Errorf("project etas: %w", err)
	}

	stops, err := e.repo.ListPlanStops(ctx, vanID)
	if err != nil {
		return nil, fmt.Errorf("project etas: %w", err)
	}

	out := &VanETAs{VanID: vanID, Stops: stops}
	if len(stops) == 0 {
		out.ETAs = map[string]RideETA{}
		return out, nil
	}

	if van.Position == nil {
		return out, fmt.Errorf("project etas: van %s: %w", vanID, ErrVanPositionUnknown)
	}

	points := make([]domain.Coordinates, 0, len(stops)+1)
	points = append(points, *van.Position)
	for _, s := range stops {
		points = append(points, s.Location)
	}

	kept, remap := domain.CollapseNearDuplicates(points)

	cum := make([]float64, len(kept))
	if len(kept) >= 2 {
		res, err := e.router.RouteDuration(ctx, kept)
		if err != nil {
			return out, fmt.Errorf("project etas: van %s: %w: %v", vanID, ErrRoutingUnavailable, err)
		}
		if len(res.LegSeconds) != len(kept)-1 {
			return out, fmt.Errorf(
				"project etas: van %s: %w: got %d legs for %d points",
				vanID, ErrRoutingUnavailable, len(res.LegSeconds), len(kept),
			)
		}
		for k := 1; k < len(kept); k++ {
			cum[k] = cum[k-1] + res.LegSeconds[k-1]
		}
	}

	etas := make(map[string]RideETA, len(stops)/2)
	for i, s := range stops {
		at := cum[remap[i+1]]
		eta := etas[s.RideID]
		if s.Phase == domain.PhasePickup {
			eta.ToPickupSec = at
		} else {
			eta.ToDropSec = at
		}
		etas[s.RideID] = eta
	}
	out.ETAs = etas

	return out, nil
}
