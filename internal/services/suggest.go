package services

import (
	"context"
	"fmt"
	"sort"
	"van-dispatch-service/internal/domain"
	"van-dispatch-service/internal/platform/metrics"
	"van-dispatch-service/internal/platform/obs"
	"van-dispatch-service/internal/ports"

	"golang.org/x/sync/errgroup"
)

const DefaultSuggestionLimit = 5

// One ranked van for a ride pickup.
type VanSuggestion struct {
	VanID           string
	Name            string
	Capacity        int
	Status          domain.VanStatus
	Position        domain.Coordinates
	DurationSeconds float64
	// Fallback is set when the duration is a straight-line estimate.
	Fallback bool
}

type PickupEstimate struct {
	VanID           string
	RideID          string
	DurationSeconds float64
	Fallback        bool
}

// Suggester ranks vans by single-leg travel time to a pickup.
type Suggester struct {
	repo    ports.FleetRepository
	router  ports.RouteProvider
	metrics *metrics.Collector

	fallbackSpeedMps float64
	concurrency      int
}

func NewSuggester(
	repo ports.FleetRepository,
	router ports.RouteProvider,
	m *metrics.Collector,
	fallbackSpeedMps float64,
	concurrency int,
) *Suggester {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Suggester{
		repo:             repo,
		router:           router,
		metrics:          m,
		fallbackSpeedMps: fallbackSpeedMps,
		concurrency:      concurrency,
	}
}

// SuggestVans returns up to limit eligible vans for the ride, fastest first.
// A limit <= 0 returns every eligible van.
func (s *Suggester) SuggestVans(ctx context.Context, rideID string, limit int) (_ []VanSuggestion, err error) {
	defer obs.Time(ctx, "suggest.SuggestVans")(&err)

	ride, err := s.repo.GetRide(ctx, rideID)
	if err != nil {
		return nil, fmt.Errorf("suggest vans: %w", err)
	}
	if ride.IsClosed() {
		return nil, fmt.Errorf("suggest vans: ride %s is %s: %w", rideID, ride.Status, domain.ErrInvalidTransition)
	}

	vans, err := s.repo.ListVans(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest vans: %w", err)
	}

	ranked := s.RankVans(ctx, ride.Pickup, ride.PassengerCount, vans)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// RankVans filters vans to ACTIVE or MAINTENANCE ones with a known position
// and enough seats, then sorts them by duration to pickup (ties by van id).
// Routing calls for different vans run in parallel.
func (s *Suggester) RankVans(ctx context.Context, pickup domain.Coordinates, pax int, vans []*domain.Van) []VanSuggestion {
	eligible := make([]VanSuggestion, 0, len(vans))
	for _, v := range vans {
		if !v.Dispatchable() || v.Position == nil || !v.CanCarry(pax) {
			continue
		}
		eligible = append(eligible, VanSuggestion{
			VanID:    v.VanID,
			Name:     v.Name,
			Capacity: v.Capacity,
			Status:   v.Status,
			Position: *v.Position,
		})
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range eligible {
		sug := &eligible[i]
		g.Go(func() error {
			sug.DurationSeconds, sug.Fallback = s.estimate(ctx, sug.Position, pickup, "suggest")
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].DurationSeconds != eligible[j].DurationSeconds {
			return eligible[i].DurationSeconds < eligible[j].DurationSeconds
		}
		return eligible[i].VanID < eligible[j].VanID
	})

	return eligible
}

// PickupETA estimates how long the named van needs to reach the ride pickup.
func (s *Suggester) PickupETA(ctx context.Context, vanID, rideID string) (*PickupEstimate, error) {
	van, err := s.repo.GetVan(ctx, vanID)
	if err != nil {
		return nil, fmt.Errorf("pickup eta: %w", err)
	}
	ride, err := s.repo.GetRide(ctx, rideID)
	if err != nil {
		return nil, fmt.Errorf("pickup eta: %w", err)
	}
	if van.Position == nil {
		return nil, fmt.Errorf("pickup eta: van %s: %w", vanID, ErrVanPositionUnknown)
	}

	sec, fallback := s.estimate(ctx, *van.Position, ride.Pickup, "pickup_eta")

	return &PickupEstimate{
		VanID:           vanID,
		RideID:          rideID,
		DurationSeconds: sec,
		Fallback:        fallback,
	}, nil
}

// estimate returns the routed single-leg duration, or the straight-line
// estimate at the fallback speed when routing fails.
func (s *Suggester) estimate(ctx context.Context, from, to domain.Coordinates, op string) (float64, bool) {
	res, err := s.router.RouteDuration(ctx, []domain.Coordinates{from, to})
	if err == nil {
		return res.TotalSeconds, false
	}

	s.metrics.Fallback(op)
	return domain.FallbackSeconds(from, to, s.fallbackSpeedMps), true
}
