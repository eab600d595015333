package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"
	"van-dispatch-service/internal/domain"
	"van-dispatch-service/internal/platform/metrics"
	"van-dispatch-service/internal/platform/obs"
	"van-dispatch-service/internal/ports"

	"golang.org/x/sync/errgroup"
)

// Pickup ETAs closer than this are considered equal and the shorter total
// route wins.
const pickupTieSeconds = 1.0

// Planner rebuilds a van's ordered stop list by greedy pairwise insertion.
//
// Rides are inserted one at a time in request order. Every (pickup, drop)
// insertion point that keeps occupancy within capacity is routed, and the
// candidate with the lowest pickup ETA (then lowest total duration) is kept.
// The result is not globally optimal.
type Planner struct {
	repo    ports.FleetRepository
	router  ports.RouteProvider
	events  ports.EventPublisher
	metrics *metrics.Collector

	fallbackSpeedMps float64
	concurrency      int
}

func NewPlanner(
	repo ports.FleetRepository,
	router ports.RouteProvider,
	events ports.EventPublisher,
	m *metrics.Collector,
	fallbackSpeedMps float64,
	concurrency int,
) *Planner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Planner{
		repo:             repo,
		router:           router,
		events:           events,
		metrics:          m,
		fallbackSpeedMps: fallbackSpeedMps,
		concurrency:      concurrency,
	}
}

type candidate struct {
	stops     []domain.PlanStop
	pickupETA float64
	total     float64
	ok        bool
}

// better reports whether c should replace best.
func better(c, best candidate) bool {
	if math.Abs(c.pickupETA-best.pickupETA) <= pickupTieSeconds {
		return c.total < best.total
	}
	return c.pickupETA < best.pickupETA
}

// RebuildPlanForVan recomputes the van's plan from its active rides and
// replaces the persisted task list in one transaction.
//
// Routing failures never fail the rebuild; only repository errors and an
// invalid resulting plan are returned. Safe to call repeatedly.
func (p *Planner) RebuildPlanForVan(ctx context.Context, vanID string) (err error) {
	defer obs.Time(ctx, "planner.RebuildPlanForVan")(&err)

	start := time.Now()
	stopCount := 0
	defer func() { p.metrics.ObservePlan(time.Since(start), stopCount, err) }()

	van, err := p.repo.GetVan(ctx, vanID)
	if err != nil {
		return fmt.Errorf("rebuild plan: %w", err)
	}

	rides, err := p.repo.ListActiveRidesForVan(ctx, vanID)
	if err != nil {
		return fmt.Errorf("rebuild plan: list rides for van %s: %w", vanID, err)
	}

	stops := p.BuildPlan(ctx, van, rides)
	stopCount = len(stops)

	tasks := make([]domain.VanTask, 0, len(stops))
	for i, s := range stops {
		tasks = append(tasks, domain.VanTask{
			VanID:  vanID,
			RideID: s.RideID,
			Phase:  s.Phase,
			Order:  i + 1,
		})
	}

	if err := domain.ValidatePlan(tasks); err != nil {
		return fmt.Errorf("rebuild plan: van %s: %w", vanID, err)
	}

	if err := p.repo.ReplaceVanTasks(ctx, vanID, tasks); err != nil {
		return fmt.Errorf("rebuild plan: %w", err)
	}

	if p.events != nil {
		p.events.Publish(domain.FleetEvent{
			Type:  domain.EventPlanUpdated,
			VanID: vanID,
			At:    time.Now().UTC(),
		})
	}

	return nil
}

// BuildPlan computes the ordered stop list for the van without persisting it.
// Stop orders are numbered from 1.
func (p *Planner) BuildPlan(ctx context.Context, van *domain.Van, rides []*domain.Ride) []domain.PlanStop {
	if len(rides) == 0 {
		return []domain.PlanStop{}
	}

	ordered := append([]*domain.Ride(nil), rides...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.RequestedAt.Equal(b.RequestedAt) {
			return a.RequestedAt.Before(b.RequestedAt)
		}
		return a.RideID < b.RideID
	})

	// Synthetic origin when the van has never reported a position.
	origin := ordered[0].Pickup
	if van.Position != nil {
		origin = *van.Position
	}

	first := ordered[0]
	plan := []domain.PlanStop{pickupStop(first), dropStop(first)}

	for _, ride := range ordered[1:] {
		plan = p.insertRide(ctx, van, origin, plan, ride)
	}

	for i := range plan {
		plan[i].Order = i + 1
	}
	return plan
}

func (p *Planner) insertRide(
	ctx context.Context,
	van *domain.Van,
	origin domain.Coordinates,
	plan []domain.PlanStop,
	ride *domain.Ride,
) []domain.PlanStop {
	pickupETA := p.pickupETA(ctx, origin, ride.Pickup)

	n := len(plan)
	candidates := make([]candidate, 0, (n+1)*(n+2)/2)
	for i := 0; i <= n; i++ {
		for j := i + 1; j <= n+1; j++ {
			stops := insertAt(plan, i, pickupStop(ride))
			stops = insertAt(stops, j, dropStop(ride))

			events := make([]domain.StopEvent, len(stops))
			for k, s := range stops {
				events[k] = s.Event()
			}
			if !domain.CapacityOK(events, van.Capacity) {
				continue
			}

			candidates = append(candidates, candidate{stops: stops, pickupETA: pickupETA})
		}
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for k := range candidates {
		c := &candidates[k]
		g.Go(func() error {
			total, err := p.routeTotal(ctx, origin, c.stops)
			if err != nil {
				return nil
			}
			c.total = total
			c.ok = true
			return nil
		})
	}
	_ = g.Wait()

	var (
		best  candidate
		found bool
	)
	for _, c := range candidates {
		if !c.ok {
			continue
		}
		if !found || better(c, best) {
			best = c
			found = true
		}
	}

	if !found {
		log.Printf(
			"planner: no feasible insertion van_id=%s ride_id=%s candidates=%d, appending",
			van.VanID, ride.RideID, len(candidates),
		)
		p.metrics.PlanAppended()
		out := append([]domain.PlanStop(nil), plan...)
		return append(out, pickupStop(ride), dropStop(ride))
	}

	return best.stops
}

// routeTotal returns the road duration through [origin, ...stops] after
// collapsing near-duplicate consecutive points.
func (p *Planner) routeTotal(ctx context.Context, origin domain.Coordinates, stops []domain.PlanStop) (float64, error) {
	points := make([]domain.Coordinates, 0, len(stops)+1)
	points = append(points, origin)
	for _, s := range stops {
		points = append(points, s.Location)
	}

	kept, _ := domain.CollapseNearDuplicates(points)
	if len(kept) < 2 {
		return 0, nil
	}

	res, err := p.router.RouteDuration(ctx, kept)
	if err != nil {
		return 0, err
	}
	return res.TotalSeconds, nil
}

// pickupETA is the direct origin to pickup duration, estimated from straight
// line distance when routing is unavailable.
func (p *Planner) pickupETA(ctx context.Context, origin, pickup domain.Coordinates) float64 {
	if domain.HaversineMeters(origin, pickup) < domain.NearDuplicateMeters {
		return 0
	}

	res, err := p.router.RouteDuration(ctx, []domain.Coordinates{origin, pickup})
	if err == nil {
		return res.TotalSeconds
	}

	p.metrics.Fallback("planner_pickup_eta")
	return domain.FallbackSeconds(origin, pickup, p.fallbackSpeedMps)
}

func insertAt(stops []domain.PlanStop, idx int, s domain.PlanStop) []domain.PlanStop {
	out := make([]domain.PlanStop, 0, len(stops)+1)
	out = append(out, stops[:idx]...)
	out = append(out, s)
	return append(out, stops[idx:]...)
}

func pickupStop(r *domain.Ride) domain.PlanStop {
	return domain.PlanStop{
		RideID:   r.RideID,
		Phase:    domain.PhasePickup,
		Location: r.Pickup,
		Pax:      r.PassengerCount,
	}
}

func dropStop(r *domain.Ride) domain.PlanStop {
	return domain.PlanStop{
		RideID:   r.RideID,
		Phase:    domain.PhaseDrop,
		Location: r.Drop,
		Pax:      r.PassengerCount,
	}
}
