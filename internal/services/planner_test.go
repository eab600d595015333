package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
	"van-dispatch-service/internal/adapters/repositories"
	"van-dispatch-service/internal/adapters/routing"
	"van-dispatch-service/internal/domain"
	"van-dispatch-service/internal/platform/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRebuildPlanCapacityScenario(t *testing.T) {
	vanPos := domain.Coordinates{Lat: 64.84, Lon: -147.72}
	repo := newTestRepo(t, vanAt("van-1", 4, &vanPos))

	addRide(t, repo, "A", "van-1", 2,
		domain.Coordinates{Lat: 64.85, Lon: -147.70},
		domain.Coordinates{Lat: 64.80, Lon: -147.60},
		baseTime,
	)
	addRide(t, repo, "B", "van-1", 3,
		domain.Coordinates{Lat: 64.83, Lon: -147.75},
		domain.Coordinates{Lat: 64.82, Lon: -147.65},
		baseTime.Add(time.Minute),
	)

	planner := NewPlanner(repo, routing.NewMockRouteProvider(10, nil), nil, nil, 10, 4)
	ctx := context.Background()

	if err := planner.RebuildPlanForVan(ctx, "van-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stops, err := repo.ListPlanStops(ctx, "van-1")
	if err != nil {
		t.Fatalf("list stops: %v", err)
	}
	assertValidPlan(t, stops, 4, "A", "B")

	got := planString(stops)
	if got != "PA DA PB DB" && got != "PB DB PA DA" {
		t.Fatalf("plan = %s, want both riders never aboard together", got)
	}
}

func TestRebuildPlanPicksShortestInsertion(t *testing.T) {
	origin := domain.Coordinates{Lat: 45, Lon: 0}
	at := func(lon float64) domain.Coordinates { return domain.Coordinates{Lat: 45, Lon: lon} }

	repo := newTestRepo(t, vanAt("van-1", 4, &origin))
	addRide(t, repo, "A", "van-1", 1, at(0.01), at(0.05), baseTime)
	addRide(t, repo, "B", "van-1", 1, at(0.02), at(0.03), baseTime.Add(time.Minute))

	planner := NewPlanner(repo, routing.NewMockRouteProvider(10, nil), nil, nil, 10, 2)
	ctx := context.Background()

	if err := planner.RebuildPlanForVan(ctx, "van-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stops, _ := repo.ListPlanStops(ctx, "van-1")
	if got := planString(stops); got != "PA PB DB DA" {
		t.Fatalf("plan = %s, want PA PB DB DA", got)
	}
}

func seedBusyVan(t *testing.T, vanPos *domain.Coordinates) *mockFixture {
	t.Helper()

	repo := newTestRepo(t, vanAt("van-1", 4, vanPos))
	var ids []string
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("r%d", i+1)
		ids = append(ids, id)
		addRide(t, repo, id, "van-1", 1+i%3,
			domain.Coordinates{Lat: 64.80 + 0.013*float64(i), Lon: -147.70 - 0.021*float64(i%2)},
			domain.Coordinates{Lat: 64.86 - 0.009*float64(i), Lon: -147.62 + 0.017*float64(i)},
			baseTime.Add(time.Duration(i)*time.Minute),
		)
	}

	return &mockFixture{repo: repo, router: routing.NewMockRouteProvider(12, nil), rideIDs: ids}
}

func TestRebuildPlanInvariantsAndIdempotence(t *testing.T) {
	pos := domain.Coordinates{Lat: 64.84, Lon: -147.72}
	f := seedBusyVan(t, &pos)
	events := &recordingPublisher{}

	planner := NewPlanner(f.repo, f.router, events, metrics.NewCollector(), 10, 4)
	ctx := context.Background()

	if err := planner.RebuildPlanForVan(ctx, "van-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, _ := f.repo.ListPlanStops(ctx, "van-1")
	assertValidPlan(t, first, 4, f.rideIDs...)

	if err := planner.RebuildPlanForVan(ctx, "van-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := f.repo.ListPlanStops(ctx, "van-1")

	if planString(first) != planString(second) {
		t.Fatalf("rebuild not idempotent: %s vs %s", planString(first), planString(second))
	}

	if len(events.events) != 2 || events.events[0].Type != domain.EventPlanUpdated {
		t.Fatalf("expected two plan.updated events, got %+v", events.events)
	}
}

func TestRebuildPlanRoutingDownAppends(t *testing.T) {
	pos := domain.Coordinates{Lat: 64.84, Lon: -147.72}
	f := seedBusyVan(t, &pos)
	f.router.SetFail(true)

	m := metrics.NewCollector()
	planner := NewPlanner(f.repo, f.router, nil, m, 10, 4)
	ctx := context.Background()

	if err := planner.RebuildPlanForVan(ctx, "van-1"); err != nil {
		t.Fatalf("routing failure must not fail the rebuild: %v", err)
	}

	stops, _ := f.repo.ListPlanStops(ctx, "van-1")
	assertValidPlan(t, stops, 4, f.rideIDs...)

	if got := planString(stops); got != "Pr1 Dr1 Pr2 Dr2 Pr3 Dr3 Pr4 Dr4 Pr5 Dr5" {
		t.Fatalf("plan = %s, want rides appended in request order", got)
	}
	if n := testutil.ToFloat64(m.PlanAppends); n != 4 {
		t.Fatalf("appends = %v, want 4", n)
	}
	if n := testutil.ToFloat64(m.Fallbacks.WithLabelValues("planner_pickup_eta")); n != 4 {
		t.Fatalf("pickup eta fallbacks = %v, want 4", n)
	}
}

func TestRebuildPlanWithoutVanPosition(t *testing.T) {
	f := seedBusyVan(t, nil)

	planner := NewPlanner(f.repo, f.router, nil, nil, 10, 1)
	ctx := context.Background()

	if err := planner.RebuildPlanForVan(ctx, "van-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stops, _ := f.repo.ListPlanStops(ctx, "van-1")
	assertValidPlan(t, stops, 4, f.rideIDs...)

	first, _ := f.repo.GetRide(ctx, "r1")
	calls := f.router.Calls()
	if len(calls) == 0 {
		t.Fatalf("expected routing calls")
	}
	for _, c := range calls {
		if c[0] != first.Pickup {
			t.Fatalf("routing query starts at %+v, want first pickup %+v", c[0], first.Pickup)
		}
	}
}

func TestRebuildPlanClearsWhenNoActiveRides(t *testing.T) {
	pos := domain.Coordinates{Lat: 64.84, Lon: -147.72}
	repo := newTestRepo(t, vanAt("van-1", 4, &pos))
	addRide(t, repo, "A", "van-1", 1, pos, domain.Coordinates{Lat: 64.9, Lon: -147.8}, baseTime)

	planner := NewPlanner(repo, routing.NewMockRouteProvider(10, nil), nil, nil, 10, 1)
	ctx := context.Background()

	if err := planner.RebuildPlanForVan(ctx, "van-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stops, _ := repo.ListPlanStops(ctx, "van-1"); len(stops) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(stops))
	}

	if err := repo.UpdateRideStatus(ctx, "A", domain.RideCanceled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := planner.RebuildPlanForVan(ctx, "van-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stops, _ := repo.ListPlanStops(ctx, "van-1"); len(stops) != 0 {
		t.Fatalf("expected empty plan, got %s", planString(stops))
	}
}

func TestRebuildPlanUnknownVan(t *testing.T) {
	repo := newTestRepo(t)
	planner := NewPlanner(repo, routing.NewMockRouteProvider(10, nil), nil, nil, 10, 1)

	err := planner.RebuildPlanForVan(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBetterCandidate(t *testing.T) {
	tests := []struct {
		name string
		c    candidate
		best candidate
		want bool
	}{
		{"faster pickup wins", candidate{pickupETA: 100, total: 900}, candidate{pickupETA: 200, total: 300}, true},
		{"slower pickup loses", candidate{pickupETA: 200, total: 300}, candidate{pickupETA: 100, total: 900}, false},
		{"pickup tie, shorter total", candidate{pickupETA: 100.5, total: 300}, candidate{pickupETA: 100, total: 400}, true},
		{"pickup tie, longer total", candidate{pickupETA: 100, total: 500}, candidate{pickupETA: 100.9, total: 400}, false},
		{"exact tie keeps incumbent", candidate{pickupETA: 100, total: 400}, candidate{pickupETA: 100, total: 400}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := better(tt.c, tt.best); got != tt.want {
				t.Fatalf("better() = %v, want %v", got, tt.want)
			}
		})
	}
}

type mockFixture struct {
	repo    *repositories.SQLFleetRepository
	router  *routing.MockRouteProvider
	rideIDs []string
}
