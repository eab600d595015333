package repositories

import (
	"context"
	"errors"
	"testing"
	"time"
	"van-dispatch-service/internal/domain"
	"van-dispatch-service/internal/platform/db"

	"github.com/jmoiron/sqlx"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conn, err := db.Open(db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := InitSchema(conn); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	lat, lon := 64.8378, -147.7164
	seeds := []VanSeed{
		{VanID: "van-1", Name: "North", Capacity: 4, Status: "active", Lat: &lat, Lon: &lon},
		{VanID: "van-2", Name: "South", Capacity: 6, Status: "MAINTENANCE"},
	}
	if err := SeedVans(conn, seeds); err != nil {
		t.Fatalf("seed vans: %v", err)
	}

	return conn
}

func testRide(id string, requested time.Time) *domain.Ride {
	return &domain.Ride{
		RideID:         id,
		Status:         domain.RidePending,
		Pickup:         domain.Coordinates{Lat: 64.84, Lon: -147.72},
		Drop:           domain.Coordinates{Lat: 64.86, Lon: -147.80},
		PassengerCount: 2,
		RequestedAt:    requested,
	}
}

func TestSeedAndGetVan(t *testing.T) {
	repo := NewSQLFleetRepository(newTestDB(t))
	ctx := context.Background()

	v, err := repo.GetVan(ctx, "van-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Status != domain.VanActive || v.Capacity != 4 {
		t.Fatalf("unexpected van: %+v", v)
	}
	if v.Position == nil || v.Position.Lat != 64.8378 {
		t.Fatalf("expected seeded position, got %+v", v.Position)
	}

	v2, err := repo.GetVan(ctx, "van-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v2.Position != nil {
		t.Fatalf("expected unknown position, got %+v", v2.Position)
	}

	if _, err := repo.GetVan(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	vans, err := repo.ListVans(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vans) != 2 || vans[0].VanID != "van-1" {
		t.Fatalf("unexpected vans: %+v", vans)
	}
}

func TestUpdateVanPosition(t *testing.T) {
	repo := NewSQLFleetRepository(newTestDB(t))
	ctx := context.Background()

	pos := domain.Coordinates{Lat: 64.85, Lon: -147.70}
	if err := repo.UpdateVanPosition(ctx, "van-2", pos); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, err := repo.GetVan(ctx, "van-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Position == nil || *v.Position != pos {
		t.Fatalf("position = %+v, want %+v", v.Position, pos)
	}
	if v.PositionUpdatedAt == nil {
		t.Fatalf("expected position timestamp")
	}

	if err := repo.UpdateVanPosition(ctx, "missing", pos); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRideLifecycle(t *testing.T) {
	repo := NewSQLFleetRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := repo.CreateRide(ctx, testRide("r1", base)); err != nil {
		t.Fatalf("create ride: %v", err)
	}

	got, err := repo.GetRide(ctx, "r1")
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if got.Status != domain.RidePending || got.VanID != nil || !got.RequestedAt.Equal(base) {
		t.Fatalf("unexpected ride: %+v", got)
	}

	prev, err := repo.AssignRide(ctx, "r1", "van-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if prev != nil {
		t.Fatalf("expected no previous van, got %q", *prev)
	}

	prev, err = repo.AssignRide(ctx, "r1", "van-2")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if prev == nil || *prev != "van-1" {
		t.Fatalf("expected previous van-1, got %v", prev)
	}

	if err := repo.UpdateRideStatus(ctx, "r1", domain.RideCanceled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := repo.AssignRide(ctx, "r1", "van-1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := repo.AssignRide(ctx, "missing", "van-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListActiveRidesForVan(t *testing.T) {
	repo := NewSQLFleetRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	// Created out of order on purpose.
	for _, r := range []*domain.Ride{
		testRide("r3", base.Add(2*time.Minute)),
		testRide("r2", base),
		testRide("r1", base),
		testRide("r4", base.Add(3*time.Minute)),
	} {
		if err := repo.CreateRide(ctx, r); err != nil {
			t.Fatalf("create %s: %v", r.RideID, err)
		}
		if _, err := repo.AssignRide(ctx, r.RideID, "van-1"); err != nil {
			t.Fatalf("assign %s: %v", r.RideID, err)
		}
	}
	if err := repo.UpdateRideStatus(ctx, "r4", domain.RideCanceled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	rides, err := repo.ListActiveRidesForVan(ctx, "van-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"r1", "r2", "r3"}
	if len(rides) != len(want) {
		t.Fatalf("got %d rides, want %d", len(rides), len(want))
	}
	for i, id := range want {
		if rides[i].RideID != id {
			t.Fatalf("rides[%d] = %s, want %s", i, rides[i].RideID, id)
		}
	}
}

func TestReplaceVanTasksAndListPlanStops(t *testing.T) {
	repo := NewSQLFleetRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b"} {
		if err := repo.CreateRide(ctx, testRide(id, base)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	first := []domain.VanTask{
		{VanID: "van-1", RideID: "a", Phase: domain.PhasePickup, Order: 1},
		{VanID: "van-1", RideID: "a", Phase: domain.PhaseDrop, Order: 2},
	}
	if err := repo.ReplaceVanTasks(ctx, "van-1", first); err != nil {
		t.Fatalf("replace: %v", err)
	}

	second := []domain.VanTask{
		{VanID: "van-1", RideID: "b", Phase: domain.PhasePickup, Order: 1},
		{VanID: "van-1", RideID: "a", Phase: domain.PhasePickup, Order: 2},
		{VanID: "van-1", RideID: "b", Phase: domain.PhaseDrop, Order: 3},
		{VanID: "van-1", RideID: "a", Phase: domain.PhaseDrop, Order: 4},
	}
	if err := repo.ReplaceVanTasks(ctx, "van-1", second); err != nil {
		t.Fatalf("replace: %v", err)
	}

	stops, err := repo.ListPlanStops(ctx, "van-1")
	if err != nil {
		t.Fatalf("list stops: %v", err)
	}
	if len(stops) != 4 {
		t.Fatalf("got %d stops, want 4", len(stops))
	}
	for i, s := range stops {
		if s.RideID != second[i].RideID || s.Phase != second[i].Phase || s.Order != i+1 {
			t.Fatalf("stops[%d] = %+v, want %+v", i, s, second[i])
		}
		if s.Pax != 2 {
			t.Fatalf("stops[%d].Pax = %d, want 2", i, s.Pax)
		}
	}
	if stops[0].Location.Lat != 64.84 || stops[2].Location.Lat != 64.86 {
		t.Fatalf("locations not resolved from ride phase: %+v", stops)
	}

	// A failed insert leaves the previous plan intact.
	bad := []domain.VanTask{
		{VanID: "van-1", RideID: "a", Phase: domain.PhasePickup, Order: 1},
		{VanID: "van-1", RideID: "a", Phase: domain.PhasePickup, Order: 1},
	}
	if err := repo.ReplaceVanTasks(ctx, "van-1", bad); err == nil {
		t.Fatalf("expected error for duplicate task order")
	}
	stops, err = repo.ListPlanStops(ctx, "van-1")
	if err != nil {
		t.Fatalf("list stops: %v", err)
	}
	if len(stops) != 4 {
		t.Fatalf("expected previous plan to survive, got %d stops", len(stops))
	}

	if err := repo.ReplaceVanTasks(ctx, "van-1", nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	stops, _ = repo.ListPlanStops(ctx, "van-1")
	if len(stops) != 0 {
		t.Fatalf("expected empty plan, got %d stops", len(stops))
	}
}

func TestSeedVansRejectsInvalid(t *testing.T) {
	conn := newTestDB(t)

	lat := 1.0
	tests := map[string]VanSeed{
		"empty id":    {VanID: " ", Capacity: 4},
		"zero seats":  {VanID: "x", Capacity: 0},
		"bad status":  {VanID: "x", Capacity: 4, Status: "parked"},
		"half coords": {VanID: "x", Capacity: 4, Lat: &lat},
	}
	for name, seed := range tests {
		t.Run(name, func(t *testing.T) {
			if err := SeedVans(conn, []VanSeed{seed}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
