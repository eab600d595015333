package services

import (
	"context"
	"testing"
	"time"
	"van-dispatch-service/internal/adapters/repositories"
	"van-dispatch-service/internal/domain"
	"van-dispatch-service/internal/platform/db"
)

var baseTime = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T, vans ...repositories.VanSeed) *repositories.SQLFleetRepository {
	t.Helper()

	conn, err := db.Open(db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := repositories.InitSchema(conn); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	if len(vans) > 0 {
		if err := repositories.SeedVans(conn, vans); err != nil {
			t.Fatalf("seed vans: %v", err)
		}
	}

	return repositories.NewSQLFleetRepository(conn)
}

func vanAt(id string, capacity int, pos *domain.Coordinates) repositories.VanSeed {
	v := repositories.VanSeed{VanID: id, Name: id, Capacity: capacity, Status: "ACTIVE"}
	if pos != nil {
		lat, lon := pos.Lat, pos.Lon
		v.Lat, v.Lon = &lat, &lon
	}
	return v
}

// addRide creates a ride and, when vanID is set, assigns it.
func addRide(
	t *testing.T,
	repo *repositories.SQLFleetRepository,
	id, vanID string,
	pax int,
	pickup, drop domain.Coordinates,
	requested time.Time,
) *domain.Ride {
	t.Helper()
	ctx := context.Background()

	ride := &domain.Ride{
		RideID:         id,
		Status:         domain.RidePending,
		Pickup:         pickup,
		Drop:           drop,
		PassengerCount: pax,
		RequestedAt:    requested,
	}
	if err := repo.CreateRide(ctx, ride); err != nil {
		t.Fatalf("create ride %s: %v", id, err)
	}
	if vanID != "" {
		if _, err := repo.AssignRide(ctx, id, vanID); err != nil {
			t.Fatalf("assign ride %s: %v", id, err)
		}
		ride.Status = domain.RideAssigned
		ride.VanID = &vanID
	}
	return ride
}

// assertValidPlan checks pair ordering, contiguous orders and capacity at
// every prefix.
func assertValidPlan(t *testing.T, stops []domain.PlanStop, capacity int, rideIDs ...string) {
	t.Helper()

	tasks := make([]domain.VanTask, len(stops))
	events := make([]domain.StopEvent, len(stops))
	for i, s := range stops {
		tasks[i] = domain.VanTask{RideID: s.RideID, Phase: s.Phase, Order: s.Order}
		events[i] = s.Event()
	}

	if err := domain.ValidatePlan(tasks); err != nil {
		t.Fatalf("invalid plan: %v (%s)", err, planString(stops))
	}
	if !domain.CapacityOK(events, capacity) {
		t.Fatalf("plan exceeds capacity %d: %s", capacity, planString(stops))
	}
	if len(stops) != 2*len(rideIDs) {
		t.Fatalf("plan has %d stops, want %d: %s", len(stops), 2*len(rideIDs), planString(stops))
	}

	seen := map[string]bool{}
	for _, s := range stops {
		seen[s.RideID] = true
	}
	for _, id := range rideIDs {
		if !seen[id] {
			t.Fatalf("ride %s missing from plan: %s", id, planString(stops))
		}
	}
}

func planString(stops []domain.PlanStop) string {
	out := ""
	for i, s := range stops {
		if i > 0 {
			out += " "
		}
		out += string(s.Phase)[:1] + s.RideID
	}
	return out
}

type recordingTrigger struct{ vans []string }

func (r *recordingTrigger) Trigger(vanID string) { r.vans = append(r.vans, vanID) }

type recordingPublisher struct{ events []domain.FleetEvent }

func (r *recordingPublisher) Publish(ev domain.FleetEvent) { r.events = append(r.events, ev) }
