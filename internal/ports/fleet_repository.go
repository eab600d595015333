package ports

import (
	"context"
	"van-dispatch-service/internal/domain"
)

// Port: a boundary for reading and writing vans, rides and van plans.
type FleetRepository interface {
	GetVan(ctx context.Context, vanID string) (*domain.Van, error)
	ListVans(ctx context.Context) ([]*domain.Van, error)
	UpdateVanPosition(ctx context.Context, vanID string, pos domain.Coordinates) error

	CreateRide(ctx context.Context, ride *domain.Ride) error
	GetRide(ctx context.Context, rideID string) (*domain.Ride, error)
	// Assign the ride to a van and mark it ASSIGNED.
	// Returns the van the ride was previously assigned to, if any.
	AssignRide(ctx context.Context, rideID, vanID string) (previousVanID *string, err error)
	UpdateRideStatus(ctx context.Context, rideID string, status domain.RideStatus) error
	// Return the van's ASSIGNED, EN_ROUTE and PICKED_UP rides by request time.
	ListActiveRidesForVan(ctx context.Context, vanID string) ([]*domain.Ride, error)

	// Atomically replace the van's whole task list.
	ReplaceVanTasks(ctx context.Context, vanID string, tasks []domain.VanTask) error
	// Return the van's tasks in order, joined with their ride coordinates.
	ListPlanStops(ctx context.Context, vanID string) ([]domain.PlanStop, error)
}
