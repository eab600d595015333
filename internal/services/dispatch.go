package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"van-dispatch-service/internal/domain"
	"van-dispatch-service/internal/platform/obs"
	"van-dispatch-service/internal/ports"

	"github.com/google/uuid"
)

// Schedules a background replan for a van.
type ReplanTrigger interface {
	Trigger(vanID string)
}

type NewRide struct {
	Pickup         domain.Coordinates
	Drop           domain.Coordinates
	PassengerCount int
	// Defaults to now.
	RequestedAt *time.Time
}

type AutoAssignResult struct {
	Suggestion VanSuggestion
	Assigned   bool
	Ride       *domain.Ride
}

// DispatchService applies dispatcher and driver actions to rides and vans and
// schedules the replans they imply.
type DispatchService struct {
	repo      ports.FleetRepository
	suggester *Suggester
	replans   ReplanTrigger
	events    ports.EventPublisher

	now func() time.Time
}

func NewDispatchService(
	repo ports.FleetRepository,
	suggester *Suggester,
	replans ReplanTrigger,
	events ports.EventPublisher,
) *DispatchService {
	return &DispatchService{
		repo:      repo,
		suggester: suggester,
		replans:   replans,
		events:    events,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (d *DispatchService) publish(t domain.FleetEventType, vanID, rideID string) {
	if d.events == nil {
		return
	}
	d.events.Publish(domain.FleetEvent{Type: t, VanID: vanID, RideID: rideID, At: d.now()})
}

func (d *DispatchService) newRide(in NewRide) (*domain.Ride, error) {
	requested := d.now()
	if in.RequestedAt != nil {
		requested = in.RequestedAt.UTC()
	}

	ride := &domain.Ride{
		RideID:         uuid.NewString(),
		Status:         domain.RidePending,
		Pickup:         in.Pickup,
		Drop:           in.Drop,
		PassengerCount: in.PassengerCount,
		RequestedAt:    requested,
	}
	if err := ride.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return ride, nil
}

// CreateRide stores a new PENDING ride.
func (d *DispatchService) CreateRide(ctx context.Context, in NewRide) (*domain.Ride, error) {
	ride, err := d.newRide(in)
	if err != nil {
		return nil, fmt.Errorf("create ride: %w", err)
	}

	if err := d.repo.CreateRide(ctx, ride); err != nil {
		return nil, fmt.Errorf("create ride: %w", err)
	}

	return ride, nil
}

// CreateWalkOn stores a ride picked up directly by a van, already assigned to
// it, and schedules the van's replan.
func (d *DispatchService) CreateWalkOn(ctx context.Context, vanID string, in NewRide) (_ *domain.Ride, err error) {
	defer obs.Time(ctx, "dispatch.CreateWalkOn")(&err)

	van, err := d.repo.GetVan(ctx, vanID)
	if err != nil {
		return nil, fmt.Errorf("create walk-on: %w", err)
	}

	ride, err := d.newRide(in)
	if err != nil {
		return nil, fmt.Errorf("create walk-on: %w", err)
	}
	if err := checkVanCanTake(van, ride.PassengerCount); err != nil {
		return nil, fmt.Errorf("create walk-on: %w", err)
	}

	ride.Status = domain.RideAssigned
	ride.VanID = &van.VanID
	ride.WalkOn = true

	if err := d.repo.CreateRide(ctx, ride); err != nil {
		return nil, fmt.Errorf("create walk-on: %w", err)
	}

	d.replans.Trigger(vanID)
	d.publish(domain.EventRideUpdated, vanID, ride.RideID)

	return ride, nil
}

func (d *DispatchService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	return d.repo.GetRide(ctx, rideID)
}

func (d *DispatchService) GetVan(ctx context.Context, vanID string) (*domain.Van, error) {
	return d.repo.GetVan(ctx, vanID)
}

func (d *DispatchService) ListVans(ctx context.Context) ([]*domain.Van, error) {
	return d.repo.ListVans(ctx)
}

// VanPlan returns the van's persisted stops in order.
func (d *DispatchService) VanPlan(ctx context.Context, vanID string) ([]domain.PlanStop, error) {
	if _, err := d.repo.GetVan(ctx, vanID); err != nil {
		return nil, fmt.Errorf("van plan: %w", err)
	}
	return d.repo.ListPlanStops(ctx, vanID)
}

func checkVanCanTake(van *domain.Van, pax int) error {
	if !van.Dispatchable() {
		return fmt.Errorf("van %s is %s: %w", van.VanID, van.Status, domain.ErrInvalidTransition)
	}
	if !van.CanCarry(pax) {
		return fmt.Errorf("van %s seats %d, ride needs %d: %w", van.VanID, van.Capacity, pax, domain.ErrInsufficientCapacity)
	}
	return nil
}

// AssignRide assigns (or reassigns) the ride and replans both the new van and
// the van it left.
func (d *DispatchService) AssignRide(ctx context.Context, rideID, vanID string) (_ *domain.Ride, err error) {
	defer obs.Time(ctx, "dispatch.AssignRide")(&err)

	van, err := d.repo.GetVan(ctx, vanID)
	if err != nil {
		return nil, fmt.Errorf("assign ride: %w", err)
	}
	ride, err := d.repo.GetRide(ctx, rideID)
	if err != nil {
		return nil, fmt.Errorf("assign ride: %w", err)
	}
	if err := checkVanCanTake(van, ride.PassengerCount); err != nil {
		return nil, fmt.Errorf("assign ride %s: %w", rideID, err)
	}

	prev, err := d.repo.AssignRide(ctx, rideID, vanID)
	if err != nil {
		return nil, fmt.Errorf("assign ride: %w", err)
	}

	d.replans.Trigger(vanID)
	if prev != nil && *prev != vanID {
		d.replans.Trigger(*prev)
	}
	d.publish(domain.EventRideUpdated, vanID, rideID)

	ride.Status = domain.RideAssigned
	ride.VanID = &van.VanID
	return ride, nil
}

// UpdateRideStatus applies a driver or dispatcher status change. Only a
// cancellation changes the van's plan; progress statuses leave it as is.
func (d *DispatchService) UpdateRideStatus(ctx context.Context, rideID string, status domain.RideStatus) (*domain.Ride, error) {
	if status == domain.RideAssigned {
		return nil, fmt.Errorf("update ride status: %w: use assign to set ASSIGNED", domain.ErrInvalidInput)
	}

	ride, err := d.repo.GetRide(ctx, rideID)
	if err != nil {
		return nil, fmt.Errorf("update ride status: %w", err)
	}
	if !ride.CanTransitionTo(status) {
		return nil, fmt.Errorf("update ride status %s: %s -> %s: %w", rideID, ride.Status, status, domain.ErrInvalidTransition)
	}

	if err := d.repo.UpdateRideStatus(ctx, rideID, status); err != nil {
		return nil, fmt.Errorf("update ride status: %w", err)
	}
	ride.Status = status

	vanID := ""
	if ride.VanID != nil {
		vanID = *ride.VanID
		if status == domain.RideCanceled {
			d.replans.Trigger(vanID)
		}
	}
	d.publish(domain.EventRideUpdated, vanID, rideID)

	return ride, nil
}

var ErrNoEligibleVan = errors.New("no eligible van")

// AutoAssign picks the top-ranked van for the ride. The ride is only assigned
// when confirm is true; otherwise the choice is returned for confirmation.
func (d *DispatchService) AutoAssign(ctx context.Context, rideID string, confirm bool) (*AutoAssignResult, error) {
	ranked, err := d.suggester.SuggestVans(ctx, rideID, 1)
	if err != nil {
		return nil, fmt.Errorf("auto assign: %w", err)
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("auto assign ride %s: %w", rideID, ErrNoEligibleVan)
	}

	res := &AutoAssignResult{Suggestion: ranked[0]}
	if !confirm {
		return res, nil
	}

	ride, err := d.AssignRide(ctx, rideID, ranked[0].VanID)
	if err != nil {
		return nil, fmt.Errorf("auto assign: %w", err)
	}
	res.Assigned = true
	res.Ride = ride

	return res, nil
}

// UpdateVanPosition records a live position ping.
func (d *DispatchService) UpdateVanPosition(ctx context.Context, vanID string, pos domain.Coordinates) error {
	if err := pos.Validate(); err != nil {
		return fmt.Errorf("update van position: %w: %v", domain.ErrInvalidInput, err)
	}

	if err := d.repo.UpdateVanPosition(ctx, vanID, pos); err != nil {
		return fmt.Errorf("update van position: %w", err)
	}

	d.publish(domain.EventVanPosition, vanID, "")
	return nil
}
