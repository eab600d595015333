package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type RideStatus string

const (
	RidePending  RideStatus = "PENDING"
	RideAssigned RideStatus = "ASSIGNED"
	RideEnRoute  RideStatus = "EN_ROUTE"
	RidePickedUp RideStatus = "PICKED_UP"
	RideDropped  RideStatus = "DROPPED"
	RideCanceled RideStatus = "CANCELED"
)

var rideTransitions = map[RideStatus][]RideStatus{
	RidePending:  {RideAssigned, RideCanceled},
	RideAssigned: {RideAssigned, RideEnRoute, RidePickedUp, RideCanceled},
	RideEnRoute:  {RidePickedUp, RideCanceled},
	RidePickedUp: {RideDropped},
}

// ParseRideStatus accepts any casing of a known status.
func ParseRideStatus(s string) (RideStatus, error) {
	st := RideStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case RidePending, RideAssigned, RideEnRoute, RidePickedUp, RideDropped, RideCanceled:
		return st, nil
	}
	return "", fmt.Errorf("unknown ride status %q", s)
}

// Represents a single transport request.
// A Ride occupies exactly one pickup and one drop stop in any van plan
// that includes it.
type Ride struct {
	RideID         string
	Status         RideStatus
	Pickup         Coordinates
	Drop           Coordinates
	PassengerCount int
	VanID          *string
	RequestedAt    time.Time
	WalkOn         bool
}

// IsActive reports whether the ride still takes part in its van's plan.
func (r *Ride) IsActive() bool {
	switch r.Status {
	case RideAssigned, RideEnRoute, RidePickedUp:
		return true
	}
	return false
}

// IsClosed reports whether the ride reached a terminal status.
func (r *Ride) IsClosed() bool {
	return r.Status == RideDropped || r.Status == RideCanceled
}

func (r *Ride) CanTransitionTo(next RideStatus) bool {
	for _, s := range rideTransitions[r.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// Validate checks the request-time invariants of a ride.
func (r *Ride) Validate() error {
	if strings.TrimSpace(r.RideID) == "" {
		return errors.New("ride id must be non-empty")
	}
	if r.PassengerCount < 1 {
		return fmt.Errorf("passenger count must be at least 1, got %d", r.PassengerCount)
	}
	if err := r.Pickup.Validate(); err != nil {
		return fmt.Errorf("pickup: %w", err)
	}
	if err := r.Drop.Validate(); err != nil {
		return fmt.Errorf("drop: %w", err)
	}
	return nil
}
