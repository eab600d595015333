package domain

import "fmt"

type Phase string

const (
	PhasePickup Phase = "PICKUP"
	PhaseDrop   Phase = "DROP"
)

// Represents one persisted stop in a van's ordered route.
// Order is 1-based and unique per van.
type VanTask struct {
	VanID  string
	RideID string
	Phase  Phase
	Order  int
}

// Represents a planned stop together with the ride data needed to route and
// load-check it.
type PlanStop struct {
	RideID   string
	Phase    Phase
	Order    int
	Location Coordinates
	Pax      int
}

// Event returns the capacity-validator view of the stop.
func (s PlanStop) Event() StopEvent {
	return StopEvent{RideID: s.RideID, Phase: s.Phase, Pax: s.Pax}
}

// ValidatePlan checks the structural invariants of a van's task list:
// contiguous orders starting at 1, one pickup and one drop per ride, and
// every pickup ordered before its drop.
func ValidatePlan(tasks []VanTask) error {
	type pair struct {
		pickup, drop int
	}
	seen := make(map[string]*pair, len(tasks)/2)

	for i, t := range tasks {
		if t.Order != i+1 {
			return fmt.Errorf("%w: task %d has order %d", ErrInvalidPlan, i, t.Order)
		}

		p, ok := seen[t.RideID]
		if !ok {
			p = &pair{}
			seen[t.RideID] = p
		}

		switch t.Phase {
		case PhasePickup:
			if p.pickup != 0 {
				return fmt.Errorf("%w: ride %s has two pickups", ErrInvalidPlan, t.RideID)
			}
			p.pickup = t.Order
		case PhaseDrop:
			if p.drop != 0 {
				return fmt.Errorf("%w: ride %s has two drops", ErrInvalidPlan, t.RideID)
			}
			p.drop = t.Order
		default:
			return fmt.Errorf("%w: ride %s has unknown phase %q", ErrInvalidPlan, t.RideID, t.Phase)
		}
	}

	for rideID, p := range seen {
		if p.pickup == 0 || p.drop == 0 {
			return fmt.Errorf("%w: ride %s is missing a pickup or drop", ErrInvalidPlan, rideID)
		}
		if p.pickup >= p.drop {
			return fmt.Errorf("%w: ride %s drops before pickup", ErrInvalidPlan, rideID)
		}
	}

	return nil
}
