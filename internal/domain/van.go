package domain

import "time"

type VanStatus string

const (
	VanActive      VanStatus = "ACTIVE"
	VanMaintenance VanStatus = "MAINTENANCE"
	VanOffline     VanStatus = "OFFLINE"
)

// Dispatch vehicle executing a multi-stop route.
// Position is nil until the van has pinged at least once.
type Van struct {
	VanID             string
	Name              string
	Capacity          int
	Status            VanStatus
	Position          *Coordinates
	PositionUpdatedAt *time.Time
	OperatorID        *string
}

// Dispatchable reports whether the van may receive new rides.
func (v *Van) Dispatchable() bool {
	return v.Status == VanActive || v.Status == VanMaintenance
}

// CanCarry reports whether the van has enough seats for the passenger count.
func (v *Van) CanCarry(pax int) bool {
	return v.Capacity >= pax
}
