package domain

import "time"

type FleetEventType string

const (
	EventPlanUpdated FleetEventType = "plan.updated"
	EventVanPosition FleetEventType = "van.position"
	EventRideUpdated FleetEventType = "ride.updated"
)

// Notification fanned out to live views after fleet state changes.
type FleetEvent struct {
	Type   FleetEventType `json:"type"`
	VanID  string         `json:"van_id"`
	RideID string         `json:"ride_id,omitempty"`
	At     time.Time      `json:"at"`
}
