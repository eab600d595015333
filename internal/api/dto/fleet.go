package dto

import "time"

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type PositionRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

type VanResponse struct {
	VanID             string       `json:"van_id"`
	Name              string       `json:"name"`
	Capacity          int          `json:"capacity"`
	Status            string       `json:"status"`
	Position          *Coordinates `json:"position"`
	PositionUpdatedAt *time.Time   `json:"position_updated_at,omitempty"`
	OperatorID        *string      `json:"operator_id,omitempty"`
}

type ListVansResponse struct {
	Vans []VanResponse `json:"vans"`
}

type CreateRideRequest struct {
	Pickup         *Coordinates `json:"pickup"`
	Drop           *Coordinates `json:"drop"`
	PassengerCount int          `json:"passenger_count"`
	RequestedAt    *time.Time   `json:"requested_at"`
}

type RideResponse struct {
	RideID         string      `json:"ride_id"`
	Status         string      `json:"status"`
	Pickup         Coordinates `json:"pickup"`
	Drop           Coordinates `json:"drop"`
	PassengerCount int         `json:"passenger_count"`
	VanID          *string     `json:"van_id"`
	RequestedAt    time.Time   `json:"requested_at"`
	WalkOn         bool        `json:"walk_on"`
}

type AssignRequest struct {
	VanID string `json:"van_id"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type AutoAssignRequest struct {
	Confirm bool `json:"confirm"`
}

type SuggestionResponse struct {
	VanID           string  `json:"van_id"`
	Name            string  `json:"name"`
	Capacity        int     `json:"capacity"`
	Status          string  `json:"status"`
	DurationSeconds float64 `json:"duration_seconds"`
	Fallback        bool    `json:"fallback"`
}

type ListSuggestionsResponse struct {
	RideID string               `json:"ride_id"`
	Vans   []SuggestionResponse `json:"vans"`
}

type AutoAssignResponse struct {
	Suggestion SuggestionResponse `json:"suggestion"`
	Assigned   bool               `json:"assigned"`
	Ride       *RideResponse      `json:"ride,omitempty"`
}

type PickupETAResponse struct {
	VanID           string  `json:"van_id"`
	RideID          string  `json:"ride_id"`
	DurationSeconds float64 `json:"duration_seconds"`
	Fallback        bool    `json:"fallback"`
}
