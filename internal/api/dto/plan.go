package dto

type PlanTaskResponse struct {
	RideID string  `json:"ride_id"`
	Phase  string  `json:"phase"`
	Order  int     `json:"order"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

type PlanResponse struct {
	VanID string             `json:"van_id"`
	Tasks []PlanTaskResponse `json:"tasks"`
}

type RideETAResponse struct {
	ToPickupSec float64 `json:"to_pickup_sec"`
	ToDropSec   float64 `json:"to_drop_sec"`
}

// ETAResponse carries the plan even when ETAs could not be computed; the UI
// then shows a fallback badge using Reason.
type ETAResponse struct {
	VanID    string                     `json:"van_id"`
	Tasks    []PlanTaskResponse         `json:"tasks"`
	ETAs     map[string]RideETAResponse `json:"etas"`
	Fallback bool                       `json:"fallback"`
	Reason   string                     `json:"reason,omitempty"`
}

type ReplanResponse struct {
	VanID  string `json:"van_id"`
	Status string `json:"status"`
}
