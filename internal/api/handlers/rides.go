package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"van-dispatch-service/internal/api/dto"
	"van-dispatch-service/internal/domain"
	"van-dispatch-service/internal/services"

	"github.com/go-chi/chi/v5"
)

const maxSuggestionLimit = 50

type RideHandler struct {
	Dispatch  *services.DispatchService
	Suggester *services.Suggester
}

func decodeNewRide(w http.ResponseWriter, r *http.Request) (services.NewRide, bool) {
	var req dto.CreateRideRequest
	if !decodeJSON(w, r, &req, false) {
		return services.NewRide{}, false
	}
	if req.Pickup == nil || req.Drop == nil {
		writeError(w, r, http.StatusBadRequest, "pickup and drop are required")
		return services.NewRide{}, false
	}

	pax := req.PassengerCount
	if pax == 0 {
		pax = 1
	}

	return services.NewRide{
		Pickup:         domain.Coordinates{Lat: req.Pickup.Lat, Lon: req.Pickup.Lon},
		Drop:           domain.Coordinates{Lat: req.Drop.Lat, Lon: req.Drop.Lon},
		PassengerCount: pax,
		RequestedAt:    req.RequestedAt,
	}, true
}

func (h *RideHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeNewRide(w, r)
	if !ok {
		return
	}

	ride, err := h.Dispatch.CreateRide(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toRideResponse(ride))
}

func (h *RideHandler) Get(w http.ResponseWriter, r *http.Request) {
	ride, err := h.Dispatch.GetRide(r.Context(), chi.URLParam(r, "rideID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toRideResponse(ride))
}

func (h *RideHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req dto.AssignRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	vanID := strings.TrimSpace(req.VanID)
	if vanID == "" {
		writeError(w, r, http.StatusBadRequest, "van_id is required")
		return
	}

	ride, err := h.Dispatch.AssignRide(r.Context(), chi.URLParam(r, "rideID"), vanID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toRideResponse(ride))
}

func (h *RideHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.StatusRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	status, err := domain.ParseRideStatus(req.Status)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ride, err := h.Dispatch.UpdateRideStatus(r.Context(), chi.URLParam(r, "rideID"), status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toRideResponse(ride))
}

// Suggestions ranks eligible vans by travel time to the ride pickup.
func (h *RideHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	rideID := chi.URLParam(r, "rideID")

	limit := services.DefaultSuggestionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxSuggestionLimit {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = n
	}

	ranked, err := h.Suggester.SuggestVans(r.Context(), rideID, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res := dto.ListSuggestionsResponse{RideID: rideID, Vans: make([]dto.SuggestionResponse, 0, len(ranked))}
	for _, s := range ranked {
		res.Vans = append(res.Vans, toSuggestionResponse(s))
	}

	writeJSON(w, r, http.StatusOK, res)
}

// AutoAssign returns the best van and assigns it only when confirmed.
func (h *RideHandler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	var req dto.AutoAssignRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	out, err := h.Dispatch.AutoAssign(r.Context(), chi.URLParam(r, "rideID"), req.Confirm)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res := dto.AutoAssignResponse{
		Suggestion: toSuggestionResponse(out.Suggestion),
		Assigned:   out.Assigned,
	}
	if out.Ride != nil {
		ride := toRideResponse(out.Ride)
		res.Ride = &ride
	}

	writeJSON(w, r, http.StatusOK, res)
}

func (h *RideHandler) PickupETA(w http.ResponseWriter, r *http.Request) {
	vanID := strings.TrimSpace(r.URL.Query().Get("van_id"))
	if vanID == "" {
		writeError(w, r, http.StatusBadRequest, "van_id is required")
		return
	}

	est, err := h.Suggester.PickupETA(r.Context(), vanID, chi.URLParam(r, "rideID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.PickupETAResponse{
		VanID:           est.VanID,
		RideID:          est.RideID,
		DurationSeconds: est.DurationSeconds,
		Fallback:        est.Fallback,
	})
}
