package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"van-dispatch-service/internal/api/dto"
	"van-dispatch-service/internal/domain"
	"van-dispatch-service/internal/platform/obs"
	"van-dispatch-service/internal/services"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode failed: method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// writeServiceError maps domain and service errors onto HTTP statuses.
// Unexpected errors are logged and hidden behind a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInsufficientCapacity),
		errors.Is(err, services.ErrNoEligibleVan),
		errors.Is(err, services.ErrVanPositionUnknown):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		log.Printf("request failed: req_id=%s method=%s path=%s err=%v", obs.RequestID(r.Context()), r.Method, r.URL.Path, err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads exactly one JSON object and rejects unknown fields.
// An empty body leaves dst untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}

func toVanResponse(v *domain.Van) dto.VanResponse {
	res := dto.VanResponse{
		VanID:             v.VanID,
		Name:              v.Name,
		Capacity:          v.Capacity,
		Status:            string(v.Status),
		PositionUpdatedAt: v.PositionUpdatedAt,
		OperatorID:        v.OperatorID,
	}
	if v.Position != nil {
		res.Position = &dto.Coordinates{Lat: v.Position.Lat, Lon: v.Position.Lon}
	}
	return res
}

func toRideResponse(r *domain.Ride) dto.RideResponse {
	return dto.RideResponse{
		RideID:         r.RideID,
		Status:         string(r.Status),
		Pickup:         dto.Coordinates{Lat: r.Pickup.Lat, Lon: r.Pickup.Lon},
		Drop:           dto.Coordinates{Lat: r.Drop.Lat, Lon: r.Drop.Lon},
		PassengerCount: r.PassengerCount,
		VanID:          r.VanID,
		RequestedAt:    r.RequestedAt,
		WalkOn:         r.WalkOn,
	}
}

func toPlanTasks(stops []domain.PlanStop) []dto.PlanTaskResponse {
	tasks := make([]dto.PlanTaskResponse, 0, len(stops))
	for _, s := range stops {
		tasks = append(tasks, dto.PlanTaskResponse{
			RideID: s.RideID,
			Phase:  string(s.Phase),
			Order:  s.Order,
			Lat:    s.Location.Lat,
			Lon:    s.Location.Lon,
		})
	}
	return tasks
}

func toSuggestionResponse(s services.VanSuggestion) dto.SuggestionResponse {
	return dto.SuggestionResponse{
		VanID:           s.VanID,
		Name:            s.Name,
		Capacity:        s.Capacity,
		Status:          string(s.Status),
		DurationSeconds: s.DurationSeconds,
		Fallback:        s.Fallback,
	}
}
