package handlers

import (
	"errors"
	"net/http"
	"van-dispatch-service/internal/api/dto"
	"van-dispatch-service/internal/services"

	"github.com/go-chi/chi/v5"
)

type PlanHandler struct {
	Dispatch  *services.DispatchService
	Projector *services.ETAProjector
	Replans   services.ReplanTrigger
}

// Plan returns the van's persisted stops in execution order.
func (h *PlanHandler) Plan(w http.ResponseWriter, r *http.Request) {
	vanID := chi.URLParam(r, "vanID")

	stops, err := h.Dispatch.VanPlan(r.Context(), vanID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.PlanResponse{VanID: vanID, Tasks: toPlanTasks(stops)})
}

// ETAs returns per-ride arrival estimates for the van's plan.
//
// When the van position or the routing backend is unavailable the response
// is still 200, with fallback set and the reason, so the task list renders.
func (h *PlanHandler) ETAs(w http.ResponseWriter, r *http.Request) {
	vanID := chi.URLParam(r, "vanID")

	proj, err := h.Projector.ProjectVanETAs(r.Context(), vanID)

	res := dto.ETAResponse{VanID: vanID, ETAs: map[string]dto.RideETAResponse{}}
	if proj != nil {
		res.Tasks = toPlanTasks(proj.Stops)
		for id, e := range proj.ETAs {
			res.ETAs[id] = dto.RideETAResponse{ToPickupSec: e.ToPickupSec, ToDropSec: e.ToDropSec}
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, services.ErrVanPositionUnknown):
		res.Fallback = true
		res.Reason = "van_position_unknown"
	case errors.Is(err, services.ErrRoutingUnavailable):
		res.Fallback = true
		res.Reason = "routing_unavailable"
	default:
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, res)
}

// Replan schedules a background rebuild of the van's plan.
func (h *PlanHandler) Replan(w http.ResponseWriter, r *http.Request) {
	vanID := chi.URLParam(r, "vanID")

	if _, err := h.Dispatch.GetVan(r.Context(), vanID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.Replans.Trigger(vanID)
	writeJSON(w, r, http.StatusAccepted, dto.ReplanResponse{VanID: vanID, Status: "queued"})
}
