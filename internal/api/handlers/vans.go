package handlers

import (
	"net/http"
	"van-dispatch-service/internal/api/dto"
	"van-dispatch-service/internal/domain"
	"van-dispatch-service/internal/services"

	"github.com/go-chi/chi/v5"
)

type VanHandler struct {
	Dispatch *services.DispatchService
}

func (h *VanHandler) List(w http.ResponseWriter, r *http.Request) {
	vans, err := h.Dispatch.ListVans(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res := dto.ListVansResponse{Vans: make([]dto.VanResponse, 0, len(vans))}
	for _, v := range vans {
		res.Vans = append(res.Vans, toVanResponse(v))
	}

	writeJSON(w, r, http.StatusOK, res)
}

// UpdatePosition records a live position ping from the van.
func (h *VanHandler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	vanID := chi.URLParam(r, "vanID")

	var req dto.PositionRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Lat == nil || req.Lon == nil {
		writeError(w, r, http.StatusBadRequest, "lat and lon are required")
		return
	}

	pos := domain.Coordinates{Lat: *req.Lat, Lon: *req.Lon}
	if err := h.Dispatch.UpdateVanPosition(r.Context(), vanID, pos); err != nil {
		writeServiceError(w, r, err)
		return
	}

	van, err := h.Dispatch.GetVan(r.Context(), vanID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toVanResponse(van))
}

// CreateWalkOn registers a rider who boarded the van without a prior request.
func (h *VanHandler) CreateWalkOn(w http.ResponseWriter, r *http.Request) {
	vanID := chi.URLParam(r, "vanID")

	in, ok := decodeNewRide(w, r)
	if !ok {
		return
	}

	ride, err := h.Dispatch.CreateWalkOn(r.Context(), vanID, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toRideResponse(ride))
}
