package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
	"van-dispatch-service/internal/events"
	"van-dispatch-service/internal/services"

	"github.com/go-chi/chi/v5"
)

type EventsHandler struct {
	Hub       *events.Hub
	Dispatch  *services.DispatchService
	Heartbeat time.Duration
}

// Stream sends fleet events as server-sent events. With a {vanID} route
// parameter only that van's events are sent; otherwise the whole fleet's.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	vanID := chi.URLParam(r, "vanID")
	if vanID != "" {
		if _, err := h.Dispatch.GetVan(r.Context(), vanID); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	ch, cancel := h.Hub.Subscribe(vanID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		log.Printf("sse flush unsupported: path=%s err=%v", r.URL.Path, err)
		return
	}

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case ev, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				log.Printf("sse encode failed: type=%s err=%v", ev.Type, err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, b); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
