package api

import (
	"net/http"
	"time"
	"van-dispatch-service/internal/api/handlers"
	"van-dispatch-service/internal/events"
	"van-dispatch-service/internal/platform/metrics"
	"van-dispatch-service/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type Deps struct {
	DB        handlers.Pinger
	Dispatch  *services.DispatchService
	Suggester *services.Suggester
	ETAs      *services.ETAProjector
	Replans   services.ReplanTrigger
	Hub       *events.Hub
	Metrics   *metrics.Collector

	CORSOrigins  []string
	SSEHeartbeat time.Duration
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	health := &handlers.HealthHandler{DB: d.DB}
	vans := &handlers.VanHandler{Dispatch: d.Dispatch}
	plans := &handlers.PlanHandler{Dispatch: d.Dispatch, Projector: d.ETAs, Replans: d.Replans}
	rides := &handlers.RideHandler{Dispatch: d.Dispatch, Suggester: d.Suggester}
	stream := &handlers.EventsHandler{Hub: d.Hub, Dispatch: d.Dispatch, Heartbeat: d.SSEHeartbeat}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware, loggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", health.Check)
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	r.Get("/events", stream.Stream)

	r.Route("/vans", func(r chi.Router) {
		r.Get("/", vans.List)
		r.Route("/{vanID}", func(r chi.Router) {
			r.Put("/position", vans.UpdatePosition)
			r.Get("/plan", plans.Plan)
			r.Get("/etas", plans.ETAs)
			r.Post("/replan", plans.Replan)
			r.Post("/walk-ons", vans.CreateWalkOn)
			r.Get("/events", stream.Stream)
		})
	})

	r.Route("/rides", func(r chi.Router) {
		r.Post("/", rides.Create)
		r.Route("/{rideID}", func(r chi.Router) {
			r.Get("/", rides.Get)
			r.Post("/assign", rides.Assign)
			r.Post("/status", rides.UpdateStatus)
			r.Get("/suggestions", rides.Suggestions)
			r.Post("/auto-assign", rides.AutoAssign)
			r.Get("/pickup-eta", rides.PickupETA)
		})
	})

	return r
}
