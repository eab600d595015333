package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the service's Prometheus registry.
// A nil *Collector is valid and records nothing, so tests and tools can skip
// metrics entirely.
type Collector struct {
	reg *prometheus.Registry

	PlanRuns     *prometheus.CounterVec // result label: ok|error
	PlanDuration prometheus.Histogram
	PlanAppends  prometheus.Counter
	PlanStops    prometheus.Histogram

	RoutingRequests *prometheus.CounterVec // result label: ok|error
	RoutingDuration prometheus.Histogram
	RouteCacheHits  *prometheus.CounterVec // result label: hit|miss|error

	Fallbacks *prometheus.CounterVec // op label: suggest|pickup_eta|planner_pickup_eta

	ReplansQueued    prometheus.Counter
	ReplansCoalesced prometheus.Counter
	ReplansRunning   prometheus.Gauge

	BrokerPublishes *prometheus.CounterVec // result label: ok|error
	BrokerConnected prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		PlanRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_plan_runs_total",
			Help: "Van plan rebuilds by result.",
		}, []string{"result"}),
		PlanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_plan_duration_seconds",
			Help:    "Duration of a full van plan rebuild.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		PlanAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_plan_fallback_appends_total",
			Help: "Rides appended to the end of a plan because no insertion was feasible.",
		}),
		PlanStops: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_plan_stops",
			Help:    "Number of stops in rebuilt plans.",
			Buckets: prometheus.LinearBuckets(0, 2, 12),
		}),
		RoutingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_routing_requests_total",
			Help: "Routing backend requests by result.",
		}, []string{"result"}),
		RoutingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_routing_duration_seconds",
			Help:    "Latency of routing backend requests.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		RouteCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_route_cache_lookups_total",
			Help: "Route cache lookups by result.",
		}, []string{"result"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_haversine_fallbacks_total",
			Help: "Straight-line estimates used because routing was unavailable.",
		}, []string{"op"}),
		ReplansQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_replans_queued_total",
			Help: "Replan triggers received.",
		}),
		ReplansCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_replans_coalesced_total",
			Help: "Replan triggers folded into an already running replan.",
		}),
		ReplansRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_replans_running",
			Help: "Vans with a replan currently in flight.",
		}),
		BrokerPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_broker_publishes_total",
			Help: "Fleet events published to the message broker by result.",
		}, []string{"result"}),
		BrokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_broker_connected",
			Help: "1 when the message broker connection is up.",
		}),
	}

	reg.MustRegister(
		c.PlanRuns, c.PlanDuration, c.PlanAppends, c.PlanStops,
		c.RoutingRequests, c.RoutingDuration, c.RouteCacheHits,
		c.Fallbacks,
		c.ReplansQueued, c.ReplansCoalesced, c.ReplansRunning,
		c.BrokerPublishes, c.BrokerConnected,
	)

	return c
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) ObservePlan(d time.Duration, stops int, err error) {
	if c == nil {
		return
	}
	c.PlanRuns.WithLabelValues(resultLabel(err)).Inc()
	if err == nil {
		c.PlanDuration.Observe(d.Seconds())
		c.PlanStops.Observe(float64(stops))
	}
}

func (c *Collector) PlanAppended() {
	if c == nil {
		return
	}
	c.PlanAppends.Inc()
}

func (c *Collector) ObserveRouting(d time.Duration, err error) {
	if c == nil {
		return
	}
	c.RoutingRequests.WithLabelValues(resultLabel(err)).Inc()
	c.RoutingDuration.Observe(d.Seconds())
}

func (c *Collector) CacheLookup(result string) {
	if c == nil {
		return
	}
	c.RouteCacheHits.WithLabelValues(result).Inc()
}

func (c *Collector) Fallback(op string) {
	if c == nil {
		return
	}
	c.Fallbacks.WithLabelValues(op).Inc()
}

func (c *Collector) ReplanQueued(coalesced bool) {
	if c == nil {
		return
	}
	c.ReplansQueued.Inc()
	if coalesced {
		c.ReplansCoalesced.Inc()
	}
}

func (c *Collector) SetReplansRunning(n int) {
	if c == nil {
		return
	}
	c.ReplansRunning.Set(float64(n))
}

func (c *Collector) BrokerPublished(err error) {
	if c == nil {
		return
	}
	c.BrokerPublishes.WithLabelValues(resultLabel(err)).Inc()
}

func (c *Collector) SetBrokerConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.BrokerConnected.Set(1)
		return
	}
	c.BrokerConnected.Set(0)
}
