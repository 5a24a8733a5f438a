package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewdeck_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// UpstreamRequestLatency records upstream pipeline API latency by endpoint and outcome.
	UpstreamRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reviewdeck_upstream_request_latency_seconds",
		Help:    "Upstream API request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "outcome"})

	// ClassificationSaves counts autosave persistence attempts by outcome.
	ClassificationSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewdeck_classification_saves_total",
		Help: "Total classification save attempts by outcome",
	}, []string{"outcome"})

	// TraversalTransitions counts traversal engine transitions by resulting state.
	TraversalTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewdeck_traversal_transitions_total",
		Help: "Total traversal engine transitions by resulting state",
	}, []string{"to_state"})

	// ActiveSessions is the gauge of live review sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reviewdeck_active_sessions",
		Help: "Number of active review sessions",
	})

	// StatsClients is the gauge of connected stats WebSocket clients.
	StatsClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reviewdeck_stats_ws_clients",
		Help: "Number of connected stats WebSocket clients",
	})

	// WebSocketBackpressureDrops counts messages dropped on slow WebSocket clients.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewdeck_ws_backpressure_drops_total",
		Help: "Total WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

var (
	promOnce sync.Once
	promInst *fiberprometheus.FiberPrometheus
)

// InitMetrics creates the Prometheus HTTP middleware for the given service
// name. Process-wide singleton: fiberprometheus registers on the default
// registry and duplicate registration panics.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promInst = fiberprometheus.New(serviceName)
	})
	return promInst
}

// MetricsMiddleware returns the Fiber handler recording HTTP metrics.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
