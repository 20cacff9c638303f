package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Total HTTP requests partitioned by method, route, and status code
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration in seconds partitioned by method, route, and status code
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// In-flight HTTP requests
	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	spotsCommittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adops_spots_committed_total",
			Help: "Ad spots booked by the commit engine",
		},
	)

	slotRacesLostTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adops_slot_races_lost_total",
			Help: "Previewed placements lost to a concurrent commit at lock time",
		},
	)

	idempotentReplaysTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adops_idempotent_replays_total",
			Help: "Commit requests answered from the idempotency cache",
		},
	)
)

// Metrics returns a Fiber v3 middleware that records basic Prometheus metrics.
// Labels are kept low-cardinality by using the matched route path when available.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path // Use route template to avoid high cardinality
		}

		labels := prometheus.Labels{
			"method": c.Method(),
			"route":  route,
			"status": strconv.Itoa(status),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}

// RecordCommit counts booked spots and lost slot races from one commit.
func RecordCommit(placed, racesLost int) {
	spotsCommittedTotal.Add(float64(placed))
	slotRacesLostTotal.Add(float64(racesLost))
}

// RecordIdempotentReplay counts a commit answered from cache.
func RecordIdempotentReplay() {
	idempotentReplaysTotal.Inc()
}
