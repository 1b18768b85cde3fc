package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total HTTP requests served by the console API
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "endpoint", "status"},
	)

	// RequestDuration tracks console API request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "endpoint"},
	)

	// ProbesTotal tracks health probe outcomes per endpoint
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "health_probes_total",
			Help: "Total number of health probes by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	// ProbeLatency tracks latency of successful probes
	ProbeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "health_probe_latency_seconds",
			Help:    "Latency of successful health probes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// EndpointUp tracks the last known state per endpoint (1=UP, 0=DOWN)
	EndpointUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "endpoint_up",
			Help: "Whether the endpoint answered its last probe (1=up, 0=down)",
		},
		[]string{"endpoint"},
	)

	// CatalogLoadsTotal tracks catalog loads by result (live, error, fallback)
	CatalogLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_loads_total",
			Help: "Total number of catalog loads by result",
		},
		[]string{"result"},
	)

	// CatalogItems tracks the size of the current catalog
	CatalogItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_items",
			Help: "Number of items in the current catalog",
		},
		[]string{"source"},
	)

	// CheckoutsTotal tracks checkout attempts by outcome and error kind
	CheckoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkouts_total",
			Help: "Total number of checkout attempts",
		},
		[]string{"outcome", "kind"},
	)

	// CheckoutDuration tracks checkout round trips
	CheckoutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_duration_seconds",
			Help:    "Checkout round trip in seconds",
			Buckets: []float64{0.05, 0.1, 0.3, 0.8, 1.5, 3, 10},
		},
		[]string{"outcome"},
	)

	// CheckoutAmount tracks amounts of successful checkouts
	CheckoutAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkout_amount_dollars",
			Help:    "Checkout amounts in dollars",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000},
		},
	)

	// CircuitBreakerState tracks circuit breaker state (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"service", "circuit_name"},
	)

	// CircuitBreakerFailures tracks circuit breaker failures
	CircuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of circuit breaker failures",
		},
		[]string{"service", "circuit_name"},
	)

	// BulkheadActiveRequests tracks active requests in bulkhead
	BulkheadActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bulkhead_active_requests",
			Help: "Number of active requests in bulkhead",
		},
		[]string{"service", "bulkhead_name"},
	)

	// BulkheadRejectedRequests tracks rejected requests by bulkhead
	BulkheadRejectedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkhead_rejected_requests_total",
			Help: "Total number of rejected requests by bulkhead",
		},
		[]string{"service", "bulkhead_name"},
	)

	// RefreshTicksTotal tracks scheduler ticks (run, skipped)
	RefreshTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_ticks_total",
			Help: "Total number of refresh ticks by result",
		},
		[]string{"result"},
	)

	// SinkErrorsTotal tracks failures of display sinks
	SinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_errors_total",
			Help: "Total number of display sink failures",
		},
		[]string{"sink", "record"},
	)
)

// PrometheusMiddleware creates a Gin middleware for automatic metrics collection
func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		RequestsTotal.WithLabelValues(
			serviceName,
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()

		RequestDuration.WithLabelValues(
			serviceName,
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}
