package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"backoffice-service/pkg/config"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	LoginCounter              prometheus.Counter
	TenantRegistrationCounter prometheus.Counter

	// Per-entity operation counter
	EntityOperationCounter *prometheus.CounterVec

	HTTPRequestCounter    *prometheus.CounterVec
	AuthErrorCounter      *prometheus.CounterVec
	QuotaRejectionCounter *prometheus.CounterVec
)

// Histogram metrics
var (
	RequestDuration     *prometheus.HistogramVec
	DBOperationDuration *prometheus.HistogramVec
)

// Gauge metrics
var (
	ActiveTokensGauge prometheus.Gauge
	InfoGauge         *prometheus.GaugeVec
)

var initialized bool

// InitMetrics builds and registers every metric family under the name
// prefix from configuration. A second call is a no-op: the collectors are
// already registered with the default registry.
func InitMetrics(cfg *config.Config) {
	if initialized {
		return
	}
	initialized = true

	prefix := cfg.Metrics.Prefix

	LoginCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_login_total",
			Help: "Total number of login attempts",
		},
	)

	TenantRegistrationCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_tenant_registrations_total",
			Help: "Total number of tenant registrations",
		},
	)

	EntityOperationCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_entity_operations_total",
			Help: "Total number of operations by entity and operation",
		},
		[]string{"entity", "operation"},
	)

	HTTPRequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	AuthErrorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of authentication and authorization errors",
		},
		[]string{"type"},
	)

	QuotaRejectionCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_quota_rejections_total",
			Help: "Total number of creations rejected by a tenant quota",
		},
		[]string{"resource"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	DBOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ActiveTokensGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_active_tokens",
			Help: "Number of issued authentication tokens not yet logged out",
		},
	)

	InfoGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_info",
			Help: "Information about the back-office service",
		},
		[]string{"version"},
	)

	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware captures request count and duration for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// IncreaseActiveTokens increments the active tokens gauge
func IncreaseActiveTokens() {
	ActiveTokensGauge.Inc()
}

// DecreaseActiveTokens decrements the active tokens gauge
func DecreaseActiveTokens() {
	ActiveTokensGauge.Dec()
}

// RecordAuthError records an authentication or authorization error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordOperation records an operation against an entity
func RecordOperation(entity, operation string) {
	EntityOperationCounter.With(prometheus.Labels{"entity": entity, "operation": operation}).Inc()
}

// RecordQuotaRejection records a creation rejected by a tenant quota
func RecordQuotaRejection(resource string) {
	QuotaRejectionCounter.With(prometheus.Labels{"resource": resource}).Inc()
}
