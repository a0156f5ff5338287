// Package metrics provides Prometheus instrumentation for the Keyline service.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keyline",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "keyline",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ProvisionsTotal counts provisioning calls by result.
	ProvisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keyline",
			Name:      "provisions_total",
			Help:      "Total license provisioning calls by result.",
		},
		[]string{"result"},
	)

	// LicensesCreatedTotal counts licenses created across provisioning paths.
	LicensesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "keyline",
		Name:      "licenses_created_total",
		Help:      "Total licenses created.",
	})

	// ActivationsTotal counts seat activation attempts by result
	// (created, idempotent, rejected, invalid).
	ActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keyline",
			Name:      "activations_total",
			Help:      "Total seat activation attempts by result.",
		},
		[]string{"result"},
	)

	// DeactivationsTotal counts seat deactivations.
	DeactivationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "keyline",
		Name:      "deactivations_total",
		Help:      "Total seat deactivations.",
	})

	// SeatLimitRejectionsTotal counts activations refused because the
	// license had no seats left.
	SeatLimitRejectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "keyline",
		Name:      "seat_limit_rejections_total",
		Help:      "Total activations rejected by the seat limit.",
	})

	// LifecycleTransitionsTotal counts lifecycle transitions by action.
	LifecycleTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keyline",
			Name:      "lifecycle_transitions_total",
			Help:      "Total license lifecycle transitions by action.",
		},
		[]string{"action"},
	)

	// KeygenRetriesTotal counts license key generation retries after a
	// collision with an existing key.
	KeygenRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "keyline",
		Name:      "keygen_retries_total",
		Help:      "Total license key generation retries after collisions.",
	})

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "keyline", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "keyline", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "keyline", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// DBWaitCount tracks the total number of connections waited for.
	DBWaitCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "keyline", Name: "db_wait_count_total",
		Help: "Total number of connections waited for.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "keyline", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ProvisionsTotal,
		LicensesCreatedTotal,
		ActivationsTotal,
		DeactivationsTotal,
		SeatLimitRejectionsTotal,
		LifecycleTransitionsTotal,
		KeygenRetriesTotal,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		DBWaitCount,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			DBWaitCount.Set(float64(stats.WaitCount))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
