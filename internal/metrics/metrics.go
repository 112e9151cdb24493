package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "docsign"

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	Registry *prometheus.Registry

	Signatures       *prometheus.CounterVec
	SigningDuration  *prometheus.HistogramVec
	Verifications    *prometheus.CounterVec
	ProtocolsIssued  prometheus.Counter
	ProtocolsRevoked prometheus.Counter
	ProtocolsExpired prometheus.Counter
	AuditEntries     *prometheus.CounterVec
	SigningQueue     prometheus.Gauge

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Signatures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signing",
			Name:      "signatures_total",
			Help:      "Signing attempts by signature type and outcome.",
		}, []string{"type", "outcome"}),
		SigningDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "signing",
			Name:      "duration_seconds",
			Help:      "Time spent producing a signed artifact.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"type"}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "requests_total",
			Help:      "Verification requests by method and outcome.",
		}, []string{"method", "outcome"}),
		ProtocolsIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "issued_total",
			Help:      "Protocols issued.",
		}),
		ProtocolsRevoked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "revoked_total",
			Help:      "Protocols revoked.",
		}),
		ProtocolsExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "expired_total",
			Help:      "Protocols transitioned to expired by the sweeper.",
		}),
		AuditEntries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "entries_total",
			Help:      "Audit entries appended by action.",
		}, []string{"action"}),
		SigningQueue: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "signing",
			Name:      "queue_depth",
			Help:      "Signing jobs waiting for a worker.",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests.",
		}, []string{"method", "path", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Outcome maps an error to a low-cardinality label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
