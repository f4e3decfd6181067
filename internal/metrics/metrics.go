package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudbox_http_requests_total",
		Help: "HTTP requests processed, by method, route and status.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cloudbox_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120},
	}, []string{"method", "route"})

	fileOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudbox_file_operations_total",
		Help: "File orchestrator operations, by operation and result.",
	}, []string{"op", "result"})

	uploadedBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cloudbox_uploaded_bytes_total",
		Help: "Bytes written to the object store by successful uploads.",
	})

	consistencyAnomaliesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudbox_consistency_anomalies_total",
		Help: "Blob/record mismatches observed, by kind.",
	}, []string{"kind"})

	reconcileRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cloudbox_reconcile_runs_total",
		Help: "Completed consistency reconciliation runs.",
	})
)

// InitMetrics registers collectors with the default registry. Safe to call repeatedly.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			fileOperationsTotal,
			uploadedBytesTotal,
			consistencyAnomaliesTotal,
			reconcileRunsTotal,
		)
	})
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// FileOperation counts one orchestrator call.
func FileOperation(op, result string) {
	fileOperationsTotal.WithLabelValues(op, result).Inc()
}

// UploadedBytes adds n to the uploaded byte counter.
func UploadedBytes(n int64) {
	if n > 0 {
		uploadedBytesTotal.Add(float64(n))
	}
}

// ConsistencyAnomaly counts a blob/record mismatch of the given kind.
func ConsistencyAnomaly(kind string) {
	consistencyAnomaliesTotal.WithLabelValues(kind).Inc()
}

// ReconcileRun counts a finished reconciliation pass.
func ReconcileRun() {
	reconcileRunsTotal.Inc()
}
