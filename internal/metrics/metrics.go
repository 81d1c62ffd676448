// Package metrics exposes Prometheus counters for the HTTP surface and the
// file lifecycle.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileapi_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fileapi_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

var (
	// OperationsTotal counts file operations by outcome.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileapi_operations_total",
			Help: "Total number of file operations",
		},
		[]string{"operation", "result"},
	)

	// UploadedBytes counts bytes written to the blob store.
	UploadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fileapi_uploaded_bytes_total",
			Help: "Bytes written to the blob store",
		},
	)

	// DownloadedBytes counts bytes streamed back to clients.
	DownloadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fileapi_downloaded_bytes_total",
			Help: "Bytes streamed to clients",
		},
	)

	// TokensPurged counts expired download tokens removed by the reaper.
	TokensPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fileapi_tokens_purged_total",
			Help: "Expired download tokens removed",
		},
	)
)

// Observe records the outcome of operation.
func Observe(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	OperationsTotal.WithLabelValues(operation, result).Inc()
}

// Middleware records request counts and durations. Routes are labelled by
// their pattern so ids and tokens don't blow up cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
