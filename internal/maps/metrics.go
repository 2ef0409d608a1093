package maps

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK       = "ok"
	resultError    = "error"
	resultCacheHit = "cache_hit"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maps_requests_total",
		Help: "Maps calls by operation and result (ok, error, cache_hit)",
	}, []string{"operation", "result"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maps_request_duration_seconds",
		Help:    "Latency of maps calls including cache lookups",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"operation"})
)

func recordRequest(operation, result string, start time.Time) {
	requestsTotal.WithLabelValues(operation, result).Inc()
	requestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
