/*
Package metrics wires the KV engine's Prometheus instrumentation:
counters and histograms for KVStore operations, HTTP requests, and
transaction-log rotations, exposed at /metrics via promhttp.
*/
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// KVOpsTotal counts KVStore operations by op and outcome.
	KVOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kvengine_kv_operations_total",
		Help: "Total KVStore operations, labeled by operation and outcome.",
	}, []string{"op", "outcome"})

	// KVOpDuration observes KVStore operation latency in seconds.
	KVOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kvengine_kv_operation_duration_seconds",
		Help:    "KVStore operation latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// HTTPRequestsTotal counts HTTP requests by route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kvengine_http_requests_total",
		Help: "Total HTTP requests, labeled by route and status code.",
	}, []string{"route", "status"})

	// LogRotationsTotal counts transaction-log rotations.
	LogRotationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kvengine_txnlog_rotations_total",
		Help: "Total transaction-log rotations performed.",
	})
)

// ObserveKVOp times fn, recording its duration and outcome against op.
func ObserveKVOp(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	KVOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	KVOpsTotal.WithLabelValues(op, outcome).Inc()
	return err
}

// Handler returns the HTTP handler that serves /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
