package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_request_total",
			Help: "Total HTTP requests handled by the keeper API",
		},
		[]string{"path"},
	)

	requestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_request_errors_total",
			Help: "Total failed HTTP requests",
		},
		[]string{"path"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keeper_request_duration_seconds",
			Help:    "Duration of keeper API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	reloadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_reload_total",
			Help: "Total hot reload batches by result",
		},
		[]string{"result"},
	)

	reloadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "keeper_reload_duration_seconds",
			Help:    "Duration of hot reload batches",
			Buckets: prometheus.DefBuckets,
		},
	)

	rollbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "keeper_rollback_total",
			Help: "Total rollbacks performed",
		},
	)

	checkpointGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "keeper_checkpoints",
			Help: "Rollback checkpoints currently stored",
		},
	)
)

func init() {
	prometheus.MustRegister(requestCount)
	prometheus.MustRegister(requestErrors)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(reloadTotal)
	prometheus.MustRegister(reloadDuration)
	prometheus.MustRegister(rollbackTotal)
	prometheus.MustRegister(checkpointGauge)
}

func IncrementRequestCount(path string) {
	requestCount.WithLabelValues(path).Inc()
}

func IncrementErrorCount(path string) {
	requestErrors.WithLabelValues(path).Inc()
}

func RecordRequestDuration(path string, seconds float64) {
	requestDuration.WithLabelValues(path).Observe(seconds)
}

func recordReloadMetrics(success bool, seconds float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	reloadTotal.WithLabelValues(result).Inc()
	reloadDuration.Observe(seconds)
}

func recordRollback() {
	rollbackTotal.Inc()
}

func recordCheckpointCount(n int) {
	checkpointGauge.Set(float64(n))
}
