// Package metrics provides Prometheus instrumentation for the scoring
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// PredictionsTotal counts completed predictions by risk level.
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudguard",
			Name:      "predictions_total",
			Help:      "Total predictions served by risk level.",
		},
		[]string{"risk_level"},
	)

	// FraudDetectedTotal counts predictions classified as fraud.
	FraudDetectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudguard",
		Name:      "fraud_detected_total",
		Help:      "Total transactions classified as fraudulent.",
	})

	// CacheHitsTotal counts prediction cache hits.
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudguard",
		Name:      "cache_hits_total",
		Help:      "Total prediction cache hits.",
	})

	// CacheMissesTotal counts prediction cache misses.
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudguard",
		Name:      "cache_misses_total",
		Help:      "Total prediction cache misses.",
	})

	// ScoringDuration observes end-to-end scoring latency.
	ScoringDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fraudguard",
		Name:      "scoring_duration_seconds",
		Help:      "End-to-end scoring latency in seconds.",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// StoreErrorsTotal counts profile store failures by operation.
	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudguard",
			Name:      "store_errors_total",
			Help:      "Total profile store failures by operation.",
		},
		[]string{"operation"},
	)

	// BatchSize observes the number of transactions per batch request.
	BatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fraudguard",
		Name:      "batch_size",
		Help:      "Transactions per batch scoring request.",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
	})

	// ModelInfo carries the loaded model version as a label.
	ModelInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fraudguard",
			Name:      "model_info",
			Help:      "Loaded model metadata; value is always 1.",
		},
		[]string{"version"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudguard",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route pattern, and status code.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fraudguard",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(
		PredictionsTotal,
		FraudDetectedTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		ScoringDuration,
		StoreErrorsTotal,
		BatchSize,
		ModelInfo,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// SetModelVersion publishes the active model version, clearing any prior one.
func SetModelVersion(version string) {
	ModelInfo.Reset()
	ModelInfo.WithLabelValues(version).Set(1)
}
