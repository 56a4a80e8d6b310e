package addrquery

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryDuration       *prometheus.HistogramVec
	queryErrors         *prometheus.CounterVec
	recordsMaterialized prometheus.Counter

	// only init the metrics once
	metricsInitOnce sync.Once
)

func initMetrics() {
	metricsInitOnce.Do(_initMetrics)
}

func _initMetrics() {
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "addrindex",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Duration of address queries",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"method"},
	)
	queryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "addrindex",
			Subsystem: "query",
			Name:      "errors_total",
			Help:      "Number of failed address queries",
		},
		[]string{
			"method", // query method
			"kind",   // error class
		},
	)
	recordsMaterialized = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "addrindex",
			Subsystem: "query",
			Name:      "records_materialized_total",
			Help:      "Number of index records resolved into transactions",
		},
	)
}
