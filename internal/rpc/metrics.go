package rpc

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcRequests *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec

	metricsOnce sync.Once
)

// knownMethods bounds the method label so arbitrary names cannot grow the
// series count.
var knownMethods = map[string]struct{}{
	"help":                  {},
	"index_getInfo":         {},
	"mempool_getInfo":       {},
	"mempool_getContent":    {},
	"tx_submit":             {},
	"index_submitBlock":     {},
	"index_disconnectBlock": {},
}

func init() {
	for _, m := range addressMethods {
		knownMethods[m] = struct{}{}
	}
}

func initMetrics() {
	metricsOnce.Do(func() {
		rpcRequests = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "addrindex",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "JSON-RPC requests by method and result code (0 = success)",
		}, []string{"method", "code"})

		rpcDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "addrindex",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "JSON-RPC request handling time",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"method"})
	})
}

func observeRequest(method string, rpcErr *Error, took time.Duration) {
	if _, ok := knownMethods[method]; !ok {
		method = "unknown"
	}
	code := 0
	if rpcErr != nil {
		code = rpcErr.Code
	}
	rpcRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	rpcDuration.WithLabelValues(method).Observe(took.Seconds())
}
