// Package metrics holds the Prometheus collectors for the poller, the
// contract gateway, the indexer client and the status API.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "random_winner"

// Result labels.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
	ResultEmpty   = "empty"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	pollTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "ticks_total",
			Help:      "Total number of refresh ticks by result.",
		},
		[]string{"result"},
	)

	pollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "duration_seconds",
			Help:      "Duration of refresh ticks.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
	)

	contractWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contract",
			Name:      "writes_total",
			Help:      "Total number of contract write transactions by method and result.",
		},
		[]string{"method", "result"},
	)

	indexerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "requests_total",
			Help:      "Total number of indexer queries by result.",
		},
		[]string{"result"},
	)

	networkMismatch = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "network_mismatch_total",
			Help:      "Total number of connections refused for being on the wrong network.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		pollTicks,
		pollDuration,
		contractWrites,
		indexerRequests,
		networkMismatch,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordPollTick records one refresh tick.
func RecordPollTick(result string, duration time.Duration) {
	pollTicks.WithLabelValues(result).Inc()
	if result != ResultSkipped {
		pollDuration.Observe(duration.Seconds())
	}
}

// RecordContractWrite records the outcome of a startGame or joinGame call.
func RecordContractWrite(method string, success bool) {
	contractWrites.WithLabelValues(method, resultLabel(success)).Inc()
}

// RecordIndexerRequest records one subgraph query.
func RecordIndexerRequest(result string) {
	indexerRequests.WithLabelValues(result).Inc()
}

// RecordNetworkMismatch counts a refused connection.
func RecordNetworkMismatch() {
	networkMismatch.Inc()
}

// RecordHTTPRequest records one status API request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	path = canonicalPath(path)
	method = strings.ToUpper(method)
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func resultLabel(success bool) string {
	if success {
		return ResultOK
	}
	return ResultError
}

// canonicalPath keeps label cardinality bounded.
func canonicalPath(raw string) string {
	switch raw {
	case "/healthz", "/metrics", "/v1/state", "/v1/stream":
		return raw
	case "", "/":
		return "/"
	}
	return "/other"
}
