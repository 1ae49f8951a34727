// Package metrics implements ports.Metrics with Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a registry so several recorders can coexist in one process.
type Recorder struct {
	registry *prometheus.Registry

	nodes        *prometheus.CounterVec
	execDuration *prometheus.HistogramVec
	storeOps     *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		nodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orca_nodes_total",
				Help: "Pipeline nodes that reached a terminal state, by outcome.",
			},
			[]string{"outcome"},
		),
		execDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orca_execution_duration_seconds",
				Help:    "Executor invocation duration in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"status"},
		),
		storeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orca_store_operations_total",
				Help: "Content-addressed store operations, by operation and result.",
			},
			[]string{"op", "result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orca_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orca_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.nodes, r.execDuration, r.storeOps, r.httpRequests, r.httpDuration,
	)
	return r
}

// NodeFinished counts a terminal node.
func (r *Recorder) NodeFinished(outcome string) {
	r.nodes.WithLabelValues(outcome).Inc()
}

// ExecutionObserved records one executor invocation.
func (r *Recorder) ExecutionObserved(status string, duration time.Duration) {
	r.execDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// StoreOperation counts one store call.
func (r *Recorder) StoreOperation(op, result string) {
	r.storeOps.WithLabelValues(op, result).Inc()
}

// ObserveRequest records one HTTP request against its route pattern.
func (r *Recorder) ObserveRequest(method, route string, status int, duration time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
