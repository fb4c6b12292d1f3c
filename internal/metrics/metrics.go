// Package metrics records per-action operation counts and latencies for
// the credential store and exposes them in Prometheus text format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so several instances can coexist in
// one process, e.g. in tests.
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	presence   *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its metrics registered.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "securestore_operations_total",
				Help: "Total number of credential operations by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "securestore_operation_duration_seconds",
				Help:    "Duration of credential operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"action"},
		),
		presence: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "securestore_presence_checks_total",
				Help: "Total number of user presence checks by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveOperation records one finished operation. A nil Recorder is a no-op.
func (r *Recorder) ObserveOperation(action, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(action, outcome).Inc()
	r.duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// ObservePresence records the result of one presence check.
func (r *Recorder) ObservePresence(ok bool) {
	if r == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	r.presence.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
