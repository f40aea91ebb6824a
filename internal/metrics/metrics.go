// Package metrics exposes Prometheus instrumentation for solver runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for runs that did not fail.
const (
	OutcomeConverged    = "converged"
	OutcomeNotConverged = "not_converged"
	// OutcomeCompleted is used by methods that report no convergence flag.
	OutcomeCompleted = "completed"
)

// Registry holds all Prometheus metrics for the engine. A nil *Registry is
// valid and records nothing.
type Registry struct {
	registry *prometheus.Registry

	// Runs counts solver invocations by method and outcome.
	Runs *prometheus.CounterVec
	// Iterations observes the iteration count of successful runs.
	Iterations *prometheus.HistogramVec
	// Duration observes wall time per run in seconds.
	Duration *prometheus.HistogramVec
}

// New creates a registry with all engine metrics registered. Each call uses
// an independent prometheus.Registry so tests can create as many as needed.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepwise_runs_total",
				Help: "Total number of solver runs by method and outcome",
			},
			[]string{"method", "outcome"},
		),

		Iterations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stepwise_run_iterations",
				Help:    "Iterations performed per solver run",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000, 5000, 25000, 100000},
			},
			[]string{"method"},
		),

		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stepwise_run_duration_seconds",
				Help:    "Duration of each solver run in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"method"},
		),
	}

	r.registry.MustRegister(r.Runs, r.Iterations, r.Duration)
	return r
}

// Observe records one run. outcome is one of the Outcome constants or an
// error kind.
func (r *Registry) Observe(method, outcome string, iterations int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.Runs.WithLabelValues(method, outcome).Inc()
	r.Duration.WithLabelValues(method).Observe(elapsed.Seconds())
	if iterations >= 0 {
		r.Iterations.WithLabelValues(method).Observe(float64(iterations))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
