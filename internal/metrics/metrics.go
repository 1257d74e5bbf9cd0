// Package metrics provides Prometheus metrics for optimizer runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry and the optimizer collectors.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	SolverAttempts *prometheus.CounterVec
	SolverDuration *prometheus.HistogramVec
	Candidates     prometheus.Histogram
	SelectedBets   prometheus.Histogram
	SubsetsScored  prometheus.Counter
	DrawsLoaded    prometheus.Gauge
	DrawFetches    *prometheus.CounterVec
}

// New registers every collector plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lotoqubo_budget_runs_total",
				Help: "Budget runs by outcome",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lotoqubo_budget_run_duration_seconds",
				Help:    "Wall time of one generate-formulate-solve cycle",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
			},
			[]string{"status"},
		),
		SolverAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lotoqubo_solver_attempts_total",
				Help: "Solver attempts by solver and result",
			},
			[]string{"solver", "result"},
		),
		SolverDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lotoqubo_solver_duration_seconds",
				Help:    "Latency of a single solver attempt",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
			},
			[]string{"solver"},
		),
		Candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lotoqubo_candidate_pool_size",
			Help:    "Candidates generated per budget",
			Buckets: []float64{0, 10, 25, 50, 75, 100, 150, 200},
		}),
		SelectedBets: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lotoqubo_selected_bets",
			Help:    "Bets in the final portfolio",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 50},
		}),
		SubsetsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lotoqubo_subsets_scored_total",
			Help: "15-number sub-combinations scored for larger bets",
		}),
		DrawsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lotoqubo_draws_loaded",
			Help: "Historical draws in the current dataset",
		}),
		DrawFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lotoqubo_draw_fetches_total",
				Help: "Draw source fetches by outcome",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RunsTotal,
		m.RunDuration,
		m.SolverAttempts,
		m.SolverDuration,
		m.Candidates,
		m.SelectedBets,
		m.SubsetsScored,
		m.DrawsLoaded,
		m.DrawFetches,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRun records one finished budget run.
func (m *Metrics) ObserveRun(status string, d time.Duration, candidates, selected int) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues(status).Observe(d.Seconds())
	m.Candidates.Observe(float64(candidates))
	m.SelectedBets.Observe(float64(selected))
}

// ObserveSolver records one solver attempt. It matches the solver chain's
// attempt callback.
func (m *Metrics) ObserveSolver(solver string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SolverAttempts.WithLabelValues(solver, result).Inc()
	m.SolverDuration.WithLabelValues(solver).Observe(d.Seconds())
}

// ObserveSubsets matches the scorer's subset observer.
func (m *Metrics) ObserveSubsets(n int) {
	if m == nil {
		return
	}
	m.SubsetsScored.Add(float64(n))
}

// ObserveFetch records a draw source fetch.
func (m *Metrics) ObserveFetch(draws int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.DrawFetches.WithLabelValues("error").Inc()
		return
	}
	m.DrawFetches.WithLabelValues("ok").Inc()
	m.DrawsLoaded.Set(float64(draws))
}
