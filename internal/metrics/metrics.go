// Package metrics exposes Prometheus collectors for sweeps and oracle calls.
package metrics

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/cwbudde/gbseg/internal/segregation"
	"github.com/cwbudde/gbseg/internal/thermo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gbseg"

// Metrics holds the collectors on a private registry. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	oracleEvaluations *prometheus.CounterVec
	oracleDuration    prometheus.Histogram

	steps         *prometheus.CounterVec
	residualScore prometheus.Histogram

	sweeps        *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	activeSweeps  prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		oracleEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "oracle_evaluations_total",
				Help:      "Equilibrium evaluations by result",
			},
			[]string{"result"},
		),
		oracleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "oracle_evaluation_duration_seconds",
				Help:      "Duration of single equilibrium evaluations",
				Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 12),
			},
		),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Temperature steps by outcome",
			},
			[]string{"status", "seed"},
		),
		residualScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "residual_score",
				Help:      "Final residual J of finite temperature steps",
				Buckets:   prometheus.ExponentialBuckets(1e-8, 10, 14),
			},
		),
		sweeps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_total",
				Help:      "Completed sweeps by result",
			},
			[]string{"result"},
		),
		sweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of whole sweeps",
				Buckets:   prometheus.ExponentialBuckets(0.1, 4, 10),
			},
		),
		activeSweeps: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sweeps",
				Help:      "Sweeps currently running",
			},
		),
	}

	registry.MustRegister(
		m.oracleEvaluations,
		m.oracleDuration,
		m.steps,
		m.residualScore,
		m.sweeps,
		m.sweepDuration,
		m.activeSweeps,
	)
	return m
}

// Observer returns a step observer recording outcomes and scores.
func (m *Metrics) Observer() segregation.Observer {
	return func(ev segregation.StepEvent) {
		m.RecordStep(ev.Outcome)
	}
}

// RecordStep records one temperature step.
func (m *Metrics) RecordStep(o segregation.Outcome) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(o.Status.String(), o.Seed.String()).Inc()
	if !math.IsInf(o.Score, 0) && !math.IsNaN(o.Score) {
		m.residualScore.Observe(o.Score)
	}
}

// SweepStarted marks a sweep as running. Call the returned function with
// the sweep error when it ends.
func (m *Metrics) SweepStarted() func(err error) {
	if m == nil {
		return func(error) {}
	}
	start := time.Now()
	m.activeSweeps.Inc()
	return func(err error) {
		m.activeSweeps.Dec()
		m.sweeps.WithLabelValues(sweepResult(err)).Inc()
		m.sweepDuration.Observe(time.Since(start).Seconds())
	}
}

func sweepResult(err error) string {
	var cfgErr *thermo.ConfigurationError
	var refErr *thermo.ReferenceError
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &cfgErr):
		return "configuration_error"
	case errors.As(err, &refErr):
		return "reference_error"
	default:
		return "failed"
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
