// Package metrics provides Prometheus metrics collection for the analysis
// suite. It tracks repetition throughput, discrimination scores and the
// durations of the expensive selection and training stages, exposed via the
// optional metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the analysis suite. It satisfies
// the runner's MetricsInterface.
type Metrics struct {
	// Repetition metrics
	RunsCompleted prometheus.Counter // repetitions that produced a RunRecord with an AUC
	RunsFailed    prometheus.Counter // repetitions recorded with an error marker
	AUCScores     prometheus.Histogram

	// Stage durations
	SelectionDuration prometheus.Histogram // feature-selection wall time per repetition
	TrainingDuration  prometheus.Histogram // ensemble-fit wall time per repetition
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for
// testing) so tests never pollute the global Prometheus registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		RunsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "runs_completed_total",
			Help: "Total number of repetitions that completed successfully",
		}),
		RunsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "runs_failed_total",
			Help: "Total number of repetitions recorded as failed",
		}),
		AUCScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "run_auc",
			Help:    "Distribution of per-repetition out-of-sample AUC scores",
			Buckets: prometheus.LinearBuckets(0.5, 0.05, 11),
		}),
		SelectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "selection_duration_seconds",
			Help:    "Feature selection duration per repetition in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Ensemble fit duration per repetition in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

// RunCompletedInc records a successful repetition.
func (m *Metrics) RunCompletedInc() { m.RunsCompleted.Inc() }

// RunFailedInc records a failed repetition.
func (m *Metrics) RunFailedInc() { m.RunsFailed.Inc() }

// AUCObserve records a per-repetition AUC score.
func (m *Metrics) AUCObserve(v float64) { m.AUCScores.Observe(v) }

// SelectionDurationObserve records a feature-selection duration in seconds.
func (m *Metrics) SelectionDurationObserve(v float64) { m.SelectionDuration.Observe(v) }

// TrainingDurationObserve records an ensemble-fit duration in seconds.
func (m *Metrics) TrainingDurationObserve(v float64) { m.TrainingDuration.Observe(v) }
