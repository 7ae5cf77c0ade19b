// Package metrics exposes pipeline counters and histograms to Prometheus.
// The orchestrator only sees the Recorder interface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels of a pipeline run.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder receives pipeline events.
type Recorder interface {
	ObserveStage(stage string, d time.Duration, failed bool)
	RunFinished(outcome string)
	Failure(stage, code string)
	Warnings(stage string, n int)
}

// PrometheusRecorder implements Recorder with promauto collectors.
type PrometheusRecorder struct {
	runs          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	warnings      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the pipeline collectors on reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics
// handler, or a fresh registry in tests.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_runs_total",
				Help: "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_failures_total",
				Help: "Total number of pipeline failures by stage and error code",
			},
			[]string{"stage", "error_code"},
		),
		warnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_soft_warnings_total",
				Help: "Total number of corrected float drifts and other soft warnings",
			},
			[]string{"stage"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"stage", "status"},
		),
	}
}

func (p *PrometheusRecorder) ObserveStage(stage string, d time.Duration, failed bool) {
	status := "ok"
	if failed {
		status = "failed"
	}
	p.stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

func (p *PrometheusRecorder) RunFinished(outcome string) {
	p.runs.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) Failure(stage, code string) {
	p.failures.WithLabelValues(stage, code).Inc()
}

func (p *PrometheusRecorder) Warnings(stage string, n int) {
	if n > 0 {
		p.warnings.WithLabelValues(stage).Add(float64(n))
	}
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) ObserveStage(string, time.Duration, bool) {}
func (NopRecorder) RunFinished(string)                       {}
func (NopRecorder) Failure(string, string)                   {}
func (NopRecorder) Warnings(string, int)                     {}
