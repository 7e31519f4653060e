// Package observability exposes the service's Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	resolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repset",
		Subsystem: "resolver",
		Name:      "resolutions_total",
		Help:      "Exercise name resolutions by path taken.",
	}, []string{"path"})

	validationRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "repset",
		Subsystem: "pipeline",
		Name:      "validation_rejections_total",
		Help:      "Inputs rejected by the workout validator.",
	})

	pipelineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repset",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Pipeline runs by terminal outcome.",
	}, []string{"outcome"})

	stageSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "repset",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Wall time spent per pipeline stage.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(resolutionsTotal, validationRejections, pipelineRuns, stageSeconds)
}

// RecordResolution counts one resolved name by the path that settled it
// (semantic, lexical, llm_select, llm_create).
func RecordResolution(path string) {
	resolutionsTotal.WithLabelValues(path).Inc()
}

// RecordValidationRejection counts an input the validator turned away.
func RecordValidationRejection() {
	validationRejections.Inc()
}

// RecordRun counts a finished pipeline run by outcome (ok, rejected, failed).
func RecordRun(outcome string) {
	pipelineRuns.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, d time.Duration) {
	stageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}
