// internal/scheduler/metrics.go

package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gratitude_dispatches_total",
			Help: "Per-user dispatch attempts by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	tickSkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gratitude_scheduler_tick_skips_total",
			Help: "Job runs skipped because the previous run of the same job was still in progress",
		},
		[]string{"job"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gratitude_job_duration_seconds",
			Help:    "Wall time of a single job run",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	promptFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gratitude_prompt_fallbacks_total",
			Help: "Ticks that used the default prompt because generation failed",
		},
	)
)

const (
	outcomeSent       = "sent"
	outcomeFailed     = "failed"
	outcomeUnrecorded = "unrecorded"
)
