// Package metrics exposes the service's Prometheus instrumentation. Collectors
// are registered on the default registry and served from /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_matches_evaluated_total",
		Help: "Matches that reached a terminal outcome, by result.",
	}, []string{"result"})

	EvaluationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_evaluation_failures_total",
		Help: "Matches forced into a penalty outcome by an evaluation failure.",
	})

	EndpointFetchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_endpoint_fetch_seconds",
		Help:    "Latency of team endpoint answer fetches, including degraded ones.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	JudgeCallSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_judge_call_seconds",
		Help:    "Latency of arbiter calls.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
	})

	BackgroundTaskFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_background_task_failures_total",
		Help: "Supervised background tasks that returned an error or panicked.",
	}, []string{"task"})

	RoundsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_rounds_completed_total",
		Help: "Rounds that reached completed status.",
	})
)
