// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksTotal counts scheduler tick runs.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kizuna_scheduler_ticks_total",
		Help: "Number of scheduler tick runs.",
	})

	// ChallengesGenerated counts persisted challenges by origin
	// (tick or manual).
	ChallengesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kizuna_challenges_generated_total",
		Help: "Number of challenges generated and persisted.",
	}, []string{"origin"})

	// GenerationFailures counts generator failures by reason
	// (timeout, unavailable, malformed).
	GenerationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kizuna_generation_failures_total",
		Help: "Number of content generation failures.",
	}, []string{"reason"})

	// GenerationDuration observes end-to-end generator call latency.
	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kizuna_generation_duration_seconds",
		Help:    "Latency of content generator calls.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 9),
	})

	// InvitesConsumed counts successful invite consumptions.
	InvitesConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kizuna_invites_consumed_total",
		Help: "Number of successfully consumed invites.",
	})

	// CompletionsRecorded counts completion records by resulting status.
	CompletionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kizuna_completions_recorded_total",
		Help: "Number of recorded challenge completions.",
	}, []string{"status"})
)
