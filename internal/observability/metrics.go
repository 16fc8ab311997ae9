package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	completionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "serenity",
		Subsystem: "progress",
		Name:      "exercise_completions_total",
		Help:      "Exercise completions recorded for the first time.",
	})
	duplicateCompletionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "serenity",
		Subsystem: "progress",
		Name:      "duplicate_exercise_completions_total",
		Help:      "Completion calls that hit an already-completed exercise.",
	})
	insightsGeneratedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "serenity",
		Subsystem: "insights",
		Name:      "generated_total",
		Help:      "Successful mood-insight generations, empty-data results included.",
	})
	insightsDeniedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "serenity",
		Subsystem: "insights",
		Name:      "rate_limited_total",
		Help:      "Insight requests denied by the per-user rate limiter.",
	})
	aggregationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "serenity",
		Subsystem: "aggregation",
		Name:      "run_duration_seconds",
		Help:      "Wall time of one daily aggregation run.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})
	aggregationLastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "serenity",
		Subsystem: "aggregation",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the last completed aggregation run.",
	})
	aggregationUserFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "serenity",
		Subsystem: "aggregation",
		Name:      "user_failures_total",
		Help:      "Users skipped during aggregation because of read/write errors.",
	})
)

func init() {
	prometheus.MustRegister(
		completionsTotal,
		duplicateCompletionsTotal,
		insightsGeneratedTotal,
		insightsDeniedTotal,
		aggregationDuration,
		aggregationLastRun,
		aggregationUserFailures,
	)
}

func RecordCompletion()          { completionsTotal.Inc() }
func RecordDuplicateCompletion() { duplicateCompletionsTotal.Inc() }
func RecordInsightsGenerated()   { insightsGeneratedTotal.Inc() }
func RecordInsightsDenied()      { insightsDeniedTotal.Inc() }

func ObserveAggregationRun(d time.Duration) {
	aggregationDuration.Observe(d.Seconds())
	aggregationLastRun.SetToCurrentTime()
}

func RecordAggregationUserFailure() { aggregationUserFailures.Inc() }
