package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "insight_service",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity persisted to Postgres.",
	})
	insightPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "insight_service",
		Subsystem: "persistence",
		Name:      "last_insight_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent insight persisted to Postgres.",
	})
	analysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insight_service",
		Subsystem: "engine",
		Name:      "analyses_total",
		Help:      "Completed analyses partitioned by assigned activity class.",
	}, []string{"class"})
	flagsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insight_service",
		Subsystem: "engine",
		Name:      "flags_total",
		Help:      "Safety and data-quality flags raised across all analyses.",
	}, []string{"flag"})
	analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "insight_service",
		Subsystem: "engine",
		Name:      "analysis_duration_seconds",
		Help:      "Wall time of one end-to-end activity analysis.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, insightPersistGauge, analysesTotal, flagsTotal, analysisDuration)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordInsightPersisted updates the insight watermark gauge.
func RecordInsightPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	insightPersistGauge.Set(float64(ts.Unix()))
}

// RecordAnalysis counts a completed analysis and the flags it raised.
func RecordAnalysis(class string, flags []string, elapsed time.Duration) {
	analysesTotal.WithLabelValues(class).Inc()
	for _, flag := range flags {
		flagsTotal.WithLabelValues(flag).Inc()
	}
	analysisDuration.Observe(elapsed.Seconds())
}
