// Package baseline turns stored activity history into the immutable rolling
// baseline the analysis engine consumes. The engine itself never fetches
// history; the service layer builds the baseline per invocation and passes
// it in.
package baseline

import (
	"math"
	"sort"
	"time"

	"example.com/insight/internal/analysis"
)

// Rolling window sizes.
const (
	shortWindow = 7 * 24 * time.Hour
	longWindow  = 28 * 24 * time.Hour
)

// durationPercentile is the duration distribution cut used by the long-run
// classifier rule (top 20%).
const durationPercentile = 0.8

// Sample is the minimal projection of one historical activity.
type Sample struct {
	StartedAt   time.Time
	DistanceM   float64
	MovingTimeS int
	EffortScore *float64
}

// Build aggregates history into an analysis.HistoryBaseline as of the given
// instant. Activities outside the 28-day window and activities at or after
// asOf are ignored.
func Build(history []Sample, asOf time.Time) analysis.HistoryBaseline {
	var b analysis.HistoryBaseline

	var durations []float64
	var efforts []float64
	var dist28 float64

	for _, s := range history {
		if !s.StartedAt.Before(asOf) || s.StartedAt.Before(asOf.Add(-longWindow)) {
			continue
		}
		b.SampleCount++
		dist28 += s.DistanceM
		if s.MovingTimeS > 0 {
			durations = append(durations, float64(s.MovingTimeS))
		}
		if s.EffortScore != nil {
			efforts = append(efforts, *s.EffortScore)
		}
		if !s.StartedAt.Before(asOf.Add(-shortWindow)) {
			b.Load7dKm += s.DistanceM / 1000.0
		}
	}

	b.AvgWeeklyLoad28dKm = dist28 / 1000.0 / 4.0
	b.DurationP80S = percentile(durations, durationPercentile)
	b.EffortMean, b.EffortStd = meanStd(efforts)
	return b
}

// percentile returns the nearest-rank percentile, or zero for empty input.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return m, math.Sqrt(sq / float64(len(values)))
}
