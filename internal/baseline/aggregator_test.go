package baseline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fp(v float64) *float64 { return &v }

func TestBuildEmptyHistory(t *testing.T) {
	b := Build(nil, time.Now())
	require.Zero(t, b.SampleCount)
	require.Zero(t, b.Load7dKm)
	require.Zero(t, b.DurationP80S)
	require.False(t, b.Sufficient())
}

func TestBuildWindowsHistory(t *testing.T) {
	asOf := time.Date(2026, time.August, 31, 8, 0, 0, 0, time.UTC)
	daysAgo := func(d int) time.Time { return asOf.AddDate(0, 0, -d) }

	history := []Sample{
		{StartedAt: daysAgo(1), DistanceM: 10000, MovingTimeS: 3000, EffortScore: fp(120)},
		{StartedAt: daysAgo(3), DistanceM: 8000, MovingTimeS: 2400, EffortScore: fp(100)},
		{StartedAt: daysAgo(10), DistanceM: 12000, MovingTimeS: 3600, EffortScore: fp(140)},
		{StartedAt: daysAgo(20), DistanceM: 6000, MovingTimeS: 1800},
		{StartedAt: daysAgo(40), DistanceM: 20000, MovingTimeS: 6000, EffortScore: fp(200)}, // outside 28 d
		{StartedAt: asOf, DistanceM: 5000, MovingTimeS: 1500},                              // the activity under analysis
	}

	b := Build(history, asOf)
	require.Equal(t, 4, b.SampleCount)
	require.InDelta(t, 18.0, b.Load7dKm, 0.001)
	require.InDelta(t, 9.0, b.AvgWeeklyLoad28dKm, 0.001)
	require.InDelta(t, 120.0, b.EffortMean, 0.001)
	require.Greater(t, b.EffortStd, 0.0)
}

func TestBuildDurationPercentileNearestRank(t *testing.T) {
	asOf := time.Date(2026, time.August, 31, 8, 0, 0, 0, time.UTC)

	var history []Sample
	for i := 1; i <= 10; i++ {
		history = append(history, Sample{
			StartedAt:   asOf.AddDate(0, 0, -i),
			DistanceM:   5000,
			MovingTimeS: i * 600, // 600..6000
		})
	}

	b := Build(history, asOf)
	require.Equal(t, 10, b.SampleCount)
	// Nearest rank at p80 over ten values picks the 8th.
	require.InDelta(t, 4800.0, b.DurationP80S, 0.001)
	require.True(t, b.Sufficient())
}
