package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func distanceTimeline(t *testing.T, n int, metersPerSecond float64) *Timeline {
	t.Helper()
	tl, err := Preprocess(StreamSet{
		ChannelTime:     rampSeries(n, 0, 1),
		ChannelDistance: rampSeries(n, 0, metersPerSecond),
		ChannelVelocity: constantSeries(n, metersPerSecond),
	}, "Run")
	require.NoError(t, err)
	return tl
}

func TestBuildSplitsRequiresTwoPoints(t *testing.T) {
	require.Nil(t, BuildSplits(nil))
	require.Nil(t, BuildSplits(&Timeline{Points: []Point{{TimeS: 0}}}))
}

func TestBuildSplitsByDistance(t *testing.T) {
	tl := distanceTimeline(t, 1061, 5.0) // 5300 m over 1060 s

	splits := BuildSplits(tl)
	require.Len(t, splits, 6)

	for i, s := range splits[:5] {
		require.Equal(t, i+1, s.Index)
		require.Equal(t, SplitDistance, s.Type)
		require.InDelta(t, 1000.0, s.DistanceM, 10)
		require.NotNil(t, s.PaceSPerKM)
		require.InDelta(t, 200.0, *s.PaceSPerKM, 5)
	}

	tail := splits[5]
	require.InDelta(t, 300.0, tail.DistanceM, 10)
}

func TestBuildSplitsMergesShortTail(t *testing.T) {
	tl := distanceTimeline(t, 1021, 5.0) // 5100 m: 100 m tail folds into split 5

	splits := BuildSplits(tl)
	require.Len(t, splits, 5)
	require.InDelta(t, 1100.0, splits[4].DistanceM, 10)
}

func TestBuildSplitsFallsBackToTime(t *testing.T) {
	tl, err := Preprocess(StreamSet{
		ChannelTime:     rampSeries(700, 0, 1),
		ChannelVelocity: constantSeries(700, 3.0),
	}, "Run")
	require.NoError(t, err)

	splits := BuildSplits(tl)
	require.Len(t, splits, 3)
	for _, s := range splits {
		require.Equal(t, SplitTime, s.Type)
	}
	require.InDelta(t, 300.0, splits[0].DurationS, 1)
	require.InDelta(t, 99.0, splits[2].DurationS, 1)
	require.Nil(t, splits[0].PaceSPerKM)
}

func TestBuildSplitsIgnoresDecreasingDistance(t *testing.T) {
	distance := rampSeries(700, 0, 5.0)
	distance[400] = V(100) // GPS rollback makes the channel unreliable

	tl, err := Preprocess(StreamSet{
		ChannelTime:     rampSeries(700, 0, 1),
		ChannelDistance: distance,
	}, "Run")
	require.NoError(t, err)

	splits := BuildSplits(tl)
	require.NotEmpty(t, splits)
	require.Equal(t, SplitTime, splits[0].Type)
}

func TestSplitAggregatesChannels(t *testing.T) {
	n := 400
	tl, err := Preprocess(StreamSet{
		ChannelTime:      rampSeries(n, 0, 1),
		ChannelDistance:  rampSeries(n, 0, 3.0),
		ChannelHeartRate: constantSeries(n, 142),
		ChannelAltitude:  rampSeries(n, 100, 0.05),
	}, "Run")
	require.NoError(t, err)

	splits := BuildSplits(tl)
	require.NotEmpty(t, splits)
	first := splits[0]
	require.NotNil(t, first.AvgHR)
	require.InDelta(t, 142.0, *first.AvgHR, 0.5)
	require.NotNil(t, first.ElevGainM)
	require.Greater(t, *first.ElevGainM, 10.0)
}
