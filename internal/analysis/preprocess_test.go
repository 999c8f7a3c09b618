package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func seriesOf(values ...float64) []Sample {
	out := make([]Sample, len(values))
	for i, v := range values {
		out[i] = V(v)
	}
	return out
}

func rampSeries(n int, start, step float64) []Sample {
	out := make([]Sample, n)
	for i := range out {
		out[i] = V(start + step*float64(i))
	}
	return out
}

func constantSeries(n int, value float64) []Sample {
	out := make([]Sample, n)
	for i := range out {
		out[i] = V(value)
	}
	return out
}

func TestPreprocessWithoutStreamsYieldsNilTimeline(t *testing.T) {
	tl, err := Preprocess(nil, "Run")
	require.NoError(t, err)
	require.Nil(t, tl)

	tl, err = Preprocess(StreamSet{ChannelHeartRate: seriesOf(120, 121)}, "Run")
	require.NoError(t, err)
	require.Nil(t, tl)
}

func TestPreprocessRejectsMisalignedChannels(t *testing.T) {
	_, err := Preprocess(StreamSet{
		ChannelTime:      seriesOf(0, 1, 2),
		ChannelHeartRate: seriesOf(120, 121),
	}, "Run")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "streams.heartrate", verr.Field)
}

func TestPreprocessDropsNonMonotonicTimestamps(t *testing.T) {
	tl, err := Preprocess(StreamSet{
		ChannelTime:     seriesOf(0, 1, 2, 2, 1, 3),
		ChannelVelocity: seriesOf(3, 3, 3, 3, 3, 3),
	}, "Run")
	require.NoError(t, err)
	require.NotNil(t, tl)

	require.Equal(t, 2, tl.DroppedTimestamps)
	require.Len(t, tl.Points, 4)
	require.Equal(t, 3, tl.Points[3].TimeS)
	require.NotEmpty(t, tl.Gaps)
}

func TestPreprocessExcludesImplausibleHeartRate(t *testing.T) {
	tl, err := Preprocess(StreamSet{
		ChannelTime:      seriesOf(0, 1, 2, 3),
		ChannelHeartRate: seriesOf(140, 500, 10, 141),
	}, "Run")
	require.NoError(t, err)

	require.Equal(t, 2, tl.ExcludedHRSamples)
	require.NotNil(t, tl.Points[0].HeartRate)
	require.Nil(t, tl.Points[1].HeartRate)
	require.Nil(t, tl.Points[2].HeartRate)
	require.NotNil(t, tl.Points[3].HeartRate)
	require.Contains(t, tl.Gaps[0], "excluded 2 implausible")
}

func TestPreprocessCarriesNullSamplesThrough(t *testing.T) {
	tl, err := Preprocess(StreamSet{
		ChannelTime:     seriesOf(0, 1, 2),
		ChannelVelocity: []Sample{V(3.0), Null, V(3.1)},
	}, "Run")
	require.NoError(t, err)

	require.NotNil(t, tl.Points[0].Velocity)
	require.Nil(t, tl.Points[1].Velocity)
	require.NotNil(t, tl.Points[2].Velocity)
}

func TestDetectStopsFindsIdleWindow(t *testing.T) {
	velocity := make([]Sample, 150)
	for i := range velocity {
		switch {
		case i >= 60 && i < 90:
			velocity[i] = V(0.1)
		default:
			velocity[i] = V(3.0)
		}
	}
	tl, err := Preprocess(StreamSet{
		ChannelTime:     rampSeries(150, 0, 1),
		ChannelVelocity: velocity,
	}, "Run")
	require.NoError(t, err)

	stops := DetectStops(tl)
	require.NotNil(t, stops)
	require.Equal(t, 1, stops.StopCount)
	require.Equal(t, 29, stops.Stops[0].DurationS)
	require.Equal(t, 60, stops.Stops[0].StartTimeS)
	require.Equal(t, 29, stops.LongestStopS)
}

func TestDetectStopsMergesNearbyWindows(t *testing.T) {
	velocity := make([]Sample, 160)
	for i := range velocity {
		switch {
		case i >= 60 && i < 80, i >= 83 && i < 103:
			velocity[i] = V(0.1)
		default:
			velocity[i] = V(3.0)
		}
	}
	tl, err := Preprocess(StreamSet{
		ChannelTime:     rampSeries(160, 0, 1),
		ChannelVelocity: velocity,
	}, "Run")
	require.NoError(t, err)

	stops := DetectStops(tl)
	require.NotNil(t, stops)
	require.Equal(t, 1, stops.StopCount)
	require.Equal(t, 42, stops.LongestStopS)
}

func TestDetectStopsIgnoresJitter(t *testing.T) {
	velocity := constantSeries(100, 3.0)
	for i := 40; i < 45; i++ {
		velocity[i] = V(0.1)
	}
	tl, err := Preprocess(StreamSet{
		ChannelTime:     rampSeries(100, 0, 1),
		ChannelVelocity: velocity,
	}, "Run")
	require.NoError(t, err)

	stops := DetectStops(tl)
	require.NotNil(t, stops)
	require.Equal(t, 0, stops.StopCount)
}

func TestDetectStopsWithoutVelocity(t *testing.T) {
	tl, err := Preprocess(StreamSet{
		ChannelTime:      rampSeries(30, 0, 1),
		ChannelHeartRate: constantSeries(30, 140),
	}, "Run")
	require.NoError(t, err)
	require.Nil(t, DetectStops(tl))
}
