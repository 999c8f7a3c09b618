package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// repSessionTimeline builds a warmup, six 60 s work reps at workSpeed with
// 60 s jogs at restSpeed between them, and a cooldown.
func repSessionTimeline(t *testing.T, workSpeed, restSpeed float64) *Timeline {
	t.Helper()
	n := 1260
	velocity := make([]Sample, n)
	hr := make([]Sample, n)
	for i := range velocity {
		speed := restSpeed
		if i >= 300 && i < 1020 {
			rep := (i - 300) / 120
			if rep < 6 && (i-300)%120 < 60 {
				speed = workSpeed
			}
		}
		velocity[i] = V(speed)
		if speed == workSpeed && workSpeed != restSpeed {
			hr[i] = V(172 + float64(i%3))
		} else {
			hr[i] = V(138 + float64(i%3))
		}
	}
	tl, err := Preprocess(StreamSet{
		ChannelTime:      rampSeries(n, 0, 1),
		ChannelVelocity:  velocity,
		ChannelHeartRate: hr,
	}, "Run")
	require.NoError(t, err)
	return tl
}

func TestDetectIntervalStructureFindsReps(t *testing.T) {
	tl := repSessionTimeline(t, 5.0, 2.0)

	structure := DetectIntervalStructure(tl)
	require.NotNil(t, structure)
	require.Equal(t, 6, structure.RepCount)
	require.Len(t, structure.Work, 6)
	require.Len(t, structure.Rest, 5)

	require.NotNil(t, structure.WarmupS)
	require.GreaterOrEqual(t, *structure.WarmupS, intervalMinWarmupS)
	require.NotNil(t, structure.CooldownS)

	first := structure.Work[0]
	require.InDelta(t, 5.0, first.AvgSpeedMPS, 0.3)
	require.NotNil(t, first.AvgHR)
	require.Greater(t, *first.AvgHR, 165.0)

	// True work:rest in the fixture is 360s:300s = 1.2; the centered
	// smoothing erodes labeled rest a little, so the ratio lands above it.
	require.NotNil(t, structure.WorkToRest)
	require.InDelta(t, 1.2, *structure.WorkToRest, 0.25)

	rest := structure.Rest[0]
	require.NotNil(t, rest.HRRecoveryBPM)
	require.Greater(t, *rest.HRRecoveryBPM, 20.0)
}

func TestDetectIntervalStructureRejectsSteadyRun(t *testing.T) {
	tl := steadyTimeline(t, 1200, 3.0, func(int) float64 { return 145 })
	require.Nil(t, DetectIntervalStructure(tl))
}

func TestDetectIntervalStructureRejectsShortStream(t *testing.T) {
	tl := steadyTimeline(t, 30, 3.0, func(int) float64 { return 145 })
	require.Nil(t, DetectIntervalStructure(tl))
}

func TestBimodalThresholdSeparatesClusters(t *testing.T) {
	speeds := make([]float64, 0, 200)
	for i := 0; i < 100; i++ {
		speeds = append(speeds, 2.0+float64(i%5)*0.02)
	}
	for i := 0; i < 100; i++ {
		speeds = append(speeds, 5.0+float64(i%5)*0.02)
	}

	threshold, ok := bimodalThreshold(speeds)
	require.True(t, ok)
	require.Greater(t, threshold, 2.1)
	require.Less(t, threshold, 4.9)
}

func TestBimodalThresholdRejectsUnimodal(t *testing.T) {
	speeds := make([]float64, 200)
	for i := range speeds {
		speeds[i] = 3.0 + float64(i%10)*0.01
	}
	_, ok := bimodalThreshold(speeds)
	require.False(t, ok)
}
