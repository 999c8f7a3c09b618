package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func flagsOf(c flagContext) map[Flag]bool {
	out := make(map[Flag]bool)
	for _, f := range GenerateFlags(c) {
		out[f] = true
	}
	return out
}

func TestPainFlags(t *testing.T) {
	severe := 8
	got := flagsOf(flagContext{checkIn: &CheckIn{PainScore: &severe}})
	require.True(t, got[FlagPainReported])
	require.True(t, got[FlagPainSevere])

	moderate := 5
	got = flagsOf(flagContext{checkIn: &CheckIn{PainScore: &moderate}})
	require.True(t, got[FlagPainReported])
	require.False(t, got[FlagPainSevere])

	mild := 2
	got = flagsOf(flagContext{checkIn: &CheckIn{PainScore: &mild}})
	require.Empty(t, got)
}

func TestIllnessFlag(t *testing.T) {
	got := flagsOf(flagContext{checkIn: &CheckIn{Illness: true}})
	require.True(t, got[FlagIllness])

	got = flagsOf(flagContext{checkIn: &CheckIn{}})
	require.False(t, got[FlagIllness])
}

func TestLoadSpikeFlag(t *testing.T) {
	spiked := flagContext{baseline: HistoryBaseline{Load7dKm: 48, AvgWeeklyLoad28dKm: 30}}
	require.True(t, flagsOf(spiked)[FlagLoadSpike])

	normal := flagContext{baseline: HistoryBaseline{Load7dKm: 36, AvgWeeklyLoad28dKm: 30}}
	require.False(t, flagsOf(normal)[FlagLoadSpike])

	// Without a 28-day average the rule does not evaluate at all.
	empty := flagContext{baseline: HistoryBaseline{Load7dKm: 48}}
	require.Empty(t, flagsOf(empty))
}

func TestIntensityTooHighForEasy(t *testing.T) {
	c := flagContext{
		class: ClassEasy,
		zones: map[string]float64{"Z1": 7, "Z3": 3},
	}
	require.True(t, flagsOf(c)[FlagIntensityTooHigh])

	// Low confidence widens the threshold past the same share.
	c.conservative = true
	require.False(t, flagsOf(c)[FlagIntensityTooHigh])

	c.conservative = false
	c.class = ClassTempo
	c.summary.UserIntent = ""
	require.False(t, flagsOf(c)[FlagIntensityTooHigh])

	// An explicit easy intent triggers the check even when the classifier
	// settled on something else, including free-text tags.
	c.summary.UserIntent = "easy"
	require.True(t, flagsOf(c)[FlagIntensityTooHigh])

	c.summary.UserIntent = "Easy Run"
	require.True(t, flagsOf(c)[FlagIntensityTooHigh])
}

func TestFatigueFromHRDrift(t *testing.T) {
	drift := 6.0
	require.True(t, flagsOf(flagContext{hrDrift: &drift})[FlagFatiguePossible])

	mild := 4.0
	require.False(t, flagsOf(flagContext{hrDrift: &mild})[FlagFatiguePossible])
}

func TestFatigueFromEffortOutlier(t *testing.T) {
	baseline := HistoryBaseline{SampleCount: 10, EffortMean: 100, EffortStd: 10}

	require.True(t, flagsOf(flagContext{baseline: baseline, effort: 130})[FlagFatiguePossible])
	require.False(t, flagsOf(flagContext{baseline: baseline, effort: 115})[FlagFatiguePossible])
}

func TestLowConfidenceHRFlatline(t *testing.T) {
	tl := steadyTimeline(t, 300, 3.0, func(int) float64 { return 150 })
	require.True(t, flagsOf(flagContext{timeline: tl})[FlagLowConfidenceHR])

	wiggly := steadyTimeline(t, 300, 3.0, func(i int) float64 { return 148 + float64(i%5) })
	require.False(t, flagsOf(flagContext{timeline: wiggly})[FlagLowConfidenceHR])
}

func TestLowConfidenceHRJumps(t *testing.T) {
	tl := steadyTimeline(t, 300, 3.0, func(i int) float64 {
		if i%2 == 0 {
			return 100
		}
		return 180
	})
	require.True(t, flagsOf(flagContext{timeline: tl})[FlagLowConfidenceHR])
}

func TestLowConfidenceGPSSpikes(t *testing.T) {
	velocity := constantSeries(300, 3.0)
	for i := 20; i < 300; i += 20 {
		velocity[i] = V(25.0)
	}
	tl, err := Preprocess(StreamSet{
		ChannelTime:     rampSeries(300, 0, 1),
		ChannelVelocity: velocity,
	}, "Run")
	require.NoError(t, err)
	require.True(t, flagsOf(flagContext{timeline: tl})[FlagLowConfidenceGPS])

	clean, err := Preprocess(StreamSet{
		ChannelTime:     rampSeries(300, 0, 1),
		ChannelVelocity: constantSeries(300, 3.0),
	}, "Run")
	require.NoError(t, err)
	require.False(t, flagsOf(flagContext{timeline: clean})[FlagLowConfidenceGPS])
}

func TestFlagsKeepRuleOrder(t *testing.T) {
	pain := 8
	c := flagContext{
		checkIn:  &CheckIn{PainScore: &pain, Illness: true},
		baseline: HistoryBaseline{Load7dKm: 48, AvgWeeklyLoad28dKm: 30},
	}
	flags := GenerateFlags(c)
	require.Equal(t, []Flag{FlagLoadSpike, FlagPainReported, FlagPainSevere, FlagIllness}, flags)
}
