package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyUserIntentOverrides(t *testing.T) {
	c := classifierContext{summary: ActivitySummary{UserIntent: "race", MovingTimeS: 3000}}
	require.Equal(t, ClassRace, Classify(c))

	c.summary.UserIntent = "recovery"
	require.Equal(t, ClassRecovery, Classify(c))

	c.summary.UserIntent = "commute"
	require.Equal(t, ClassUnknown, Classify(c))
}

func TestClassifyNormalizesFreeTextIntents(t *testing.T) {
	cases := map[string]Class{
		"Easy Run":          ClassEasy,
		"Long Run":          ClassLong,
		"  Race Day ":       ClassRace,
		"Hill repeats":      ClassHills,
		"Threshold session": ClassTempo,
		"Track workout":     ClassIntervals,
		"Recovery jog":      ClassRecovery,
	}
	for intent, want := range cases {
		c := classifierContext{summary: ActivitySummary{UserIntent: intent, MovingTimeS: 3000}}
		require.Equalf(t, want, Classify(c), "intent %q", intent)
	}
}

func TestClassifyIntervalsNeedsStructureAndVariability(t *testing.T) {
	c := classifierContext{
		summary:    ActivitySummary{MovingTimeS: 2400},
		intervals:  &IntervalStructure{RepCount: 5},
		paceVar:    fp(32),
		hasStreams: true,
	}
	require.Equal(t, ClassIntervals, Classify(c))

	c.paceVar = fp(12)
	require.NotEqual(t, ClassIntervals, Classify(c))

	c.paceVar = fp(32)
	c.hasStreams = false
	require.NotEqual(t, ClassIntervals, Classify(c))
}

func TestClassifyTempoFromSteadyZone3(t *testing.T) {
	tl := steadyTimeline(t, 1500, 3.5, func(i int) float64 { return 140 + float64(i%3) })

	c := classifierContext{
		summary:    ActivitySummary{MovingTimeS: 1500},
		timeline:   tl,
		paceVar:    fp(4),
		maxHR:      190,
		hasStreams: true,
	}
	require.Equal(t, ClassTempo, Classify(c))
}

func TestClassifyTempoDeclinesConservatively(t *testing.T) {
	// Zone 3 is not enough on low-confidence data; zone 4 still is.
	tl := steadyTimeline(t, 1500, 3.5, func(i int) float64 { return 140 + float64(i%3) })
	c := classifierContext{
		summary:      ActivitySummary{MovingTimeS: 1500},
		timeline:     tl,
		paceVar:      fp(4),
		maxHR:        190,
		hasStreams:   true,
		conservative: true,
	}
	require.NotEqual(t, ClassTempo, Classify(c))

	hot := steadyTimeline(t, 1500, 3.5, func(i int) float64 { return 160 + float64(i%3) })
	c.timeline = hot
	require.Equal(t, ClassTempo, Classify(c))
}

func TestClassifyLongAgainstBaselinePercentile(t *testing.T) {
	baseline := HistoryBaseline{SampleCount: 10, DurationP80S: 3600}

	c := classifierContext{summary: ActivitySummary{MovingTimeS: 3700}, baseline: baseline}
	require.Equal(t, ClassLong, Classify(c))

	c.summary.MovingTimeS = 3500
	require.NotEqual(t, ClassLong, Classify(c))
}

func TestClassifyLongFallbackWithThinHistory(t *testing.T) {
	c := classifierContext{summary: ActivitySummary{MovingTimeS: 4600}}
	require.Equal(t, ClassLong, Classify(c))

	c.summary.MovingTimeS = 4400
	require.NotEqual(t, ClassLong, Classify(c))
}

func TestClassifyHillsFromSummaryNeedsClearGain(t *testing.T) {
	c := classifierContext{summary: ActivitySummary{
		MovingTimeS: 3000,
		DistanceM:   10000,
		ElevGainM:   350, // 35 m/km, past the summary-only bar
	}}
	require.Equal(t, ClassHills, Classify(c))

	c.summary.ElevGainM = 250 // hilly but not clear-cut without a grade stream
	require.NotEqual(t, ClassHills, Classify(c))
}

func TestClassifyEasyFromLowRPE(t *testing.T) {
	rpe := 2
	c := classifierContext{
		summary: ActivitySummary{MovingTimeS: 3000},
		checkIn: &CheckIn{RPE: &rpe},
	}
	require.Equal(t, ClassEasy, Classify(c))
}

func TestClassifyEasyFromZonesAndVariability(t *testing.T) {
	c := classifierContext{
		summary: ActivitySummary{MovingTimeS: 3000},
		paceVar: fp(8),
		zones:   map[string]float64{"Z1": 20, "Z2": 20, "Z3": 5},
	}
	require.Equal(t, ClassEasy, Classify(c))

	c.zones = map[string]float64{"Z1": 10, "Z3": 30}
	require.NotEqual(t, ClassEasy, Classify(c))
}

func TestClassifyRecoveryNeedsShortDurationAndHighLoad(t *testing.T) {
	rpe := 2
	c := classifierContext{
		summary: ActivitySummary{MovingTimeS: 1800},
		checkIn: &CheckIn{RPE: &rpe},
		baseline: HistoryBaseline{
			SampleCount:        10,
			Load7dKm:           50,
			AvgWeeklyLoad28dKm: 40,
		},
	}
	require.Equal(t, ClassRecovery, Classify(c))

	c.baseline.Load7dKm = 40 // normal week: same session is just easy
	require.Equal(t, ClassEasy, Classify(c))

	c.baseline.Load7dKm = 50
	c.summary.MovingTimeS = 3000 // too long for a recovery spin
	require.Equal(t, ClassEasy, Classify(c))
}

func TestClassifyUnknownWithoutEvidence(t *testing.T) {
	c := classifierContext{summary: ActivitySummary{MovingTimeS: 3000}}
	require.Equal(t, ClassUnknown, Classify(c))
}
