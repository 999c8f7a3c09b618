package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssessCoverageSummaryOnly(t *testing.T) {
	in := Input{Summary: ActivitySummary{MovingTimeS: 3000}}

	cov := assessCoverage(in, nil)
	require.Equal(t, ConfidenceLow, cov.level)
	require.Contains(t, cov.reasons, reasonNoStreams)
	require.Contains(t, cov.reasons, reasonNoHeartRate)
	require.Contains(t, cov.reasons, reasonThinBaseline)
	require.Contains(t, cov.reasons, reasonNoCheckIn)
}

func TestAssessCoverageFullInput(t *testing.T) {
	tl := steadyTimeline(t, 600, 3.0, func(int) float64 { return 145 })
	in := Input{
		Summary:  ActivitySummary{MovingTimeS: 600},
		Baseline: HistoryBaseline{SampleCount: 10},
		CheckIn:  &CheckIn{},
	}

	cov := assessCoverage(in, tl)
	require.Equal(t, ConfidenceHigh, cov.level)
	require.Empty(t, cov.reasons)
}

func TestAssessCoverageMissingCheckInStaysHigh(t *testing.T) {
	tl := steadyTimeline(t, 600, 3.0, func(int) float64 { return 145 })
	in := Input{
		Summary:  ActivitySummary{MovingTimeS: 600},
		Baseline: HistoryBaseline{SampleCount: 10},
	}

	cov := assessCoverage(in, tl)
	require.Equal(t, ConfidenceHigh, cov.level)
	require.Equal(t, []string{reasonNoCheckIn}, cov.reasons)
}

func TestAssessCoverageNoGPSIsMedium(t *testing.T) {
	tl, err := Preprocess(StreamSet{
		ChannelTime:      rampSeries(600, 0, 1),
		ChannelHeartRate: constantSeries(600, 145),
	}, "Run")
	require.NoError(t, err)

	in := Input{
		Summary:  ActivitySummary{MovingTimeS: 600},
		Baseline: HistoryBaseline{SampleCount: 10},
	}
	cov := assessCoverage(in, tl)
	require.Equal(t, ConfidenceMedium, cov.level)
	require.Contains(t, cov.reasons, reasonNoGPS)
}

func TestAssessCoverageThinBaselineForcesLow(t *testing.T) {
	tl := steadyTimeline(t, 600, 3.0, func(int) float64 { return 145 })
	in := Input{
		Summary:  ActivitySummary{MovingTimeS: 600},
		Baseline: HistoryBaseline{SampleCount: 3},
		CheckIn:  &CheckIn{},
	}

	cov := assessCoverage(in, tl)
	require.Equal(t, ConfidenceLow, cov.level)
	require.Contains(t, cov.reasons, reasonThinBaseline)
}

func TestFinalizeConfidenceCapsOnDataQualityFlags(t *testing.T) {
	cov := coverage{level: ConfidenceHigh}

	level, _ := finalizeConfidence(cov, ClassEasy, []Flag{FlagLowConfidenceHR}, true)
	require.Equal(t, ConfidenceMedium, level)

	level, _ = finalizeConfidence(cov, ClassEasy, nil, true)
	require.Equal(t, ConfidenceHigh, level)
}

func TestFinalizeConfidenceSummaryOnlyVerdicts(t *testing.T) {
	cov := coverage{level: ConfidenceMedium}

	level, reasons := finalizeConfidence(cov, ClassTempo, nil, false)
	require.Equal(t, ConfidenceLow, level)
	require.Contains(t, reasons, reasonSummaryVerdict)

	// Long and easy verdicts are summary-safe.
	level, reasons = finalizeConfidence(cov, ClassLong, nil, false)
	require.Equal(t, ConfidenceMedium, level)
	require.NotContains(t, reasons, reasonSummaryVerdict)
}
