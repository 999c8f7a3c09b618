package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeRiskGreenByDefault(t *testing.T) {
	level, points, reasons := ComputeRisk(nil, nil)
	require.Equal(t, RiskGreen, level)
	require.Zero(t, points)
	require.Empty(t, reasons)
}

func TestComputeRiskSinglePointStaysGreen(t *testing.T) {
	level, points, _ := ComputeRisk([]Flag{FlagFatiguePossible}, nil)
	require.Equal(t, RiskGreen, level)
	require.Equal(t, 1, points)
}

func TestComputeRiskAmberFromModeratePain(t *testing.T) {
	level, points, reasons := ComputeRisk([]Flag{FlagPainReported}, nil)
	require.Equal(t, RiskAmber, level)
	require.Equal(t, 2, points)
	require.Contains(t, reasons[0], "pain_reported")
}

func TestComputeRiskRedFromSeverePain(t *testing.T) {
	level, points, _ := ComputeRisk([]Flag{FlagPainReported, FlagPainSevere}, nil)
	require.Equal(t, RiskRed, level)
	require.Equal(t, 6, points)
}

func TestComputeRiskRedFromIllness(t *testing.T) {
	level, points, _ := ComputeRisk([]Flag{FlagIllness}, nil)
	require.Equal(t, RiskRed, level)
	require.Equal(t, 4, points)
}

func TestComputeRiskLoadSpikePlusFatigue(t *testing.T) {
	level, points, _ := ComputeRisk([]Flag{FlagLoadSpike, FlagFatiguePossible}, nil)
	require.Equal(t, RiskRed, level)
	require.Equal(t, 4, points)
}

func TestComputeRiskPoorSleepHighRPE(t *testing.T) {
	sleep, rpe := 2, 9
	level, points, reasons := ComputeRisk(nil, &CheckIn{SleepQuality: &sleep, RPE: &rpe})
	require.Equal(t, RiskAmber, level)
	require.Equal(t, 2, points)
	require.Contains(t, reasons, "poor_sleep_high_rpe (+2)")

	restedSleep, easyRPE := 4, 9
	level, points, _ = ComputeRisk(nil, &CheckIn{SleepQuality: &restedSleep, RPE: &easyRPE})
	require.Equal(t, RiskGreen, level)
	require.Zero(t, points)
}

func TestComputeRiskIgnoresDataQualityFlags(t *testing.T) {
	level, points, _ := ComputeRisk([]Flag{FlagLowConfidenceHR, FlagLowConfidenceGPS, FlagIntensityTooHigh}, nil)
	require.Equal(t, RiskGreen, level)
	require.Zero(t, points)
}
