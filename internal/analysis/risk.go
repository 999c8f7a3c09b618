package analysis

import "fmt"

// Additive risk points per flag. Levels: green 0-1, amber 2-3, red 4+.
var riskFlagPoints = []struct {
	flag   Flag
	points int
}{
	{FlagLoadSpike, 3},
	{FlagFatiguePossible, 1},
	{FlagPainReported, 2},
	{FlagPainSevere, 4},
	{FlagIllness, 4},
}

const (
	riskAmberMin = 2
	riskRedMin   = 4
	// Poor sleep combined with very high perceived effort.
	riskPoorSleepMax = 2
	riskHighRPEMin   = 8
)

// ComputeRisk turns flags and check-in context into a deterministic
// stop/caution/go verdict for the downstream advice layer.
func ComputeRisk(flags []Flag, checkIn *CheckIn) (RiskLevel, int, []string) {
	points := 0
	var reasons []string

	has := func(f Flag) bool {
		for _, raised := range flags {
			if raised == f {
				return true
			}
		}
		return false
	}

	for _, entry := range riskFlagPoints {
		if has(entry.flag) {
			points += entry.points
			reasons = append(reasons, fmt.Sprintf("%s (+%d)", entry.flag, entry.points))
		}
	}

	if checkIn != nil && checkIn.SleepQuality != nil && checkIn.RPE != nil &&
		*checkIn.SleepQuality <= riskPoorSleepMax && *checkIn.RPE >= riskHighRPEMin {
		points += 2
		reasons = append(reasons, "poor_sleep_high_rpe (+2)")
	}

	level := RiskGreen
	switch {
	case points >= riskRedMin:
		level = RiskRed
	case points >= riskAmberMin:
		level = RiskAmber
	}
	return level, points, reasons
}
