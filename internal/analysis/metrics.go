package analysis

import (
	"fmt"
	"math"
)

// Heart-rate zones are percentages of max HR: Z1 starts at 50%, each zone is
// a 10% band, Z5 tops out at max. Weights are the per-zone minutes
// multiplier of the effort score.
var (
	zoneFloors  = [5]float64{0.5, 0.6, 0.7, 0.8, 0.9}
	zoneWeights = [5]float64{1, 2, 3, 4, 5}
	zoneKeys    = [5]string{"Z1", "Z2", "Z3", "Z4", "Z5"}
)

// Effort multipliers applied to moving minutes when no heart-rate signal
// exists at all.
var classIntensity = map[Class]float64{
	ClassEasy:      1.0,
	ClassRecovery:  0.8,
	ClassTempo:     2.0,
	ClassIntervals: 2.5,
	ClassRace:      3.0,
	ClassHills:     1.5,
	ClassLong:      1.2,
	ClassUnknown:   1.0,
}

// Pace variability needs this many moving velocity samples before the raw
// stream is trusted over splits.
const minVelocitySamplesForCV = 60

// Velocity below this does not count as moving for metric purposes.
const minMovingVelocityMPS = 0.5

// HR drift tunables: the steady-state segment must span at least this long,
// with velocity within the band around the activity's moving average.
const (
	steadyStateMinDurationS = 1200
	steadyStateVelocityBand = 0.10
)

// Efficiency tunables.
const (
	efficiencyWindowS      = 180 // best-sustained rolling window
	efficiencyCurveWindowS = 60
	efficiencyCurveStride  = 10
	efficiencyMinSamples   = 180
	efficiencyMinVelocity  = 0.8
	efficiencyMinHR        = 40.0
)

// zoneOf returns the 1-based zone for a heart rate, or 0 below the Z1 floor.
func zoneOf(hr, maxHR float64) int {
	zone := 0
	for i, floor := range zoneFloors {
		if hr >= floor*maxHR {
			zone = i + 1
		}
	}
	return zone
}

// TimeInZones buckets minutes per heart-rate zone. Raw samples win; split
// averages approximate when the raw channel is missing; the summary average
// heart rate approximates last. Returns nil plus a reason when there is no
// heart-rate signal at all.
func TimeInZones(tl *Timeline, splits []Split, summary ActivitySummary, maxHR float64) (map[string]float64, string) {
	if tl.HasChannel(ChannelHeartRate) {
		return zonesFromPoints(tl.Points, maxHR), ""
	}

	if zones := zonesFromSplits(splits, maxHR); zones != nil {
		return zones, ""
	}

	if summary.AvgHR != nil && *summary.AvgHR > 0 {
		zones := emptyZones()
		if z := zoneOf(*summary.AvgHR, maxHR); z > 0 {
			zones[zoneKeys[z-1]] = float64(summary.MovingTimeS) / 60.0
		}
		return zones, ""
	}

	return nil, "time_in_zones: no heart-rate signal"
}

func emptyZones() map[string]float64 {
	zones := make(map[string]float64, 5)
	for _, key := range zoneKeys {
		zones[key] = 0
	}
	return zones
}

func zonesFromPoints(points []Point, maxHR float64) map[string]float64 {
	zones := emptyZones()
	for i := 1; i < len(points); i++ {
		hr := points[i].HeartRate
		if hr == nil {
			continue
		}
		dt := points[i].TimeS - points[i-1].TimeS
		if dt <= 0 {
			continue
		}
		if z := zoneOf(*hr, maxHR); z > 0 {
			zones[zoneKeys[z-1]] += float64(dt) / 60.0
		}
	}
	return zones
}

func zonesFromSplits(splits []Split, maxHR float64) map[string]float64 {
	any := false
	zones := emptyZones()
	for _, s := range splits {
		if s.AvgHR == nil {
			continue
		}
		any = true
		if z := zoneOf(*s.AvgHR, maxHR); z > 0 {
			zones[zoneKeys[z-1]] += s.DurationS / 60.0
		}
	}
	if !any {
		return nil
	}
	return zones
}

// EffortScore is the zone-weighted training impulse: minutes in zone times
// the zone weight. Without any zone data it falls back to moving minutes
// times a per-class intensity multiplier.
func EffortScore(zones map[string]float64, movingTimeS int, class Class) float64 {
	minutes := float64(movingTimeS) / 60.0
	if zones != nil {
		var score float64
		for i, key := range zoneKeys {
			score += zones[key] * zoneWeights[i]
		}
		return round1(score)
	}

	mult, ok := classIntensity[class]
	if !ok {
		mult = classIntensity[ClassUnknown]
	}
	return round1(minutes * mult)
}

// PaceVariability is the coefficient of variation of per-split pace, or of
// the moving portion of the raw velocity stream when fewer than two splits
// exist, expressed as a percentage.
func PaceVariability(splits []Split, tl *Timeline) (*float64, string) {
	var paces []float64
	for _, s := range splits {
		if s.PaceSPerKM != nil {
			paces = append(paces, *s.PaceSPerKM)
		}
	}
	if len(paces) >= 2 {
		cv := round2(coefficientOfVariation(paces))
		return &cv, ""
	}

	var velocities []float64
	if tl != nil {
		for i := range tl.Points {
			if v := tl.Points[i].Velocity; v != nil && *v > minMovingVelocityMPS {
				velocities = append(velocities, *v)
			}
		}
	}
	if len(velocities) >= minVelocitySamplesForCV {
		cv := round2(coefficientOfVariation(velocities))
		return &cv, ""
	}

	return nil, "pace_variability: insufficient pace data"
}

// HRDrift compares the speed-to-heart-rate ratio of the first and second
// half of the longest steady-state segment. Nil unless a segment of at least
// steadyStateMinDurationS with heart-rate coverage exists.
func HRDrift(tl *Timeline) (*float64, string) {
	if tl == nil || !tl.HasChannel(ChannelVelocity) || !tl.HasChannel(ChannelHeartRate) {
		return nil, "hr_drift: requires velocity and heart-rate streams"
	}

	meanV := movingMeanVelocity(tl.Points)
	if meanV <= 0 {
		return nil, "hr_drift: no moving velocity samples"
	}

	start, end := longestSteadyRun(tl.Points, meanV)
	if start < 0 || tl.Points[end].TimeS-tl.Points[start].TimeS < steadyStateMinDurationS {
		return nil, fmt.Sprintf("hr_drift: longest steady-state segment under %d min", steadyStateMinDurationS/60)
	}

	seg := tl.Points[start : end+1]
	mid := len(seg) / 2
	efFirst := efficiencyFactor(seg[:mid])
	efSecond := efficiencyFactor(seg[mid:])
	if efFirst == 0 || efSecond == 0 {
		return nil, "hr_drift: sparse heart-rate coverage in steady segment"
	}

	drift := round2((1 - efSecond/efFirst) * 100)
	return &drift, ""
}

func movingMeanVelocity(points []Point) float64 {
	var sum float64
	var n int
	for i := range points {
		if v := points[i].Velocity; v != nil && *v > minMovingVelocityMPS {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// longestSteadyRun finds the longest contiguous index range whose velocity
// stays within the steady band around meanV. Returns (-1, -1) if none.
func longestSteadyRun(points []Point, meanV float64) (int, int) {
	bestStart, bestEnd := -1, -1
	runStart := -1

	inBand := func(p Point) bool {
		if p.Velocity == nil {
			return false
		}
		ratio := *p.Velocity / meanV
		return ratio >= 1-steadyStateVelocityBand && ratio <= 1+steadyStateVelocityBand
	}

	for i := range points {
		if inBand(points[i]) {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			if bestStart < 0 || points[i-1].TimeS-points[runStart].TimeS > points[bestEnd].TimeS-points[bestStart].TimeS {
				bestStart, bestEnd = runStart, i-1
			}
			runStart = -1
		}
	}
	if runStart >= 0 {
		last := len(points) - 1
		if bestStart < 0 || points[last].TimeS-points[runStart].TimeS > points[bestEnd].TimeS-points[bestStart].TimeS {
			bestStart, bestEnd = runStart, last
		}
	}
	return bestStart, bestEnd
}

// efficiencyFactor is mean velocity divided by mean heart rate over the
// moving, HR-covered points of a segment.
func efficiencyFactor(points []Point) float64 {
	var sumV, sumHR float64
	var n int
	for i := range points {
		p := points[i]
		if p.Velocity == nil || p.HeartRate == nil || *p.Velocity <= minMovingVelocityMPS {
			continue
		}
		sumV += *p.Velocity
		sumHR += *p.HeartRate
		n++
	}
	if n == 0 || sumHR == 0 {
		return 0
	}
	return (sumV / float64(n)) / (sumHR / float64(n))
}

// ComputeEfficiency builds the rolling speed-to-heart-rate curve. Values are
// metres per minute per bpm; stopped or HR-less points contribute zero so
// that "best sustained" penalizes interruptions.
func ComputeEfficiency(tl *Timeline) (*EfficiencyAnalysis, string) {
	if tl == nil || !tl.HasChannel(ChannelVelocity) || !tl.HasChannel(ChannelHeartRate) {
		return nil, "efficiency: requires velocity and heart-rate streams"
	}
	points := tl.Points
	if len(points) < efficiencyMinSamples {
		return nil, "efficiency: stream too short"
	}

	raw := make([]float64, len(points))
	var validSum float64
	var validN int
	for i := range points {
		p := points[i]
		if p.Velocity != nil && p.HeartRate != nil && *p.Velocity > efficiencyMinVelocity && *p.HeartRate > efficiencyMinHR {
			raw[i] = (*p.Velocity * 60.0) / *p.HeartRate
			validSum += raw[i]
			validN++
		}
	}
	if validN < minVelocitySamplesForCV {
		return nil, "efficiency: too few moving samples with heart rate"
	}

	out := &EfficiencyAnalysis{Average: round2(validSum / float64(validN))}

	best := 0.0
	for _, v := range rollingMean(raw, efficiencyWindowS) {
		if v > best {
			best = v
		}
	}
	if best == 0 {
		best = out.Average
	}
	out.BestSustained = round2(best)

	curve := rollingMeanCentered(raw, efficiencyCurveWindowS)
	for i := 0; i < len(curve); i += efficiencyCurveStride {
		out.Curve = append(out.Curve, round3(curve[i]))
	}
	return out, ""
}

// rollingMean returns the window-sized moving averages (valid positions
// only).
func rollingMean(values []float64, window int) []float64 {
	if len(values) < window {
		return nil
	}
	out := make([]float64, 0, len(values)-window+1)
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out
}

// rollingMeanCentered mirrors a centered moving average with shrinking edge
// windows, one output per input.
func rollingMeanCentered(values []float64, window int) []float64 {
	half := window / 2
	out := make([]float64, len(values))
	for i := range values {
		lo, hi := i-half, i+half+1
		if lo < 0 {
			lo = 0
		}
		if hi > len(values) {
			hi = len(values)
		}
		var sum float64
		for j := lo; j < hi; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	m := mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)))
}

// coefficientOfVariation is stddev over mean as a percentage.
func coefficientOfVariation(values []float64) float64 {
	m := mean(values)
	if m == 0 {
		return 0
	}
	return stddev(values) / m * 100
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
