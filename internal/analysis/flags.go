package analysis

import "math"

// Flag thresholds. Each is fixed per build, never tuned per activity; low
// confidence widens the relevant ones through the widen factor.
const (
	// Heart-rate jumps beyond this many bpm between adjacent samples are
	// sensor artefacts.
	hrJumpBPMPerSample = 40.0
	// A perfectly flat heart-rate stretch at least this long means a stuck
	// sensor.
	hrFlatlineMinS = 120
	// Share of implausible-or-artefact samples that marks the channel.
	hrArtifactShare = 0.05
	// Velocity samples beyond this multiple of the local median are GPS
	// spikes.
	gpsSpikeFactor  = 3.0
	gpsSpikeShare   = 0.02
	gpsMedianWindow = 31
	// Share of in-zone time above zone 2 that contradicts an easy intent.
	easyIntensityShare = 0.25
	// HR drift beyond this suggests accumulated fatigue.
	fatigueDriftPct = 5.0
	// Effort z-score against the rolling baseline flagging an outlier.
	fatigueEffortZ = 2.0
	// 7-day load beyond this multiple of the 28-day weekly average.
	loadSpikeRatio = 1.5
	// Check-in pain scores.
	painReportedMin = 4
	painSevereMin   = 7
	// Threshold widening applied when confidence is low.
	lowConfidenceWiden = 1.4
)

// flagContext carries the inputs flag predicates may consult.
type flagContext struct {
	summary      ActivitySummary
	baseline     HistoryBaseline
	checkIn      *CheckIn
	timeline     *Timeline
	class        Class
	effort       float64
	hrDrift      *float64
	zones        map[string]float64
	conservative bool
}

// widen relaxes a threshold when operating at low confidence.
func (c flagContext) widen(threshold float64) float64 {
	if c.conservative {
		return threshold * lowConfidenceWiden
	}
	return threshold
}

// flagRule is one independent check. evaluated=false means the rule's
// required inputs were absent, so the flag is neither raised nor cleared.
type flagRule struct {
	flag Flag
	eval func(c flagContext) (raised, evaluated bool)
}

// Rules are ordered; flags appear in the output in this order, which keeps
// evaluation deterministic.
var flagRules = []flagRule{
	{FlagLowConfidenceHR, evalLowConfidenceHR},
	{FlagLowConfidenceGPS, evalLowConfidenceGPS},
	{FlagIntensityTooHigh, evalIntensityTooHigh},
	{FlagFatiguePossible, evalFatiguePossible},
	{FlagLoadSpike, evalLoadSpike},
	{FlagPainReported, evalPainReported},
	{FlagPainSevere, evalPainSevere},
	{FlagIllness, evalIllness},
}

// GenerateFlags runs every rule whose inputs exist and returns the raised
// flags in rule order.
func GenerateFlags(c flagContext) []Flag {
	var out []Flag
	for _, rule := range flagRules {
		if raised, evaluated := rule.eval(c); evaluated && raised {
			out = append(out, rule.flag)
		}
	}
	return out
}

// evalLowConfidenceHR looks for implausible jumps or flatline stretches in
// the heart-rate channel.
func evalLowConfidenceHR(c flagContext) (bool, bool) {
	if !c.timeline.HasChannel(ChannelHeartRate) {
		return false, false
	}

	points := c.timeline.Points
	jumps := 0
	samples := 0
	flatStart := -1
	var prev *float64
	prevTime := 0

	for i := range points {
		hr := points[i].HeartRate
		if hr == nil {
			prev = nil
			flatStart = -1
			continue
		}
		samples++
		if prev != nil {
			if math.Abs(*hr-*prev) > hrJumpBPMPerSample {
				jumps++
			}
			if *hr == *prev {
				if flatStart < 0 {
					flatStart = prevTime
				}
				if points[i].TimeS-flatStart >= hrFlatlineMinS {
					return true, true
				}
			} else {
				flatStart = -1
			}
		}
		prev = hr
		prevTime = points[i].TimeS
	}

	excluded := c.timeline.ExcludedHRSamples
	if samples+excluded == 0 {
		return false, false
	}
	share := float64(jumps+excluded) / float64(samples+excluded)
	return share > c.widen(hrArtifactShare), true
}

// evalLowConfidenceGPS flags velocity spikes far from the local median.
func evalLowConfidenceGPS(c flagContext) (bool, bool) {
	if !c.timeline.HasChannel(ChannelVelocity) {
		return false, false
	}

	var velocities []float64
	for i := range c.timeline.Points {
		if v := c.timeline.Points[i].Velocity; v != nil {
			velocities = append(velocities, *v)
		}
	}
	if len(velocities) < gpsMedianWindow {
		return false, false
	}

	spikes := 0
	half := gpsMedianWindow / 2
	window := make([]float64, 0, gpsMedianWindow)
	for i := range velocities {
		lo, hi := i-half, i+half+1
		if lo < 0 {
			lo = 0
		}
		if hi > len(velocities) {
			hi = len(velocities)
		}
		window = append(window[:0], velocities[lo:hi]...)
		med := median(window)
		if med > minMovingVelocityMPS && velocities[i] > med*gpsSpikeFactor {
			spikes++
		}
	}

	share := float64(spikes) / float64(len(velocities))
	return share > c.widen(gpsSpikeShare), true
}

// evalIntensityTooHigh compares time above zone 2 against the easy intent.
func evalIntensityTooHigh(c flagContext) (bool, bool) {
	intendedEasy := c.class == ClassEasy || c.class == ClassRecovery ||
		intentClass(c.summary.UserIntent) == ClassEasy || intentClass(c.summary.UserIntent) == ClassRecovery
	if !intendedEasy || c.zones == nil {
		return false, false
	}

	var above, total float64
	for i, key := range zoneKeys {
		total += c.zones[key]
		if i >= 2 {
			above += c.zones[key]
		}
	}
	if total == 0 {
		return false, false
	}
	return above/total >= c.widen(easyIntensityShare), true
}

// evalFatiguePossible fires on high HR drift or an effort far above the
// rolling baseline.
func evalFatiguePossible(c flagContext) (bool, bool) {
	evaluated := false
	if c.hrDrift != nil {
		evaluated = true
		if *c.hrDrift > c.widen(fatigueDriftPct) {
			return true, true
		}
	}
	if c.baseline.Sufficient() && c.baseline.EffortStd > 0 {
		evaluated = true
		z := (c.effort - c.baseline.EffortMean) / c.baseline.EffortStd
		if z > c.widen(fatigueEffortZ) {
			return true, true
		}
	}
	return false, evaluated
}

// evalLoadSpike compares the trailing 7-day load to the 28-day weekly
// average.
func evalLoadSpike(c flagContext) (bool, bool) {
	if c.baseline.AvgWeeklyLoad28dKm <= 0 {
		return false, false
	}
	return c.baseline.Load7dKm > c.baseline.AvgWeeklyLoad28dKm*loadSpikeRatio, true
}

func evalPainReported(c flagContext) (bool, bool) {
	if c.checkIn == nil || c.checkIn.PainScore == nil {
		return false, false
	}
	return *c.checkIn.PainScore >= painReportedMin, true
}

// evalPainSevere is a strict superset of pain_reported.
func evalPainSevere(c flagContext) (bool, bool) {
	if c.checkIn == nil || c.checkIn.PainScore == nil {
		return false, false
	}
	return *c.checkIn.PainScore >= painSevereMin, true
}

// evalIllness only ever reacts to the explicit check-in signal.
func evalIllness(c flagContext) (bool, bool) {
	if c.checkIn == nil {
		return false, false
	}
	return c.checkIn.Illness, true
}

func median(values []float64) float64 {
	tmp := make([]float64, len(values))
	copy(tmp, values)
	for i := 1; i < len(tmp); i++ {
		for j := i; j > 0 && tmp[j] < tmp[j-1]; j-- {
			tmp[j], tmp[j-1] = tmp[j-1], tmp[j]
		}
	}
	return tmp[len(tmp)/2]
}
