package analysis

import "strings"

// Classifier thresholds.
const (
	// Pace or heart-rate variability above this suggests interval work.
	intervalVariabilityPct = 25.0
	// Reps needed before oscillation counts as a session structure.
	intervalMinAlternations = 3
	// Sustained moderate-to-high effort window for tempo.
	tempoMinDurationS = 1200
	// Long-run absolute fallback when baseline history is thin.
	longRunFallbackS = 4500
	// Elevation gain per kilometre marking hilly terrain, and the clear-cut
	// multiple required when only summary data exists.
	hillGainPerKM         = 20.0
	hillSummaryOnlyFactor = 1.5
	hillGradeStddevPct    = 4.0
	// Easy classification bounds.
	easyMaxPaceVariability = 15.0
	easyMinLowZoneShare    = 0.75
	easyMaxRPE             = 3
	recoveryMaxDurationS   = 2400
	recoveryLoadRatio      = 1.1
)

// classifierContext carries everything the rule predicates may consult.
type classifierContext struct {
	summary      ActivitySummary
	baseline     HistoryBaseline
	checkIn      *CheckIn
	paceVar      *float64
	zones        map[string]float64
	splits       []Split
	intervals    *IntervalStructure
	timeline     *Timeline
	maxHR        float64
	hasStreams   bool
	conservative bool
}

// classRule pairs a class with its predicate. Rules are evaluated in order;
// the first match wins, which encodes the precedence
// intervals > tempo > long > hills > easy > unknown.
type classRule struct {
	class Class
	when  func(c classifierContext) bool
}

var classRules = []classRule{
	{ClassIntervals, matchIntervals},
	{ClassTempo, matchTempo},
	{ClassLong, matchLong},
	{ClassHills, matchHills},
	{ClassRecovery, matchRecovery},
	{ClassEasy, matchEasy},
}

// Classify walks the rule table top to bottom. The race class is never
// inferred; it only arrives through the user-intent override handled here.
func Classify(c classifierContext) Class {
	if intent := intentClass(c.summary.UserIntent); intent != "" {
		return intent
	}

	for _, rule := range classRules {
		if rule.when(c) {
			return rule.class
		}
	}
	return ClassUnknown
}

// intentKeywords resolve free-text intent tags ("Easy Run", "Hill repeats")
// onto classes. First match wins, so the more specific tags sit on top.
var intentKeywords = []struct {
	keyword string
	class   Class
}{
	{"race", ClassRace},
	{"interval", ClassIntervals},
	{"workout", ClassIntervals},
	{"fartlek", ClassIntervals},
	{"tempo", ClassTempo},
	{"threshold", ClassTempo},
	{"hill", ClassHills},
	{"recovery", ClassRecovery},
	{"long", ClassLong},
	{"easy", ClassEasy},
}

// intentClass maps a user-declared intent onto a class. Intents arrive as
// free text, so matching is lowercase keyword based.
func intentClass(intent string) Class {
	intent = strings.ToLower(strings.TrimSpace(intent))
	if intent == "" {
		return ""
	}
	for _, m := range intentKeywords {
		if strings.Contains(intent, m.keyword) {
			return m.class
		}
	}
	return ""
}

// matchIntervals requires oscillating work/rest structure from streams plus
// high pace variability. Summary-only data can never produce this verdict.
func matchIntervals(c classifierContext) bool {
	if !c.hasStreams || c.intervals == nil {
		return false
	}
	if c.intervals.RepCount < intervalMinAlternations {
		return false
	}
	return c.paceVar != nil && *c.paceVar >= intervalVariabilityPct
}

// matchTempo requires a sustained steady-state segment at zone 3 or above.
// It relies on stream data; on summary-only activities the rule declines and
// the activity falls through to the conservative neighbours.
func matchTempo(c classifierContext) bool {
	if !c.hasStreams || c.timeline == nil {
		return false
	}
	if c.paceVar == nil || *c.paceVar >= intervalVariabilityPct {
		return false
	}

	meanV := movingMeanVelocity(c.timeline.Points)
	if meanV <= 0 {
		return false
	}
	start, end := longestSteadyRun(c.timeline.Points, meanV)
	if start < 0 {
		return false
	}
	duration := c.timeline.Points[end].TimeS - c.timeline.Points[start].TimeS
	if duration < tempoMinDurationS {
		return false
	}

	seg := c.timeline.Points[start : end+1]
	avgHR := avgChannel(seg, ChannelHeartRate)
	if avgHR != nil {
		zone := zoneOf(*avgHR, c.maxHR)
		if c.conservative {
			// On shaky data a borderline zone-3 verdict yields to easy.
			return zone >= 4
		}
		return zone >= 3
	}

	// No HR in the segment: accept only a clear top-of-baseline pace.
	if !c.baseline.Sufficient() || c.conservative {
		return false
	}
	avgV := avgChannel(seg, ChannelVelocity)
	return avgV != nil && c.summary.AvgSpeedMPS != nil && *avgV > *c.summary.AvgSpeedMPS*1.1
}

// matchLong puts the activity in the top 20% of the rolling duration
// distribution, or past the absolute fallback when history is thin.
func matchLong(c classifierContext) bool {
	if c.baseline.Sufficient() && c.baseline.DurationP80S > 0 {
		return float64(c.summary.MovingTimeS) >= c.baseline.DurationP80S
	}
	return float64(c.summary.MovingTimeS) > longRunFallbackS
}

// matchHills wants climbing density plus grade variance. Without a grade
// stream the gain density must be clear-cut, not borderline.
func matchHills(c classifierContext) bool {
	if c.summary.DistanceM <= 0 {
		return false
	}
	gainPerKM := c.summary.ElevGainM / (c.summary.DistanceM / 1000.0)

	if c.timeline.HasChannel(ChannelGrade) {
		var grades []float64
		for i := range c.timeline.Points {
			if g := c.timeline.Points[i].Grade; g != nil {
				grades = append(grades, *g)
			}
		}
		return gainPerKM > hillGainPerKM && len(grades) >= 2 && stddev(grades) > hillGradeStddevPct
	}

	return gainPerKM > hillGainPerKM*hillSummaryOnlyFactor
}

// matchRecovery is the easy rule plus a short duration in a period of high
// recent load.
func matchRecovery(c classifierContext) bool {
	if !matchEasy(c) {
		return false
	}
	if c.summary.MovingTimeS >= recoveryMaxDurationS {
		return false
	}
	return c.baseline.Sufficient() && c.baseline.AvgWeeklyLoad28dKm > 0 &&
		c.baseline.Load7dKm > c.baseline.AvgWeeklyLoad28dKm*recoveryLoadRatio
}

// matchEasy accepts low variability with predominantly zone 1-2 time, or an
// explicit low perceived effort.
func matchEasy(c classifierContext) bool {
	if c.checkIn != nil && c.checkIn.RPE != nil && *c.checkIn.RPE <= easyMaxRPE {
		return true
	}

	if c.paceVar == nil || *c.paceVar > easyMaxPaceVariability {
		return false
	}
	if c.zones == nil {
		return false
	}
	var low, total float64
	for i, key := range zoneKeys {
		total += c.zones[key]
		if i < 2 {
			low += c.zones[key]
		}
	}
	return total > 0 && low/total >= easyMinLowZoneShare
}
