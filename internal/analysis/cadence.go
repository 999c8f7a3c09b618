package analysis

import "strings"

// Devices following the per-leg convention report running cadence around
// half the true steps-per-minute. Anything below this threshold on a run is
// treated as per-leg and doubled.
const cadenceDoubleBelowSPM = 130.0

// Cadence values above this are sensor spikes and excluded.
const maxValidCadenceSPM = 220.0

var runKeywords = []string{"run", "jog", "sprint", "tempo", "interval", "hill", "race", "fartlek", "track"}

var nonRunKeywords = []string{"ride", "bike", "cycle", "swim", "walk", "hike"}

// isRunningType reports whether the activity type (or user intent string)
// describes a running activity.
func isRunningType(activityType string) bool {
	t := strings.ToLower(activityType)
	for _, kw := range nonRunKeywords {
		if strings.Contains(t, kw) {
			return false
		}
	}
	for _, kw := range runKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

// NormalizeCadence corrects per-leg cadence reporting for running
// activities. Nil and zero values pass through unchanged, as do values for
// non-running types.
func NormalizeCadence(activityType string, cadence *float64) *float64 {
	if cadence == nil || *cadence == 0 {
		return cadence
	}
	if !isRunningType(activityType) {
		return cadence
	}
	if *cadence < cadenceDoubleBelowSPM {
		doubled := *cadence * 2
		return &doubled
	}
	return cadence
}

// normalizeCadenceChannel applies the per-leg correction to a whole cadence
// channel. The decision is made once, on the channel average, so a stream is
// either doubled in full or left alone.
func normalizeCadenceChannel(activityType string, samples []Sample) []Sample {
	if !isRunningType(activityType) {
		return samples
	}

	var sum float64
	var n int
	for _, s := range samples {
		if s.Valid && s.Value > 0 {
			sum += s.Value
			n++
		}
	}
	if n == 0 {
		return samples
	}
	avg := sum / float64(n)
	if avg >= cadenceDoubleBelowSPM {
		return samples
	}

	out := make([]Sample, len(samples))
	for i, s := range samples {
		if s.Valid {
			out[i] = V(s.Value * 2)
		}
	}
	return out
}
