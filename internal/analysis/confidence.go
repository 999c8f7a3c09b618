package analysis

// Confidence reason strings. These are stable identifiers: callers and the
// narrative layer match on them.
const (
	reasonNoStreams      = "no_stream_data"
	reasonNoHeartRate    = "no_heart_rate_data"
	reasonNoGPS          = "no_gps_data"
	reasonThinBaseline   = "thin_baseline_history"
	reasonNoCheckIn      = "no_user_checkin"
	reasonSummaryVerdict = "summary_only_classification"
)

// coverage describes input completeness before any metric is computed. It is
// derived first so the classifier and flag generator can run conservatively
// on thin data.
type coverage struct {
	reasons []string
	level   Confidence
}

// assessCoverage rates the inputs: high needs streams, heart rate, and a
// sufficient baseline; summary-only or thin-baseline activities are low;
// anything between is medium.
func assessCoverage(in Input, tl *Timeline) coverage {
	var cov coverage

	hasStreams := tl != nil && len(tl.Points) > 0
	hasHR := false
	if hasStreams {
		hasHR = tl.HasChannel(ChannelHeartRate)
	}
	if !hasHR {
		hasHR = in.Summary.AvgHR != nil && *in.Summary.AvgHR > 0
	}

	if !hasStreams {
		cov.reasons = append(cov.reasons, reasonNoStreams)
	} else if !tl.HasChannel(ChannelDistance) && !tl.HasChannel(ChannelVelocity) {
		cov.reasons = append(cov.reasons, reasonNoGPS)
	}
	if !hasHR {
		cov.reasons = append(cov.reasons, reasonNoHeartRate)
	}
	if !in.Baseline.Sufficient() {
		cov.reasons = append(cov.reasons, reasonThinBaseline)
	}
	if in.CheckIn == nil {
		cov.reasons = append(cov.reasons, reasonNoCheckIn)
	}

	switch {
	case !hasStreams || !in.Baseline.Sufficient():
		cov.level = ConfidenceLow
	case hasHR && len(cov.reasons) <= 1: // at most the missing check-in
		cov.level = ConfidenceHigh
	default:
		cov.level = ConfidenceMedium
	}
	return cov
}

// finalizeConfidence folds post-computation evidence back in: data-quality
// flags cap confidence at medium, and a tempo/interval/hills verdict reached
// without streams forces low.
func finalizeConfidence(cov coverage, class Class, flags []Flag, hasStreams bool) (Confidence, []string) {
	level := cov.level
	reasons := append([]string(nil), cov.reasons...)

	for _, f := range flags {
		if f == FlagLowConfidenceHR || f == FlagLowConfidenceGPS {
			if level == ConfidenceHigh {
				level = ConfidenceMedium
			}
			break
		}
	}

	if !hasStreams {
		switch class {
		case ClassTempo, ClassIntervals, ClassHills:
			level = ConfidenceLow
			reasons = append(reasons, reasonSummaryVerdict)
		}
	}

	return level, reasons
}
