package analysis

// Evaluate runs the full pipeline for one activity: preprocess streams,
// build splits, compute metrics, classify, flag, and rate confidence. It is
// a pure function of its input; the only error it returns is a
// *ValidationError on structurally invalid required input. Missing optional
// signals leave the affected metrics nil with a reason in
// ConfidenceReasons.
func Evaluate(in Input) (*DerivedMetrics, error) {
	if err := validate(in.Summary); err != nil {
		return nil, err
	}

	tl, err := Preprocess(in.Streams, effectiveType(in.Summary))
	if err != nil {
		return nil, err
	}

	maxHR := DefaultMaxHR
	if in.Profile != nil && in.Profile.MaxHR != nil && *in.Profile.MaxHR > 100 {
		maxHR = in.Profile.EffectiveMaxHR()
	} else if in.Summary.MaxHR != nil && *in.Summary.MaxHR > 100 {
		maxHR = *in.Summary.MaxHR
	}

	var gaps []string
	if tl != nil {
		gaps = append(gaps, tl.Gaps...)
	}

	stops := DetectStops(tl)
	splits := BuildSplits(tl)

	paceVar, gap := PaceVariability(splits, tl)
	gaps = appendGap(gaps, gap)

	zones, gap := TimeInZones(tl, splits, in.Summary, maxHR)
	gaps = appendGap(gaps, gap)

	drift, gap := HRDrift(tl)
	gaps = appendGap(gaps, gap)

	efficiency, gap := ComputeEfficiency(tl)
	gaps = appendGap(gaps, gap)

	intervals := DetectIntervalStructure(tl)

	cov := assessCoverage(in, tl)
	conservative := cov.level == ConfidenceLow
	hasStreams := tl != nil && len(tl.Points) > 0

	class := Classify(classifierContext{
		summary:      in.Summary,
		baseline:     in.Baseline,
		checkIn:      in.CheckIn,
		paceVar:      paceVar,
		zones:        zones,
		splits:       splits,
		intervals:    intervals,
		timeline:     tl,
		maxHR:        maxHR,
		hasStreams:   hasStreams,
		conservative: conservative,
	})

	effort := EffortScore(zones, in.Summary.MovingTimeS, class)

	flags := GenerateFlags(flagContext{
		summary:      in.Summary,
		baseline:     in.Baseline,
		checkIn:      in.CheckIn,
		timeline:     tl,
		class:        class,
		effort:       effort,
		hrDrift:      drift,
		zones:        zones,
		conservative: conservative,
	})

	riskLevel, riskScore, riskReasons := ComputeRisk(flags, in.CheckIn)

	confidence, reasons := finalizeConfidence(cov, class, flags, hasStreams)
	reasons = append(reasons, gaps...)

	return &DerivedMetrics{
		ActivityClass:     class,
		EffortScore:       effort,
		PaceVariability:   paceVar,
		HRDrift:           drift,
		TimeInZones:       zones,
		Efficiency:        efficiency,
		Stops:             stops,
		Intervals:         intervals,
		Splits:            splits,
		Flags:             flags,
		RiskLevel:         riskLevel,
		RiskScore:         riskScore,
		RiskReasons:       riskReasons,
		Confidence:        confidence,
		ConfidenceReasons: reasons,
	}, nil
}

func validate(s ActivitySummary) error {
	if s.MovingTimeS <= 0 {
		return &ValidationError{Field: "moving_time_s", Reason: "must be positive"}
	}
	if s.DistanceM < 0 {
		return &ValidationError{Field: "distance_m", Reason: "must not be negative"}
	}
	if s.ElapsedTimeS > 0 && s.ElapsedTimeS < s.MovingTimeS {
		return &ValidationError{Field: "elapsed_time_s", Reason: "must not be below moving_time_s"}
	}
	return nil
}

// effectiveType prefers the user intent for run detection: intents such as
// "tempo" or "intervals" imply running even when the platform type is bare.
func effectiveType(s ActivitySummary) string {
	if s.UserIntent != "" {
		return s.UserIntent
	}
	return s.Type
}

func appendGap(gaps []string, gap string) []string {
	if gap == "" {
		return gaps
	}
	return append(gaps, gap)
}
