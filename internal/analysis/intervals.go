package analysis

// Interval detection tunables. Work and rest thresholds straddle the bimodal
// midpoint of the smoothed velocity distribution; segments shorter than the
// minimums are transitions, not reps.
const (
	intervalSmoothWindowS = 30
	intervalMinWorkS      = 30
	intervalMinRestS      = 15
	intervalMinReps       = 2
	intervalMinWarmupS    = 120
	intervalClusterSpread = 1.3  // fast cluster must be 30% faster than slow
	intervalThresholdBand = 0.05 // hysteresis around the midpoint
)

// DetectIntervalStructure segments the velocity stream into work and rest
// phases. Returns nil when the stream is too short or not bimodal enough to
// describe an interval session.
func DetectIntervalStructure(tl *Timeline) *IntervalStructure {
	if tl == nil || len(tl.Points) < minVelocitySamplesForCV {
		return nil
	}

	velocity := make([]float64, len(tl.Points))
	for i := range tl.Points {
		if v := tl.Points[i].Velocity; v != nil {
			velocity[i] = *v
		}
	}

	smoothed := rollingMeanCentered(velocity, intervalSmoothWindowS)

	var active []float64
	for _, v := range smoothed {
		if v > minMovingVelocityMPS {
			active = append(active, v)
		}
	}
	if len(active) < minVelocitySamplesForCV {
		return nil
	}

	midpoint, ok := bimodalThreshold(active)
	if !ok {
		return nil
	}

	workThreshold := midpoint * (1 + intervalThresholdBand)
	restThreshold := midpoint * (1 - intervalThresholdBand)

	labels := make([]int, len(smoothed))
	for i, v := range smoothed {
		switch {
		case v >= workThreshold:
			labels[i] = 1
		case v <= restThreshold:
			labels[i] = -1
		}
	}

	type segment struct {
		label      int
		start, end int // point indices, inclusive
	}
	var segments []segment
	for i := range labels {
		if len(segments) > 0 && segments[len(segments)-1].label == labels[i] {
			segments[len(segments)-1].end = i
			continue
		}
		segments = append(segments, segment{label: labels[i], start: i, end: i})
	}

	durationOf := func(s segment) int {
		return tl.Points[s.end].TimeS - tl.Points[s.start].TimeS
	}

	var workSegs, restSegs []segment
	for _, s := range segments {
		switch {
		case s.label == 1 && durationOf(s) >= intervalMinWorkS:
			workSegs = append(workSegs, s)
		case s.label == -1 && durationOf(s) >= intervalMinRestS:
			restSegs = append(restSegs, s)
		}
	}
	if len(workSegs) < intervalMinReps {
		return nil
	}

	out := &IntervalStructure{RepCount: len(workSegs)}

	firstWorkStart := tl.Points[workSegs[0].start].TimeS
	lastWorkEnd := tl.Points[workSegs[len(workSegs)-1].end].TimeS
	endTime := tl.Points[len(tl.Points)-1].TimeS
	if firstWorkStart >= intervalMinWarmupS {
		w := firstWorkStart
		out.WarmupS = &w
	}
	if endTime-lastWorkEnd >= intervalMinWarmupS {
		c := endTime - lastWorkEnd
		out.CooldownS = &c
	}

	var workSpeeds []float64
	totalWork, totalRest := 0, 0
	for i, s := range workSegs {
		seg := tl.Points[s.start : s.end+1]
		ws := WorkSegment{
			Index:      i + 1,
			StartTimeS: tl.Points[s.start].TimeS,
			DurationS:  durationOf(s),
		}
		if v := avgChannel(seg, ChannelVelocity); v != nil {
			ws.AvgSpeedMPS = round2(*v)
			workSpeeds = append(workSpeeds, *v)
		}
		ws.AvgHR = avgChannel(seg, ChannelHeartRate)
		ws.PeakHR = peakHR(seg)
		if d0, d1 := seg[0].Distance, seg[len(seg)-1].Distance; d0 != nil && d1 != nil {
			dist := round1(*d1 - *d0)
			ws.DistanceM = &dist
		}
		totalWork += ws.DurationS
		out.Work = append(out.Work, ws)
	}

	for _, s := range restSegs {
		startTime := tl.Points[s.start].TimeS
		if startTime < firstWorkStart || startTime >= lastWorkEnd {
			continue // only rests between reps count
		}
		seg := tl.Points[s.start : s.end+1]
		rs := RestSegment{Index: len(out.Rest) + 1, DurationS: durationOf(s)}
		rs.AvgHR = avgChannel(seg, ChannelHeartRate)
		if prev := precedingPeakHR(out.Work, startTime); prev != nil && rs.AvgHR != nil {
			rec := round1(*prev - *rs.AvgHR)
			rs.HRRecoveryBPM = &rec
		}
		totalRest += rs.DurationS
		out.Rest = append(out.Rest, rs)
	}

	if totalRest > 0 {
		ratio := round2(float64(totalWork) / float64(totalRest))
		out.WorkToRest = &ratio
	}
	if len(workSpeeds) >= 2 {
		cv := round1(coefficientOfVariation(workSpeeds))
		out.WorkSpeedCV = &cv
	}
	return out
}

// bimodalThreshold iteratively splits the velocity distribution into a slow
// and a fast cluster and returns the midpoint between their means. ok=false
// when the clusters are not separated enough for interval structure.
func bimodalThreshold(speeds []float64) (float64, bool) {
	if len(speeds) < 10 {
		return 0, false
	}

	threshold := mean(speeds)
	for iter := 0; iter < 20; iter++ {
		var lowSum, highSum float64
		var lowN, highN int
		for _, v := range speeds {
			if v <= threshold {
				lowSum += v
				lowN++
			} else {
				highSum += v
				highN++
			}
		}
		if lowN == 0 || highN == 0 {
			return 0, false
		}
		next := (lowSum/float64(lowN) + highSum/float64(highN)) / 2
		if diff := next - threshold; diff < 0.01 && diff > -0.01 {
			threshold = next
			break
		}
		threshold = next
	}

	var lowSum, highSum float64
	var lowN, highN int
	for _, v := range speeds {
		if v <= threshold {
			lowSum += v
			lowN++
		} else {
			highSum += v
			highN++
		}
	}
	if lowN == 0 || highN == 0 {
		return 0, false
	}
	lowMean := lowSum / float64(lowN)
	highMean := highSum / float64(highN)
	if highMean < lowMean*intervalClusterSpread {
		return 0, false
	}
	return threshold, true
}

func peakHR(seg []Point) *float64 {
	var peak *float64
	for i := range seg {
		if hr := seg[i].HeartRate; hr != nil && (peak == nil || *hr > *peak) {
			peak = hr
		}
	}
	return peak
}

func precedingPeakHR(work []WorkSegment, restStart int) *float64 {
	var found *float64
	for i := range work {
		if work[i].StartTimeS+work[i].DurationS <= restStart && work[i].PeakHR != nil {
			found = work[i].PeakHR
		}
	}
	return found
}
