package analysis

// Split sizing. A trailing partial below partialMergeFraction of the nominal
// size is folded into the previous split instead of emitted on its own.
const (
	splitDistanceM       = 1000.0
	splitTimeS           = 300.0
	partialMergeFraction = 0.2
)

// BuildSplits aggregates the timeline into ordered segments: distance-based
// when a usable distance channel exists, time-based otherwise. Returns nil
// when the timeline is empty.
func BuildSplits(tl *Timeline) []Split {
	if tl == nil || len(tl.Points) < 2 {
		return nil
	}
	if distanceReliable(tl) {
		return buildDistanceSplits(tl)
	}
	return buildTimeSplits(tl)
}

// distanceReliable requires a distance channel that is present on most
// points and never decreases.
func distanceReliable(tl *Timeline) bool {
	present := 0
	last := -1.0
	for i := range tl.Points {
		d := tl.Points[i].Distance
		if d == nil {
			continue
		}
		if *d < last {
			return false
		}
		last = *d
		present++
	}
	return present >= len(tl.Points)/2 && present >= 2
}

func buildDistanceSplits(tl *Timeline) []Split {
	points := tl.Points
	var splits []Split

	startIdx := 0
	prevStartIdx := 0
	target := firstDistance(points) + splitDistanceM

	for i := 1; i < len(points); i++ {
		d := points[i].Distance
		if d == nil {
			continue
		}
		for *d >= target && startIdx < len(points)-1 {
			splits = append(splits, aggregateSplit(points, startIdx, i+1, SplitDistance, len(splits)+1))
			target += splitDistanceM
			prevStartIdx = startIdx
			startIdx = i
		}
	}

	return appendTail(splits, points, startIdx, prevStartIdx, SplitDistance)
}

func buildTimeSplits(tl *Timeline) []Split {
	points := tl.Points
	var splits []Split

	startIdx := 0
	prevStartIdx := 0
	target := float64(points[0].TimeS) + splitTimeS

	for i := 1; i < len(points); i++ {
		for float64(points[i].TimeS) >= target && startIdx < len(points)-1 {
			splits = append(splits, aggregateSplit(points, startIdx, i+1, SplitTime, len(splits)+1))
			target += splitTimeS
			prevStartIdx = startIdx
			startIdx = i
		}
	}

	return appendTail(splits, points, startIdx, prevStartIdx, SplitTime)
}

// appendTail emits the trailing partial segment, or merges it into the last
// split when it is below the merge fraction of the nominal size.
func appendTail(splits []Split, points []Point, startIdx, prevStartIdx int, st SplitType) []Split {
	if startIdx >= len(points)-1 {
		return splits
	}

	tail := aggregateSplit(points, startIdx, len(points), st, len(splits)+1)

	var fraction float64
	if st == SplitDistance {
		fraction = tail.DistanceM / splitDistanceM
	} else {
		fraction = tail.DurationS / splitTimeS
	}

	if fraction < partialMergeFraction && len(splits) > 0 {
		splits[len(splits)-1] = aggregateSplit(points, prevStartIdx, len(points), st, len(splits))
		return splits
	}
	return append(splits, tail)
}

func firstDistance(points []Point) float64 {
	for i := range points {
		if points[i].Distance != nil {
			return *points[i].Distance
		}
	}
	return 0
}

func aggregateSplit(points []Point, startIdx, endIdx int, st SplitType, index int) Split {
	seg := points[startIdx:endIdx]
	first, last := seg[0], seg[len(seg)-1]

	s := Split{Index: index, Type: st, DurationS: float64(last.TimeS - first.TimeS)}

	if first.Distance != nil && last.Distance != nil {
		s.DistanceM = *last.Distance - *first.Distance
	}
	if s.DurationS > 0 && s.DistanceM > 0 {
		pace := s.DurationS / (s.DistanceM / 1000.0)
		speed := s.DistanceM / s.DurationS
		s.PaceSPerKM = &pace
		s.SpeedMPS = &speed
	}

	s.AvgHR = avgChannel(seg, ChannelHeartRate)
	s.AvgCadence = avgChannel(seg, ChannelCadence)
	s.AvgGrade = avgChannel(seg, ChannelGrade)
	s.AvgPower = avgChannel(seg, ChannelPower)
	s.ElevGainM = elevationGain(seg)
	return s
}

func avgChannel(seg []Point, ch Channel) *float64 {
	var sum float64
	var n int
	for i := range seg {
		if v := seg[i].channel(ch); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

func elevationGain(seg []Point) *float64 {
	var gain float64
	var prev *float64
	seen := false
	for i := range seg {
		alt := seg[i].Altitude
		if alt == nil {
			continue
		}
		if prev != nil && *alt > *prev {
			gain += *alt - *prev
		}
		prev = alt
		seen = true
	}
	if !seen {
		return nil
	}
	return &gain
}
