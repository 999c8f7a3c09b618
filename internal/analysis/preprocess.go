package analysis

import (
	"fmt"
	"sort"
)

// Physiologically plausible heart-rate bounds. Samples outside are excluded
// (set to null), never corrected.
const (
	minPlausibleHR = 30.0
	maxPlausibleHR = 230.0
)

// Stop detection tunables.
const (
	stopVelocityEpsilonMPS = 0.3 // below this the athlete counts as stopped
	stopMinDurationS       = 10  // shorter windows are GPS jitter
	stopMergeGapS          = 5   // stops separated by less are one stop
)

// Cadence channel cleaning tunables.
const (
	cadenceMedianWindow  = 7
	cadenceMaxGapInterpS = 10
)

// Point is one aligned sample across all channels. Nil fields are missing or
// excluded readings.
type Point struct {
	TimeS     int
	Distance  *float64
	Velocity  *float64
	HeartRate *float64
	Cadence   *float64
	Altitude  *float64
	Grade     *float64
	Power     *float64
}

// Timeline is the cleaned, aligned view of a StreamSet.
type Timeline struct {
	Points            []Point
	ExcludedHRSamples int
	DroppedTimestamps int
	Gaps              []string
}

// HasChannel reports whether at least one point carries a value for ch.
func (tl *Timeline) HasChannel(ch Channel) bool {
	if tl == nil {
		return false
	}
	for i := range tl.Points {
		if tl.Points[i].channel(ch) != nil {
			return true
		}
	}
	return false
}

func (p *Point) channel(ch Channel) *float64 {
	switch ch {
	case ChannelDistance:
		return p.Distance
	case ChannelVelocity:
		return p.Velocity
	case ChannelHeartRate:
		return p.HeartRate
	case ChannelCadence:
		return p.Cadence
	case ChannelAltitude:
		return p.Altitude
	case ChannelGrade:
		return p.Grade
	case ChannelPower:
		return p.Power
	}
	return nil
}

// Preprocess aligns the raw channels onto the time index, drops
// non-monotonic timestamps, excludes implausible heart-rate readings, and
// cleans the cadence channel. A nil StreamSet or one without a time channel
// yields a nil Timeline (summary-only evaluation); channels whose length
// disagrees with the time channel are a structural fault.
func Preprocess(streams StreamSet, activityType string) (*Timeline, error) {
	if len(streams) == 0 {
		return nil, nil
	}

	timeCh, ok := streams[ChannelTime]
	if !ok || len(timeCh) == 0 {
		return nil, nil
	}

	for _, ch := range []Channel{ChannelDistance, ChannelVelocity, ChannelHeartRate, ChannelCadence, ChannelAltitude, ChannelGrade, ChannelPower} {
		if samples, present := streams[ch]; present && len(samples) != len(timeCh) {
			return nil, &ValidationError{
				Field:  fmt.Sprintf("streams.%s", ch),
				Reason: fmt.Sprintf("length %d misaligned with time channel length %d", len(samples), len(timeCh)),
			}
		}
	}

	cadence := streams[ChannelCadence]
	if cadence != nil {
		cadence = normalizeCadenceChannel(activityType, cadence)
		cadence = cleanCadenceChannel(cadence, timeCh)
	}

	tl := &Timeline{Points: make([]Point, 0, len(timeCh))}

	lastTime := -1
	for i, ts := range timeCh {
		if !ts.Valid {
			tl.DroppedTimestamps++
			continue
		}
		t := int(ts.Value)
		if t <= lastTime && lastTime >= 0 {
			tl.DroppedTimestamps++
			continue
		}
		lastTime = t

		p := Point{TimeS: t}
		p.Distance = sampleAt(streams[ChannelDistance], i)
		p.Velocity = sampleAt(streams[ChannelVelocity], i)
		p.Cadence = sampleAt(cadence, i)
		p.Altitude = sampleAt(streams[ChannelAltitude], i)
		p.Grade = sampleAt(streams[ChannelGrade], i)
		p.Power = sampleAt(streams[ChannelPower], i)

		if hr := sampleAt(streams[ChannelHeartRate], i); hr != nil {
			if *hr < minPlausibleHR || *hr > maxPlausibleHR {
				tl.ExcludedHRSamples++
			} else {
				p.HeartRate = hr
			}
		}

		tl.Points = append(tl.Points, p)
	}

	if tl.DroppedTimestamps > 0 {
		tl.Gaps = append(tl.Gaps, fmt.Sprintf("timestamps: dropped %d non-monotonic samples", tl.DroppedTimestamps))
	}
	if tl.ExcludedHRSamples > 0 {
		tl.Gaps = append(tl.Gaps, fmt.Sprintf("heartrate: excluded %d implausible samples", tl.ExcludedHRSamples))
	}

	return tl, nil
}

func sampleAt(samples []Sample, i int) *float64 {
	if samples == nil || i >= len(samples) || !samples[i].Valid {
		return nil
	}
	v := samples[i].Value
	return &v
}

// cleanCadenceChannel removes dropouts and spikes, applies a rolling median,
// and linearly interpolates short gaps.
func cleanCadenceChannel(cadence, timeCh []Sample) []Sample {
	n := len(cadence)
	if n == 0 {
		return cadence
	}

	work := make([]Sample, n)
	copy(work, cadence)
	for i := range work {
		if work[i].Valid && work[i].Value > maxValidCadenceSPM {
			work[i] = Null
		}
	}

	// Rolling median over valid neighbours.
	smoothed := make([]Sample, n)
	half := cadenceMedianWindow / 2
	window := make([]float64, 0, cadenceMedianWindow)
	for i := 0; i < n; i++ {
		window = window[:0]
		lo, hi := i-half, i+half+1
		if lo < 0 {
			lo = 0
		}
		if hi > n {
			hi = n
		}
		for j := lo; j < hi; j++ {
			if work[j].Valid {
				window = append(window, work[j].Value)
			}
		}
		if len(window) == 0 {
			smoothed[i] = Null
			continue
		}
		sort.Float64s(window)
		smoothed[i] = V(window[len(window)/2])
	}

	// Interpolate gaps no longer than cadenceMaxGapInterpS.
	prev := -1
	for i := 0; i < n; i++ {
		if !smoothed[i].Valid {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			gapS := gapSeconds(timeCh, prev, i)
			if gapS <= cadenceMaxGapInterpS {
				start, end := smoothed[prev].Value, smoothed[i].Value
				steps := i - prev
				slope := (end - start) / float64(steps)
				for k := 1; k < steps; k++ {
					smoothed[prev+k] = V(start + slope*float64(k))
				}
			}
		}
		prev = i
	}

	return smoothed
}

func gapSeconds(timeCh []Sample, from, to int) int {
	if from < len(timeCh) && to < len(timeCh) && timeCh[from].Valid && timeCh[to].Valid {
		return int(timeCh[to].Value - timeCh[from].Value)
	}
	return to - from
}

// DetectStops scans the velocity series for contiguous idle windows. Windows
// shorter than stopMinDurationS are ignored; windows separated by at most
// stopMergeGapS are merged. Returns nil when the timeline lacks velocity.
func DetectStops(tl *Timeline) *StopsAnalysis {
	if tl == nil || !tl.HasChannel(ChannelVelocity) {
		return nil
	}

	type window struct{ startIdx, endIdx int }
	var raw []window
	openIdx := -1

	for i := range tl.Points {
		v := tl.Points[i].Velocity
		stopped := v != nil && *v < stopVelocityEpsilonMPS
		if stopped && openIdx < 0 {
			openIdx = i
		}
		if !stopped && openIdx >= 0 {
			raw = append(raw, window{openIdx, i - 1})
			openIdx = -1
		}
	}
	if openIdx >= 0 {
		raw = append(raw, window{openIdx, len(tl.Points) - 1})
	}

	// Merge windows separated by short moving blips.
	var merged []window
	for _, w := range raw {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			gap := tl.Points[w.startIdx].TimeS - tl.Points[last.endIdx].TimeS
			if gap <= stopMergeGapS {
				last.endIdx = w.endIdx
				continue
			}
		}
		merged = append(merged, w)
	}

	out := &StopsAnalysis{Stops: []Stop{}}
	for _, w := range merged {
		duration := tl.Points[w.endIdx].TimeS - tl.Points[w.startIdx].TimeS
		if duration < stopMinDurationS {
			continue
		}
		stop := Stop{
			StartTimeS: tl.Points[w.startIdx].TimeS,
			DurationS:  duration,
			DistanceM:  tl.Points[w.startIdx].Distance,
		}
		out.Stops = append(out.Stops, stop)
		out.TotalStoppedTimeS += duration
		if duration > out.LongestStopS {
			out.LongestStopS = duration
		}
	}
	out.StopCount = len(out.Stops)
	return out
}
