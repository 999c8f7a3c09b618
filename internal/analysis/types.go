// Package analysis evaluates one exercise activity into derived training
// metrics, a classification, safety flags, and a confidence rating. The
// engine is pure: it performs no I/O, holds no state between invocations,
// and identical inputs always produce identical output.
package analysis

import (
	"fmt"
	"time"
)

// Channel identifies a sensor stream kind.
type Channel string

const (
	ChannelTime      Channel = "time"
	ChannelDistance  Channel = "distance"
	ChannelVelocity  Channel = "velocity"
	ChannelHeartRate Channel = "heartrate"
	ChannelCadence   Channel = "cadence"
	ChannelAltitude  Channel = "altitude"
	ChannelGrade     Channel = "grade"
	ChannelPower     Channel = "power"
)

// Sample is one stream reading. Valid=false marks a null sample; the engine
// never substitutes a value for it.
type Sample struct {
	Value float64
	Valid bool
}

// V builds a valid sample. Handy in callers and tests.
func V(value float64) Sample { return Sample{Value: value, Valid: true} }

// Null is the missing sample.
var Null = Sample{}

// StreamSet holds the optional per-channel time series of an activity.
type StreamSet map[Channel][]Sample

// ActivitySummary carries the required per-activity summary fields.
type ActivitySummary struct {
	Type         string
	Name         string
	UserIntent   string // explicit external class override, e.g. "race"
	DistanceM    float64
	MovingTimeS  int
	ElapsedTimeS int
	ElevGainM    float64
	AvgHR        *float64
	MaxHR        *float64
	AvgCadence   *float64
	AvgSpeedMPS  *float64
	StartedAt    time.Time
}

// UserProfile provides athlete context for zone computation.
type UserProfile struct {
	MaxHR      *float64
	Experience string
	Goal       string
}

// DefaultMaxHR is assumed when no profile max heart rate is available.
const DefaultMaxHR = 190.0

// EffectiveMaxHR resolves the max heart rate used for zone boundaries.
func (p *UserProfile) EffectiveMaxHR() float64 {
	if p != nil && p.MaxHR != nil && *p.MaxHR > 100 {
		return *p.MaxHR
	}
	return DefaultMaxHR
}

// CheckIn is the optional subjective post-activity report.
type CheckIn struct {
	RPE          *int // 1-10
	PainScore    *int // 0-10
	PainLocation string
	SleepQuality *int // 1-5
	Illness      bool // explicit illness / extreme fatigue signal
}

// SplitType distinguishes distance-based from time-based splits.
type SplitType string

const (
	SplitDistance SplitType = "distance"
	SplitTime     SplitType = "time"
)

// Split is one aggregate segment of an activity.
type Split struct {
	Index      int       `json:"index"`
	Type       SplitType `json:"type"`
	DistanceM  float64   `json:"distance_m"`
	DurationS  float64   `json:"duration_s"`
	PaceSPerKM *float64  `json:"pace_s_per_km,omitempty"`
	SpeedMPS   *float64  `json:"speed_mps,omitempty"`
	AvgHR      *float64  `json:"avg_hr,omitempty"`
	AvgCadence *float64  `json:"avg_cadence,omitempty"`
	AvgGrade   *float64  `json:"avg_grade,omitempty"`
	AvgPower   *float64  `json:"avg_power,omitempty"`
	ElevGainM  *float64  `json:"elev_gain_m,omitempty"`
}

// Stop is one detected idle window.
type Stop struct {
	StartTimeS int      `json:"start_time_s"`
	DurationS  int      `json:"duration_s"`
	DistanceM  *float64 `json:"distance_m,omitempty"`
}

// StopsAnalysis aggregates detected stop windows.
type StopsAnalysis struct {
	TotalStoppedTimeS int    `json:"total_stopped_time_s"`
	StopCount         int    `json:"stop_count"`
	LongestStopS      int    `json:"longest_stop_s"`
	Stops             []Stop `json:"stops"`
}

// EfficiencyAnalysis is the rolling speed-to-heart-rate ratio summary.
// Values are in metres per minute per bpm.
type EfficiencyAnalysis struct {
	Average       float64   `json:"average"`
	BestSustained float64   `json:"best_sustained"`
	Curve         []float64 `json:"curve"`
}

// WorkSegment is one detected interval repetition.
type WorkSegment struct {
	Index       int      `json:"index"`
	StartTimeS  int      `json:"start_time_s"`
	DurationS   int      `json:"duration_s"`
	DistanceM   *float64 `json:"distance_m,omitempty"`
	AvgSpeedMPS float64  `json:"avg_speed_mps"`
	AvgHR       *float64 `json:"avg_hr,omitempty"`
	PeakHR      *float64 `json:"peak_hr,omitempty"`
}

// RestSegment is one recovery between repetitions.
type RestSegment struct {
	Index         int      `json:"index"`
	DurationS     int      `json:"duration_s"`
	AvgHR         *float64 `json:"avg_hr,omitempty"`
	HRRecoveryBPM *float64 `json:"hr_recovery_bpm,omitempty"`
}

// IntervalStructure describes the work/rest layout of an interval session.
type IntervalStructure struct {
	WarmupS     *int          `json:"warmup_s,omitempty"`
	CooldownS   *int          `json:"cooldown_s,omitempty"`
	Work        []WorkSegment `json:"work"`
	Rest        []RestSegment `json:"rest"`
	RepCount    int           `json:"rep_count"`
	WorkToRest  *float64      `json:"work_to_rest,omitempty"`
	WorkSpeedCV *float64      `json:"work_speed_cv,omitempty"`
}

// Class is the assigned activity class.
type Class string

const (
	ClassIntervals Class = "intervals"
	ClassTempo     Class = "tempo"
	ClassLong      Class = "long"
	ClassHills     Class = "hills"
	ClassEasy      Class = "easy"
	ClassRecovery  Class = "recovery"
	ClassRace      Class = "race"
	ClassUnknown   Class = "unknown"
)

// Flag is a conservative safety/quality marker.
type Flag string

const (
	FlagLowConfidenceHR  Flag = "data_low_confidence_hr"
	FlagLowConfidenceGPS Flag = "gps_low_confidence"
	FlagIntensityTooHigh Flag = "intensity_too_high_for_easy"
	FlagFatiguePossible  Flag = "fatigue_possible"
	FlagLoadSpike        Flag = "load_spike"
	FlagPainReported     Flag = "pain_reported"
	FlagPainSevere       Flag = "pain_severe"
	FlagIllness          Flag = "illness_or_extreme_fatigue"
)

// Confidence rates overall result reliability.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// RiskLevel buckets the deterministic risk score.
type RiskLevel string

const (
	RiskGreen RiskLevel = "green"
	RiskAmber RiskLevel = "amber"
	RiskRed   RiskLevel = "red"
)

// HistoryBaseline is the caller-supplied rolling history context. The zero
// value means "no history"; the engine never fetches it.
type HistoryBaseline struct {
	SampleCount        int     // activities inside the 28-day window
	DurationP80S       float64 // 80th percentile moving time over 28 days
	Load7dKm           float64 // distance covered in the trailing 7 days
	AvgWeeklyLoad28dKm float64 // 28-day distance divided by four
	EffortMean         float64
	EffortStd          float64
}

// MinBaselineSamples is the history depth below which the baseline is
// considered thin and duration/effort comparisons fall back to absolutes.
const MinBaselineSamples = 6

// Sufficient reports whether the baseline carries enough history for
// percentile- and z-score-based rules.
func (b HistoryBaseline) Sufficient() bool {
	return b.SampleCount >= MinBaselineSamples
}

// DerivedMetrics is the engine's sole output. Optional values are nil with a
// reason recorded in ConfidenceReasons, never a substituted default.
type DerivedMetrics struct {
	ActivityClass     Class               `json:"activity_class"`
	EffortScore       float64             `json:"effort_score"`
	PaceVariability   *float64            `json:"pace_variability,omitempty"`
	HRDrift           *float64            `json:"hr_drift,omitempty"`
	TimeInZones       map[string]float64  `json:"time_in_zones,omitempty"` // minutes per zone, keys Z1..Z5
	Efficiency        *EfficiencyAnalysis `json:"efficiency,omitempty"`
	Stops             *StopsAnalysis      `json:"stops,omitempty"`
	Intervals         *IntervalStructure  `json:"intervals,omitempty"`
	Splits            []Split             `json:"splits,omitempty"`
	Flags             []Flag              `json:"flags"`
	RiskLevel         RiskLevel           `json:"risk_level"`
	RiskScore         int                 `json:"risk_score"`
	RiskReasons       []string            `json:"risk_reasons"`
	Confidence        Confidence          `json:"confidence"`
	ConfidenceReasons []string            `json:"confidence_reasons"`
}

// HasFlag reports whether the given flag was raised.
func (m *DerivedMetrics) HasFlag(f Flag) bool {
	for _, have := range m.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// Input bundles everything one evaluation consumes.
type Input struct {
	Summary  ActivitySummary
	Streams  StreamSet
	Profile  *UserProfile
	CheckIn  *CheckIn
	Baseline HistoryBaseline
}

// ValidationError marks structurally invalid required input. Evaluation
// aborts; missing optional signals never produce one.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
