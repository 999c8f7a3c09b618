package domain

import (
	"time"

	"example.com/insight/internal/analysis"
)

// ActivityState tracks where an activity sits in the analysis pipeline.
type ActivityState string

const (
	ActivityStatePending  ActivityState = "pending"
	ActivityStateAnalyzed ActivityState = "analyzed"
	ActivityStateFailed   ActivityState = "failed"
)

// Activity is the canonical summary record stored in PostgreSQL.
type Activity struct {
	ID           string
	TenantID     string
	UserID       string
	ActivityType string
	Name         string
	UserIntent   string
	StartedAt    time.Time
	DistanceM    float64
	MovingTimeS  int
	ElapsedTimeS int
	ElevGainM    float64
	AvgHR        *float64
	MaxHR        *float64
	AvgCadence   *float64
	AvgSpeedMPS  *float64
	Source       string
	Version      string
	State        ActivityState
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Streams is the raw per-channel time series as ingested. A nil entry is a
// null sample; channel keys follow the wire names (time, distance, velocity,
// heartrate, cadence, altitude, grade, power).
type Streams map[string][]*float64

// ToStreamSet converts raw streams into the engine's sample representation.
func (s Streams) ToStreamSet() analysis.StreamSet {
	if len(s) == 0 {
		return nil
	}
	out := make(analysis.StreamSet, len(s))
	for name, values := range s {
		samples := make([]analysis.Sample, len(values))
		for i, v := range values {
			if v != nil {
				samples[i] = analysis.V(*v)
			}
		}
		out[analysis.Channel(name)] = samples
	}
	return out
}

// CheckIn is the athlete's subjective post-activity report.
type CheckIn struct {
	ActivityID   string
	TenantID     string
	UserID       string
	RPE          *int
	PainScore    *int
	PainLocation string
	SleepQuality *int
	Illness      bool
	CreatedAt    time.Time
}

// Profile holds per-athlete context used during analysis.
type Profile struct {
	UserID     string
	TenantID   string
	MaxHR      *float64
	Experience string
	Goal       string
	UpdatedAt  time.Time
}

// Insight is the persisted analysis result for one activity.
type Insight struct {
	ActivityID    string
	TenantID      string
	UserID        string
	EngineVersion string
	Metrics       analysis.DerivedMetrics
	ComputedAt    time.Time
}

// HistorySample is one prior activity used when building the athlete baseline.
type HistorySample struct {
	StartedAt   time.Time
	DistanceM   float64
	MovingTimeS int
	EffortScore *float64
}

// Cursor models the list pagination token.
type Cursor struct {
	StartedAt time.Time
	ID        string
}
