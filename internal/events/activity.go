// Package events defines cross-service event payloads for the insight pipeline.
package events

import "time"

// ActivityCreated is the message consumed when an upstream service accepts a new activity.
type ActivityCreated struct {
	ActivityID   string    `json:"activity_id"`
	TenantID     string    `json:"tenant_id"`
	UserID       string    `json:"user_id"`
	ActivityType string    `json:"activity_type"`
	StartedAt    time.Time `json:"started_at"`
	DurationMin  int       `json:"duration_min"`
	Source       string    `json:"source"`
	Version      string    `json:"version"`
}

// ActivityAnalyzed is emitted once derived metrics for an activity have been persisted.
type ActivityAnalyzed struct {
	ActivityID    string    `json:"activity_id"`
	TenantID      string    `json:"tenant_id"`
	UserID        string    `json:"user_id"`
	ActivityClass string    `json:"activity_class"`
	RiskLevel     string    `json:"risk_level"`
	Confidence    string    `json:"confidence"`
	Flags         []string  `json:"flags"`
	AnalyzedAt    time.Time `json:"analyzed_at"`
	Version       string    `json:"version"`
}
