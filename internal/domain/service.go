// Package domain defines the business logic for the insight service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/insight/internal/analysis"
	"example.com/insight/internal/baseline"
	"example.com/insight/internal/observability"
)

// EngineVersion is stamped on every persisted insight so results computed by
// older rule sets can be told apart after a redeploy.
const EngineVersion = "v1"

var (
	// ErrIdempotentReplay indicates an existing activity was found for the provided idempotency key.
	ErrIdempotentReplay = errors.New("activity already exists for idempotency key")
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrInsightNotFound is returned when an activity has not been analyzed yet.
	ErrInsightNotFound = errors.New("insight not found")
	// ErrProfileNotFound is returned when a user has no stored profile.
	ErrProfileNotFound = errors.New("profile not found")
)

// ActivityRepository captures persistence operations.
type ActivityRepository interface {
	FindByIdempotency(ctx context.Context, tenantID, userID, idempotencyKey string) (*Activity, error)
	Create(ctx context.Context, activity Activity, streams Streams, checkIn *CheckIn, idempotencyKey string) error
	Get(ctx context.Context, tenantID, activityID string) (*Activity, error)
	ListByUser(ctx context.Context, tenantID, userID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
	GetStreams(ctx context.Context, tenantID, activityID string) (Streams, error)
	GetCheckIn(ctx context.Context, tenantID, activityID string) (*CheckIn, error)
	GetProfile(ctx context.Context, tenantID, userID string) (*Profile, error)
	UpsertProfile(ctx context.Context, profile Profile) error
	ListHistory(ctx context.Context, tenantID, userID string, since, until time.Time) ([]HistorySample, error)
	SaveInsight(ctx context.Context, insight Insight) error
	GetInsight(ctx context.Context, tenantID, activityID string) (*Insight, error)
}

// Service orchestrates activity ingestion and analysis workflows.
type Service struct {
	repo               ActivityRepository
	baselineWindowDays int
}

// NewService constructs a Service.
func NewService(repo ActivityRepository, baselineWindowDays int) *Service {
	if baselineWindowDays <= 0 {
		baselineWindowDays = 28
	}
	return &Service{repo: repo, baselineWindowDays: baselineWindowDays}
}

// CreateActivityInput captures the payload from the API or consumer layer.
type CreateActivityInput struct {
	TenantID       string
	UserID         string
	ActivityType   string
	Name           string
	UserIntent     string
	StartedAt      time.Time
	DistanceM      float64
	MovingTimeS    int
	ElapsedTimeS   int
	ElevGainM      float64
	AvgHR          *float64
	MaxHR          *float64
	AvgCadence     *float64
	AvgSpeedMPS    *float64
	Source         string
	Streams        Streams
	CheckIn        *CheckIn
	IdempotencyKey string
}

// CreateActivity handles idempotent create semantics and outbox recording.
// The bool result reports whether an existing record was replayed.
func (s *Service) CreateActivity(ctx context.Context, input CreateActivityInput) (*Activity, bool, error) {
	if existing, err := s.repo.FindByIdempotency(ctx, input.TenantID, input.UserID, input.IdempotencyKey); err == nil && existing != nil {
		return existing, true, nil
	}

	now := time.Now().UTC()
	activity := Activity{
		ID:           uuid.NewString(),
		TenantID:     input.TenantID,
		UserID:       input.UserID,
		ActivityType: input.ActivityType,
		Name:         input.Name,
		UserIntent:   input.UserIntent,
		StartedAt:    input.StartedAt.UTC(),
		DistanceM:    input.DistanceM,
		MovingTimeS:  input.MovingTimeS,
		ElapsedTimeS: input.ElapsedTimeS,
		ElevGainM:    input.ElevGainM,
		AvgHR:        input.AvgHR,
		MaxHR:        input.MaxHR,
		AvgCadence:   input.AvgCadence,
		AvgSpeedMPS:  input.AvgSpeedMPS,
		Source:       input.Source,
		Version:      "v1",
		State:        ActivityStatePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, activity, input.Streams, input.CheckIn, input.IdempotencyKey); err != nil {
		return nil, false, err
	}

	return &activity, false, nil
}

// GetActivity fetches by ID.
func (s *Service) GetActivity(ctx context.Context, tenantID, activityID string) (*Activity, error) {
	activity, err := s.repo.Get(ctx, tenantID, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// ListActivitiesByUser fetches activities with cursor pagination.
func (s *Service) ListActivitiesByUser(ctx context.Context, tenantID, userID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error) {
	return s.repo.ListByUser(ctx, tenantID, userID, cursor, limit)
}

// AnalyzeActivity loads everything the engine needs, evaluates the activity,
// and persists the resulting insight. Re-running on unchanged inputs yields
// an identical insight.
func (s *Service) AnalyzeActivity(ctx context.Context, tenantID, activityID string) (*Insight, error) {
	started := time.Now()

	activity, err := s.GetActivity(ctx, tenantID, activityID)
	if err != nil {
		return nil, err
	}

	streams, err := s.repo.GetStreams(ctx, tenantID, activityID)
	if err != nil {
		return nil, fmt.Errorf("load streams: %w", err)
	}
	checkIn, err := s.repo.GetCheckIn(ctx, tenantID, activityID)
	if err != nil {
		return nil, fmt.Errorf("load check-in: %w", err)
	}
	profile, err := s.repo.GetProfile(ctx, tenantID, activity.UserID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	base, err := s.buildBaseline(ctx, tenantID, activity.UserID, activity.StartedAt)
	if err != nil {
		return nil, err
	}

	input := analysis.Input{
		Summary: analysis.ActivitySummary{
			Type:         activity.ActivityType,
			Name:         activity.Name,
			UserIntent:   activity.UserIntent,
			DistanceM:    activity.DistanceM,
			MovingTimeS:  activity.MovingTimeS,
			ElapsedTimeS: activity.ElapsedTimeS,
			ElevGainM:    activity.ElevGainM,
			AvgHR:        activity.AvgHR,
			MaxHR:        activity.MaxHR,
			AvgCadence:   activity.AvgCadence,
			AvgSpeedMPS:  activity.AvgSpeedMPS,
			StartedAt:    activity.StartedAt,
		},
		Streams:  streams.ToStreamSet(),
		Baseline: base,
	}
	if profile != nil {
		input.Profile = &analysis.UserProfile{
			MaxHR:      profile.MaxHR,
			Experience: profile.Experience,
			Goal:       profile.Goal,
		}
	}
	if checkIn != nil {
		input.CheckIn = &analysis.CheckIn{
			RPE:          checkIn.RPE,
			PainScore:    checkIn.PainScore,
			PainLocation: checkIn.PainLocation,
			SleepQuality: checkIn.SleepQuality,
			Illness:      checkIn.Illness,
		}
	}

	metrics, err := analysis.Evaluate(input)
	if err != nil {
		return nil, err
	}

	insight := Insight{
		ActivityID:    activity.ID,
		TenantID:      tenantID,
		UserID:        activity.UserID,
		EngineVersion: EngineVersion,
		Metrics:       *metrics,
		ComputedAt:    time.Now().UTC(),
	}
	if err := s.repo.SaveInsight(ctx, insight); err != nil {
		return nil, fmt.Errorf("save insight: %w", err)
	}

	flags := make([]string, 0, len(metrics.Flags))
	for _, f := range metrics.Flags {
		flags = append(flags, string(f))
	}
	observability.RecordAnalysis(string(metrics.ActivityClass), flags, time.Since(started))
	return &insight, nil
}

// SaveProfile stores or replaces the athlete profile for a user.
func (s *Service) SaveProfile(ctx context.Context, profile Profile) (*Profile, error) {
	profile.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return &profile, nil
}

// GetUserProfile returns the stored athlete profile, if any.
func (s *Service) GetUserProfile(ctx context.Context, tenantID, userID string) (*Profile, error) {
	profile, err := s.repo.GetProfile(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// GetInsight returns the stored analysis result for an activity.
func (s *Service) GetInsight(ctx context.Context, tenantID, activityID string) (*Insight, error) {
	insight, err := s.repo.GetInsight(ctx, tenantID, activityID)
	if err != nil {
		return nil, err
	}
	if insight == nil {
		return nil, ErrInsightNotFound
	}
	return insight, nil
}

func (s *Service) buildBaseline(ctx context.Context, tenantID, userID string, asOf time.Time) (analysis.HistoryBaseline, error) {
	since := asOf.AddDate(0, 0, -s.baselineWindowDays)
	history, err := s.repo.ListHistory(ctx, tenantID, userID, since, asOf)
	if err != nil {
		return analysis.HistoryBaseline{}, fmt.Errorf("load history: %w", err)
	}
	samples := make([]baseline.Sample, 0, len(history))
	for _, h := range history {
		samples = append(samples, baseline.Sample{
			StartedAt:   h.StartedAt,
			DistanceM:   h.DistanceM,
			MovingTimeS: h.MovingTimeS,
			EffortScore: h.EffortScore,
		})
	}
	return baseline.Build(samples, asOf), nil
}
