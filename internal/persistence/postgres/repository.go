package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/insight/internal/domain"
	"example.com/insight/internal/events"
	"example.com/insight/internal/observability"
)

// Repository provides Postgres-backed persistence for activities, insights,
// and outbox events. Every operation pins app.tenant_id for row-level
// security before touching tenant-scoped tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const activityColumns = `activity_id, tenant_id, user_id, activity_type, name, user_intent, started_at,
        distance_m, moving_time_s, elapsed_time_s, elev_gain_m, avg_hr, max_hr, avg_cadence, avg_speed_mps,
        source, version, processing_state, created_at, updated_at`

func scanActivity(row pgx.Row) (*domain.Activity, error) {
	var a domain.Activity
	err := row.Scan(&a.ID, &a.TenantID, &a.UserID, &a.ActivityType, &a.Name, &a.UserIntent, &a.StartedAt,
		&a.DistanceM, &a.MovingTimeS, &a.ElapsedTimeS, &a.ElevGainM, &a.AvgHR, &a.MaxHR, &a.AvgCadence, &a.AvgSpeedMPS,
		&a.Source, &a.Version, &a.State, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByIdempotency checks if an activity already exists for the supplied idempotency key.
func (r *Repository) FindByIdempotency(ctx context.Context, tenantID, userID, idempotencyKey string) (*domain.Activity, error) {
	if idempotencyKey == "" {
		return nil, nil
	}

	query := `SELECT ` + activityColumns + ` FROM activities WHERE tenant_id=$1 AND user_id=$2 AND idempotency_key=$3`

	var found *domain.Activity
	err := r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		activity, err := scanActivity(tx.QueryRow(ctx, query, tenantID, userID, idempotencyKey))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = activity
		return nil
	})
	return found, err
}

// Create persists the activity with its attached streams and check-in, and
// records the outbox event inside the same transaction.
func (r *Repository) Create(ctx context.Context, activity domain.Activity, streams domain.Streams, checkIn *domain.CheckIn, idempotencyKey string) error {
	err := r.withTenantTx(ctx, activity.TenantID, func(tx pgx.Tx) error {
		insertActivity := `INSERT INTO activities (activity_id, tenant_id, user_id, activity_type, name, user_intent, started_at,
            distance_m, moving_time_s, elapsed_time_s, elev_gain_m, avg_hr, max_hr, avg_cadence, avg_speed_mps,
            source, idempotency_key, version, processing_state, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`

		if _, err := tx.Exec(ctx, insertActivity,
			activity.ID,
			activity.TenantID,
			activity.UserID,
			activity.ActivityType,
			activity.Name,
			activity.UserIntent,
			activity.StartedAt,
			activity.DistanceM,
			activity.MovingTimeS,
			activity.ElapsedTimeS,
			activity.ElevGainM,
			activity.AvgHR,
			activity.MaxHR,
			activity.AvgCadence,
			activity.AvgSpeedMPS,
			activity.Source,
			nullIfEmpty(idempotencyKey),
			activity.Version,
			activity.State,
			activity.CreatedAt,
			activity.UpdatedAt,
		); err != nil {
			return err
		}

		if len(streams) > 0 {
			channels, err := json.Marshal(streams)
			if err != nil {
				return err
			}
			const insertStreams = `INSERT INTO activity_streams (activity_id, tenant_id, channels, created_at) VALUES ($1,$2,$3,$4)`
			if _, err := tx.Exec(ctx, insertStreams, activity.ID, activity.TenantID, channels, activity.CreatedAt); err != nil {
				return err
			}
		}

		if checkIn != nil {
			const insertCheckIn = `INSERT INTO check_ins (activity_id, tenant_id, user_id, rpe, pain_score, pain_location, sleep_quality, illness, created_at)
                VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
			if _, err := tx.Exec(ctx, insertCheckIn,
				activity.ID, activity.TenantID, activity.UserID,
				checkIn.RPE, checkIn.PainScore, nullIfEmpty(checkIn.PainLocation), checkIn.SleepQuality, checkIn.Illness,
				activity.CreatedAt,
			); err != nil {
				return err
			}
		}

		return r.insertOutbox(ctx, tx, activity.TenantID, activity.ID, "activity.created", events.ActivityCreated{
			ActivityID:   activity.ID,
			TenantID:     activity.TenantID,
			UserID:       activity.UserID,
			ActivityType: activity.ActivityType,
			StartedAt:    activity.StartedAt,
			DurationMin:  activity.MovingTimeS / 60,
			Source:       activity.Source,
			Version:      activity.Version,
		}, partitionByUser(activity.TenantID, activity.UserID))
	})
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// Get retrieves an activity by ID. Returns nil without error when absent.
func (r *Repository) Get(ctx context.Context, tenantID, activityID string) (*domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE tenant_id=$1 AND activity_id=$2`

	var found *domain.Activity
	err := r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		activity, err := scanActivity(tx.QueryRow(ctx, query, tenantID, activityID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = activity
		return nil
	})
	return found, err
}

// ListByUser returns activities for a user ordered by time.
func (r *Repository) ListByUser(ctx context.Context, tenantID, userID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	args := []interface{}{tenantID, userID, limit}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE tenant_id=$1 AND user_id=$2`

	if cursor != nil {
		query += ` AND (started_at, activity_id) < ($4, $5)`
		args = append(args, cursor.StartedAt, cursor.ID)
	}

	query += ` ORDER BY started_at DESC, activity_id DESC LIMIT $3`

	results := make([]domain.Activity, 0, limit)
	err := r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			activity, err := scanActivity(rows)
			if err != nil {
				return err
			}
			results = append(results, *activity)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{StartedAt: last.StartedAt, ID: last.ID}
	}

	return results, nextCursor, nil
}

// GetStreams loads the raw channel series attached to an activity. A nil map
// means no streams were ingested.
func (r *Repository) GetStreams(ctx context.Context, tenantID, activityID string) (domain.Streams, error) {
	const query = `SELECT channels FROM activity_streams WHERE tenant_id=$1 AND activity_id=$2`

	var streams domain.Streams
	err := r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		var raw []byte
		if err := tx.QueryRow(ctx, query, tenantID, activityID).Scan(&raw); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		return json.Unmarshal(raw, &streams)
	})
	return streams, err
}

// GetCheckIn loads the subjective report for an activity, if one was filed.
func (r *Repository) GetCheckIn(ctx context.Context, tenantID, activityID string) (*domain.CheckIn, error) {
	const query = `SELECT activity_id, tenant_id, user_id, rpe, pain_score, COALESCE(pain_location,''), sleep_quality, illness, created_at
        FROM check_ins WHERE tenant_id=$1 AND activity_id=$2`

	var found *domain.CheckIn
	err := r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		var c domain.CheckIn
		err := tx.QueryRow(ctx, query, tenantID, activityID).Scan(
			&c.ActivityID, &c.TenantID, &c.UserID, &c.RPE, &c.PainScore, &c.PainLocation, &c.SleepQuality, &c.Illness, &c.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &c
		return nil
	})
	return found, err
}

// GetProfile loads the athlete profile, if one exists.
func (r *Repository) GetProfile(ctx context.Context, tenantID, userID string) (*domain.Profile, error) {
	const query = `SELECT user_id, tenant_id, max_hr, COALESCE(experience,''), COALESCE(goal,''), updated_at
        FROM user_profiles WHERE tenant_id=$1 AND user_id=$2`

	var found *domain.Profile
	err := r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		var p domain.Profile
		err := tx.QueryRow(ctx, query, tenantID, userID).Scan(
			&p.UserID, &p.TenantID, &p.MaxHR, &p.Experience, &p.Goal, &p.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &p
		return nil
	})
	return found, err
}

// UpsertProfile stores or refreshes an athlete profile.
func (r *Repository) UpsertProfile(ctx context.Context, profile domain.Profile) error {
	const stmt = `INSERT INTO user_profiles (user_id, tenant_id, max_hr, experience, goal, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (tenant_id, user_id) DO UPDATE
        SET max_hr=EXCLUDED.max_hr, experience=EXCLUDED.experience, goal=EXCLUDED.goal, updated_at=EXCLUDED.updated_at`

	return r.withTenantTx(ctx, profile.TenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, stmt,
			profile.UserID, profile.TenantID, profile.MaxHR,
			nullIfEmpty(profile.Experience), nullIfEmpty(profile.Goal), profile.UpdatedAt)
		return err
	})
}

// ListHistory returns prior activities in [since, until) joined with any
// stored effort scores, oldest first. The activity starting exactly at until
// is excluded so a baseline never includes the activity under analysis.
func (r *Repository) ListHistory(ctx context.Context, tenantID, userID string, since, until time.Time) ([]domain.HistorySample, error) {
	const query = `SELECT a.started_at, a.distance_m, a.moving_time_s, (i.metrics->>'effort_score')::float8
        FROM activities a
        LEFT JOIN insights i ON i.tenant_id = a.tenant_id AND i.activity_id = a.activity_id
        WHERE a.tenant_id=$1 AND a.user_id=$2 AND a.started_at >= $3 AND a.started_at < $4
        ORDER BY a.started_at ASC`

	var samples []domain.HistorySample
	err := r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, tenantID, userID, since, until)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s domain.HistorySample
			if err := rows.Scan(&s.StartedAt, &s.DistanceM, &s.MovingTimeS, &s.EffortScore); err != nil {
				return err
			}
			samples = append(samples, s)
		}
		return rows.Err()
	})
	return samples, err
}

// SaveInsight upserts the analysis result, marks the activity analyzed, and
// records the activity.analyzed outbox event in the same transaction.
func (r *Repository) SaveInsight(ctx context.Context, insight domain.Insight) error {
	metrics, err := json.Marshal(insight.Metrics)
	if err != nil {
		return err
	}

	err = r.withTenantTx(ctx, insight.TenantID, func(tx pgx.Tx) error {
		const upsert = `INSERT INTO insights (activity_id, tenant_id, user_id, engine_version, metrics, computed_at)
            VALUES ($1,$2,$3,$4,$5,$6)
            ON CONFLICT (tenant_id, activity_id) DO UPDATE
            SET engine_version=EXCLUDED.engine_version, metrics=EXCLUDED.metrics, computed_at=EXCLUDED.computed_at`
		if _, err := tx.Exec(ctx, upsert,
			insight.ActivityID, insight.TenantID, insight.UserID,
			insight.EngineVersion, metrics, insight.ComputedAt,
		); err != nil {
			return err
		}

		const markAnalyzed = `UPDATE activities SET processing_state=$3, updated_at=$4 WHERE tenant_id=$1 AND activity_id=$2`
		if _, err := tx.Exec(ctx, markAnalyzed, insight.TenantID, insight.ActivityID, domain.ActivityStateAnalyzed, insight.ComputedAt); err != nil {
			return err
		}

		flags := make([]string, 0, len(insight.Metrics.Flags))
		for _, f := range insight.Metrics.Flags {
			flags = append(flags, string(f))
		}
		return r.insertOutbox(ctx, tx, insight.TenantID, insight.ActivityID, "activity.analyzed", events.ActivityAnalyzed{
			ActivityID:    insight.ActivityID,
			TenantID:      insight.TenantID,
			UserID:        insight.UserID,
			ActivityClass: string(insight.Metrics.ActivityClass),
			RiskLevel:     string(insight.Metrics.RiskLevel),
			Confidence:    string(insight.Metrics.Confidence),
			Flags:         flags,
			AnalyzedAt:    insight.ComputedAt,
			Version:       insight.EngineVersion,
		}, partitionByUser(insight.TenantID, insight.UserID))
	})
	if err != nil {
		return err
	}
	observability.RecordInsightPersisted(insight.ComputedAt)
	return nil
}

// GetInsight loads the stored analysis result. Returns nil without error when absent.
func (r *Repository) GetInsight(ctx context.Context, tenantID, activityID string) (*domain.Insight, error) {
	const query = `SELECT activity_id, tenant_id, user_id, engine_version, metrics, computed_at
        FROM insights WHERE tenant_id=$1 AND activity_id=$2`

	var found *domain.Insight
	err := r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		var (
			i   domain.Insight
			raw []byte
		)
		err := tx.QueryRow(ctx, query, tenantID, activityID).Scan(
			&i.ActivityID, &i.TenantID, &i.UserID, &i.EngineVersion, &raw, &i.ComputedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &i.Metrics); err != nil {
			return err
		}
		found = &i
		return nil
	})
	return found, err
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, tenantID, aggregateID, eventType string, payload interface{}, partitionKey string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s", aggregateID, eventType)

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		tenantID,
		"activity",
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

// withTenantTx runs fn inside a transaction with app.tenant_id pinned.
func (r *Repository) withTenantTx(ctx context.Context, tenantID string, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func partitionByUser(tenantID, userID string) string {
	return fmt.Sprintf("%s:%s", tenantID, userID)
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	"activity.created": {
		Topic:         "activity_events",
		SchemaSubject: "activity_events-value",
	},
	"activity.analyzed": {
		Topic:         "insight_events",
		SchemaSubject: "insight_events-value",
	},
}
