//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/insight/internal/analysis"
	"example.com/insight/internal/domain"
)

func setupRepository(t *testing.T, ctx context.Context) *Repository {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("insight"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return NewRepository(pool)
}

func sampleActivity(tenantID, userID string) domain.Activity {
	hr := 150.0
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.Activity{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		UserID:       userID,
		ActivityType: "run",
		Name:         "morning run",
		StartedAt:    now,
		DistanceM:    10000,
		MovingTimeS:  3000,
		ElapsedTimeS: 3100,
		ElevGainM:    40,
		AvgHR:        &hr,
		Source:       "integration-test",
		Version:      "v1",
		State:        domain.ActivityStatePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestRepositoryRespectsTenantIsolation(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	activity := sampleActivity(uuid.NewString(), uuid.NewString())

	err := repo.Create(ctx, activity, nil, nil, "key-1")
	require.NoError(t, err)

	stored, err := repo.Get(ctx, activity.TenantID, activity.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, activity.ID, stored.ID)
	require.NotNil(t, stored.AvgHR)
	require.InDelta(t, 150.0, *stored.AvgHR, 0.001)

	otherTenant := uuid.NewString()
	storedOther, err := repo.Get(ctx, otherTenant, activity.ID)
	require.NoError(t, err)
	require.Nil(t, storedOther, "RLS should prevent cross-tenant access")
}

func TestRepositoryRoundTripsStreamsAndCheckIn(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	activity := sampleActivity(uuid.NewString(), uuid.NewString())

	v0, v1 := 3.2, 3.4
	streams := domain.Streams{
		"time":     {f(0), f(1), f(2)},
		"velocity": {&v0, nil, &v1},
	}
	rpe := 6
	checkIn := &domain.CheckIn{UserID: activity.UserID, RPE: &rpe}

	require.NoError(t, repo.Create(ctx, activity, streams, checkIn, ""))

	gotStreams, err := repo.GetStreams(ctx, activity.TenantID, activity.ID)
	require.NoError(t, err)
	require.Len(t, gotStreams["time"], 3)
	require.Nil(t, gotStreams["velocity"][1], "null samples survive the round trip")
	require.InDelta(t, 3.4, *gotStreams["velocity"][2], 0.001)

	gotCheckIn, err := repo.GetCheckIn(ctx, activity.TenantID, activity.ID)
	require.NoError(t, err)
	require.NotNil(t, gotCheckIn)
	require.Equal(t, 6, *gotCheckIn.RPE)
}

func TestRepositorySaveInsightIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	activity := sampleActivity(uuid.NewString(), uuid.NewString())
	require.NoError(t, repo.Create(ctx, activity, nil, nil, ""))

	insight := domain.Insight{
		ActivityID:    activity.ID,
		TenantID:      activity.TenantID,
		UserID:        activity.UserID,
		EngineVersion: domain.EngineVersion,
		Metrics: analysis.DerivedMetrics{
			ActivityClass: analysis.ClassEasy,
			EffortScore:   50,
			Flags:         []analysis.Flag{},
			RiskLevel:     analysis.RiskGreen,
			Confidence:    analysis.ConfidenceLow,
		},
		ComputedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	require.NoError(t, repo.SaveInsight(ctx, insight))
	require.NoError(t, repo.SaveInsight(ctx, insight), "re-analysis upserts")

	stored, err := repo.GetInsight(ctx, activity.TenantID, activity.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, analysis.ClassEasy, stored.Metrics.ActivityClass)

	updated, err := repo.Get(ctx, activity.TenantID, activity.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ActivityStateAnalyzed, updated.State)
}

func TestRepositoryListHistoryJoinsEffortScores(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	tenantID := uuid.NewString()
	userID := uuid.NewString()

	old := sampleActivity(tenantID, userID)
	old.StartedAt = time.Now().UTC().AddDate(0, 0, -10)
	require.NoError(t, repo.Create(ctx, old, nil, nil, ""))

	insight := domain.Insight{
		ActivityID:    old.ID,
		TenantID:      tenantID,
		UserID:        userID,
		EngineVersion: domain.EngineVersion,
		Metrics: analysis.DerivedMetrics{
			ActivityClass: analysis.ClassEasy,
			EffortScore:   80,
			Flags:         []analysis.Flag{},
			RiskLevel:     analysis.RiskGreen,
			Confidence:    analysis.ConfidenceMedium,
		},
		ComputedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.SaveInsight(ctx, insight))

	since := time.Now().UTC().AddDate(0, 0, -28)
	until := time.Now().UTC()
	samples, err := repo.ListHistory(ctx, tenantID, userID, since, until)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.NotNil(t, samples[0].EffortScore)
	require.InDelta(t, 80, *samples[0].EffortScore, 0.001)
}

func TestRepositoryUpsertProfileReplacesRecord(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	tenantID := uuid.NewString()
	userID := uuid.NewString()

	first := domain.Profile{
		UserID:     userID,
		TenantID:   tenantID,
		MaxHR:      f(185),
		Experience: "beginner",
		UpdatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.UpsertProfile(ctx, first))

	second := first
	second.MaxHR = f(182)
	second.Experience = "intermediate"
	second.Goal = "10k"
	second.UpdatedAt = first.UpdatedAt.Add(time.Hour)
	require.NoError(t, repo.UpsertProfile(ctx, second))

	stored, err := repo.GetProfile(ctx, tenantID, userID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.InDelta(t, 182, *stored.MaxHR, 0.001)
	require.Equal(t, "intermediate", stored.Experience)
	require.Equal(t, "10k", stored.Goal)
}

func f(v float64) *float64 { return &v }

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
