package postgres

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/stridefit/stride/internal/domain"
)

var testDSN string

func TestMain(m *testing.M) {
	flag.Parse()

	var terminate func()
	if !testing.Short() {
		testDSN, terminate = setupContainer(context.Background())
	}

	code := m.Run()
	if terminate != nil {
		terminate()
	}
	os.Exit(code)
}

func setupContainer(ctx context.Context) (string, func()) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("recovered from panic in setupContainer: %v\n", r)
		}
	}()

	c, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("stride"),
		tcpostgres.WithUsername("stride"),
		tcpostgres.WithPassword("stride"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Printf("WARNING: failed to start postgres container: %v\n", err)
		return "", func() {}
	}
	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Printf("WARNING: failed to get connection string: %v\n", err)
		_ = c.Terminate(ctx)
		return "", func() {}
	}
	return dsn, func() {
		if err := c.Terminate(ctx); err != nil {
			fmt.Printf("failed to terminate container: %v\n", err)
		}
	}
}

func testStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	if testDSN == "" {
		t.Skip("postgres container unavailable")
	}
	ctx := context.Background()
	s, err := Open(ctx, testDSN, DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, `TRUNCATE streak_states, activation_profiles`)
		s.Close()
	})
	return s
}

// ═══════════════════════════════════════════════════════════════════════════
// Lifecycle
// ═══════════════════════════════════════════════════════════════════════════

func TestOpen_MigratesIdempotently(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Ping(ctx))
}

func TestOpen_BadDSN(t *testing.T) {
	_, err := Open(context.Background(), "not a dsn ::", DefaultPoolConfig())
	assert.Error(t, err)
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak States
// ═══════════════════════════════════════════════════════════════════════════

func TestStreak_RoundTripAndCAS(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.LoadStreakState(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	st := domain.StreakState{
		CurrentStreak:         3,
		LongestStreak:         7,
		LastQualifyingAt:      now,
		FreezeTokensAvailable: 2,
		WeekendSkipEnabled:    true,
		TimeZone:              "Europe/Berlin",
		UpdatedAt:             now,
	}
	require.NoError(t, s.SaveStreakState(ctx, "u1", st))

	got, err := s.LoadStreakState(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Revision)
	assert.Equal(t, 3, got.CurrentStreak)
	assert.Equal(t, 7, got.LongestStreak)
	assert.True(t, got.WeekendSkipEnabled)
	assert.Equal(t, "Europe/Berlin", got.TimeZone)
	assert.True(t, got.LastQualifyingAt.Equal(now))

	// A second insert at revision 0 loses.
	require.ErrorIs(t, s.SaveStreakState(ctx, "u1", st), domain.ErrConflict)

	got.CurrentStreak = 4
	require.NoError(t, s.SaveStreakState(ctx, "u1", got))
	require.ErrorIs(t, s.SaveStreakState(ctx, "u1", got), domain.ErrConflict)
}

// ═══════════════════════════════════════════════════════════════════════════
// Activation Profiles
// ═══════════════════════════════════════════════════════════════════════════

func TestProfile_RoundTripDelete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := domain.NewActivationProfile("sess-1", true)
	p.ActivationScore = 15
	p.Events = []domain.ActivationEvent{{ID: "e1", Name: "goal_set", Points: 15}}
	p.UpdatedAt = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveActivationProfile(ctx, "sess-1", p))

	got, err := s.LoadActivationProfile(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Revision)
	assert.True(t, got.Anonymous)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "goal_set", got.Events[0].Name)

	require.ErrorIs(t, s.SaveActivationProfile(ctx, "sess-1", p), domain.ErrConflict)

	require.NoError(t, s.DeleteActivationProfile(ctx, "sess-1"))
	require.ErrorIs(t, s.DeleteActivationProfile(ctx, "sess-1"), domain.ErrNotFound)
	_, err = s.LoadActivationProfile(ctx, "sess-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClosedPool_StorageError(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	s.pool.Close()

	_, err := s.LoadStreakState(ctx, "u1")
	assert.True(t, domain.IsStorageError(err))
}
