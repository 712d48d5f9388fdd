package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stridefit/stride/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var ts = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, FileName)); os.IsNotExist(err) {
		t.Errorf("%s should exist", FileName)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	ctx := context.Background()
	if err := db.SaveStreakState(ctx, "u1", domain.StreakState{CurrentStreak: 3, UpdatedAt: ts}); err != nil {
		t.Fatalf("save: %v", err)
	}
	db.Close()

	db, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	st, err := db.LoadStreakState(ctx, "u1")
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	if st.CurrentStreak != 3 {
		t.Errorf("CurrentStreak = %d, want 3", st.CurrentStreak)
	}
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

// ─── Streak States ──────────────────────────────────────────────────────────

func TestStreak_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.LoadStreakState(context.Background(), "nobody")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStreak_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	in := domain.StreakState{
		CurrentStreak:         4,
		LongestStreak:         9,
		TotalQualifyingDays:   20,
		FreezeTokensAvailable: 2,
		GraceWindow:           &domain.GraceWindow{EndsAt: ts.Add(48 * time.Hour)},
		LastQualifyingAt:      ts,
		WeekendSkipEnabled:    true,
		TimeZone:              "Europe/Berlin",
		MilestonesReached:     []domain.MilestoneHit{{ID: "streak_7", ReachedAt: ts.AddDate(0, 0, -3)}},
		Days:                  map[string]domain.DayStatus{"2025-07-01": domain.DayLogged},
		UpdatedAt:             ts,
	}
	if err := db.SaveStreakState(ctx, "u1", in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.LoadStreakState(ctx, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Revision != 1 {
		t.Errorf("Revision = %d, want 1", got.Revision)
	}
	if got.LongestStreak != 9 || got.FreezeTokensAvailable != 2 || !got.WeekendSkipEnabled {
		t.Errorf("counters/settings not preserved: %+v", got)
	}
	if got.GraceWindow == nil || !got.GraceWindow.EndsAt.Equal(in.GraceWindow.EndsAt) {
		t.Errorf("GraceWindow = %v, want %v", got.GraceWindow, in.GraceWindow)
	}
	if !got.LastQualifyingAt.Equal(ts) {
		t.Errorf("LastQualifyingAt = %v, want %v", got.LastQualifyingAt, ts)
	}
	if got.Days["2025-07-01"] != domain.DayLogged {
		t.Errorf("Days = %v", got.Days)
	}
	if len(got.MilestonesReached) != 1 || got.MilestonesReached[0].ID != "streak_7" {
		t.Errorf("MilestonesReached = %v", got.MilestonesReached)
	}
}

func TestStreak_CompareAndSwap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SaveStreakState(ctx, "u1", domain.StreakState{CurrentStreak: 1, UpdatedAt: ts}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// A second insert from a stale writer conflicts.
	err := db.SaveStreakState(ctx, "u1", domain.StreakState{CurrentStreak: 5, UpdatedAt: ts})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate insert err = %v, want ErrConflict", err)
	}

	st, _ := db.LoadStreakState(ctx, "u1")
	st.CurrentStreak = 2
	if err := db.SaveStreakState(ctx, "u1", st); err != nil {
		t.Fatalf("update: %v", err)
	}
	// Saving the same revision again is stale.
	if err := db.SaveStreakState(ctx, "u1", st); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("stale update err = %v, want ErrConflict", err)
	}

	got, _ := db.LoadStreakState(ctx, "u1")
	if got.Revision != 2 || got.CurrentStreak != 2 {
		t.Errorf("got rev %d streak %d, want rev 2 streak 2", got.Revision, got.CurrentStreak)
	}
}

// ─── Activation Profiles ────────────────────────────────────────────────────

func TestProfile_RoundTripAndDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	activatedAt := ts.Add(time.Hour)
	p := domain.NewActivationProfile("sess-1", true)
	p.ActivationScore = 65
	p.IsActivated = true
	p.ActivationDate = &activatedAt
	p.TimeToActivation = time.Hour
	p.Events = []domain.ActivationEvent{{
		ID: "e1", Name: "program_started", Points: 30, Category: domain.CategoryPremium, Timestamp: ts,
		Data:    []byte(`{"program":"5k"}`),
		Context: domain.EventContext{Source: "app", UserType: domain.UserTypeAnonymous},
	}}
	p.UpdatedAt = ts

	if err := db.SaveActivationProfile(ctx, p.ID, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := db.LoadActivationProfile(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Revision != 1 || !got.Anonymous || got.ActivationScore != 65 {
		t.Errorf("unexpected profile: %+v", got)
	}
	if got.ActivationDate == nil || !got.ActivationDate.Equal(activatedAt) {
		t.Errorf("ActivationDate = %v, want %v", got.ActivationDate, activatedAt)
	}
	if got.TimeToActivation != time.Hour {
		t.Errorf("TimeToActivation = %v, want 1h", got.TimeToActivation)
	}
	if len(got.Events) != 1 || string(got.Events[0].Data) != `{"program":"5k"}` {
		t.Errorf("Events = %+v", got.Events)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Profiles != 1 || stats.AnonymousProfiles != 1 || stats.ActivatedProfiles != 1 {
		t.Errorf("Stats = %+v", stats)
	}

	if err := db.DeleteActivationProfile(ctx, "sess-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.LoadActivationProfile(ctx, "sess-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("load after delete err = %v, want ErrNotFound", err)
	}
	if err := db.DeleteActivationProfile(ctx, "sess-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestProfile_CompareAndSwap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p := domain.NewActivationProfile("u1", false)
	p.UpdatedAt = ts
	if err := db.SaveActivationProfile(ctx, "u1", p); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := db.SaveActivationProfile(ctx, "u1", p); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("stale insert err = %v, want ErrConflict", err)
	}
}

func TestClosedDB_StorageError(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	db.Close()

	_, err = db.LoadStreakState(context.Background(), "u1")
	if !domain.IsStorageError(err) {
		t.Errorf("err = %v, want StorageError", err)
	}
}
