package streak_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridefit/stride/internal/app/streak"
	"github.com/stridefit/stride/internal/domain"
)

func TestMerge_TakesMaxCountersAndMinTokens(t *testing.T) {
	a := domain.StreakState{
		CurrentStreak:         8,
		LongestStreak:         10,
		TotalQualifyingDays:   30,
		FreezeTokensAvailable: 2,
		LastQualifyingAt:      monday,
		UpdatedAt:             monday,
		Revision:              4,
	}
	b := domain.StreakState{
		CurrentStreak:         9,
		LongestStreak:         9,
		TotalQualifyingDays:   31,
		FreezeTokensAvailable: 1,
		LastQualifyingAt:      monday.Add(time.Hour),
		UpdatedAt:             monday.Add(time.Hour),
		Revision:              5,
	}

	got := streak.Merge(a, b)

	assert.Equal(t, 9, got.CurrentStreak)
	assert.Equal(t, 10, got.LongestStreak)
	assert.Equal(t, 31, got.TotalQualifyingDays)
	assert.Equal(t, 1, got.FreezeTokensAvailable)
	assert.Equal(t, int64(5), got.Revision)
	assert.Equal(t, monday.Add(time.Hour), got.LastQualifyingAt)
}

func TestMerge_UnionsMilestonesAndDays(t *testing.T) {
	a := domain.StreakState{
		MilestonesReached: []domain.MilestoneHit{{ID: "streak_7", ReachedAt: monday}},
		Days: map[string]domain.DayStatus{
			"2025-06-30": domain.DayGraced,
			"2025-07-01": domain.DayLogged,
		},
		UpdatedAt: monday,
	}
	b := domain.StreakState{
		MilestonesReached: []domain.MilestoneHit{
			{ID: "streak_7", ReachedAt: monday.Add(time.Hour)},
			{ID: "streak_14", ReachedAt: monday.AddDate(0, 0, 7)},
		},
		Days: map[string]domain.DayStatus{
			"2025-06-30": domain.DayLogged,
			"2025-07-02": domain.DayFrozen,
		},
		UpdatedAt: monday.Add(time.Hour),
	}

	got := streak.Merge(a, b)

	wantMilestones := []domain.MilestoneHit{
		{ID: "streak_7", ReachedAt: monday},
		{ID: "streak_14", ReachedAt: monday.AddDate(0, 0, 7)},
	}
	if diff := cmp.Diff(wantMilestones, got.MilestonesReached); diff != "" {
		t.Errorf("milestones mismatch (-want +got):\n%s", diff)
	}
	wantDays := map[string]domain.DayStatus{
		"2025-06-30": domain.DayLogged,
		"2025-07-01": domain.DayLogged,
		"2025-07-02": domain.DayFrozen,
	}
	if diff := cmp.Diff(wantDays, got.Days); diff != "" {
		t.Errorf("days mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_SettingsFromNewerSide(t *testing.T) {
	older := domain.StreakState{WeekendSkipEnabled: true, TimeZone: "Europe/Berlin", UpdatedAt: monday}
	newer := domain.StreakState{TimeZone: "Asia/Tokyo", UpdatedAt: monday.Add(time.Minute)}

	for _, got := range []domain.StreakState{streak.Merge(older, newer), streak.Merge(newer, older)} {
		assert.False(t, got.WeekendSkipEnabled)
		assert.Equal(t, "Asia/Tokyo", got.TimeZone)
	}
}

func TestMerge_ConcurrentFreezeSpendsOnce(t *testing.T) {
	e := streak.New()
	base := activeState(monday, 5, 5)
	base.FreezeTokensAvailable = 2

	// Two devices freeze the same day from the same snapshot.
	a, _, err := e.UseFreezeToken(base, monday.Add(20*time.Hour))
	require.NoError(t, err)
	b, _, err := e.UseFreezeToken(base, monday.Add(21*time.Hour))
	require.NoError(t, err)

	got := streak.Merge(a, b)

	assert.Equal(t, 1, got.FreezeTokensAvailable)
	assert.Equal(t, 6, got.CurrentStreak)
	assert.Equal(t, domain.DayFrozen, got.Days["2025-07-01"])
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	a := domain.StreakState{Days: map[string]domain.DayStatus{"2025-06-30": domain.DayLogged}, UpdatedAt: monday}
	b := domain.StreakState{Days: map[string]domain.DayStatus{"2025-07-01": domain.DayLogged}, UpdatedAt: monday.Add(time.Hour)}

	_ = streak.Merge(a, b)

	assert.Len(t, a.Days, 1)
	assert.Len(t, b.Days, 1)
}
