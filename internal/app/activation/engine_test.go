package activation_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridefit/stride/internal/app/activation"
	"github.com/stridefit/stride/internal/domain"
)

var t0 = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

// track applies names one minute apart and fails the test on error.
func track(t *testing.T, e *activation.Engine, p domain.ActivationProfile, start time.Time, names ...string) (domain.ActivationProfile, domain.TrackResult) {
	t.Helper()
	var res domain.TrackResult
	for i, name := range names {
		var err error
		p, _, res, err = e.Track(p, domain.TrackInput{Name: name}, start.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err, "track %s", name)
	}
	return p, res
}

func milestoneIDs(p domain.ActivationProfile) []string {
	var ids []string
	for _, m := range p.MilestonesReached {
		ids = append(ids, m.ID)
	}
	return ids
}

// ═══════════════════════════════════════════════════════════════════════════
// Registry
// ═══════════════════════════════════════════════════════════════════════════

func TestRegistry(t *testing.T) {
	reg := activation.Registry()
	require.Len(t, reg, 20)

	want := map[string]int{
		"first_workout_logged": 25, "first_meal_logged": 20, "ai_coach_interaction": 15,
		"goal_set": 15, "profile_completed": 10, "workout_repeated": 10, "meal_repeated": 8,
		"progress_viewed": 5, "insight_viewed": 5, "streak_day": 8, "photo_logged": 12,
		"weight_tracked": 6, "program_started": 30, "ai_plan_generated": 20,
		"advanced_analytics_viewed": 10, "custom_meal_created": 15, "daily_login": 3,
		"feature_explored": 2, "tip_read": 1, "share_achievement": 8,
	}
	for _, d := range reg {
		assert.Equal(t, want[d.Name], d.Points, "points for %s", d.Name)
		assert.NotEmpty(t, d.Description, "description for %s", d.Name)
	}

	d, ok := activation.Lookup("program_started")
	require.True(t, ok)
	assert.Equal(t, domain.CategoryPremium, d.Category)

	reg[0].Points = 999
	d, _ = activation.Lookup("first_workout_logged")
	assert.Equal(t, 25, d.Points, "Registry must return a copy")
}

// ═══════════════════════════════════════════════════════════════════════════
// Track
// ═══════════════════════════════════════════════════════════════════════════

func TestTrack_ActivationCrossing(t *testing.T) {
	e := activation.New()
	p := domain.NewActivationProfile("user-1", false)

	p, _ = track(t, e, p, t0, "first_workout_logged", "goal_set", "ai_coach_interaction")
	assert.Equal(t, 55, p.ActivationScore)
	assert.False(t, p.IsActivated)

	at := t0.Add(2 * time.Hour)
	p, _, res, err := e.Track(p, domain.TrackInput{Name: "profile_completed"}, at)
	require.NoError(t, err)

	assert.Equal(t, 65, p.ActivationScore)
	assert.True(t, p.IsActivated)
	assert.True(t, res.Activated)
	require.NotNil(t, p.ActivationDate)
	assert.Equal(t, at, *p.ActivationDate)
	assert.Equal(t, 2*time.Hour, p.TimeToActivation)
	assert.Equal(t, []string{"getting_started", "engaged_user"}, milestoneIDs(p))
	require.Len(t, res.Milestones, 1)
	assert.Equal(t, "engaged_user", res.Milestones[0].ID)
}

func TestTrack_ActivationFrozen(t *testing.T) {
	e := activation.New()
	p, _ := track(t, e, domain.NewActivationProfile("user-1", false), t0,
		"program_started", "first_workout_logged", "goal_set")
	require.True(t, p.IsActivated)
	date, tta := *p.ActivationDate, p.TimeToActivation

	for i, name := range []string{"first_meal_logged", "ai_plan_generated", "custom_meal_created", "photo_logged"} {
		var err error
		p, _, _, err = e.Track(p, domain.TrackInput{Name: name}, t0.AddDate(0, 0, i+1))
		require.NoError(t, err)
		assert.Equal(t, date, *p.ActivationDate)
		assert.Equal(t, tta, p.TimeToActivation)
	}
	assert.Equal(t, 137, p.ActivationScore)
}

func TestTrack_UnknownEvent(t *testing.T) {
	e := activation.New()
	p, _ := track(t, e, domain.NewActivationProfile("user-1", false), t0, "goal_set")

	out, _, _, err := e.Track(p, domain.TrackInput{Name: "totally_made_up"}, t0.Add(time.Hour))

	assert.ErrorIs(t, err, domain.ErrUnknownEvent)
	assert.Equal(t, 15, out.ActivationScore)
	assert.Len(t, out.Events, 1)
	assert.Equal(t, p, out)
}

func TestTrack_EventContext(t *testing.T) {
	e := activation.New()
	p := domain.NewActivationProfile("sess-1", true)

	p, _, _, err := e.Track(p, domain.TrackInput{Name: "daily_login"}, t0)
	require.NoError(t, err)
	data := json.RawMessage(`{"screen":"home"}`)
	p, ev, _, err := e.Track(p, domain.TrackInput{Name: "tip_read", Data: data, Source: "web"}, t0.Add(50*time.Hour))
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, 1, ev.Points)
	assert.Equal(t, domain.CategorySecondary, ev.Category)
	assert.JSONEq(t, `{"screen":"home"}`, string(ev.Data))
	assert.Equal(t, domain.EventContext{
		Source:              "web",
		UserType:            domain.UserTypeAnonymous,
		PreviousEventCount:  1,
		DaysSinceFirstEvent: 2,
	}, ev.Context)
	assert.Equal(t, activation.DefaultSource, p.Events[0].Context.Source)
	assert.NotEqual(t, p.Events[0].ID, ev.ID)
}

func TestTrack_MilestonesIdempotent(t *testing.T) {
	e := activation.New()
	p, _ := track(t, e, domain.NewActivationProfile("user-1", false), t0,
		"program_started", "program_started", "program_started", "program_started", "program_started",
		"program_started", "program_started")

	assert.Equal(t, 210, p.ActivationScore)
	assert.Equal(t, []string{"getting_started", "engaged_user", "power_user", "fitness_champion"}, milestoneIDs(p))
	assert.Equal(t, p.Events[0].ID, p.MilestonesReached[0].EventID)
	assert.Equal(t, p.Events[1].ID, p.MilestonesReached[1].EventID)
	assert.Equal(t, p.Events[3].ID, p.MilestonesReached[2].EventID)
	assert.Equal(t, p.Events[6].ID, p.MilestonesReached[3].EventID)
}

func TestTrack_MilestonesOnlyGrow(t *testing.T) {
	e := activation.New()
	p := domain.NewActivationProfile("user-1", false)
	prev := 0
	for i, d := range activation.Registry() {
		var err error
		p, _, _, err = e.Track(p, domain.TrackInput{Name: d.Name}, t0.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(p.MilestonesReached), prev)
		prev = len(p.MilestonesReached)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Engagement Level
// ═══════════════════════════════════════════════════════════════════════════

func TestLevel(t *testing.T) {
	e := activation.New()
	p := domain.NewActivationProfile("user-1", false)

	p, res := track(t, e, p, t0, "first_workout_logged", "goal_set", "ai_coach_interaction", "tip_read")
	assert.Equal(t, domain.EngagementLow, res.LevelTo)

	p, res = track(t, e, p, t0.Add(time.Hour), "daily_login")
	assert.Equal(t, domain.EngagementLow, res.LevelFrom)
	assert.Equal(t, domain.EngagementMedium, res.LevelTo)

	p, res = track(t, e, p, t0.Add(2*time.Hour), "program_started", "daily_login", "tip_read", "tip_read", "tip_read")
	assert.Equal(t, 95, p.ActivationScore)
	assert.Equal(t, domain.EngagementMedium, res.LevelTo, "score below 100 stays medium")

	p, res = track(t, e, p, t0.Add(3*time.Hour), "photo_logged")
	assert.Equal(t, domain.EngagementHigh, res.LevelTo)

	decayed := e.Refresh(p, t0.AddDate(0, 0, 8))
	assert.Equal(t, domain.EngagementLow, decayed.EngagementLevel)
	assert.Equal(t, domain.EngagementHigh, p.EngagementLevel)
}

// ═══════════════════════════════════════════════════════════════════════════
// Replay, Merge & Identify
// ═══════════════════════════════════════════════════════════════════════════

func TestReplay_Deterministic(t *testing.T) {
	e := activation.New()
	p, _ := track(t, e, domain.NewActivationProfile("user-1", false), t0,
		"first_workout_logged", "goal_set", "photo_logged", "profile_completed", "program_started", "ai_plan_generated")

	first := e.Replay("user-1", false, p.Events)
	second := e.Replay("user-1", false, p.Events)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("replay mismatch (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(p.MilestonesReached, first.MilestonesReached); diff != "" {
		t.Errorf("replayed milestones differ from tracked (-tracked +replayed):\n%s", diff)
	}
	if diff := cmp.Diff(e.Journey(p).Milestones, e.Journey(first).Milestones); diff != "" {
		t.Errorf("journey milestones differ (-tracked +replayed):\n%s", diff)
	}
	assert.Equal(t, p.ActivationDate, first.ActivationDate)
	assert.Equal(t, p.TimeToActivation, first.TimeToActivation)
}

func TestMerge_UnionsEvents(t *testing.T) {
	e := activation.New()
	base, _ := track(t, e, domain.NewActivationProfile("user-1", false), t0, "first_workout_logged")

	phone, _ := track(t, e, base, t0.Add(time.Hour), "goal_set")
	laptop, _ := track(t, e, base, t0.Add(2*time.Hour), "first_meal_logged")

	got := e.Merge(phone, laptop)

	require.Len(t, got.Events, 3)
	assert.Equal(t, 60, got.ActivationScore)
	assert.True(t, got.IsActivated)
	assert.Equal(t, []string{"first_workout_logged", "goal_set", "first_meal_logged"},
		[]string{got.Events[0].Name, got.Events[1].Name, got.Events[2].Name})
	assert.Equal(t, []string{"getting_started", "engaged_user"}, milestoneIDs(got))

	again := e.Merge(got, laptop)
	assert.Len(t, again.Events, 3, "merge must be idempotent")
}

func TestMerge_KeepsEarliestActivation(t *testing.T) {
	e := activation.New()
	base := domain.NewActivationProfile("user-1", false)

	a, _ := track(t, e, base, t0.Add(time.Hour), "program_started", "program_started")
	b, _ := track(t, e, base, t0, "tip_read")

	got := e.Merge(a, b)

	require.NotNil(t, got.ActivationDate)
	assert.Equal(t, *a.ActivationDate, *got.ActivationDate)
	assert.Equal(t, a.TimeToActivation, got.TimeToActivation)
}

func TestMerge_ActivationDateStaysFrozen(t *testing.T) {
	e := activation.New()
	base, _ := track(t, e, domain.NewActivationProfile("user-1", false), t0.Add(time.Hour), "first_workout_logged")

	// a activates at 10:31. b is a stale copy whose earlier events would
	// make a replay of the union cross the threshold at 10:30.
	a, _ := track(t, e, base, t0.Add(90*time.Minute), "program_started", "goal_set")
	b, _ := track(t, e, base, t0.Add(80*time.Minute), "ai_plan_generated", "tip_read")
	require.True(t, a.IsActivated)
	require.False(t, b.IsActivated)

	for _, got := range []domain.ActivationProfile{e.Merge(a, b), e.Merge(b, a)} {
		require.NotNil(t, got.ActivationDate)
		assert.Equal(t, *a.ActivationDate, *got.ActivationDate)
		assert.Equal(t, 31*time.Minute, got.TimeToActivation)
		assert.Len(t, got.Events, 5)
	}
}

func TestMerge_ActivatesFromUnionWhenNeitherSideDid(t *testing.T) {
	e := activation.New()
	base := domain.NewActivationProfile("user-1", false)

	a, _ := track(t, e, base, t0, "program_started")
	b, _ := track(t, e, base, t0.Add(time.Hour), "first_workout_logged", "tip_read", "tip_read", "tip_read", "tip_read", "tip_read")
	require.False(t, a.IsActivated)
	require.False(t, b.IsActivated)

	got := e.Merge(a, b)

	require.True(t, got.IsActivated)
	require.NotNil(t, got.ActivationDate)
	assert.Equal(t, t0.Add(time.Hour+5*time.Minute), *got.ActivationDate)
}

func TestIdentify(t *testing.T) {
	e := activation.New()
	p, _ := track(t, e, domain.NewActivationProfile("sess-1", true), t0, "daily_login")

	got := e.Identify(p, "user-9")

	assert.Equal(t, "user-9", got.ID)
	assert.False(t, got.Anonymous)
	assert.Equal(t, domain.UserTypeAnonymous, got.Events[0].Context.UserType)
	assert.True(t, p.Anonymous)
}
