// Package domain holds the types shared by the streak and activation engines,
// the services that persist them, and the transports that expose them.
// Domain types are pure: no infrastructure dependency.
package domain

import "time"

// DateLayout is the calendar-day key format used for day buckets.
const DateLayout = "2006-01-02"

// ─── Day Buckets ────────────────────────────────────────────────────────────

// DayStatus is the state of a single calendar day in a user's streak history.
type DayStatus string

const (
	DayUnlogged DayStatus = "unlogged"
	DayLogged   DayStatus = "logged"
	DayFrozen   DayStatus = "frozen"
	DayGraced   DayStatus = "graced"
	DaySkipped  DayStatus = "skipped" // weekend, with weekend skip enabled
	DayMissed   DayStatus = "missed"
)

// Rank orders recorded statuses for merging: a day logged on one device
// outranks the same day frozen on another.
func (d DayStatus) Rank() int {
	switch d {
	case DayLogged:
		return 4
	case DayFrozen:
		return 3
	case DayGraced:
		return 2
	case DaySkipped:
		return 1
	default:
		return 0
	}
}

// Qualifies reports whether the day counts toward the current streak.
func (d DayStatus) Qualifies() bool {
	return d == DayLogged || d == DayFrozen || d == DayGraced
}

// ─── Streak State ───────────────────────────────────────────────────────────

// GraceWindow is open while the most recent qualifying gap is between 24h
// and 48h. Logging before EndsAt keeps the streak without spending a token.
type GraceWindow struct {
	EndsAt time.Time `json:"ends_at"`
}

// MilestoneHit records when a milestone was first reached.
type MilestoneHit struct {
	ID        string    `json:"id"`
	ReachedAt time.Time `json:"reached_at"`
}

// StreakState is the per-user streak summary.
type StreakState struct {
	CurrentStreak         int                  `json:"current_streak"`
	LongestStreak         int                  `json:"longest_streak"`
	TotalQualifyingDays   int                  `json:"total_qualifying_days"`
	FreezeTokensAvailable int                  `json:"freeze_tokens_available"`
	GraceWindow           *GraceWindow         `json:"grace_window,omitempty"`
	LastQualifyingAt      time.Time            `json:"last_qualifying_at"`
	WeekendSkipEnabled    bool                 `json:"weekend_skip_enabled"`
	MilestonesReached     []MilestoneHit       `json:"milestones_reached"`
	TimeZone              string               `json:"time_zone,omitempty"`
	Days                  map[string]DayStatus `json:"days,omitempty"`
	Revision              int64                `json:"revision"`
	UpdatedAt             time.Time            `json:"updated_at"`
}

// IsNew reports whether no qualifying activity was ever recorded.
func (s StreakState) IsNew() bool {
	return s.LastQualifyingAt.IsZero()
}

// HasMilestone reports whether the milestone id is already reached.
func (s StreakState) HasMilestone(id string) bool {
	for _, m := range s.MilestonesReached {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so transitions never alias the caller's slices or maps.
func (s StreakState) Clone() StreakState {
	out := s
	if s.GraceWindow != nil {
		gw := *s.GraceWindow
		out.GraceWindow = &gw
	}
	if s.MilestonesReached != nil {
		out.MilestonesReached = append([]MilestoneHit(nil), s.MilestonesReached...)
	}
	if s.Days != nil {
		out.Days = make(map[string]DayStatus, len(s.Days))
		for k, v := range s.Days {
			out.Days[k] = v
		}
	}
	return out
}

// StreakMilestone is a fixed day-count threshold with a reward.
// FreezeTokens is the number of freeze tokens granted when it is first reached.
type StreakMilestone struct {
	ID           string `json:"id"`
	Days         int    `json:"days"`
	Title        string `json:"title"`
	Reward       string `json:"reward"`
	FreezeTokens int    `json:"freeze_tokens,omitempty"`
}

// ─── Transition Results ─────────────────────────────────────────────────────

// StreakOutcome describes what a streak transition did.
type StreakOutcome string

const (
	OutcomeStarted        StreakOutcome = "started"
	OutcomeExtended       StreakOutcome = "extended"
	OutcomeGraced         StreakOutcome = "graced"
	OutcomeBroken         StreakOutcome = "broken"
	OutcomeFrozen         StreakOutcome = "frozen"
	OutcomeAlreadyCounted StreakOutcome = "already_counted"
	OutcomeStale          StreakOutcome = "stale"
)

// StreakResult is returned alongside the new state. Broken is the
// streak-broken signal callers react to (e.g. recovery UI).
type StreakResult struct {
	Outcome        StreakOutcome     `json:"outcome"`
	Broken         bool              `json:"broken"`
	PreviousStreak int               `json:"previous_streak,omitempty"`
	Milestones     []StreakMilestone `json:"milestones,omitempty"`
	TokensGranted  int               `json:"tokens_granted,omitempty"`
}

// Changed reports whether the transition produced a new state.
func (r StreakResult) Changed() bool {
	return r.Outcome != OutcomeAlreadyCounted && r.Outcome != OutcomeStale
}

// StreakStatus is the read-side view of an evaluated streak.
type StreakStatus struct {
	State           StreakState      `json:"state"`
	LoggedToday     bool             `json:"logged_today"`
	AtRisk          bool             `json:"at_risk"` // grace window open
	Expired         bool             `json:"expired"` // next activity will break the streak
	BreaksAt        *time.Time       `json:"breaks_at,omitempty"`
	NextMilestone   *StreakMilestone `json:"next_milestone,omitempty"`
	DaysToMilestone int              `json:"days_to_milestone,omitempty"`
}

// CalendarDay is one cell of the heatmap view.
type CalendarDay struct {
	Date   string    `json:"date"`
	Status DayStatus `json:"status"`
}
