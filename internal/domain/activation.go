package domain

import (
	"encoding/json"
	"time"
)

// ─── Activation Registry Types ──────────────────────────────────────────────

// EventCategory groups registry events.
type EventCategory string

const (
	CategoryCore      EventCategory = "core"
	CategorySecondary EventCategory = "secondary"
	CategoryPremium   EventCategory = "premium"
)

// EventDef is a registry entry: a known event name with fixed points.
type EventDef struct {
	Name        string        `json:"name"`
	Points      int           `json:"points"`
	Category    EventCategory `json:"category"`
	Description string        `json:"description"`
}

// ActivationMilestone is a cumulative score threshold.
type ActivationMilestone struct {
	ID          string `json:"id"`
	Threshold   int    `json:"threshold"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Reward      string `json:"reward"`
}

// EngagementLevel is a coarse, continuously recomputed classification.
type EngagementLevel string

const (
	EngagementLow    EngagementLevel = "low"
	EngagementMedium EngagementLevel = "medium"
	EngagementHigh   EngagementLevel = "high"
)

// User types captured in event context snapshots.
const (
	UserTypeRegistered = "registered"
	UserTypeAnonymous  = "anonymous"
)

// ─── Events & Profiles ──────────────────────────────────────────────────────

// EventContext is captured when an event is written and never recomputed.
type EventContext struct {
	Source              string `json:"source"`
	UserType            string `json:"user_type"`
	PreviousEventCount  int    `json:"previous_event_count"`
	DaysSinceFirstEvent int    `json:"days_since_first_event"`
}

// ActivationEvent is an immutable entry in a profile's event log.
type ActivationEvent struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Points    int             `json:"points"`
	Category  EventCategory   `json:"category"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Context   EventContext    `json:"context"`
}

// ActivationMilestoneHit records the event whose cumulative sum first met a threshold.
type ActivationMilestoneHit struct {
	ID        string    `json:"id"`
	ReachedAt time.Time `json:"reached_at"`
	EventID   string    `json:"event_id"`
	EventName string    `json:"event_name"`
}

// ActivationProfile is the per-user (or per-session) activation summary.
type ActivationProfile struct {
	ID                string                   `json:"id"`
	Anonymous         bool                     `json:"anonymous"`
	ActivationScore   int                      `json:"activation_score"`
	IsActivated       bool                     `json:"is_activated"`
	ActivationDate    *time.Time               `json:"activation_date,omitempty"`
	TimeToActivation  time.Duration            `json:"time_to_activation,omitempty"`
	Events            []ActivationEvent        `json:"events"`
	MilestonesReached []ActivationMilestoneHit `json:"milestones_reached"`
	EngagementLevel   EngagementLevel          `json:"engagement_level"`
	Revision          int64                    `json:"revision"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

// NewActivationProfile returns an empty profile for id.
func NewActivationProfile(id string, anonymous bool) ActivationProfile {
	return ActivationProfile{
		ID:              id,
		Anonymous:       anonymous,
		EngagementLevel: EngagementLow,
	}
}

// HasMilestone reports whether the milestone id is already reached.
func (p ActivationProfile) HasMilestone(id string) bool {
	for _, m := range p.MilestonesReached {
		if m.ID == id {
			return true
		}
	}
	return false
}

// UserType returns the context user type for new events.
func (p ActivationProfile) UserType() string {
	if p.Anonymous {
		return UserTypeAnonymous
	}
	return UserTypeRegistered
}

// Clone returns a copy that shares no slices with p. Event payloads are
// immutable and stay shared.
func (p ActivationProfile) Clone() ActivationProfile {
	out := p
	if p.ActivationDate != nil {
		d := *p.ActivationDate
		out.ActivationDate = &d
	}
	if p.Events != nil {
		out.Events = append([]ActivationEvent(nil), p.Events...)
	}
	if p.MilestonesReached != nil {
		out.MilestonesReached = append([]ActivationMilestoneHit(nil), p.MilestonesReached...)
	}
	return out
}

// ─── Engine Results & Projections ───────────────────────────────────────────

// TrackInput is a request to record one named event. Anonymous only
// matters when the profile does not exist yet.
type TrackInput struct {
	Name      string
	Data      json.RawMessage
	Source    string
	Anonymous bool
}

// TrackResult reports what a tracked event changed.
type TrackResult struct {
	Activated  bool                  `json:"activated"`
	Milestones []ActivationMilestone `json:"milestones,omitempty"`
	LevelFrom  EngagementLevel       `json:"level_from"`
	LevelTo    EngagementLevel       `json:"level_to"`
}

// Recommendation is a not-yet-performed registry event.
type Recommendation struct {
	EventName   string        `json:"event_name"`
	Description string        `json:"description"`
	Points      int           `json:"points"`
	Category    EventCategory `json:"category"`
}

// MilestoneStatus annotates a milestone definition with whether/when it was reached.
type MilestoneStatus struct {
	ActivationMilestone
	Reached   bool       `json:"reached"`
	ReachedAt *time.Time `json:"reached_at,omitempty"`
	EventID   string     `json:"event_id,omitempty"`
}

// TimelineDay is one local-date bucket of the journey.
type TimelineDay struct {
	Date       string   `json:"date"`
	Score      int      `json:"score"`
	EventCount int      `json:"event_count"`
	Events     []string `json:"events"`
}

// Journey is the read-side projection of a profile's history.
type Journey struct {
	Events     []ActivationEvent `json:"events"`
	Milestones []MilestoneStatus `json:"milestones"`
	Timeline   []TimelineDay     `json:"timeline"`
}
