package domain

import "time"

// EventType names a domain event emitted by the engagement services.
type EventType string

const (
	EventStreakExtended       EventType = "streak.extended"
	EventStreakBroken         EventType = "streak.broken"
	EventStreakFreezeUsed     EventType = "streak.freeze_used"
	EventStreakMilestone      EventType = "streak.milestone_reached"
	EventActivationTracked    EventType = "activation.event_tracked"
	EventActivationActivated  EventType = "activation.activated"
	EventActivationMilestone  EventType = "activation.milestone_reached"
	EventActivationIdentified EventType = "activation.identified"
)

// EventSchemaVersion is bumped when a payload shape changes.
const EventSchemaVersion = "1.0"

// Event is a domain event delivered to listeners (analytics, metrics, logs).
type Event struct {
	Version    string    `json:"version"`
	Type       EventType `json:"type"`
	SubjectID  string    `json:"subject_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// StreakPayloadV1 accompanies streak.* events.
type StreakPayloadV1 struct {
	CurrentStreak  int    `json:"current_streak"`
	LongestStreak  int    `json:"longest_streak"`
	PreviousStreak int    `json:"previous_streak,omitempty"`
	MilestoneID    string `json:"milestone_id,omitempty"`
	TokensLeft     int    `json:"tokens_left"`
}

// ActivationPayloadV1 accompanies activation.* events.
type ActivationPayloadV1 struct {
	EventName       string          `json:"event_name,omitempty"`
	Points          int             `json:"points,omitempty"`
	Category        EventCategory   `json:"category,omitempty"`
	Score           int             `json:"score"`
	MilestoneID     string          `json:"milestone_id,omitempty"`
	EngagementLevel EngagementLevel `json:"engagement_level"`
	TimeToActivate  time.Duration   `json:"time_to_activate,omitempty"`
}

// NewEvent stamps a versioned domain event.
func NewEvent(typ EventType, subjectID string, at time.Time, payload any) Event {
	return Event{
		Version:    EventSchemaVersion,
		Type:       typ,
		SubjectID:  subjectID,
		OccurredAt: at,
		Payload:    payload,
	}
}
