// Package activation implements the activation scoring engine: a fixed
// registry of weighted events, a one-time activation crossing, cumulative
// score milestones and a recent-activity engagement level.
//
// Like the streak engine, every function here takes a profile by value and
// returns a new one. Nothing in the package performs I/O.
package activation

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/stridefit/stride/internal/domain"
)

const (
	// DefaultSource is recorded when a tracked event names no source.
	DefaultSource = "app"

	engagementWindow = 7 * 24 * time.Hour
)

// eventNamespace seeds deterministic event IDs.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://stride.fit/activation/events"))

// Engine evaluates activation transitions. The location only affects how
// the journey timeline buckets events into dates.
type Engine struct {
	loc *time.Location
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocation sets the zone used for journey date buckets.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{loc: time.UTC}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ─── Transitions ────────────────────────────────────────────────────────────

// Track records one registry event at now. An unknown name fails with
// domain.ErrUnknownEvent and p is returned as given.
func (e *Engine) Track(p domain.ActivationProfile, in domain.TrackInput, now time.Time) (domain.ActivationProfile, domain.ActivationEvent, domain.TrackResult, error) {
	def, ok := Lookup(in.Name)
	if !ok {
		return p, domain.ActivationEvent{}, domain.TrackResult{}, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, in.Name)
	}

	out := p.Clone()
	ev := newEvent(out, def, in, now)

	res := domain.TrackResult{LevelFrom: levelOrLow(p.EngagementLevel)}
	res.Activated, res.Milestones = apply(&out, ev)
	out.EngagementLevel = Level(out.Events, out.ActivationScore, now)
	out.UpdatedAt = now
	res.LevelTo = out.EngagementLevel
	return out, ev, res, nil
}

// Refresh recomputes the engagement level at now. Levels decay as events
// age out of the window even when nothing is tracked.
func (e *Engine) Refresh(p domain.ActivationProfile, now time.Time) domain.ActivationProfile {
	lvl := Level(p.Events, p.ActivationScore, now)
	if lvl == p.EngagementLevel {
		return p
	}
	out := p.Clone()
	out.EngagementLevel = lvl
	return out
}

// Replay rebuilds a profile from an event log. Events keep their IDs and
// context snapshots; score, activation and milestones are recomputed in
// log order. The engagement level is evaluated at the last event.
func (e *Engine) Replay(id string, anonymous bool, events []domain.ActivationEvent) domain.ActivationProfile {
	p := domain.NewActivationProfile(id, anonymous)
	for _, ev := range events {
		apply(&p, ev)
	}
	if n := len(p.Events); n > 0 {
		last := p.Events[n-1].Timestamp
		p.EngagementLevel = Level(p.Events, p.ActivationScore, last)
		p.UpdatedAt = last
	}
	return p
}

// Merge resolves two concurrently written copies of the same profile.
// Events are unioned by ID and replayed in timestamp order. Once either side
// has activated, activation date and time-to-activation come only from the
// earliest recorded value; the replay decides them only when neither side
// had activated. Milestone hits keep their earliest reach. Identity comes
// from a.
func (e *Engine) Merge(a, b domain.ActivationProfile) domain.ActivationProfile {
	seen := make(map[string]struct{}, len(a.Events)+len(b.Events))
	events := make([]domain.ActivationEvent, 0, len(a.Events)+len(b.Events))
	for _, list := range [][]domain.ActivationEvent{a.Events, b.Events} {
		for _, ev := range list {
			if _, dup := seen[ev.ID]; dup {
				continue
			}
			seen[ev.ID] = struct{}{}
			events = append(events, ev)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		ei, ej := events[i], events[j]
		if !ei.Timestamp.Equal(ej.Timestamp) {
			return ei.Timestamp.Before(ej.Timestamp)
		}
		if ei.Context.PreviousEventCount != ej.Context.PreviousEventCount {
			return ei.Context.PreviousEventCount < ej.Context.PreviousEventCount
		}
		return ei.ID < ej.ID
	})

	out := e.Replay(a.ID, a.Anonymous && b.Anonymous, events)

	var frozen *domain.ActivationProfile
	for _, src := range []domain.ActivationProfile{a, b} {
		if !src.IsActivated || src.ActivationDate == nil {
			continue
		}
		if frozen == nil || src.ActivationDate.Before(*frozen.ActivationDate) {
			frozen = &src
		}
	}
	if frozen != nil {
		d := *frozen.ActivationDate
		out.IsActivated = true
		out.ActivationDate = &d
		out.TimeToActivation = frozen.TimeToActivation
	}
	out.MilestonesReached = mergeHits(out.MilestonesReached, a.MilestonesReached, b.MilestonesReached)
	out.Revision = max(a.Revision, b.Revision)
	if a.UpdatedAt.After(out.UpdatedAt) {
		out.UpdatedAt = a.UpdatedAt
	}
	if b.UpdatedAt.After(out.UpdatedAt) {
		out.UpdatedAt = b.UpdatedAt
	}
	out.EngagementLevel = Level(out.Events, out.ActivationScore, out.UpdatedAt)
	return out
}

// Identify turns an anonymous session profile into a registered user's
// profile. Recorded event contexts keep the user type they were written with.
func (e *Engine) Identify(p domain.ActivationProfile, userID string) domain.ActivationProfile {
	out := p.Clone()
	out.ID = userID
	out.Anonymous = false
	return out
}

// ─── Scoring ────────────────────────────────────────────────────────────────

// Level classifies engagement from events in the 7 days before now and the
// cumulative score.
func Level(events []domain.ActivationEvent, score int, now time.Time) domain.EngagementLevel {
	cutoff := now.Add(-engagementWindow)
	recent := 0
	for _, ev := range events {
		if ev.Timestamp.After(cutoff) && !ev.Timestamp.After(now) {
			recent++
		}
	}
	switch {
	case recent >= 10 && score >= 100:
		return domain.EngagementHigh
	case recent >= 5 && score >= 40:
		return domain.EngagementMedium
	default:
		return domain.EngagementLow
	}
}

// apply appends ev and re-evaluates activation and milestones.
func apply(p *domain.ActivationProfile, ev domain.ActivationEvent) (bool, []domain.ActivationMilestone) {
	p.Events = append(p.Events, ev)
	p.ActivationScore += ev.Points

	activated := false
	if !p.IsActivated && p.ActivationScore >= ActivationThreshold {
		at := ev.Timestamp
		p.IsActivated = true
		p.ActivationDate = &at
		p.TimeToActivation = at.Sub(p.Events[0].Timestamp)
		activated = true
	}

	var reached []domain.ActivationMilestone
	for _, m := range milestones {
		if p.ActivationScore < m.Threshold || p.HasMilestone(m.ID) {
			continue
		}
		p.MilestonesReached = append(p.MilestonesReached, domain.ActivationMilestoneHit{
			ID:        m.ID,
			ReachedAt: ev.Timestamp,
			EventID:   ev.ID,
			EventName: ev.Name,
		})
		reached = append(reached, m)
	}
	return activated, reached
}

func newEvent(p domain.ActivationProfile, def domain.EventDef, in domain.TrackInput, now time.Time) domain.ActivationEvent {
	source := in.Source
	if source == "" {
		source = DefaultSource
	}
	days := 0
	if len(p.Events) > 0 {
		if d := now.Sub(p.Events[0].Timestamp); d > 0 {
			days = int(d / (24 * time.Hour))
		}
	}
	seed := fmt.Sprintf("%s|%d|%s|%d", p.ID, len(p.Events), def.Name, now.UnixNano())
	return domain.ActivationEvent{
		ID:        uuid.NewSHA1(eventNamespace, []byte(seed)).String(),
		Name:      def.Name,
		Points:    def.Points,
		Category:  def.Category,
		Timestamp: now,
		Data:      in.Data,
		Context: domain.EventContext{
			Source:              source,
			UserType:            p.UserType(),
			PreviousEventCount:  len(p.Events),
			DaysSinceFirstEvent: days,
		},
	}
}

// scanMilestones walks events in order and reports, for each milestone, the
// event whose cumulative sum first met its threshold.
func scanMilestones(events []domain.ActivationEvent) map[string]domain.ActivationMilestoneHit {
	hits := make(map[string]domain.ActivationMilestoneHit, len(milestones))
	sum, next := 0, 0
	for _, ev := range events {
		sum += ev.Points
		for next < len(milestones) && sum >= milestones[next].Threshold {
			hits[milestones[next].ID] = domain.ActivationMilestoneHit{
				ID:        milestones[next].ID,
				ReachedAt: ev.Timestamp,
				EventID:   ev.ID,
				EventName: ev.Name,
			}
			next++
		}
	}
	return hits
}

func mergeHits(lists ...[]domain.ActivationMilestoneHit) []domain.ActivationMilestoneHit {
	byID := make(map[string]domain.ActivationMilestoneHit)
	for _, list := range lists {
		for _, h := range list {
			if cur, ok := byID[h.ID]; !ok || h.ReachedAt.Before(cur.ReachedAt) {
				byID[h.ID] = h
			}
		}
	}
	var out []domain.ActivationMilestoneHit
	for _, m := range milestones {
		if h, ok := byID[m.ID]; ok {
			out = append(out, h)
		}
	}
	return out
}

func levelOrLow(l domain.EngagementLevel) domain.EngagementLevel {
	if l == "" {
		return domain.EngagementLow
	}
	return l
}
