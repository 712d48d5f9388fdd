package activation

import (
	"sort"

	"github.com/stridefit/stride/internal/domain"
)

// Journey projects p's history: the event log, every milestone with its
// reached status, and a per-date timeline. Reached dates come from a forward
// scan over the log, so a replayed profile reports the same dates.
func (e *Engine) Journey(p domain.ActivationProfile) domain.Journey {
	hits := scanMilestones(p.Events)

	ms := make([]domain.MilestoneStatus, 0, len(milestones))
	for _, m := range milestones {
		st := domain.MilestoneStatus{ActivationMilestone: m}
		if h, ok := hits[m.ID]; ok {
			at := h.ReachedAt
			st.Reached = true
			st.ReachedAt = &at
			st.EventID = h.EventID
		}
		ms = append(ms, st)
	}

	return domain.Journey{
		Events:     append([]domain.ActivationEvent{}, p.Events...),
		Milestones: ms,
		Timeline:   e.timeline(p.Events),
	}
}

func (e *Engine) timeline(events []domain.ActivationEvent) []domain.TimelineDay {
	byDate := make(map[string]*domain.TimelineDay)
	for _, ev := range events {
		key := ev.Timestamp.In(e.loc).Format(domain.DateLayout)
		d, ok := byDate[key]
		if !ok {
			d = &domain.TimelineDay{Date: key}
			byDate[key] = d
		}
		d.Score += ev.Points
		d.EventCount++
		d.Events = append(d.Events, ev.Name)
	}

	out := make([]domain.TimelineDay, 0, len(byDate))
	for _, d := range byDate {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
