package streak

import (
	"sort"

	"github.com/stridefit/stride/internal/domain"
)

// Merge resolves two concurrently written states for the same user.
// Counters take the maximum, milestone and day sets are unioned, and freeze
// tokens take the minimum so a token spent on either side stays spent.
// Settings (weekend skip, time zone) come from the more recently updated side.
// Merge is commutative apart from ties on UpdatedAt, which favour b.
func Merge(a, b domain.StreakState) domain.StreakState {
	newer, older := b, a
	if a.UpdatedAt.After(b.UpdatedAt) {
		newer, older = a, b
	}
	out := newer.Clone()

	out.CurrentStreak = max(a.CurrentStreak, b.CurrentStreak)
	out.LongestStreak = max(a.LongestStreak, b.LongestStreak, out.CurrentStreak)
	out.TotalQualifyingDays = max(a.TotalQualifyingDays, b.TotalQualifyingDays)
	out.FreezeTokensAvailable = min(a.FreezeTokensAvailable, b.FreezeTokensAvailable)
	out.Revision = max(a.Revision, b.Revision)

	switch {
	case older.LastQualifyingAt.After(newer.LastQualifyingAt):
		out.LastQualifyingAt = older.LastQualifyingAt
		out.GraceWindow = nil
		if older.GraceWindow != nil {
			gw := *older.GraceWindow
			out.GraceWindow = &gw
		}
	case out.GraceWindow == nil && older.GraceWindow != nil && older.LastQualifyingAt.Equal(newer.LastQualifyingAt):
		gw := *older.GraceWindow
		out.GraceWindow = &gw
	}

	out.MilestonesReached = mergeMilestones(a.MilestonesReached, b.MilestonesReached)
	out.Days = mergeDays(a.Days, b.Days)
	return out
}

func mergeMilestones(a, b []domain.MilestoneHit) []domain.MilestoneHit {
	byID := make(map[string]domain.MilestoneHit, len(a)+len(b))
	for _, list := range [][]domain.MilestoneHit{a, b} {
		for _, m := range list {
			if cur, ok := byID[m.ID]; !ok || m.ReachedAt.Before(cur.ReachedAt) {
				byID[m.ID] = m
			}
		}
	}
	if len(byID) == 0 {
		return nil
	}
	out := make([]domain.MilestoneHit, 0, len(byID))
	for _, m := range byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReachedAt.Equal(out[j].ReachedAt) {
			return out[i].ReachedAt.Before(out[j].ReachedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func mergeDays(a, b map[string]domain.DayStatus) map[string]domain.DayStatus {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]domain.DayStatus, len(a)+len(b))
	for _, m := range []map[string]domain.DayStatus{a, b} {
		for k, v := range m {
			if cur, ok := out[k]; !ok || v.Rank() > cur.Rank() {
				out[k] = v
			}
		}
	}
	return out
}
