package streak

import "github.com/stridefit/stride/internal/domain"

// Milestones returns the streak milestone catalog in ascending day order.
// IDs, titles and rewards are fixed; never renumber them.
func Milestones() []domain.StreakMilestone {
	return []domain.StreakMilestone{
		{ID: "streak_7", Days: 7, Title: "Week Warrior", Reward: "+1 streak freeze", FreezeTokens: 1},
		{ID: "streak_14", Days: 14, Title: "Fortnight Force", Reward: "Fortnight badge"},
		{ID: "streak_30", Days: 30, Title: "Monthly Machine", Reward: "+1 streak freeze", FreezeTokens: 1},
		{ID: "streak_60", Days: 60, Title: "Habit Architect", Reward: "Custom theme unlocked"},
		{ID: "streak_100", Days: 100, Title: "Centurion", Reward: "+2 streak freezes", FreezeTokens: 2},
	}
}

// MilestoneByID looks up a catalog entry.
func MilestoneByID(id string) (domain.StreakMilestone, bool) {
	for _, m := range Milestones() {
		if m.ID == id {
			return m, true
		}
	}
	return domain.StreakMilestone{}, false
}
