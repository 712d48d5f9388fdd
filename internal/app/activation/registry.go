package activation

import "github.com/stridefit/stride/internal/domain"

// ActivationThreshold is the cumulative score at which a profile activates.
const ActivationThreshold = 60

// registry is the fixed event table. Names and points are part of the
// client contract; do not rename or re-weight entries.
var registry = []domain.EventDef{
	{Name: "first_workout_logged", Points: 25, Category: domain.CategoryCore, Description: "Log your first workout"},
	{Name: "first_meal_logged", Points: 20, Category: domain.CategoryCore, Description: "Log your first meal"},
	{Name: "ai_coach_interaction", Points: 15, Category: domain.CategoryCore, Description: "Ask the AI coach a question"},
	{Name: "goal_set", Points: 15, Category: domain.CategoryCore, Description: "Set a fitness goal"},
	{Name: "profile_completed", Points: 10, Category: domain.CategoryCore, Description: "Complete your profile"},
	{Name: "workout_repeated", Points: 10, Category: domain.CategorySecondary, Description: "Log another workout"},
	{Name: "meal_repeated", Points: 8, Category: domain.CategorySecondary, Description: "Log another meal"},
	{Name: "progress_viewed", Points: 5, Category: domain.CategorySecondary, Description: "Check your progress charts"},
	{Name: "insight_viewed", Points: 5, Category: domain.CategorySecondary, Description: "Read a personalised insight"},
	{Name: "streak_day", Points: 8, Category: domain.CategorySecondary, Description: "Keep your daily streak going"},
	{Name: "photo_logged", Points: 12, Category: domain.CategorySecondary, Description: "Add a progress photo"},
	{Name: "weight_tracked", Points: 6, Category: domain.CategorySecondary, Description: "Record your weight"},
	{Name: "program_started", Points: 30, Category: domain.CategoryPremium, Description: "Start a training program"},
	{Name: "ai_plan_generated", Points: 20, Category: domain.CategoryPremium, Description: "Generate an AI training plan"},
	{Name: "advanced_analytics_viewed", Points: 10, Category: domain.CategoryPremium, Description: "Explore advanced analytics"},
	{Name: "custom_meal_created", Points: 15, Category: domain.CategoryPremium, Description: "Create a custom meal"},
	{Name: "daily_login", Points: 3, Category: domain.CategorySecondary, Description: "Open the app today"},
	{Name: "feature_explored", Points: 2, Category: domain.CategorySecondary, Description: "Try a feature you have not used"},
	{Name: "tip_read", Points: 1, Category: domain.CategorySecondary, Description: "Read a fitness tip"},
	{Name: "share_achievement", Points: 8, Category: domain.CategorySecondary, Description: "Share an achievement"},
}

// milestones are ordered by ascending threshold.
var milestones = []domain.ActivationMilestone{
	{ID: "getting_started", Threshold: 25, Name: "Getting Started", Description: "You took the first step", Reward: "Welcome badge"},
	{ID: "engaged_user", Threshold: 60, Name: "Engaged User", Description: "You are building real momentum", Reward: "Personalised weekly plan"},
	{ID: "power_user", Threshold: 120, Name: "Power User", Description: "You use Stride to its fullest", Reward: "Advanced analytics preview"},
	{ID: "fitness_champion", Threshold: 200, Name: "Fitness Champion", Description: "Fitness is part of your routine", Reward: "Champion profile frame"},
}

var registryIndex = func() map[string]domain.EventDef {
	m := make(map[string]domain.EventDef, len(registry))
	for _, d := range registry {
		m[d.Name] = d
	}
	return m
}()

// Registry returns a copy of the event table in declaration order.
func Registry() []domain.EventDef {
	return append([]domain.EventDef(nil), registry...)
}

// Milestones returns a copy of the milestone table.
func Milestones() []domain.ActivationMilestone {
	return append([]domain.ActivationMilestone(nil), milestones...)
}

// Lookup finds an event definition by name.
func Lookup(name string) (domain.EventDef, bool) {
	d, ok := registryIndex[name]
	return d, ok
}
