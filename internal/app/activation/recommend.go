package activation

import (
	"sort"

	"github.com/stridefit/stride/internal/domain"
)

// MaxRecommendations caps RecommendNextActions.
const MaxRecommendations = 3

// RecommendNextActions lists registry events p has never performed, highest
// points first. Ties keep registry order.
func (e *Engine) RecommendNextActions(p domain.ActivationProfile) []domain.Recommendation {
	done := make(map[string]struct{}, len(p.Events))
	for _, ev := range p.Events {
		done[ev.Name] = struct{}{}
	}

	candidates := make([]domain.EventDef, 0, len(registry))
	for _, d := range registry {
		if _, ok := done[d.Name]; !ok {
			candidates = append(candidates, d)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Points > candidates[j].Points
	})
	if len(candidates) > MaxRecommendations {
		candidates = candidates[:MaxRecommendations]
	}

	out := make([]domain.Recommendation, 0, len(candidates))
	for _, d := range candidates {
		out = append(out, domain.Recommendation{
			EventName:   d.Name,
			Description: d.Description,
			Points:      d.Points,
			Category:    d.Category,
		})
	}
	return out
}
