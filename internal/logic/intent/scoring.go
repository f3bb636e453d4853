package intent

import (
	"strings"

	"github.com/varunity/affinityserve/internal/models"
)

// Scores counts, per interest, the interactions whose slug or tags mention it.
func Scores(history []models.Interaction) map[models.Interest]int {
	scores := make(map[models.Interest]int, len(scoringKeywords))
	for _, c := range scoringKeywords {
		scores[c.interest] = 0
	}
	for _, ia := range history {
		text := strings.ToLower(ia.Slug) + " " + strings.ToLower(strings.Join(ia.Tags, " "))
		for _, c := range scoringKeywords {
			if containsAny(text, c.needles) {
				scores[c.interest]++
			}
		}
	}
	return scores
}

// Infer returns the interest that clearly dominates the history: at least two
// hits and more than twice every other category's score. Short histories and
// ambiguous ones infer nothing.
func Infer(history []models.Interaction) models.Interest {
	if len(history) < MinInteractions {
		return models.InterestNone
	}
	scores := Scores(history)
	for _, c := range scoringKeywords {
		s := scores[c.interest]
		if s < 2 {
			continue
		}
		dominant := true
		for other, o := range scores {
			if other != c.interest && s <= o*2 {
				dominant = false
				break
			}
		}
		if dominant {
			return c.interest
		}
	}
	return models.InterestNone
}
