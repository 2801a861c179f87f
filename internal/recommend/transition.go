package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/engagement-agent/backend/internal/storage/models"
)

var maturityOrder = []string{"initial", "managed", "defined", "quantified", "optimizing"}

var ErrInvalidMaturityLevel = errors.New("invalid maturity level")

// GetTransitionRecommendations plans the move between two delivery
// maturity levels from what worked on recorded transitions. Multi-step
// jumps walk the intermediate levels so each recommendation covers one
// transition.
func (e *Engine) GetTransitionRecommendations(ctx context.Context, projectID, currentLevel, targetLevel string) ([]models.Recommendation, error) {
	currentLevel = strings.ToLower(strings.TrimSpace(currentLevel))
	targetLevel = strings.ToLower(strings.TrimSpace(targetLevel))

	fromIdx, toIdx := levelIndex(currentLevel), levelIndex(targetLevel)
	if fromIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMaturityLevel, currentLevel)
	}
	if toIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMaturityLevel, targetLevel)
	}
	if toIdx <= fromIdx {
		return nil, fmt.Errorf("%w: %q does not advance from %q", ErrInvalidMaturityLevel, targetLevel, currentLevel)
	}

	scale := e.learning.ScaleFor("methodology")

	var recs []models.Recommendation
	for step := fromIdx; step < toIdx; step++ {
		from, to := maturityOrder[step], maturityOrder[step+1]

		transitions, err := e.store.QueryMaturityTransitions(ctx, from, to)
		if err != nil {
			return nil, err
		}

		actions, sampleSize, weighted := mergeTransitions(transitions)
		if sampleSize == 0 {
			continue
		}

		sample := float64(sampleSize) / methodologySampleCap
		if sample > 1 {
			sample = 1
		}
		confidence := (weighted / float64(sampleSize)) * sample * scale
		if confidence > 1 {
			confidence = 1
		}

		rec := newRecommendation(
			"methodology",
			fmt.Sprintf("Advance from %s to %s maturity", from, to),
			strings.Join(actions, "; "),
			confidence,
			float64(3*(step-fromIdx+1)),
			0.7,
			"months",
			step-fromIdx+1,
			[]string{fmt.Sprintf("%d recorded %s to %s transitions, %.0f%% succeeded", sampleSize, from, to, (weighted/float64(sampleSize))*100)},
		)
		if len(recs) > 0 {
			rec.Dependencies = []string{recs[len(recs)-1].ID}
		}
		recs = append(recs, rec)
	}

	return recs, nil
}

func mergeTransitions(transitions []models.MaturityTransition) (actions []string, sampleSize int, weighted float64) {
	seen := make(map[string]bool)
	for _, t := range transitions {
		sampleSize += t.Count
		weighted += t.SuccessRate * float64(t.Count)
		for _, action := range t.Actions {
			key := strings.ToLower(action)
			if !seen[key] {
				seen[key] = true
				actions = append(actions, action)
			}
		}
	}
	return actions, sampleSize, weighted
}

func levelIndex(level string) int {
	for i, l := range maturityOrder {
		if l == level {
			return i
		}
	}
	return -1
}
