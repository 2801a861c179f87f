package recommend

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/storage/models"
	"github.com/engagement-agent/backend/pkg/logger"
)

const feedbackStep = 0.1

var ErrInvalidFeedback = errors.New("invalid feedback entry")

type LearningInsights struct {
	RecommendationType string
	Delta              float64
	Weight             float64
	Accuracy           float64
	Validations        int
}

// UpdateFromFeedback folds one practitioner rating into the learning
// weight for the rated recommendation type. Neutral feedback (both
// scores at 0.5) leaves the weight unchanged; the step size keeps any
// single rating from swinging future output. Outcome reports, when the
// engagement has progressed far enough to supply them, feed the type's
// validation accuracy.
func (e *Engine) UpdateFromFeedback(ctx context.Context, projectID string, entry models.FeedbackEntry, outcomes []models.OutcomeReport) (*LearningInsights, error) {
	if entry.RecommendationType == "" {
		return nil, fmt.Errorf("%w: recommendation type is required", ErrInvalidFeedback)
	}
	if entry.Effectiveness < 0 || entry.Effectiveness > 1 || entry.Utility < 0 || entry.Utility > 1 {
		return nil, fmt.Errorf("%w: scores must be in [0,1]", ErrInvalidFeedback)
	}
	if _, ok := typeDomains[entry.RecommendationType]; !ok {
		return nil, fmt.Errorf("%w: unknown recommendation type %q", ErrInvalidFeedback, entry.RecommendationType)
	}
	for _, outcome := range outcomes {
		if _, ok := typeDomains[outcome.RecommendationType]; !ok {
			return nil, fmt.Errorf("%w: unknown recommendation type %q", ErrInvalidFeedback, outcome.RecommendationType)
		}
	}

	delta := ((entry.Effectiveness+entry.Utility)/2 - 0.5) * feedbackStep
	weight := e.learning.Adjust(entry.RecommendationType, delta)

	for _, outcome := range outcomes {
		e.learning.RecordValidation(outcome.RecommendationType, outcome.Successful)
	}

	if e.bundles != nil {
		if err := e.bundles.InsertFeedback(projectID, &entry); err != nil {
			logger.Warn("Failed to persist feedback", zap.Error(err))
		}
	}

	if e.cache != nil {
		if err := e.cache.Clear(ctx, "recs:"+projectID); err != nil {
			logger.Warn("Failed to invalidate recommendation cache", zap.Error(err))
		}
	}

	accuracy, validations := e.learning.Accuracy(entry.RecommendationType)

	logger.Info("Feedback applied",
		zap.String("project_id", projectID),
		zap.String("type", entry.RecommendationType),
		zap.Float64("delta", delta),
		zap.Float64("weight", weight),
	)

	return &LearningInsights{
		RecommendationType: entry.RecommendationType,
		Delta:              delta,
		Weight:             weight,
		Accuracy:           accuracy,
		Validations:        validations,
	}, nil
}
