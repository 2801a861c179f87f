package risk

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/storage/models"
	"github.com/engagement-agent/backend/pkg/logger"
	"github.com/engagement-agent/backend/pkg/utils"
)

// ErrNoPrediction means a validation referenced a project with no
// cached risk prediction to compare against.
var ErrNoPrediction = errors.New("no cached risk prediction for project")

// ValidateRiskPredictions compares the cached prediction for a project
// against the actual outcome, scores it per category and feeds the
// result into the learning store. Repeating the call with the same
// outcome returns the stored result without double-counting.
func (d *Detector) ValidateRiskPredictions(ctx context.Context, projectID string, actual models.ActualOutcome) (*models.ValidationResult, error) {
	if d.predictions == nil {
		return nil, fmt.Errorf("prediction store not configured")
	}

	prediction, err := d.predictions.GetRiskPrediction(projectID)
	if err != nil {
		return nil, err
	}
	if prediction == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPrediction, projectID)
	}

	fingerprint := outcomeFingerprint(actual)

	existing, err := d.predictions.GetValidationByFingerprint(projectID, "risk", fingerprint)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.Debug("Validation already recorded",
			zap.String("project_id", projectID),
			zap.String("fingerprint", fingerprint),
		)
		return existing, nil
	}

	materialized := make(map[string]bool, len(actual.MaterializedRisks))
	for _, category := range actual.MaterializedRisks {
		materialized[strings.ToLower(category)] = true
	}

	predicted := make(map[string]bool, len(prediction.CategoryScores))
	for category, score := range prediction.CategoryScores {
		predicted[category] = score >= d.cfg.MinProbability
	}

	result := &models.ValidationResult{
		ID:          uuid.New().String(),
		SubjectID:   projectID,
		Kind:        "risk",
		PerCategory: make(map[string]models.CategoryValidation),
		Fingerprint: fingerprint,
		ValidatedAt: time.Now(),
	}

	correct := 0
	for _, category := range Categories {
		cv := models.CategoryValidation{}
		wasPredicted := predicted[category]
		didHappen := materialized[category]

		switch {
		case wasPredicted && didHappen:
			cv.TruePositives = 1
		case wasPredicted && !didHappen:
			cv.FalsePositives = 1
		case !wasPredicted && didHappen:
			cv.FalseNegatives = 1
		default:
			cv.TrueNegatives = 1
		}

		categoryCorrect := wasPredicted == didHappen
		if categoryCorrect {
			correct++
		}

		if d.learning != nil {
			d.learning.RecordValidation(category, categoryCorrect)
		}

		result.PerCategory[category] = cv
	}

	result.Accuracy = float64(correct) / float64(len(Categories))

	if err := d.predictions.InsertValidation(result); err != nil {
		return nil, err
	}

	logger.Info("Risk predictions validated",
		zap.String("project_id", projectID),
		zap.Float64("accuracy", result.Accuracy),
	)

	return result, nil
}

// outcomeFingerprint identifies a ground-truth payload so identical
// validations collapse onto one stored result.
func outcomeFingerprint(actual models.ActualOutcome) string {
	categories := make([]string, 0, len(actual.MaterializedRisks))
	for _, c := range actual.MaterializedRisks {
		categories = append(categories, strings.ToLower(c))
	}
	sort.Strings(categories)

	return utils.HashString(fmt.Sprintf("%s|%.3f", strings.Join(categories, ","), actual.SuccessScore))
}
