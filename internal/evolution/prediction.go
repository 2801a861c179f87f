package evolution

import (
	"context"
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

const (
	predictionWindow    = "1y"
	projectionSlices    = 2
	predictionTolerance = 0.2

	statusPending   = "pending"
	statusValidated = "validated"
)

// PredictPatternEvolution projects each sub-domain's effectiveness
// forward from its observed trend and stores the prediction for later
// validation against what actually happened.
func (t *Tracker) PredictPatternEvolution(ctx context.Context, projectID, horizon string) (*models.EvolutionPrediction, error) {
	if _, ok := windowDurations[horizon]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeWindow, horizon)
	}

	analysis, err := t.TrackProjectPatternEvolution(ctx, projectID, predictionWindow)
	if err != nil {
		return nil, err
	}

	prediction := &models.EvolutionPrediction{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Horizon:   horizon,
		Domains:   make(map[string]models.DomainPrediction),
		Status:    statusPending,
		CreatedAt: time.Now(),
	}

	var confidenceSum float64
	var predicted int
	for _, domain := range Domains {
		current, trend, samples := domainSummary(analysis.Patterns, domain)
		if samples == 0 {
			continue
		}

		accuracy, validations := t.learning.Accuracy("evolution_" + domain)
		confidence := sampleConfidence(samples)
		if validations >= 3 {
			confidence = (confidence + accuracy) / 2
		}

		prediction.Domains[domain] = models.DomainPrediction{
			Domain:     domain,
			Current:    current,
			Projected:  clamp01(current + trend*projectionSlices),
			Trend:      trend,
			Confidence: confidence,
		}
		confidenceSum += confidence
		predicted++
	}

	if predicted > 0 {
		prediction.Confidence = confidenceSum / float64(predicted)
	}

	if err := t.snapshots.SaveEvolutionPrediction(prediction); err != nil {
		return nil, err
	}

	logger.Info("Evolution prediction stored",
		zap.String("project_id", projectID),
		zap.String("prediction_id", prediction.ID),
		zap.Int("domains", predicted),
	)

	return prediction, nil
}

// ValidateEvolutionPredictions scores a stored prediction against the
// observed per-domain effectiveness. A validated prediction never
// reverts to pending, and replaying the same ground truth returns the
// recorded result.
func (t *Tracker) ValidateEvolutionPredictions(ctx context.Context, predictionID string, actual map[string]float64) (*models.ValidationResult, error) {
	prediction, err := t.snapshots.GetEvolutionPrediction(predictionID)
	if err != nil {
		return nil, err
	}
	if prediction == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrediction, predictionID)
	}

	fingerprint := actualsFingerprint(actual)
	if existing, err := t.snapshots.GetValidationByFingerprint(predictionID, "evolution", fingerprint); err == nil && existing != nil {
		return existing, nil
	}

	result := &models.ValidationResult{
		ID:          uuid.New().String(),
		SubjectID:   predictionID,
		Kind:        "evolution",
		PerCategory: make(map[string]models.CategoryValidation),
		Scores:      make(map[string]float64),
		Fingerprint: fingerprint,
		ValidatedAt: time.Now(),
	}

	var correct, scored int
	for domain, predicted := range prediction.Domains {
		observed, ok := actual[domain]
		if !ok {
			continue
		}
		scored++
		result.Scores[domain] = observed

		hit := absDiff(predicted.Projected, observed) <= predictionTolerance
		validation := models.CategoryValidation{}
		if hit {
			correct++
			validation.TruePositives = 1
		} else {
			validation.FalsePositives = 1
		}
		result.PerCategory[domain] = validation

		t.learning.RecordValidation("evolution_"+domain, hit)
	}

	if scored > 0 {
		result.Accuracy = float64(correct) / float64(scored)
	}

	if err := t.snapshots.InsertValidation(result); err != nil {
		return nil, err
	}

	if prediction.Status != statusValidated {
		prediction.Status = statusValidated
		if err := t.snapshots.SaveEvolutionPrediction(prediction); err != nil {
			logger.Warn("Failed to mark prediction validated", zap.Error(err))
		}
	}

	return result, nil
}

func domainSummary(patterns []models.PatternEvolution, domain string) (current, trend float64, samples int) {
	var currentSum, trendSum float64
	var n int
	for _, p := range patterns {
		if p.Domain != domain {
			continue
		}
		currentSum += p.LatestEffectiveness
		trendSum += p.Trend
		n++
		samples += p.SampleCount
	}
	if n == 0 {
		return 0, 0, 0
	}
	return currentSum / float64(n), trendSum / float64(n), samples
}

func sampleConfidence(samples int) float64 {
	confidence := float64(samples) / 10
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

func actualsFingerprint(actual map[string]float64) string {
	domains := make([]string, 0, len(actual))
	for domain := range actual {
		domains = append(domains, domain)
	}
	sort.Strings(domains)

	var b strings.Builder
	for _, domain := range domains {
		fmt.Fprintf(&b, "%s=%.3f|", strings.ToLower(domain), actual[domain])
	}
	return utils.HashString(b.String())
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
