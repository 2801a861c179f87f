package risk

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/cache"
	"github.com/engagement-agent/backend/internal/knowledge"
	"github.com/engagement-agent/backend/internal/learning"
	"github.com/engagement-agent/backend/internal/similarity"
	"github.com/engagement-agent/backend/internal/storage/models"
	"github.com/engagement-agent/backend/pkg/logger"
)

// Categories is the fixed risk taxonomy; the weights sum to 1.0.
var Categories = []string{"technical", "timeline", "budget", "communication", "scope", "external"}

var categoryWeights = map[string]float64{
	"technical":     0.25,
	"timeline":      0.20,
	"budget":        0.20,
	"communication": 0.15,
	"scope":         0.10,
	"external":      0.10,
}

// Risk level step thresholds over the overall score. Anything under
// the medium floor reads as low.
const (
	levelMediumFloor   = 0.4
	levelHighFloor     = 0.6
	levelCriticalFloor = 0.8
)

const (
	warningProbabilityFloor    = 0.4
	mitigationProbabilityFloor = 0.3
	occurrenceConfidenceCap    = 10
	defaultMitigationEffort    = 5.0
)

// PredictionStore persists assessments, prediction snapshots and
// validation results. The sqlite client satisfies it.
type PredictionStore interface {
	InsertAssessment(assessment *models.RiskAssessment) error
	SaveRiskPrediction(projectID string, assessment *models.RiskAssessment) error
	GetRiskPrediction(projectID string) (*models.RiskAssessment, error)
	InsertValidation(result *models.ValidationResult) error
	GetValidationByFingerprint(subjectID, kind, fingerprint string) (*models.ValidationResult, error)
	InsertPatternSnapshot(snapshot *models.PatternSnapshot) error
}

type Config struct {
	SimilarityFloor float64
	MinProbability  float64
	CacheTTL        time.Duration
}

func DefaultConfig() Config {
	return Config{
		SimilarityFloor: 0.6,
		MinProbability:  0.3,
		CacheTTL:        30 * time.Minute,
	}
}

type Detector struct {
	store       knowledge.Store
	contexts    knowledge.ContextBuilder
	scorer      *similarity.Scorer
	learning    *learning.Store
	predictions PredictionStore
	cache       cache.Cache
	cfg         Config
}

func NewDetector(store knowledge.Store, contexts knowledge.ContextBuilder, scorer *similarity.Scorer, learningStore *learning.Store, predictions PredictionStore, resultCache cache.Cache, cfg Config) *Detector {
	if cfg.SimilarityFloor == 0 {
		cfg.SimilarityFloor = 0.6
	}
	if cfg.MinProbability == 0 {
		cfg.MinProbability = 0.3
	}

	return &Detector{
		store:       store,
		contexts:    contexts,
		scorer:      scorer,
		learning:    learningStore,
		predictions: predictions,
		cache:       resultCache,
		cfg:         cfg,
	}
}

// DetectRiskPatterns matches the project context against historical
// risk records and aggregates per-category risks into an assessment.
func (d *Detector) DetectRiskPatterns(ctx context.Context, projectID string) (*models.RiskAssessment, error) {
	cacheKey := "risk:" + projectID
	if d.cache != nil {
		var cached models.RiskAssessment
		if hit, err := d.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	pc, err := d.contexts.BuildProjectContext(ctx, projectID)
	if err != nil {
		return nil, err
	}

	assessment := &models.RiskAssessment{
		ID:             uuid.New().String(),
		ProjectID:      projectID,
		CategoryScores: make(map[string]float64),
		GeneratedAt:    time.Now(),
	}

	var detected []scoredRisk
	for _, category := range Categories {
		risks, err := d.detectCategory(ctx, pc, category)
		if err != nil {
			assessment.Degraded = true
			assessment.DegradedReasons = append(assessment.DegradedReasons, category+": "+err.Error())
			continue
		}
		if len(risks) == 0 {
			continue
		}

		for _, r := range risks {
			assessment.Risks = append(assessment.Risks, r.CategoryRisk)
		}
		assessment.CategoryScores[category] = categoryScore(risks)
		detected = append(detected, risks...)
	}

	assessment.OverallScore = OverallScore(assessment.CategoryScores)
	assessment.RiskLevel = LevelFor(assessment.OverallScore)
	assessment.EarlyWarnings = earlyWarnings(detected)
	assessment.Mitigations = mitigations(detected)
	assessment.Monitoring = monitoring(detected)

	// Persist only after the whole result exists; a cancelled call
	// must not leave a partial prediction behind.
	if d.predictions != nil {
		if err := d.predictions.InsertAssessment(assessment); err != nil {
			logger.Warn("Failed to store assessment", zap.Error(err))
		}
		if err := d.predictions.SaveRiskPrediction(projectID, assessment); err != nil {
			logger.Warn("Failed to snapshot prediction", zap.Error(err))
		}
		d.recordSnapshots(assessment)
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, cacheKey, assessment, d.cfg.CacheTTL); err != nil {
			logger.Warn("Failed to cache assessment", zap.Error(err))
		}
	}

	logger.Info("Risk assessment completed",
		zap.String("project_id", projectID),
		zap.Float64("overall_score", assessment.OverallScore),
		zap.String("risk_level", assessment.RiskLevel),
		zap.Int("risks", len(assessment.Risks)),
	)

	return assessment, nil
}

// scoredRisk keeps the derived risk next to its source record so the
// warning, mitigation and monitoring builders can reach the record's
// actions and signals.
type scoredRisk struct {
	models.CategoryRisk
	record     models.RiskRecord
	similarity float64
}

func (d *Detector) detectCategory(ctx context.Context, pc *models.ProjectContext, category string) ([]scoredRisk, error) {
	records, err := d.store.QueryRisks(ctx, knowledge.Filter{RiskType: category})
	if err != nil {
		return nil, err
	}

	adjustment := 1.0
	if d.learning != nil {
		adjustment = d.learning.AdjustmentFor(category)
	}

	var risks []scoredRisk
	for i := range records {
		record := &records[i]

		sim := d.scorer.Score(pc, &record.Context)
		if sim <= d.cfg.SimilarityFloor {
			continue
		}

		probability := clamp01(record.BaseProbability * sim * adjustment)
		if probability < d.cfg.MinProbability {
			continue
		}

		risks = append(risks, scoredRisk{
			CategoryRisk: models.CategoryRisk{
				Type:        category,
				Description: record.Description,
				Probability: probability,
				Impact:      clamp01(record.AverageImpact),
				Confidence:  occurrenceConfidence(record.Occurrences),
				Evidence:    evidence(record, sim),
			},
			record:     *record,
			similarity: sim,
		})
	}

	sort.Slice(risks, func(i, j int) bool {
		return risks[i].Probability*risks[i].Impact > risks[j].Probability*risks[j].Impact
	})

	return risks, nil
}

// categoryScore lets the worst credible risk dominate the category.
func categoryScore(risks []scoredRisk) float64 {
	var max float64
	for _, r := range risks {
		if s := r.Probability * r.Impact; s > max {
			max = s
		}
	}
	return max
}

// OverallScore is the weight-normalized aggregate over the categories
// that produced a score.
func OverallScore(categoryScores map[string]float64) float64 {
	var weighted, weightSum float64
	for category, score := range categoryScores {
		weight := categoryWeights[category]
		weighted += score * weight
		weightSum += weight
	}
	if weightSum == 0 {
		return 0
	}
	return weighted / weightSum
}

// LevelFor is the step function from overall score to discrete level.
func LevelFor(score float64) string {
	switch {
	case score >= levelCriticalFloor:
		return "critical"
	case score >= levelHighFloor:
		return "high"
	case score >= levelMediumFloor:
		return "medium"
	default:
		return "low"
	}
}

func occurrenceConfidence(occurrences int) float64 {
	c := float64(occurrences) / occurrenceConfidenceCap
	if c > 1 {
		return 1
	}
	if c < 0 {
		return 0
	}
	return c
}

func evidence(record *models.RiskRecord, sim float64) []string {
	out := []string{fmt.Sprintf("record %s (similarity %.2f, %d occurrences)", record.ID, sim, record.Occurrences)}
	out = append(out, record.Triggers...)
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
