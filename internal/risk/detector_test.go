package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagement-agent/backend/internal/knowledge"
	"github.com/engagement-agent/backend/internal/learning"
	"github.com/engagement-agent/backend/internal/similarity"
	"github.com/engagement-agent/backend/internal/storage/models"
)

// fakePredictionStore records everything in memory, mirroring the
// sqlite client's contract including the fingerprint-keyed idempotence
// of validations.
type fakePredictionStore struct {
	assessments []models.RiskAssessment
	predictions map[string]*models.RiskAssessment
	validations []models.ValidationResult
	snapshots   []models.PatternSnapshot
}

func newFakePredictionStore() *fakePredictionStore {
	return &fakePredictionStore{predictions: make(map[string]*models.RiskAssessment)}
}

func (f *fakePredictionStore) InsertAssessment(a *models.RiskAssessment) error {
	f.assessments = append(f.assessments, *a)
	return nil
}

func (f *fakePredictionStore) SaveRiskPrediction(projectID string, a *models.RiskAssessment) error {
	copied := *a
	f.predictions[projectID] = &copied
	return nil
}

func (f *fakePredictionStore) GetRiskPrediction(projectID string) (*models.RiskAssessment, error) {
	return f.predictions[projectID], nil
}

func (f *fakePredictionStore) InsertValidation(r *models.ValidationResult) error {
	for _, existing := range f.validations {
		if existing.SubjectID == r.SubjectID && existing.Kind == r.Kind && existing.Fingerprint == r.Fingerprint {
			return nil
		}
	}
	f.validations = append(f.validations, *r)
	return nil
}

func (f *fakePredictionStore) GetValidationByFingerprint(subjectID, kind, fingerprint string) (*models.ValidationResult, error) {
	for i := range f.validations {
		v := &f.validations[i]
		if v.SubjectID == subjectID && v.Kind == kind && v.Fingerprint == fingerprint {
			return v, nil
		}
	}
	return nil, nil
}

func (f *fakePredictionStore) InsertPatternSnapshot(s *models.PatternSnapshot) error {
	f.snapshots = append(f.snapshots, *s)
	return nil
}

func targetContext() models.ProjectContext {
	return models.ProjectContext{
		ProjectID:   "target",
		ProjectType: "api-development",
		ClientType:  "enterprise",
	}
}

func seededStore(records ...models.RiskRecord) *knowledge.MemStore {
	store := knowledge.NewMemStore()
	store.Projects = []models.HistoricalProject{{
		ID:          "target",
		Context:     targetContext(),
		CompletedAt: time.Now(),
	}}
	store.Risks = records
	return store
}

// scorerNinety yields exactly 0.9 against targetContext: full credit
// on project type (0.8) plus related-client half credit (0.1).
func scorerNinety() *similarity.Scorer {
	return similarity.NewScorer(similarity.Weights{ProjectType: 0.8, ClientType: 0.2})
}

func riskRecord(category string, baseProbability, impact float64) models.RiskRecord {
	return models.RiskRecord{
		ID:              "r-" + category,
		Type:            category,
		Description:     category + " risk",
		Context:         models.ProjectContext{ProjectType: "api-development", ClientType: "public-sector"},
		BaseProbability: baseProbability,
		AverageImpact:   impact,
		Occurrences:     8,
		Triggers:        []string{"trigger"},
		MitigationActions: []string{
			"mitigate " + category,
		},
		EarlyWarnings: []models.WarningSignal{
			{Signal: "signal", Metric: "metric", Threshold: 0.5},
		},
		MitigationEffort:        4,
		MitigationEffectiveness: 0.7,
		RecordedAt:              time.Now(),
	}
}

func newTestDetector(store *knowledge.MemStore, predictions PredictionStore) *Detector {
	learningStore, _ := learning.NewStore(nil)
	return NewDetector(
		store,
		knowledge.NewStoreContextBuilder(store),
		scorerNinety(),
		learningStore,
		predictions,
		nil,
		DefaultConfig(),
	)
}

func TestAdjustedProbability(t *testing.T) {
	store := seededStore(riskRecord("technical", 0.6, 0.9))
	detector := newTestDetector(store, newFakePredictionStore())

	assessment, err := detector.DetectRiskPatterns(context.Background(), "target")
	require.NoError(t, err)

	require.Len(t, assessment.Risks, 1)
	// 0.6 base x 0.9 similarity x 1.0 neutral adjustment
	assert.InDelta(t, 0.54, assessment.Risks[0].Probability, 1e-9)
}

func TestProbabilityFloorDiscardsWeakRisks(t *testing.T) {
	// 0.3 x 0.9 = 0.27, below the 0.3 floor.
	store := seededStore(riskRecord("technical", 0.3, 0.9))
	detector := newTestDetector(store, newFakePredictionStore())

	assessment, err := detector.DetectRiskPatterns(context.Background(), "target")
	require.NoError(t, err)

	assert.Empty(t, assessment.Risks)
	assert.Equal(t, "low", assessment.RiskLevel)
}

func TestOverallScoreWeighting(t *testing.T) {
	scores := map[string]float64{
		"technical": 0.8,
		"timeline":  0.4,
	}

	// (0.8*0.25 + 0.4*0.2) / (0.25 + 0.2)
	got := OverallScore(scores)
	assert.InDelta(t, 0.4, got, 1e-9)
	assert.Equal(t, "medium", LevelFor(got))
}

func TestOverallScoreMonotonic(t *testing.T) {
	base := map[string]float64{"technical": 0.5, "budget": 0.3}
	raised := map[string]float64{"technical": 0.7, "budget": 0.3}

	assert.Greater(t, OverallScore(raised), OverallScore(base))
}

func TestLevelForStepFunction(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{0.0, "low"},
		{0.39, "low"},
		{0.4, "medium"},
		{0.59, "medium"},
		{0.6, "high"},
		{0.79, "high"},
		{0.8, "critical"},
		{1.0, "critical"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, LevelFor(tc.score), "score %.2f", tc.score)
	}
}

func TestAssessmentProducesWarningsAndMitigations(t *testing.T) {
	store := seededStore(
		riskRecord("technical", 0.8, 0.9),
		riskRecord("timeline", 0.7, 0.8),
	)
	predictions := newFakePredictionStore()
	detector := newTestDetector(store, predictions)

	assessment, err := detector.DetectRiskPatterns(context.Background(), "target")
	require.NoError(t, err)

	assert.NotEmpty(t, assessment.EarlyWarnings)
	assert.NotEmpty(t, assessment.Mitigations)
	assert.NotEmpty(t, assessment.Monitoring)

	require.Contains(t, predictions.predictions, "target")
	assert.NotEmpty(t, predictions.snapshots, "assessment must feed evolution snapshots")
}

func TestValidateWithoutPrediction(t *testing.T) {
	store := seededStore()
	detector := newTestDetector(store, newFakePredictionStore())

	_, err := detector.ValidateRiskPredictions(context.Background(), "target", models.ActualOutcome{})
	assert.ErrorIs(t, err, ErrNoPrediction)
}

func TestValidateRiskPredictions(t *testing.T) {
	store := seededStore(riskRecord("technical", 0.8, 0.9))
	predictions := newFakePredictionStore()
	detector := newTestDetector(store, predictions)

	_, err := detector.DetectRiskPatterns(context.Background(), "target")
	require.NoError(t, err)

	actual := models.ActualOutcome{
		MaterializedRisks: []string{"technical"},
		SuccessScore:      0.5,
	}

	result, err := detector.ValidateRiskPredictions(context.Background(), "target", actual)
	require.NoError(t, err)

	assert.Equal(t, "risk", result.Kind)
	assert.Equal(t, 1, result.PerCategory["technical"].TruePositives)
	// The five silent categories did not materialize and were not
	// predicted: all six calls were correct.
	assert.InDelta(t, 1.0, result.Accuracy, 1e-9)
}

func TestValidateRiskPredictionsIdempotent(t *testing.T) {
	store := seededStore(riskRecord("technical", 0.8, 0.9))
	predictions := newFakePredictionStore()
	detector := newTestDetector(store, predictions)

	_, err := detector.DetectRiskPatterns(context.Background(), "target")
	require.NoError(t, err)

	actual := models.ActualOutcome{
		MaterializedRisks: []string{"technical"},
		SuccessScore:      0.5,
	}

	first, err := detector.ValidateRiskPredictions(context.Background(), "target", actual)
	require.NoError(t, err)

	second, err := detector.ValidateRiskPredictions(context.Background(), "target", actual)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "replaying the same outcome must not create a second validation")
	assert.Len(t, predictions.validations, 1)
}
