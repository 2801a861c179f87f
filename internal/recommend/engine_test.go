package recommend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagement-agent/backend/internal/cache/memory"
	"github.com/engagement-agent/backend/internal/knowledge"
	"github.com/engagement-agent/backend/internal/learning"
	"github.com/engagement-agent/backend/internal/patterns"
	"github.com/engagement-agent/backend/internal/risk"
	"github.com/engagement-agent/backend/internal/similarity"
	"github.com/engagement-agent/backend/internal/storage/models"
)

type fakeBundleStore struct {
	bundles   int
	feedback  []models.FeedbackEntry
	snapshots []models.PatternSnapshot
}

func (f *fakeBundleStore) SaveRecommendationBundle(id, projectID, optionsHash string, bundle any) error {
	f.bundles++
	return nil
}

func (f *fakeBundleStore) InsertFeedback(projectID string, entry *models.FeedbackEntry) error {
	f.feedback = append(f.feedback, *entry)
	return nil
}

func (f *fakeBundleStore) InsertPatternSnapshot(snapshot *models.PatternSnapshot) error {
	f.snapshots = append(f.snapshots, *snapshot)
	return nil
}

type nilPredictionStore struct{}

func (nilPredictionStore) InsertAssessment(*models.RiskAssessment) error           { return nil }
func (nilPredictionStore) SaveRiskPrediction(string, *models.RiskAssessment) error { return nil }
func (nilPredictionStore) GetRiskPrediction(string) (*models.RiskAssessment, error) {
	return nil, nil
}
func (nilPredictionStore) InsertValidation(*models.ValidationResult) error { return nil }
func (nilPredictionStore) GetValidationByFingerprint(string, string, string) (*models.ValidationResult, error) {
	return nil, nil
}
func (nilPredictionStore) InsertPatternSnapshot(*models.PatternSnapshot) error { return nil }

func seededStore() *knowledge.MemStore {
	store := knowledge.NewMemStore()
	store.Projects = []models.HistoricalProject{{
		ID: "target",
		Context: models.ProjectContext{
			ProjectID:     "target",
			ProjectType:   "api-development",
			ClientType:    "enterprise",
			Technologies:  []string{"go"},
			TeamSize:      6,
			TimelineWeeks: 24,
			BudgetUSD:     500000,
			Complexity:    0.6,
		},
		CompletedAt: time.Now(),
	}}
	store.RecOutcomes = []models.RecommendationOutcome{{
		Type:        "methodology",
		Methodology: "agile-scrum",
		SuccessRate: 0.9,
		Count:       5,
		AvgImpact:   0.8,
	}}
	return store
}

func newTestEngine(store *knowledge.MemStore, bundles *fakeBundleStore) *Engine {
	contexts := knowledge.NewStoreContextBuilder(store)
	scorer := similarity.NewScorer(similarity.DefaultWeights())
	learningStore, _ := learning.NewStore(nil)

	analyzer := patterns.NewAnalyzer(store, contexts, scorer, nil, nil, patterns.DefaultConfig())
	detector := risk.NewDetector(store, contexts, scorer, learningStore, nilPredictionStore{}, nil, risk.DefaultConfig())

	return NewEngine(store, contexts, analyzer, detector, learningStore, bundles, memory.New(), time.Minute)
}

func TestMethodologyConfidenceFromHistory(t *testing.T) {
	engine := newTestEngine(seededStore(), &fakeBundleStore{})

	bundle, err := engine.GenerateRecommendations(context.Background(), "target", DefaultOptions())
	require.NoError(t, err)

	require.Len(t, bundle.Methodology, 1)
	rec := bundle.Methodology[0]

	// 0.9 success rate over a saturated 5-engagement sample.
	assert.InDelta(t, 0.9, rec.Confidence, 1e-9)
	assert.InDelta(t, 0.8, rec.Impact, 1e-9)
	assert.Equal(t, "high", rec.Priority)
}

func TestThinMethodologySampleLowersConfidence(t *testing.T) {
	store := seededStore()
	store.RecOutcomes = []models.RecommendationOutcome{{
		Type:        "methodology",
		Methodology: "waterfall",
		SuccessRate: 1.0,
		Count:       2,
		AvgImpact:   0.8,
	}}
	engine := newTestEngine(store, &fakeBundleStore{})

	bundle, err := engine.GenerateRecommendations(context.Background(), "target", DefaultOptions())
	require.NoError(t, err)

	require.Len(t, bundle.Methodology, 1)
	// 1.0 x 2/5: a perfect rate over two engagements is still weak.
	assert.InDelta(t, 0.4, bundle.Methodology[0].Confidence, 1e-9)
}

func TestMinConfidenceFiltersRecommendations(t *testing.T) {
	engine := newTestEngine(seededStore(), &fakeBundleStore{})

	opts := DefaultOptions()
	opts.MinConfidence = 0.95

	bundle, err := engine.GenerateRecommendations(context.Background(), "target", opts)
	require.NoError(t, err)

	assert.Empty(t, bundle.Methodology)
}

func TestGenerateIsIdempotent(t *testing.T) {
	engine := newTestEngine(seededStore(), &fakeBundleStore{})

	first, err := engine.GenerateRecommendations(context.Background(), "target", DefaultOptions())
	require.NoError(t, err)

	second, err := engine.GenerateRecommendations(context.Background(), "target", DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, first.Summary, second.Summary)
	require.Equal(t, len(first.Methodology), len(second.Methodology))
	for i := range first.Methodology {
		assert.Equal(t, first.Methodology[i].Priority, second.Methodology[i].Priority)
		assert.Equal(t, first.Methodology[i].Title, second.Methodology[i].Title)
	}
}

func TestBundlePersisted(t *testing.T) {
	bundles := &fakeBundleStore{}
	engine := newTestEngine(seededStore(), bundles)

	_, err := engine.GenerateRecommendations(context.Background(), "target", DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, bundles.bundles)
	assert.NotEmpty(t, bundles.snapshots, "generated types must feed evolution snapshots")
}

func TestGenerateUnknownProject(t *testing.T) {
	engine := newTestEngine(seededStore(), &fakeBundleStore{})

	_, err := engine.GenerateRecommendations(context.Background(), "missing", DefaultOptions())
	assert.ErrorIs(t, err, knowledge.ErrContextNotFound)
}

func TestPriorityFor(t *testing.T) {
	cases := []struct {
		confidence float64
		impact     float64
		want       string
	}{
		{0.9, 0.8, "high"},
		{0.8, 0.5, "medium"},
		{0.5, 0.5, "low"},
		{0.0, 1.0, "low"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, PriorityFor(tc.confidence, tc.impact))
	}
}

func TestQuickWinsSelection(t *testing.T) {
	all := []models.Recommendation{
		{ID: "a", Effort: 2, Impact: 0.6, TimelineUnit: "weeks"},
		{ID: "b", Effort: 1, Impact: 0.4, TimelineUnit: "weeks"},
		{ID: "c", Effort: 8, Impact: 0.9, TimelineUnit: "weeks"},
		{ID: "d", Effort: 2, Impact: 0.5, TimelineUnit: "months"},
		{ID: "e", Effort: 3, Impact: 0.2, TimelineUnit: "weeks"},
	}

	wins := quickWins(all)

	require.Len(t, wins, 2)
	assert.Equal(t, "b", wins[0].ID, "best impact per effort first")
	assert.Equal(t, "a", wins[1].ID)
}

func TestStrategicInitiativesSelection(t *testing.T) {
	all := []models.Recommendation{
		{ID: "a", Effort: 8, Impact: 0.9},
		{ID: "b", Effort: 6, Impact: 0.6},
		{ID: "c", Effort: 2, Impact: 0.9},
		{ID: "d", Effort: 7, Impact: 0.5},
		{ID: "e", Effort: 9, Impact: 0.7},
	}

	initiatives := strategicInitiatives(all)

	require.Len(t, initiatives, 3)
	assert.Equal(t, "a", initiatives[0].ID)
	assert.Equal(t, "e", initiatives[1].ID)
	assert.Equal(t, "b", initiatives[2].ID)
}

func TestTruncateProportionally(t *testing.T) {
	bundle := &Bundle{
		Methodology:    make([]models.Recommendation, 6),
		RiskMitigation: make([]models.Recommendation, 4),
	}

	truncateProportionally(bundle, 5)

	total := len(bundle.Methodology) + len(bundle.RiskMitigation)
	assert.LessOrEqual(t, total, 5)
	assert.NotEmpty(t, bundle.Methodology)
	assert.NotEmpty(t, bundle.RiskMitigation)
}

func TestFeedbackMovesWeight(t *testing.T) {
	bundles := &fakeBundleStore{}
	engine := newTestEngine(seededStore(), bundles)

	insights, err := engine.UpdateFromFeedback(context.Background(), "target", models.FeedbackEntry{
		RecommendationType: "methodology",
		Effectiveness:      1.0,
		Utility:            1.0,
	}, nil)
	require.NoError(t, err)

	// ((1.0+1.0)/2 - 0.5) x 0.1
	assert.InDelta(t, 0.05, insights.Delta, 1e-9)
	assert.InDelta(t, 1.05, insights.Weight, 1e-9)
	assert.Len(t, bundles.feedback, 1)
}

func TestNeutralFeedbackLeavesWeightAlone(t *testing.T) {
	engine := newTestEngine(seededStore(), &fakeBundleStore{})

	insights, err := engine.UpdateFromFeedback(context.Background(), "target", models.FeedbackEntry{
		RecommendationType: "methodology",
		Effectiveness:      0.5,
		Utility:            0.5,
	}, nil)
	require.NoError(t, err)

	assert.Zero(t, insights.Delta)
	assert.InDelta(t, 1.0, insights.Weight, 1e-9)
}

func TestRepeatedFeedbackStaysBounded(t *testing.T) {
	engine := newTestEngine(seededStore(), &fakeBundleStore{})

	for i := 0; i < 100; i++ {
		insights, err := engine.UpdateFromFeedback(context.Background(), "target", models.FeedbackEntry{
			RecommendationType: "methodology",
			Effectiveness:      1.0,
			Utility:            1.0,
		}, nil)
		require.NoError(t, err)
		assert.LessOrEqual(t, insights.Weight, learning.MaxWeight)
	}

	for i := 0; i < 300; i++ {
		insights, err := engine.UpdateFromFeedback(context.Background(), "target", models.FeedbackEntry{
			RecommendationType: "methodology",
			Effectiveness:      0.0,
			Utility:            0.0,
		}, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, insights.Weight, learning.MinWeight)
	}
}

func TestFloorWeightFeedbackSuppressesRecommendations(t *testing.T) {
	engine := newTestEngine(seededStore(), &fakeBundleStore{})

	before, err := engine.GenerateRecommendations(context.Background(), "target", DefaultOptions())
	require.NoError(t, err)
	require.Len(t, before.Methodology, 1)
	assert.InDelta(t, 0.9, before.Methodology[0].Confidence, 1e-9)

	// Sustained negative ratings drive the type's weight to its floor.
	for i := 0; i < 200; i++ {
		_, err := engine.UpdateFromFeedback(context.Background(), "target", models.FeedbackEntry{
			RecommendationType: "methodology",
			Effectiveness:      0.0,
			Utility:            0.0,
		}, nil)
		require.NoError(t, err)
	}
	assert.InDelta(t, learning.MinWeight, engine.learning.WeightFor("methodology"), 1e-9)

	after, err := engine.GenerateRecommendations(context.Background(), "target", DefaultOptions())
	require.NoError(t, err)

	// 0.9 x 0.1 = 0.09 falls below the confidence floor.
	assert.Empty(t, after.Methodology)
}

func TestPositiveFeedbackRaisesConfidence(t *testing.T) {
	engine := newTestEngine(seededStore(), &fakeBundleStore{})

	_, err := engine.UpdateFromFeedback(context.Background(), "target", models.FeedbackEntry{
		RecommendationType: "methodology",
		Effectiveness:      1.0,
		Utility:            1.0,
	}, nil)
	require.NoError(t, err)

	bundle, err := engine.GenerateRecommendations(context.Background(), "target", DefaultOptions())
	require.NoError(t, err)

	require.Len(t, bundle.Methodology, 1)
	// 0.9 x 1.05 after one strong rating.
	assert.InDelta(t, 0.945, bundle.Methodology[0].Confidence, 1e-9)
}

func TestFeedbackOutcomesFeedValidationAccuracy(t *testing.T) {
	engine := newTestEngine(seededStore(), &fakeBundleStore{})

	_, err := engine.UpdateFromFeedback(context.Background(), "target", models.FeedbackEntry{
		RecommendationType: "methodology",
		Effectiveness:      0.5,
		Utility:            0.5,
	}, []models.OutcomeReport{
		{RecommendationType: "technology", Successful: true},
		{RecommendationType: "technology", Successful: true},
		{RecommendationType: "technology", Successful: false},
	})
	require.NoError(t, err)

	accuracy, validations := engine.learning.Accuracy("technology")
	assert.Equal(t, 3, validations)
	assert.InDelta(t, 2.0/3.0, accuracy, 1e-9)
}

func TestFeedbackRejectsUnknownOutcomeType(t *testing.T) {
	engine := newTestEngine(seededStore(), &fakeBundleStore{})

	_, err := engine.UpdateFromFeedback(context.Background(), "target", models.FeedbackEntry{
		RecommendationType: "methodology",
		Effectiveness:      0.5,
		Utility:            0.5,
	}, []models.OutcomeReport{{RecommendationType: "astrology", Successful: true}})
	assert.ErrorIs(t, err, ErrInvalidFeedback)

	_, validations := engine.learning.Accuracy("astrology")
	assert.Zero(t, validations)
}

func TestTimelineComparesWeeksToWeeks(t *testing.T) {
	engine := newTestEngine(seededStore(), &fakeBundleStore{})
	pc := &models.ProjectContext{ProjectID: "target", TimelineWeeks: 26}

	analysis := &patterns.Analysis{
		SimilarCount: 6,
		Temporal: &patterns.TemporalPatterns{
			// Individual transitions average 40 days, but the projects
			// themselves totalled 280 days, 40 weeks.
			Overall:         patterns.DurationStats{Mean: 40, Count: 18},
			ProjectDuration: patterns.DurationStats{Mean: 280, Count: 6},
		},
		Confidences: map[string]float64{"temporal": 0.8},
	}

	recs := engine.generateTimeline(pc, analysis, nil, DefaultOptions())

	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].Description, "40 weeks")
	assert.Contains(t, recs[0].Evidence[0], "40.0 weeks")
}

func TestTimelineWithinPlanStaysQuiet(t *testing.T) {
	engine := newTestEngine(seededStore(), &fakeBundleStore{})
	pc := &models.ProjectContext{ProjectID: "target", TimelineWeeks: 26}

	// 70-day histories are well inside a 26-week plan even though the
	// raw day figure dwarfs the planned week count.
	analysis := &patterns.Analysis{
		SimilarCount: 6,
		Temporal: &patterns.TemporalPatterns{
			Overall:         patterns.DurationStats{Mean: 70, Count: 18},
			ProjectDuration: patterns.DurationStats{Mean: 70, Count: 6},
		},
		Confidences: map[string]float64{"temporal": 0.8},
	}

	recs := engine.generateTimeline(pc, analysis, nil, DefaultOptions())
	assert.Empty(t, recs)
}

func TestFeedbackValidation(t *testing.T) {
	engine := newTestEngine(seededStore(), &fakeBundleStore{})

	cases := []struct {
		name  string
		entry models.FeedbackEntry
	}{
		{"missing type", models.FeedbackEntry{Effectiveness: 0.5, Utility: 0.5}},
		{"unknown type", models.FeedbackEntry{RecommendationType: "astrology", Effectiveness: 0.5, Utility: 0.5}},
		{"score out of range", models.FeedbackEntry{RecommendationType: "methodology", Effectiveness: 1.5, Utility: 0.5}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.UpdateFromFeedback(context.Background(), "target", tc.entry, nil)
			assert.ErrorIs(t, err, ErrInvalidFeedback)
		})
	}
}

func TestTransitionRecommendations(t *testing.T) {
	store := seededStore()
	store.Transitions = []models.MaturityTransition{{
		FromLevel:   "initial",
		ToLevel:     "managed",
		Actions:     []string{"introduce delivery metrics", "weekly retrospectives"},
		SuccessRate: 0.8,
		Count:       10,
	}}
	engine := newTestEngine(store, &fakeBundleStore{})

	recs, err := engine.GetTransitionRecommendations(context.Background(), "target", "initial", "managed")
	require.NoError(t, err)

	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].Description, "introduce delivery metrics")
	assert.InDelta(t, 0.8, recs[0].Confidence, 1e-9)
}

func TestTransitionRejectsInvalidLevels(t *testing.T) {
	engine := newTestEngine(seededStore(), &fakeBundleStore{})

	_, err := engine.GetTransitionRecommendations(context.Background(), "target", "initial", "sideways")
	assert.ErrorIs(t, err, ErrInvalidMaturityLevel)

	_, err = engine.GetTransitionRecommendations(context.Background(), "target", "managed", "initial")
	assert.ErrorIs(t, err, ErrInvalidMaturityLevel)
}
