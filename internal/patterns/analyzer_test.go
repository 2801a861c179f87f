package patterns

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagement-agent/backend/internal/cache/memory"
	"github.com/engagement-agent/backend/internal/knowledge"
	"github.com/engagement-agent/backend/internal/similarity"
	"github.com/engagement-agent/backend/internal/storage/models"
)

func testContext(id string) models.ProjectContext {
	return models.ProjectContext{
		ProjectID:     id,
		ProjectType:   "api-development",
		ClientType:    "enterprise",
		Industry:      "finance",
		Technologies:  []string{"go", "postgres", "kubernetes"},
		TeamSize:      6,
		TimelineWeeks: 24,
		BudgetUSD:     500000,
		Complexity:    0.6,
	}
}

func historicalProject(id string, successScore float64, factors ...string) models.HistoricalProject {
	return models.HistoricalProject{
		ID:      id,
		Name:    "Project " + id,
		Context: testContext(id),
		Outcome: models.ProjectOutcome{
			SuccessScore:  successScore,
			OnTime:        successScore > 0.7,
			OnBudget:      successScore > 0.7,
			DurationWeeks: 24,
		},
		Phases: []models.PhaseTransition{
			{FromPhase: "discovery", ToPhase: "design", DurationDays: 14},
			{FromPhase: "design", ToPhase: "build", DurationDays: 10},
			{FromPhase: "build", ToPhase: "deliver", DurationDays: 40},
		},
		Architecture:    "microservices",
		EngagementModel: "embedded-team",
		Factors:         factors,
		CompletedAt:     time.Now().AddDate(0, -6, 0),
	}
}

func newTestAnalyzer(store *knowledge.MemStore) *Analyzer {
	return NewAnalyzer(
		store,
		knowledge.NewStoreContextBuilder(store),
		similarity.NewScorer(similarity.DefaultWeights()),
		nil,
		memory.New(),
		DefaultConfig(),
	)
}

func TestAnalyzeWithNoHistoryReturnsDefaults(t *testing.T) {
	store := knowledge.NewMemStore()
	store.Projects = []models.HistoricalProject{historicalProject("target", 0)}

	analyzer := newTestAnalyzer(store)

	analysis, err := analyzer.AnalyzeProjectPatterns(context.Background(), "target")
	require.NoError(t, err)

	assert.LessOrEqual(t, analysis.Confidence, 0.2)
	assert.True(t, analysis.Degraded)
	assert.Zero(t, analysis.SimilarCount)
	assert.NotEmpty(t, analysis.SuccessFactors, "defaults must still name baseline factors")
}

func TestAnalyzeUnknownProject(t *testing.T) {
	analyzer := newTestAnalyzer(knowledge.NewMemStore())

	_, err := analyzer.AnalyzeProjectPatterns(context.Background(), "missing")
	assert.ErrorIs(t, err, knowledge.ErrContextNotFound)
}

func TestAnalyzeExtractsPatterns(t *testing.T) {
	store := knowledge.NewMemStore()
	store.Projects = []models.HistoricalProject{historicalProject("target", 0)}
	for i := 0; i < 6; i++ {
		score := 0.9
		factors := []string{"clear scope", "strong lead"}
		if i >= 4 {
			score = 0.2
			factors = []string{"scope churn"}
		}
		store.Projects = append(store.Projects, historicalProject(fmt.Sprintf("h-%d", i), score, factors...))
	}

	analyzer := newTestAnalyzer(store)

	analysis, err := analyzer.AnalyzeProjectPatterns(context.Background(), "target")
	require.NoError(t, err)

	assert.Equal(t, 6, analysis.SimilarCount)
	require.NotNil(t, analysis.Temporal)
	assert.Equal(t, 18, analysis.Temporal.Overall.Count)
	// Each seeded project runs 14+10+40 days end to end.
	assert.Equal(t, 6, analysis.Temporal.ProjectDuration.Count)
	assert.InDelta(t, 64, analysis.Temporal.ProjectDuration.Mean, 1e-9)

	require.NotNil(t, analysis.Structural)
	assert.Equal(t, 6, analysis.Structural.Architectures["microservices"])

	require.NotNil(t, analysis.Outcome)
	assert.Equal(t, 4, analysis.Outcome.SuccessCount)
	assert.Equal(t, 2, analysis.Outcome.FailureCount)

	var factors []string
	for _, f := range analysis.SuccessFactors {
		factors = append(factors, f.Factor)
	}
	assert.Contains(t, factors, "clear scope")
}

func TestFindSimilarExcludesSelfAndDissimilar(t *testing.T) {
	store := knowledge.NewMemStore()
	store.Projects = []models.HistoricalProject{
		historicalProject("target", 0),
		historicalProject("twin", 0.8),
	}
	outlier := historicalProject("outlier", 0.8)
	outlier.Context = models.ProjectContext{
		ProjectID:     "outlier",
		ProjectType:   "mobile-development",
		ClientType:    "startup",
		Technologies:  []string{"swift"},
		TeamSize:      2,
		TimelineWeeks: 6,
		BudgetUSD:     20000,
		Complexity:    0.2,
	}
	store.Projects = append(store.Projects, outlier)

	analyzer := newTestAnalyzer(store)
	pc := testContext("target")

	similar, err := analyzer.FindSimilarProjects(context.Background(), &pc)
	require.NoError(t, err)

	require.Len(t, similar, 1)
	assert.Equal(t, "twin", similar[0].Project.ID)
	assert.Greater(t, similar[0].Similarity, 0.5)
}

func TestFindSimilarCapsResults(t *testing.T) {
	store := knowledge.NewMemStore()
	store.Projects = []models.HistoricalProject{historicalProject("target", 0)}
	for i := 0; i < 30; i++ {
		store.Projects = append(store.Projects, historicalProject(fmt.Sprintf("h-%d", i), 0.8))
	}

	cfg := DefaultConfig()
	cfg.MaxSimilar = 20
	analyzer := NewAnalyzer(
		store,
		knowledge.NewStoreContextBuilder(store),
		similarity.NewScorer(similarity.DefaultWeights()),
		nil,
		nil,
		cfg,
	)

	pc := testContext("target")
	similar, err := analyzer.FindSimilarProjects(context.Background(), &pc)
	require.NoError(t, err)

	assert.Len(t, similar, 20)
}

func TestSampleConfidence(t *testing.T) {
	cases := []struct {
		n         int
		threshold int
		want      float64
	}{
		{0, 20, 0},
		{5, 20, 0.25},
		{20, 20, 1},
		{40, 20, 1},
	}

	for _, tc := range cases {
		assert.InDelta(t, tc.want, sampleConfidence(tc.n, tc.threshold), 1e-9)
	}
}

func TestSampleConfidenceMonotonic(t *testing.T) {
	prev := 0.0
	for n := 0; n <= 30; n++ {
		c := sampleConfidence(n, 15)
		assert.GreaterOrEqual(t, c, prev, "confidence must never drop as the sample grows")
		assert.LessOrEqual(t, c, 1.0)
		prev = c
	}
}

func TestAnalysisServedFromCache(t *testing.T) {
	store := knowledge.NewMemStore()
	store.Projects = []models.HistoricalProject{historicalProject("target", 0)}

	analyzer := newTestAnalyzer(store)

	first, err := analyzer.AnalyzeProjectPatterns(context.Background(), "target")
	require.NoError(t, err)

	// History grows, but the cached analysis still answers.
	for i := 0; i < 5; i++ {
		store.Projects = append(store.Projects, historicalProject(fmt.Sprintf("h-%d", i), 0.9))
	}

	second, err := analyzer.AnalyzeProjectPatterns(context.Background(), "target")
	require.NoError(t, err)
	assert.Equal(t, first.SimilarCount, second.SimilarCount)
}
