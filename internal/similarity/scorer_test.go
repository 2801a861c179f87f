package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagement-agent/backend/internal/storage/models"
)

func baseContext() *models.ProjectContext {
	return &models.ProjectContext{
		ProjectID:     "p-1",
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

func TestScoreIdenticalContexts(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	pc := baseContext()

	assert.InDelta(t, 1.0, scorer.Score(pc, pc), 1e-9)
}

func TestScoreBounds(t *testing.T) {
	scorer := NewScorer(DefaultWeights())

	cases := []struct {
		name string
		a    *models.ProjectContext
		b    *models.ProjectContext
	}{
		{"identical", baseContext(), baseContext()},
		{"disjoint", baseContext(), &models.ProjectContext{
			ProjectType:   "data-migration",
			ClientType:    "startup",
			Technologies:  []string{"python"},
			TeamSize:      2,
			TimelineWeeks: 4,
			BudgetUSD:     10000,
			Complexity:    0.1,
		}},
		{"empty", baseContext(), &models.ProjectContext{}},
		{"both empty", &models.ProjectContext{}, &models.ProjectContext{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score := scorer.Score(tc.a, tc.b)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		})
	}
}

func TestScoreNilContext(t *testing.T) {
	scorer := NewScorer(DefaultWeights())

	assert.Zero(t, scorer.Score(nil, baseContext()))
	assert.Zero(t, scorer.Score(baseContext(), nil))
}

func TestRelatedProjectTypesHalfCredit(t *testing.T) {
	scorer := NewScorer(Weights{ProjectType: 1.0})

	a := &models.ProjectContext{ProjectType: "api-development"}
	exact := &models.ProjectContext{ProjectType: "api-development"}
	related := &models.ProjectContext{ProjectType: "microservices"}
	unrelated := &models.ProjectContext{ProjectType: "data-migration"}

	assert.InDelta(t, 1.0, scorer.Score(a, exact), 1e-9)
	assert.InDelta(t, 0.5, scorer.Score(a, related), 1e-9)
	assert.InDelta(t, 0.0, scorer.Score(a, unrelated), 1e-9)
}

func TestNumericProximityZeroGuards(t *testing.T) {
	scorer := NewScorer(Weights{TeamSize: 1.0})

	bothZero := scorer.Score(&models.ProjectContext{TeamSize: 0}, &models.ProjectContext{TeamSize: 0})
	assert.InDelta(t, 1.0, bothZero, 1e-9, "two unknown values should match")

	oneZero := scorer.Score(&models.ProjectContext{TeamSize: 5}, &models.ProjectContext{TeamSize: 0})
	assert.InDelta(t, 0.0, oneZero, 1e-9, "one unknown value should not match")
}

func TestNumericProximityScaling(t *testing.T) {
	scorer := NewScorer(Weights{Timeline: 1.0})

	a := &models.ProjectContext{TimelineWeeks: 10}
	b := &models.ProjectContext{TimelineWeeks: 20}

	// 1 - |10-20|/20
	assert.InDelta(t, 0.5, scorer.Score(a, b), 1e-9)
}

func TestTechnologyJaccard(t *testing.T) {
	scorer := NewScorer(Weights{Technology: 1.0})

	a := &models.ProjectContext{Technologies: []string{"go", "postgres"}}
	b := &models.ProjectContext{Technologies: []string{"go", "redis"}}

	// intersection 1, union 3
	assert.InDelta(t, 1.0/3.0, scorer.Score(a, b), 1e-9)
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	w := DefaultWeights()
	sum := w.ProjectType + w.ClientType + w.Technology + w.TeamSize + w.Timeline + w.Budget + w.Complexity
	require.InDelta(t, 1.0, sum, 1e-9)
}
