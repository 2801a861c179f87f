package similarity

import (
	"strings"

	"github.com/engagement-agent/backend/internal/storage/models"
)

// Weights is the factor weight table for context similarity. The
// entries sum to 1.0 so the score stays in [0,1].
type Weights struct {
	ProjectType float64
	ClientType  float64
	Technology  float64
	TeamSize    float64
	Timeline    float64
	Budget      float64
	Complexity  float64
}

func DefaultWeights() Weights {
	return Weights{
		ProjectType: 0.30,
		ClientType:  0.20,
		Technology:  0.15,
		TeamSize:    0.10,
		Timeline:    0.10,
		Budget:      0.10,
		Complexity:  0.05,
	}
}

// relatedProjectTypes maps a project type to types considered close
// enough to earn half credit on the project-type factor.
var relatedProjectTypes = map[string][]string{
	"api-development":      {"microservices", "platform-engineering", "integration"},
	"microservices":        {"api-development", "platform-engineering", "cloud-migration"},
	"cloud-migration":      {"microservices", "infrastructure", "platform-engineering"},
	"platform-engineering": {"api-development", "microservices", "infrastructure"},
	"data-engineering":     {"analytics", "machine-learning"},
	"analytics":            {"data-engineering", "machine-learning"},
	"machine-learning":     {"data-engineering", "analytics"},
	"mobile-development":   {"frontend", "product-development"},
	"frontend":             {"mobile-development", "product-development"},
	"legacy-modernization": {"cloud-migration", "integration"},
	"integration":          {"api-development", "legacy-modernization"},
}

var relatedClientTypes = map[string][]string{
	"enterprise": {"public-sector"},
	"scaleup":    {"startup", "enterprise"},
	"startup":    {"scaleup"},
	"smb":        {"startup", "scaleup"},
}

type Scorer struct {
	weights Weights
}

func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score computes the bounded [0,1] weighted similarity of two project
// contexts. Pure: no I/O, no shared state.
func (s *Scorer) Score(a, b *models.ProjectContext) float64 {
	if a == nil || b == nil {
		return 0
	}

	score := s.weights.ProjectType*categoricalMatch(a.ProjectType, b.ProjectType, relatedProjectTypes) +
		s.weights.ClientType*categoricalMatch(a.ClientType, b.ClientType, relatedClientTypes) +
		s.weights.Technology*jaccard(a.Technologies, b.Technologies) +
		s.weights.TeamSize*proximity(float64(a.TeamSize), float64(b.TeamSize)) +
		s.weights.Timeline*proximity(float64(a.TimelineWeeks), float64(b.TimelineWeeks)) +
		s.weights.Budget*proximity(a.BudgetUSD, b.BudgetUSD) +
		s.weights.Complexity*proximity(a.Complexity, b.Complexity)

	return clamp01(score)
}

// categoricalMatch gives full credit for an exact match and half
// credit when the curated related-types table links the two values.
func categoricalMatch(a, b string, related map[string][]string) float64 {
	if a == "" || b == "" {
		return 0
	}

	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if a == b {
		return 1.0
	}

	for _, rel := range related[a] {
		if rel == b {
			return 0.5
		}
	}

	return 0
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[strings.ToLower(t)] = struct{}{}
	}

	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[strings.ToLower(t)] = struct{}{}
	}

	intersection := 0
	for t := range setB {
		if _, ok := setA[t]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

// proximity scores two magnitudes as 1 − |Δ|/max. Both zero counts as
// full similarity; one zero counts as none.
func proximity(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 1.0
	}
	if a == 0 || b == 0 {
		return 0
	}

	maxVal := a
	if b > maxVal {
		maxVal = b
	}

	diff := a - b
	if diff < 0 {
		diff = -diff
	}

	return 1.0 - diff/maxVal
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
