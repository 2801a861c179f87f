package patterns

import "time"

// Too little history to learn from. The defaults below are generic
// delivery practice, reported at deliberately low confidence so
// callers can tell them apart from evidence-backed factors.
const defaultConfidence = 0.2

func defaultSuccessFactors() []WeightedFactor {
	return []WeightedFactor{
		{Factor: "clear scope definition", Weight: 0.3},
		{Factor: "frequent client communication", Weight: 0.25},
		{Factor: "incremental delivery", Weight: 0.25},
		{Factor: "experienced technical lead", Weight: 0.2},
	}
}

func defaultAnalysis(projectID string, similarCount int) *Analysis {
	return &Analysis{
		ProjectID:      projectID,
		SimilarCount:   similarCount,
		SuccessFactors: defaultSuccessFactors(),
		Insights: []string{
			"Not enough comparable historical projects; falling back to baseline delivery factors",
		},
		Confidences: map[string]float64{
			"temporal":   0,
			"structural": 0,
			"contextual": 0,
			"outcome":    defaultConfidence,
		},
		Confidence:      defaultConfidence,
		Degraded:        true,
		DegradedReasons: []string{"insufficient history"},
		GeneratedAt:     time.Now(),
	}
}
