package patterns

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

func extractTemporalPatterns(similar []SimilarProject) (*TemporalPatterns, error) {
	var all, totals []float64
	byTransition := make(map[string][]float64)

	for _, sp := range similar {
		var total float64
		for _, phase := range sp.Project.Phases {
			key := phase.FromPhase + "->" + phase.ToPhase
			byTransition[key] = append(byTransition[key], phase.DurationDays)
			all = append(all, phase.DurationDays)
			total += phase.DurationDays
		}
		if total > 0 {
			totals = append(totals, total)
		}
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("no phase transitions in similar set")
	}

	patterns := &TemporalPatterns{
		Overall:         describe(all),
		ByTransition:    make(map[string]DurationStats, len(byTransition)),
		ProjectDuration: describe(totals),
	}
	for key, durations := range byTransition {
		patterns.ByTransition[key] = describe(durations)
	}

	return patterns, nil
}

func extractStructuralPatterns(similar []SimilarProject) *StructuralPatterns {
	patterns := &StructuralPatterns{
		Architectures: make(map[string]int),
		Technologies:  make(map[string]int),
		TeamShapes:    make(map[string]int),
	}

	for _, sp := range similar {
		if sp.Project.Architecture != "" {
			patterns.Architectures[sp.Project.Architecture]++
		}
		for _, tech := range sp.Project.Context.Technologies {
			patterns.Technologies[strings.ToLower(tech)]++
		}
		patterns.TeamShapes[TeamShape(sp.Project.Context.TeamSize)]++
	}

	return patterns
}

func extractContextualPatterns(similar []SimilarProject) *ContextualPatterns {
	patterns := &ContextualPatterns{
		Industries:       make(map[string]int),
		ClientTypes:      make(map[string]int),
		EngagementModels: make(map[string]int),
	}

	for _, sp := range similar {
		if sp.Project.Context.Industry != "" {
			patterns.Industries[sp.Project.Context.Industry]++
		}
		if sp.Project.Context.ClientType != "" {
			patterns.ClientTypes[sp.Project.Context.ClientType]++
		}
		if sp.Project.EngagementModel != "" {
			patterns.EngagementModels[sp.Project.EngagementModel]++
		}
	}

	return patterns
}

// extractOutcomePatterns differences the factors reported by clearly
// successful projects against clearly failed ones. A factor's weight
// is its frequency gap between the two groups.
func extractOutcomePatterns(similar []SimilarProject) (*OutcomePatterns, error) {
	successFreq := make(map[string]float64)
	failureFreq := make(map[string]float64)
	var successCount, failureCount int
	var scoreSum float64

	for _, sp := range similar {
		score := sp.Project.Outcome.SuccessScore
		scoreSum += score

		switch {
		case score > successCutoff:
			successCount++
			for _, f := range sp.Project.Factors {
				successFreq[strings.ToLower(f)]++
			}
		case score < failureCutoff:
			failureCount++
			for _, f := range sp.Project.Factors {
				failureFreq[strings.ToLower(f)]++
			}
		}
	}

	if successCount == 0 && failureCount == 0 {
		return nil, fmt.Errorf("no clearly successful or failed projects in similar set")
	}

	patterns := &OutcomePatterns{
		SuccessFactors:  differenceFactors(successFreq, failureFreq, successCount, failureCount),
		FailureFactors:  differenceFactors(failureFreq, successFreq, failureCount, successCount),
		AvgSuccessScore: scoreSum / float64(len(similar)),
		SuccessCount:    successCount,
		FailureCount:    failureCount,
	}

	return patterns, nil
}

func differenceFactors(target, opposite map[string]float64, targetN, oppositeN int) []WeightedFactor {
	var factors []WeightedFactor

	for factor, count := range target {
		targetRate := 0.0
		if targetN > 0 {
			targetRate = count / float64(targetN)
		}
		oppositeRate := 0.0
		if oppositeN > 0 {
			oppositeRate = opposite[factor] / float64(oppositeN)
		}

		weight := targetRate - oppositeRate
		if weight > 0 {
			factors = append(factors, WeightedFactor{Factor: factor, Weight: weight})
		}
	}

	sort.Slice(factors, func(i, j int) bool {
		if factors[i].Weight == factors[j].Weight {
			return factors[i].Factor < factors[j].Factor
		}
		return factors[i].Weight > factors[j].Weight
	})

	return factors
}

func describe(values []float64) DurationStats {
	n := len(values)
	if n == 0 {
		return DurationStats{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var variance float64
	for _, v := range sorted {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(n)

	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return DurationStats{
		Mean:   mean,
		Median: median,
		StdDev: math.Sqrt(variance),
		Count:  n,
	}
}

func TeamShape(size int) string {
	switch {
	case size <= 0:
		return "unknown"
	case size <= 4:
		return "small"
	case size <= 9:
		return "medium"
	default:
		return "large"
	}
}

func buildInsights(analysis *Analysis, similar []SimilarProject) []string {
	var insights []string

	if analysis.Temporal != nil && analysis.Temporal.Overall.Count > 0 {
		insights = append(insights, fmt.Sprintf(
			"Phase transitions in comparable projects take %.0f days on average (median %.0f)",
			analysis.Temporal.Overall.Mean, analysis.Temporal.Overall.Median,
		))
	}

	if analysis.Structural != nil {
		if arch, count := topEntry(analysis.Structural.Architectures); arch != "" {
			insights = append(insights, fmt.Sprintf(
				"%d of %d similar projects used a %s architecture",
				count, len(similar), arch,
			))
		}
	}

	if analysis.Outcome != nil && len(analysis.Outcome.SuccessFactors) > 0 {
		insights = append(insights, fmt.Sprintf(
			"Strongest success factor among comparable projects: %s",
			analysis.Outcome.SuccessFactors[0].Factor,
		))
	}

	return insights
}

func topEntry(freq map[string]int) (string, int) {
	var bestKey string
	bestCount := 0
	for key, count := range freq {
		if count > bestCount || (count == bestCount && key < bestKey) {
			bestKey = key
			bestCount = count
		}
	}
	return bestKey, bestCount
}
