package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/engagement-agent/backend/internal/knowledge"
	"github.com/engagement-agent/backend/internal/patterns"
	"github.com/engagement-agent/backend/internal/storage/models"
)

// generateMethodology scores historical methodology outcomes for
// projects like this one. Confidence discounts thin samples: a perfect
// success rate over two engagements is still a weak signal.
func (e *Engine) generateMethodology(ctx context.Context, pc *models.ProjectContext, analysis *patterns.Analysis, opts Options) ([]models.Recommendation, error) {
	outcomes, err := e.store.QueryRecommendationOutcomes(ctx, knowledge.Filter{
		ProjectType: pc.ProjectType,
		Industry:    pc.Industry,
	})
	if err != nil {
		return nil, err
	}

	var recs []models.Recommendation
	for _, outcome := range outcomes {
		if outcome.Count == 0 {
			continue
		}

		sample := float64(outcome.Count) / methodologySampleCap
		if sample > 1 {
			sample = 1
		}
		confidence := outcome.SuccessRate * sample * e.learning.ScaleFor("methodology")
		if confidence > 1 {
			confidence = 1
		}
		if confidence < opts.MinConfidence {
			continue
		}

		impact := outcome.AvgImpact
		if impact == 0 {
			impact = outcome.SuccessRate
		}

		recs = append(recs, newRecommendation(
			"methodology",
			fmt.Sprintf("Adopt %s delivery", outcome.Methodology),
			fmt.Sprintf("%s succeeded in %.0f%% of %d comparable %s engagements.",
				outcome.Methodology, outcome.SuccessRate*100, outcome.Count, pc.ProjectType),
			confidence,
			4,
			impact,
			"weeks",
			2,
			[]string{fmt.Sprintf("%d historical engagements, %.0f%% success rate", outcome.Count, outcome.SuccessRate*100)},
		))
	}

	return recs, nil
}

func (e *Engine) generateRiskMitigation(assessment *models.RiskAssessment, opts Options) []models.Recommendation {
	scale := e.learning.ScaleFor("risk_mitigation")

	var recs []models.Recommendation
	for _, mitigation := range assessment.Mitigations {
		worst := worstRisk(assessment.Risks, mitigation.RiskType)
		if worst == nil {
			continue
		}

		confidence := worst.Confidence * scale
		if confidence > 1 {
			confidence = 1
		}
		if confidence < opts.MinConfidence {
			continue
		}

		effort := 5.0
		span := 4
		if len(mitigation.Actions) > 0 && len(mitigation.Actions) <= 2 {
			effort = 3
			span = 2
		}

		recs = append(recs, newRecommendation(
			"risk_mitigation",
			fmt.Sprintf("Mitigate %s risk", mitigation.RiskType),
			strings.Join(mitigation.Actions, "; "),
			confidence,
			effort,
			worst.Probability*worst.Impact,
			"weeks",
			span,
			worst.Evidence,
		))
	}

	return recs
}

// generateProcessOptimization looks at the project's live delivery
// metrics against what succeeded for similar projects.
func (e *Engine) generateProcessOptimization(pc *models.ProjectContext, analysis *patterns.Analysis, opts Options) []models.Recommendation {
	scale := e.learning.ScaleFor("process_optimization")
	confidence := analysis.Confidence * scale
	if confidence > 1 {
		confidence = 1
	}
	if confidence < opts.MinConfidence {
		return nil
	}

	var recs []models.Recommendation

	if defectRate, ok := pc.Metrics["defect_rate"]; ok && defectRate > 0.1 {
		recs = append(recs, newRecommendation(
			"process_optimization",
			"Tighten quality gates",
			fmt.Sprintf("Current defect rate %.0f%% is above the 10%% threshold seen in successful comparable deliveries. Add pre-merge review and automated regression checks.", defectRate*100),
			confidence,
			3,
			0.5,
			"weeks",
			3,
			[]string{fmt.Sprintf("defect_rate=%.2f", defectRate)},
		))
	}

	if throughput, ok := pc.Metrics["phase_throughput"]; ok && analysis.Temporal != nil && analysis.Temporal.Overall.Mean > 0 {
		expected := 1 / analysis.Temporal.Overall.Mean
		if throughput < expected*0.75 {
			recs = append(recs, newRecommendation(
				"process_optimization",
				"Shorten phase handoffs",
				fmt.Sprintf("Phase throughput is %.0f%% below the average of %d similar projects. Review handoff ceremonies and approval bottlenecks.", (1-throughput/expected)*100, analysis.SimilarCount),
				confidence,
				2,
				0.4,
				"weeks",
				2,
				[]string{fmt.Sprintf("phase_throughput=%.3f, similar average=%.3f", throughput, expected)},
			))
		}
	}

	return recs
}

func (e *Engine) generateTeamOptimization(pc *models.ProjectContext, analysis *patterns.Analysis, opts Options) []models.Recommendation {
	if analysis.Structural == nil || len(analysis.Structural.TeamShapes) == 0 {
		return nil
	}

	scale := e.learning.ScaleFor("team_optimization")
	confidence := analysis.Confidences["structural"] * scale
	if confidence > 1 {
		confidence = 1
	}
	if confidence < opts.MinConfidence {
		return nil
	}

	dominant := dominantKey(analysis.Structural.TeamShapes)
	current := patterns.TeamShape(pc.TeamSize)
	if dominant == "" || dominant == current {
		return nil
	}

	return []models.Recommendation{newRecommendation(
		"team_optimization",
		fmt.Sprintf("Align team size with the %s profile", dominant),
		fmt.Sprintf("Successful similar projects most often ran with a %s team. This engagement has %d people (%s).", dominant, pc.TeamSize, current),
		confidence,
		6,
		0.5,
		"months",
		1,
		[]string{fmt.Sprintf("%d of %d similar projects used a %s team", analysis.Structural.TeamShapes[dominant], analysis.SimilarCount, dominant)},
	)}
}

func (e *Engine) generateCommunication(pc *models.ProjectContext, analysis *patterns.Analysis, opts Options) []models.Recommendation {
	scale := e.learning.ScaleFor("communication")
	confidence := analysis.Confidence * scale
	if confidence > 1 {
		confidence = 1
	}

	// Outcome factors mentioning communication raise the confidence of
	// a cadence recommendation even when the overall sample is thin.
	if analysis.Outcome != nil {
		for _, factor := range analysis.Outcome.SuccessFactors {
			if strings.Contains(strings.ToLower(factor.Factor), "communication") {
				boosted := confidence + factor.Weight*0.3
				if boosted > 1 {
					boosted = 1
				}
				confidence = boosted
				break
			}
		}
	}
	if confidence < opts.MinConfidence {
		return nil
	}

	frequency, ok := pc.Metrics["communication_frequency"]
	if !ok || frequency >= 2 {
		return nil
	}

	return []models.Recommendation{newRecommendation(
		"communication",
		"Increase client touchpoint cadence",
		fmt.Sprintf("Client communication is running at %.1f touchpoints per week. Comparable successful engagements held at least two. Schedule a standing mid-week checkpoint.", frequency),
		confidence,
		1,
		0.4,
		"weeks",
		1,
		[]string{fmt.Sprintf("communication_frequency=%.1f", frequency)},
	)}
}

func (e *Engine) generateTechnology(pc *models.ProjectContext, analysis *patterns.Analysis, opts Options) []models.Recommendation {
	if analysis.Structural == nil || len(analysis.Structural.Technologies) == 0 {
		return nil
	}

	scale := e.learning.ScaleFor("technology")
	confidence := analysis.Confidences["structural"] * scale
	if confidence > 1 {
		confidence = 1
	}
	if confidence < opts.MinConfidence {
		return nil
	}

	inUse := make(map[string]bool, len(pc.Technologies))
	for _, tech := range pc.Technologies {
		inUse[strings.ToLower(tech)] = true
	}

	majority := analysis.SimilarCount / 2
	var recs []models.Recommendation
	for _, tech := range sortedKeys(analysis.Structural.Technologies) {
		count := analysis.Structural.Technologies[tech]
		if count <= majority || inUse[strings.ToLower(tech)] {
			continue
		}
		recs = append(recs, newRecommendation(
			"technology",
			fmt.Sprintf("Evaluate %s", tech),
			fmt.Sprintf("%d of %d similar successful projects used %s and this engagement does not. Assess fit before the next delivery phase.", count, analysis.SimilarCount, tech),
			confidence,
			5,
			0.5,
			"months",
			1,
			[]string{fmt.Sprintf("adopted by %d of %d similar projects", count, analysis.SimilarCount)},
		))
		if len(recs) == 3 {
			break
		}
	}

	return recs
}

func (e *Engine) generateTimeline(pc *models.ProjectContext, analysis *patterns.Analysis, assessment *models.RiskAssessment, opts Options) []models.Recommendation {
	if analysis.Temporal == nil || analysis.Temporal.ProjectDuration.Count == 0 || pc.TimelineWeeks == 0 {
		return nil
	}

	scale := e.learning.ScaleFor("timeline")
	confidence := analysis.Confidences["temporal"] * scale
	if confidence > 1 {
		confidence = 1
	}
	if confidence < opts.MinConfidence {
		return nil
	}

	// ProjectDuration is in days; the plan is in weeks.
	historicalWeeks := analysis.Temporal.ProjectDuration.Mean / 7
	planned := float64(pc.TimelineWeeks)
	if historicalWeeks <= planned*1.1 {
		return nil
	}

	impact := 0.5
	if assessment != nil {
		if score, ok := assessment.CategoryScores["timeline"]; ok && score > impact {
			impact = score
		}
	}

	return []models.Recommendation{newRecommendation(
		"timeline",
		"Re-baseline the delivery timeline",
		fmt.Sprintf("Similar projects took %.0f weeks on average against the %d planned here. Re-baseline now or cut scope before the gap is discovered mid-delivery.", historicalWeeks, pc.TimelineWeeks),
		confidence,
		2,
		impact,
		"weeks",
		1,
		[]string{fmt.Sprintf("historical mean %.1f weeks over %d similar projects", historicalWeeks, analysis.Temporal.ProjectDuration.Count)},
	)}
}

func worstRisk(risks []models.CategoryRisk, riskType string) *models.CategoryRisk {
	var worst *models.CategoryRisk
	for i := range risks {
		if risks[i].Type != riskType {
			continue
		}
		if worst == nil || risks[i].Probability*risks[i].Impact > worst.Probability*worst.Impact {
			worst = &risks[i]
		}
	}
	return worst
}

func dominantKey(counts map[string]int) string {
	best, bestCount := "", 0
	for _, key := range sortedKeys(counts) {
		if counts[key] > bestCount {
			best, bestCount = key, counts[key]
		}
	}
	return best
}

func sortedKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
