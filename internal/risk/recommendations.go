package risk

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/storage/models"
	"github.com/engagement-agent/backend/pkg/logger"
)

// Monitoring cadence cut points over probability×impact.
const (
	dailyCadenceFloor    = 0.7
	weeklyCadenceFloor   = 0.5
	biweeklyCadenceFloor = 0.3
)

// earlyWarnings surfaces signals only for risks likely enough to act
// on, prioritized by probability×impact×100.
func earlyWarnings(risks []scoredRisk) []models.EarlyWarning {
	var warnings []models.EarlyWarning

	for _, r := range risks {
		if r.Probability <= warningProbabilityFloor {
			continue
		}
		for _, signal := range r.record.EarlyWarnings {
			warnings = append(warnings, models.EarlyWarning{
				RiskType:  r.Type,
				Signal:    signal.Signal,
				Metric:    signal.Metric,
				Threshold: signal.Threshold,
				Priority:  r.Probability * r.Impact * 100,
			})
		}
	}

	sort.Slice(warnings, func(i, j int) bool {
		return warnings[i].Priority > warnings[j].Priority
	})

	return warnings
}

func mitigations(risks []scoredRisk) []models.MitigationRecommendation {
	var recs []models.MitigationRecommendation

	for _, r := range risks {
		if r.Probability <= mitigationProbabilityFloor {
			continue
		}
		if len(r.record.MitigationActions) == 0 && len(r.record.PreventionActions) == 0 {
			continue
		}

		effort := r.record.MitigationEffort
		if effort <= 0 {
			effort = defaultMitigationEffort
		}
		effectiveness := r.record.MitigationEffectiveness
		if effectiveness <= 0 {
			effectiveness = 0.5
		}

		actions := append([]string(nil), r.record.PreventionActions...)
		actions = append(actions, r.record.MitigationActions...)

		recs = append(recs, models.MitigationRecommendation{
			RiskType: r.Type,
			Actions:  actions,
			Priority: (r.Probability * r.Impact * effectiveness) / (effort / 10),
		})
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Priority > recs[j].Priority
	})

	return recs
}

func monitoring(risks []scoredRisk) []models.MonitoringRecommendation {
	// One monitoring entry per category, driven by its worst risk.
	worst := make(map[string]scoredRisk)
	metrics := make(map[string][]string)

	for _, r := range risks {
		severity := r.Probability * r.Impact
		if current, ok := worst[r.Type]; !ok || severity > current.Probability*current.Impact {
			worst[r.Type] = r
		}
		for _, signal := range r.record.EarlyWarnings {
			if signal.Metric != "" {
				metrics[r.Type] = appendUnique(metrics[r.Type], signal.Metric)
			}
		}
	}

	var recs []models.MonitoringRecommendation
	for category, r := range worst {
		severity := r.Probability * r.Impact

		recs = append(recs, models.MonitoringRecommendation{
			RiskType:      category,
			Metrics:       metrics[category],
			Cadence:       cadenceFor(severity),
			AlertChannels: channelsFor(severity),
		})
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].RiskType < recs[j].RiskType
	})

	return recs
}

func cadenceFor(severity float64) string {
	switch {
	case severity > dailyCadenceFloor:
		return "daily"
	case severity > weeklyCadenceFloor:
		return "weekly"
	case severity > biweeklyCadenceFloor:
		return "biweekly"
	default:
		return "monthly"
	}
}

// channelsFor escalates alert channels with severity.
func channelsFor(severity float64) []string {
	switch {
	case severity > dailyCadenceFloor:
		return []string{"pager", "chat", "email"}
	case severity > weeklyCadenceFloor:
		return []string{"chat", "email"}
	default:
		return []string{"email"}
	}
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}

// recordSnapshots writes one effectiveness observation per assessed
// category so the evolution tracker has a time series to slice. Higher
// effectiveness means better risk posture.
func (d *Detector) recordSnapshots(assessment *models.RiskAssessment) {
	for category, score := range assessment.CategoryScores {
		snapshot := &models.PatternSnapshot{
			ProjectID:     assessment.ProjectID,
			Domain:        "risk",
			Name:          category,
			Effectiveness: 1 - clamp01(score),
			RecordedAt:    time.Now(),
		}
		if err := d.predictions.InsertPatternSnapshot(snapshot); err != nil {
			logger.Warn("Failed to record risk snapshot",
				zap.String("category", category),
				zap.Error(err),
			)
		}
	}
}
