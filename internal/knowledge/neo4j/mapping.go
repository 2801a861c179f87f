package neo4j

import (
	"encoding/json"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/engagement-agent/backend/internal/storage/models"
)

func projectFromProps(props map[string]any) models.HistoricalProject {
	p := models.HistoricalProject{
		ID:              propString(props, "id"),
		Name:            propString(props, "name"),
		Architecture:    propString(props, "architecture"),
		EngagementModel: propString(props, "engagement_model"),
		Factors:         propStringSlice(props, "factors"),
		Context:         contextFromProps(props),
		Outcome: models.ProjectOutcome{
			SuccessScore:      propFloat(props, "success_score"),
			OnTime:            propBool(props, "on_time"),
			OnBudget:          propBool(props, "on_budget"),
			DurationWeeks:     propInt(props, "duration_weeks"),
			SatisfactionScore: propFloat(props, "satisfaction"),
		},
	}

	if ts := propInt64(props, "completed_at"); ts > 0 {
		p.CompletedAt = time.Unix(ts, 0)
	}

	// Phase transitions ride along as a JSON property; a missing or
	// malformed value just means no temporal statistics for this node.
	if raw := propString(props, "phases"); raw != "" {
		var phases []models.PhaseTransition
		if err := json.Unmarshal([]byte(raw), &phases); err == nil {
			p.Phases = phases
		}
	}

	return p
}

func riskFromProps(props map[string]any) models.RiskRecord {
	r := models.RiskRecord{
		ID:                      propString(props, "id"),
		Type:                    propString(props, "type"),
		Description:             propString(props, "description"),
		BaseProbability:         propFloat(props, "base_probability"),
		AverageImpact:           propFloat(props, "average_impact"),
		Occurrences:             propInt(props, "occurrences"),
		Triggers:                propStringSlice(props, "triggers"),
		PreventionActions:       propStringSlice(props, "prevention_actions"),
		MitigationActions:       propStringSlice(props, "mitigation_actions"),
		MitigationEffort:        propFloat(props, "mitigation_effort"),
		MitigationEffectiveness: propFloat(props, "mitigation_effectiveness"),
		Context:                 contextFromProps(props),
	}

	if ts := propInt64(props, "recorded_at"); ts > 0 {
		r.RecordedAt = time.Unix(ts, 0)
	}

	if raw := propString(props, "early_warnings"); raw != "" {
		var warnings []models.WarningSignal
		if err := json.Unmarshal([]byte(raw), &warnings); err == nil {
			r.EarlyWarnings = warnings
		}
	}

	return r
}

func contextFromProps(props map[string]any) models.ProjectContext {
	c := models.ProjectContext{
		ProjectID:     propString(props, "id"),
		ProjectType:   propString(props, "project_type"),
		ClientType:    propString(props, "client_type"),
		Industry:      propString(props, "industry"),
		Technologies:  propStringSlice(props, "technologies"),
		TeamSize:      propInt(props, "team_size"),
		TimelineWeeks: propInt(props, "timeline_weeks"),
		BudgetUSD:     propFloat(props, "budget_usd"),
		Complexity:    propFloat(props, "complexity"),
	}

	if raw := propString(props, "metrics"); raw != "" {
		var metrics map[string]float64
		if err := json.Unmarshal([]byte(raw), &metrics); err == nil {
			c.Metrics = metrics
		}
	}

	return c
}

func propString(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func propFloat(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func propInt(props map[string]any, key string) int {
	return int(propInt64(props, key))
}

func propInt64(props map[string]any, key string) int64 {
	switch v := props[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func propBool(props map[string]any, key string) bool {
	if v, ok := props[key].(bool); ok {
		return v
	}
	return false
}

func propStringSlice(props map[string]any, key string) []string {
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringValue(record *db.Record, key string) string {
	if v, ok := record.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func floatValue(record *db.Record, key string) float64 {
	if v, ok := record.Get(key); ok {
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		}
	}
	return 0
}

func intValue(record *db.Record, key string) int {
	if v, ok := record.Get(key); ok {
		switch n := v.(type) {
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

func stringSliceValue(record *db.Record, key string) []string {
	v, ok := record.Get(key)
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
