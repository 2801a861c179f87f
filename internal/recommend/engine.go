package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/cache"
	"github.com/engagement-agent/backend/internal/knowledge"
	"github.com/engagement-agent/backend/internal/learning"
	"github.com/engagement-agent/backend/internal/patterns"
	"github.com/engagement-agent/backend/internal/risk"
	"github.com/engagement-agent/backend/internal/storage/models"
	"github.com/engagement-agent/backend/pkg/logger"
	"github.com/engagement-agent/backend/pkg/utils"
)

// Recommendation types, and the evolution sub-domain each one feeds.
var typeDomains = map[string]string{
	"methodology":          "methodology",
	"risk_mitigation":      "risk",
	"process_optimization": "team",
	"team_optimization":    "team",
	"communication":        "communication",
	"technology":           "technology",
	"timeline":             "methodology",
}

// Priority cut points over confidence×impact.
const (
	highPriorityFloor   = 0.6
	mediumPriorityFloor = 0.3
)

const (
	quickWinMaxEffort    = 3.0
	quickWinMinImpact    = 0.3
	quickWinLimit        = 5
	strategicMinImpact   = 0.5
	strategicMinEffort   = 5.0
	strategicLimit       = 3
	methodologySampleCap = 5
)

type Options struct {
	IncludeRisks         bool    `json:"includeRisks"`
	IncludeOptimizations bool    `json:"includeOptimizations"`
	IncludeMethodology   bool    `json:"includeMethodology"`
	MaxRecommendations   int     `json:"maxRecommendations"`
	MinConfidence        float64 `json:"minConfidence"`
}

func DefaultOptions() Options {
	return Options{
		IncludeRisks:         true,
		IncludeOptimizations: true,
		IncludeMethodology:   true,
		MinConfidence:        0.4,
	}
}

type Summary struct {
	Total      int
	ByCategory map[string]int
	ByPriority map[string]int
}

type Bundle struct {
	ProjectID            string
	Summary              Summary
	Methodology          []models.Recommendation
	RiskMitigation       []models.Recommendation
	ProcessOptimization  []models.Recommendation
	TeamOptimization     []models.Recommendation
	Communication        []models.Recommendation
	Technology           []models.Recommendation
	Timeline             []models.Recommendation
	QuickWins            []models.Recommendation
	StrategicInitiatives []models.Recommendation
	GeneratedAt          time.Time
}

// BundleStore persists generated bundles, feedback and the pattern
// snapshots the evolution tracker consumes.
type BundleStore interface {
	SaveRecommendationBundle(id, projectID, optionsHash string, bundle any) error
	InsertFeedback(projectID string, entry *models.FeedbackEntry) error
	InsertPatternSnapshot(snapshot *models.PatternSnapshot) error
}

type Engine struct {
	store    knowledge.Store
	contexts knowledge.ContextBuilder
	analyzer *patterns.Analyzer
	detector *risk.Detector
	learning *learning.Store
	bundles  BundleStore
	cache    cache.Cache
	cacheTTL time.Duration
}

func NewEngine(store knowledge.Store, contexts knowledge.ContextBuilder, analyzer *patterns.Analyzer, detector *risk.Detector, learningStore *learning.Store, bundles BundleStore, resultCache cache.Cache, cacheTTL time.Duration) *Engine {
	if cacheTTL == 0 {
		cacheTTL = 30 * time.Minute
	}
	return &Engine{
		store:    store,
		contexts: contexts,
		analyzer: analyzer,
		detector: detector,
		learning: learningStore,
		bundles:  bundles,
		cache:    resultCache,
		cacheTTL: cacheTTL,
	}
}

// GenerateRecommendations synthesizes typed recommendations from the
// delivery analysis, the risk assessment and the live context.
func (e *Engine) GenerateRecommendations(ctx context.Context, projectID string, opts Options) (*Bundle, error) {
	opts = normalize(opts)

	cacheKey := fmt.Sprintf("recs:%s:%s", projectID, optionsHash(opts))
	if e.cache != nil {
		var cached Bundle
		if hit, err := e.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	pc, err := e.contexts.BuildProjectContext(ctx, projectID)
	if err != nil {
		return nil, err
	}

	analysis, err := e.analyzer.AnalyzeProjectPatterns(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var assessment *models.RiskAssessment
	if opts.IncludeRisks {
		assessment, err = e.detector.DetectRiskPatterns(ctx, projectID)
		if err != nil {
			return nil, err
		}
	}

	bundle := &Bundle{
		ProjectID:   projectID,
		GeneratedAt: time.Now(),
	}

	if opts.IncludeMethodology {
		methodology, err := e.generateMethodology(ctx, pc, analysis, opts)
		if err != nil {
			logger.Warn("Methodology generation degraded", zap.Error(err))
		} else {
			bundle.Methodology = methodology
		}
		bundle.Timeline = e.generateTimeline(pc, analysis, assessment, opts)
	}

	if opts.IncludeRisks && assessment != nil {
		bundle.RiskMitigation = e.generateRiskMitigation(assessment, opts)
	}

	if opts.IncludeOptimizations {
		bundle.ProcessOptimization = e.generateProcessOptimization(pc, analysis, opts)
		bundle.TeamOptimization = e.generateTeamOptimization(pc, analysis, opts)
		bundle.Communication = e.generateCommunication(pc, analysis, opts)
		bundle.Technology = e.generateTechnology(pc, analysis, opts)
	}

	sortEach(bundle)

	all := collect(bundle)
	bundle.QuickWins = quickWins(all)
	bundle.StrategicInitiatives = strategicInitiatives(all)

	if opts.MaxRecommendations > 0 {
		truncateProportionally(bundle, opts.MaxRecommendations)
		all = collect(bundle)
	}

	bundle.Summary = summarize(all)

	// Persist and cache the finished bundle only.
	if e.bundles != nil {
		bundleID := uuid.New().String()
		if err := e.bundles.SaveRecommendationBundle(bundleID, projectID, optionsHash(opts), bundle); err != nil {
			logger.Warn("Failed to persist recommendation bundle", zap.Error(err))
		}
		e.recordSnapshots(projectID, all)
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, cacheKey, bundle, e.cacheTTL); err != nil {
			logger.Warn("Failed to cache recommendation bundle", zap.Error(err))
		}
	}

	logger.Info("Recommendations generated",
		zap.String("project_id", projectID),
		zap.Int("total", bundle.Summary.Total),
	)

	return bundle, nil
}

func normalize(opts Options) Options {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = 0.4
	}
	if opts.MaxRecommendations < 0 {
		opts.MaxRecommendations = 0
	}
	return opts
}

func optionsHash(opts Options) string {
	return utils.HashString(fmt.Sprintf("%t|%t|%t|%d|%.2f",
		opts.IncludeRisks,
		opts.IncludeOptimizations,
		opts.IncludeMethodology,
		opts.MaxRecommendations,
		opts.MinConfidence,
	))
}

// PriorityFor derives priority from confidence×impact, never set by
// hand anywhere else.
func PriorityFor(confidence, impact float64) string {
	score := confidence * impact
	switch {
	case score >= highPriorityFloor:
		return "high"
	case score >= mediumPriorityFloor:
		return "medium"
	default:
		return "low"
	}
}

func newRecommendation(recType, title, description string, confidence, effort, impact float64, timelineUnit string, timelineSpan int, evidence []string) models.Recommendation {
	return models.Recommendation{
		ID:           uuid.New().String(),
		Type:         recType,
		Category:     typeDomains[recType],
		Title:        title,
		Description:  description,
		Confidence:   confidence,
		Priority:     PriorityFor(confidence, impact),
		Effort:       effort,
		Impact:       impact,
		TimelineUnit: timelineUnit,
		TimelineSpan: timelineSpan,
		Evidence:     evidence,
	}
}

func sortEach(bundle *Bundle) {
	for _, list := range [][]models.Recommendation{
		bundle.Methodology,
		bundle.RiskMitigation,
		bundle.ProcessOptimization,
		bundle.TeamOptimization,
		bundle.Communication,
		bundle.Technology,
		bundle.Timeline,
	} {
		sortRecommendations(list)
	}
}

func sortRecommendations(list []models.Recommendation) {
	sort.SliceStable(list, func(i, j int) bool {
		pi, pj := priorityRank(list[i].Priority), priorityRank(list[j].Priority)
		if pi != pj {
			return pi > pj
		}
		if list[i].Confidence != list[j].Confidence {
			return list[i].Confidence > list[j].Confidence
		}
		return list[i].Title < list[j].Title
	})
}

func priorityRank(priority string) int {
	switch priority {
	case "high":
		return 2
	case "medium":
		return 1
	default:
		return 0
	}
}

func collect(bundle *Bundle) []models.Recommendation {
	var all []models.Recommendation
	all = append(all, bundle.Methodology...)
	all = append(all, bundle.RiskMitigation...)
	all = append(all, bundle.ProcessOptimization...)
	all = append(all, bundle.TeamOptimization...)
	all = append(all, bundle.Communication...)
	all = append(all, bundle.Technology...)
	all = append(all, bundle.Timeline...)
	return all
}

// quickWins selects low-effort, near-term, meaningful-impact
// recommendations, best impact-per-effort first.
func quickWins(all []models.Recommendation) []models.Recommendation {
	var wins []models.Recommendation
	for _, r := range all {
		if r.Effort <= quickWinMaxEffort && r.Impact >= quickWinMinImpact && r.TimelineUnit == "weeks" {
			wins = append(wins, r)
		}
	}

	sort.SliceStable(wins, func(i, j int) bool {
		ei, ej := wins[i].Effort, wins[j].Effort
		if ei <= 0 {
			ei = 1
		}
		if ej <= 0 {
			ej = 1
		}
		return wins[i].Impact/ei > wins[j].Impact/ej
	})

	if len(wins) > quickWinLimit {
		wins = wins[:quickWinLimit]
	}
	return wins
}

func strategicInitiatives(all []models.Recommendation) []models.Recommendation {
	var initiatives []models.Recommendation
	for _, r := range all {
		if r.Impact >= strategicMinImpact && r.Effort >= strategicMinEffort {
			initiatives = append(initiatives, r)
		}
	}

	sort.SliceStable(initiatives, func(i, j int) bool {
		return initiatives[i].Impact > initiatives[j].Impact
	})

	if len(initiatives) > strategicLimit {
		initiatives = initiatives[:strategicLimit]
	}
	return initiatives
}

// truncateProportionally enforces the hard cap by shrinking every
// category by the same ratio, keeping each category's ordering.
func truncateProportionally(bundle *Bundle, max int) {
	lists := []*[]models.Recommendation{
		&bundle.Methodology,
		&bundle.RiskMitigation,
		&bundle.ProcessOptimization,
		&bundle.TeamOptimization,
		&bundle.Communication,
		&bundle.Technology,
		&bundle.Timeline,
	}

	total := 0
	for _, list := range lists {
		total += len(*list)
	}
	if total <= max {
		return
	}

	ratio := float64(max) / float64(total)
	kept := 0
	for _, list := range lists {
		if len(*list) == 0 {
			continue
		}
		keep := int(float64(len(*list)) * ratio)
		if keep == 0 && kept < max {
			keep = 1
		}
		if kept+keep > max {
			keep = max - kept
		}
		*list = (*list)[:keep]
		kept += keep
	}
}

func summarize(all []models.Recommendation) Summary {
	summary := Summary{
		Total:      len(all),
		ByCategory: make(map[string]int),
		ByPriority: make(map[string]int),
	}
	for _, r := range all {
		summary.ByCategory[r.Type]++
		summary.ByPriority[r.Priority]++
	}
	return summary
}

func (e *Engine) recordSnapshots(projectID string, all []models.Recommendation) {
	// One observation per recommendation type: confidence×impact as
	// the pattern's current effectiveness.
	best := make(map[string]float64)
	for _, r := range all {
		if score := r.Confidence * r.Impact; score > best[r.Type] {
			best[r.Type] = score
		}
	}

	for recType, effectiveness := range best {
		snapshot := &models.PatternSnapshot{
			ProjectID:     projectID,
			Domain:        typeDomains[recType],
			Name:          recType,
			Effectiveness: effectiveness,
			RecordedAt:    time.Now(),
		}
		if err := e.bundles.InsertPatternSnapshot(snapshot); err != nil {
			logger.Warn("Failed to record recommendation snapshot",
				zap.String("type", recType),
				zap.Error(err),
			)
		}
	}
}
