package patterns

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/cache"
	"github.com/engagement-agent/backend/internal/knowledge"
	"github.com/engagement-agent/backend/internal/similarity"
	"github.com/engagement-agent/backend/internal/storage/models"
	"github.com/engagement-agent/backend/pkg/logger"
)

// Confidence saturates at these sample sizes, per pattern category.
const (
	temporalConfidenceThreshold   = 20
	structuralConfidenceThreshold = 15
	contextualConfidenceThreshold = 10
	outcomeConfidenceThreshold    = 25
)

const (
	successCutoff = 0.7
	failureCutoff = 0.4
)

// ContextIndex is the optional vector prefilter. Nil disables it and
// candidates come straight from the store.
type ContextIndex interface {
	Candidates(ctx context.Context, pc *models.ProjectContext, topK int) ([]string, error)
}

type Config struct {
	SimilarityThreshold float64
	MaxSimilar          int
	MinSimilar          int
	CandidatePool       int
	CacheTTL            time.Duration
}

func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.5,
		MaxSimilar:          20,
		MinSimilar:          3,
		CandidatePool:       50,
		CacheTTL:            30 * time.Minute,
	}
}

type Analyzer struct {
	store    knowledge.Store
	contexts knowledge.ContextBuilder
	scorer   *similarity.Scorer
	index    ContextIndex
	cache    cache.Cache
	cfg      Config
}

func NewAnalyzer(store knowledge.Store, contexts knowledge.ContextBuilder, scorer *similarity.Scorer, index ContextIndex, resultCache cache.Cache, cfg Config) *Analyzer {
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = 0.5
	}
	if cfg.MaxSimilar == 0 {
		cfg.MaxSimilar = 20
	}
	if cfg.MinSimilar == 0 {
		cfg.MinSimilar = 3
	}
	if cfg.CandidatePool == 0 {
		cfg.CandidatePool = 50
	}

	return &Analyzer{
		store:    store,
		contexts: contexts,
		scorer:   scorer,
		index:    index,
		cache:    resultCache,
		cfg:      cfg,
	}
}

type SimilarProject struct {
	Project    models.HistoricalProject
	Similarity float64
}

type DurationStats struct {
	Mean   float64
	Median float64
	StdDev float64
	Count  int
}

type TemporalPatterns struct {
	Overall         DurationStats
	ByTransition    map[string]DurationStats
	ProjectDuration DurationStats
}

type StructuralPatterns struct {
	Architectures map[string]int
	Technologies  map[string]int
	TeamShapes    map[string]int
}

type ContextualPatterns struct {
	Industries       map[string]int
	ClientTypes      map[string]int
	EngagementModels map[string]int
}

type WeightedFactor struct {
	Factor string
	Weight float64
}

type OutcomePatterns struct {
	SuccessFactors  []WeightedFactor
	FailureFactors  []WeightedFactor
	AvgSuccessScore float64
	SuccessCount    int
	FailureCount    int
}

type Analysis struct {
	ProjectID       string
	SimilarCount    int
	Temporal        *TemporalPatterns
	Structural      *StructuralPatterns
	Contextual      *ContextualPatterns
	Outcome         *OutcomePatterns
	SuccessFactors  []WeightedFactor
	Insights        []string
	Confidences     map[string]float64
	Confidence      float64
	Degraded        bool
	DegradedReasons []string
	GeneratedAt     time.Time
}

// AnalyzeProjectPatterns finds structurally similar historical
// projects and extracts temporal, structural, contextual and outcome
// patterns from them.
func (a *Analyzer) AnalyzeProjectPatterns(ctx context.Context, projectID string) (*Analysis, error) {
	cacheKey := "patterns:" + projectID
	if a.cache != nil {
		var cached Analysis
		if hit, err := a.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	pc, err := a.contexts.BuildProjectContext(ctx, projectID)
	if err != nil {
		return nil, err
	}

	similar, err := a.FindSimilarProjects(ctx, pc)
	if err != nil {
		return nil, err
	}

	logger.Info("Similar projects retrieved",
		zap.String("project_id", projectID),
		zap.Int("count", len(similar)),
	)

	if len(similar) < a.cfg.MinSimilar {
		analysis := defaultAnalysis(projectID, len(similar))
		a.writeCache(ctx, cacheKey, analysis)
		return analysis, nil
	}

	analysis := &Analysis{
		ProjectID:    projectID,
		SimilarCount: len(similar),
		Confidences:  make(map[string]float64),
		GeneratedAt:  time.Now(),
	}

	// Category failures degrade the analysis instead of aborting it.
	if temporal, err := extractTemporalPatterns(similar); err != nil {
		analysis.Degraded = true
		analysis.DegradedReasons = append(analysis.DegradedReasons, fmt.Sprintf("temporal: %v", err))
	} else {
		analysis.Temporal = temporal
		analysis.Confidences["temporal"] = sampleConfidence(temporal.Overall.Count, temporalConfidenceThreshold)
	}

	analysis.Structural = extractStructuralPatterns(similar)
	analysis.Confidences["structural"] = sampleConfidence(len(similar), structuralConfidenceThreshold)

	analysis.Contextual = extractContextualPatterns(similar)
	analysis.Confidences["contextual"] = sampleConfidence(len(similar), contextualConfidenceThreshold)

	if outcome, err := extractOutcomePatterns(similar); err != nil {
		analysis.Degraded = true
		analysis.DegradedReasons = append(analysis.DegradedReasons, fmt.Sprintf("outcome: %v", err))
	} else {
		analysis.Outcome = outcome
		analysis.SuccessFactors = outcome.SuccessFactors
		analysis.Confidences["outcome"] = sampleConfidence(outcome.SuccessCount+outcome.FailureCount, outcomeConfidenceThreshold)
	}

	analysis.Confidence = overallConfidence(analysis.Confidences)
	analysis.Insights = buildInsights(analysis, similar)

	a.writeCache(ctx, cacheKey, analysis)

	logger.Info("Pattern analysis completed",
		zap.String("project_id", projectID),
		zap.Float64("confidence", analysis.Confidence),
		zap.Bool("degraded", analysis.Degraded),
	)

	return analysis, nil
}

// FindSimilarProjects retrieves candidates (through the vector index
// when available), scores them exactly and keeps the ones above the
// similarity threshold, best first.
func (a *Analyzer) FindSimilarProjects(ctx context.Context, pc *models.ProjectContext) ([]SimilarProject, error) {
	candidates, err := a.loadCandidates(ctx, pc)
	if err != nil {
		return nil, err
	}

	scored := make([]SimilarProject, 0, len(candidates))
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.ID == pc.ProjectID {
			continue
		}

		score := a.scorer.Score(pc, &candidate.Context)
		if score > a.cfg.SimilarityThreshold {
			scored = append(scored, SimilarProject{Project: *candidate, Similarity: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > a.cfg.MaxSimilar {
		scored = scored[:a.cfg.MaxSimilar]
	}

	return scored, nil
}

func (a *Analyzer) loadCandidates(ctx context.Context, pc *models.ProjectContext) ([]models.HistoricalProject, error) {
	if a.index != nil {
		ids, err := a.index.Candidates(ctx, pc, a.cfg.CandidatePool)
		if err != nil {
			logger.Warn("Vector prefilter failed, falling back to store scan", zap.Error(err))
		} else if len(ids) > 0 {
			projects := make([]models.HistoricalProject, 0, len(ids))
			for _, id := range ids {
				p, err := a.store.GetProject(ctx, id)
				if err != nil {
					continue
				}
				projects = append(projects, *p)
			}
			return projects, nil
		}
	}

	return a.store.QueryProjects(ctx, knowledge.Filter{Limit: a.cfg.CandidatePool * 4})
}

func (a *Analyzer) writeCache(ctx context.Context, key string, analysis *Analysis) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Set(ctx, key, analysis, a.cfg.CacheTTL); err != nil {
		logger.Warn("Failed to cache pattern analysis", zap.Error(err))
	}
}

// sampleConfidence is the capped linear confidence function: small
// samples never report high confidence.
func sampleConfidence(n, threshold int) float64 {
	if threshold <= 0 || n <= 0 {
		return 0
	}
	c := float64(n) / float64(threshold)
	if c > 1 {
		return 1
	}
	return c
}

func overallConfidence(confidences map[string]float64) float64 {
	if len(confidences) == 0 {
		return 0
	}
	var sum float64
	for _, c := range confidences {
		sum += c
	}
	return sum / float64(len(confidences))
}
