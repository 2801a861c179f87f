package evolution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/cache"
	"github.com/engagement-agent/backend/internal/learning"
	"github.com/engagement-agent/backend/internal/storage/models"
	"github.com/engagement-agent/backend/pkg/logger"
)

// Pattern sub-domains tracked across engagements.
var Domains = []string{"methodology", "risk", "technology", "team", "communication"}

var (
	ErrInvalidTimeWindow = errors.New("invalid time window")
	ErrUnknownPrediction = errors.New("unknown prediction")
)

var windowDurations = map[string]time.Duration{
	"3m": 91 * 24 * time.Hour,
	"6m": 182 * 24 * time.Hour,
	"1y": 365 * 24 * time.Hour,
	"2y": 730 * 24 * time.Hour,
}

const (
	defaultSlices      = 4
	declineRateFloor   = 0.2
	decliningMaxLatest = 0.5
	emergenceFloor     = 0.2
	stableMaxVariance  = 0.1
	stableMinAverage   = 0.6
	recentFraction     = 0.3
)

// SnapshotStore is the slice of local state the tracker needs.
type SnapshotStore interface {
	GetPatternSnapshots(projectID string, since time.Time) ([]models.PatternSnapshot, error)
	SaveEvolutionPrediction(prediction *models.EvolutionPrediction) error
	GetEvolutionPrediction(predictionID string) (*models.EvolutionPrediction, error)
	InsertValidation(result *models.ValidationResult) error
	GetValidationByFingerprint(subjectID, kind, fingerprint string) (*models.ValidationResult, error)
}

type Config struct {
	Slices   int
	CacheTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		Slices:   defaultSlices,
		CacheTTL: 30 * time.Minute,
	}
}

type Tracker struct {
	snapshots SnapshotStore
	learning  *learning.Store
	cache     cache.Cache
	cfg       Config
}

func NewTracker(snapshots SnapshotStore, learningStore *learning.Store, resultCache cache.Cache, cfg Config) *Tracker {
	if cfg.Slices <= 0 {
		cfg.Slices = defaultSlices
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	return &Tracker{
		snapshots: snapshots,
		learning:  learningStore,
		cache:     resultCache,
		cfg:       cfg,
	}
}

// TrackProjectPatternEvolution slices the window into equal segments
// and classifies each observed pattern's trajectory across them.
func (t *Tracker) TrackProjectPatternEvolution(ctx context.Context, projectID, window string) (*models.EvolutionAnalysis, error) {
	duration, ok := windowDurations[window]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeWindow, window)
	}

	cacheKey := fmt.Sprintf("evolution:%s:%s", projectID, window)
	if t.cache != nil {
		var cached models.EvolutionAnalysis
		if hit, err := t.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	now := time.Now()
	since := now.Add(-duration)

	snapshots, err := t.snapshots.GetPatternSnapshots(projectID, since)
	if err != nil {
		return nil, err
	}

	analysis := &models.EvolutionAnalysis{
		ProjectID:   projectID,
		Window:      window,
		Slices:      t.cfg.Slices,
		GeneratedAt: now,
	}

	grouped := groupByPattern(snapshots)
	for _, key := range sortedPatternKeys(grouped) {
		evolution := evolve(key.domain, key.name, grouped[key], since, duration, t.cfg.Slices)
		analysis.Patterns = append(analysis.Patterns, evolution)
	}

	if t.cache != nil {
		if err := t.cache.Set(ctx, cacheKey, analysis, t.cfg.CacheTTL); err != nil {
			logger.Warn("Failed to cache evolution analysis", zap.Error(err))
		}
	}

	return analysis, nil
}

type patternKey struct {
	domain string
	name   string
}

func groupByPattern(snapshots []models.PatternSnapshot) map[patternKey][]models.PatternSnapshot {
	grouped := make(map[patternKey][]models.PatternSnapshot)
	for _, s := range snapshots {
		key := patternKey{domain: s.Domain, name: s.Name}
		grouped[key] = append(grouped[key], s)
	}
	return grouped
}

func sortedPatternKeys(grouped map[patternKey][]models.PatternSnapshot) []patternKey {
	keys := make([]patternKey, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].domain != keys[j].domain {
			return keys[i].domain < keys[j].domain
		}
		return keys[i].name < keys[j].name
	})
	return keys
}

func evolve(domain, name string, snapshots []models.PatternSnapshot, since time.Time, duration time.Duration, slices int) models.PatternEvolution {
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].RecordedAt.Before(snapshots[j].RecordedAt)
	})

	series := sliceMeans(snapshots, since, duration, slices)

	avg := mean(series)
	variance := varianceOf(series, avg)
	latest := lastObserved(series)

	evolution := models.PatternEvolution{
		Name:                 name,
		Domain:               domain,
		Trend:                slope(series),
		Stability:            clamp01(1 - variance),
		AverageEffectiveness: avg,
		LatestEffectiveness:  latest,
		SampleCount:          len(snapshots),
	}
	evolution.Classification = classify(series, avg, variance, latest)
	return evolution
}

// sliceMeans buckets observations into equal time slices and averages
// each bucket. Empty buckets carry the previous bucket's value so one
// quiet month does not register as a collapse.
func sliceMeans(snapshots []models.PatternSnapshot, since time.Time, duration time.Duration, slices int) []float64 {
	sliceWidth := duration / time.Duration(slices)

	sums := make([]float64, slices)
	counts := make([]int, slices)
	for _, s := range snapshots {
		idx := int(s.RecordedAt.Sub(since) / sliceWidth)
		if idx < 0 {
			idx = 0
		}
		if idx >= slices {
			idx = slices - 1
		}
		sums[idx] += s.Effectiveness
		counts[idx]++
	}

	series := make([]float64, slices)
	last := 0.0
	for i := 0; i < slices; i++ {
		if counts[i] > 0 {
			last = sums[i] / float64(counts[i])
		}
		series[i] = last
	}
	return series
}

// classify applies the labels in strict order so no pattern can carry
// two of them. Patterns matching none fall through to "uncertain".
func classify(series []float64, avg, variance, latest float64) string {
	first := series[0]
	if first > 0 {
		declineRate := (first - latest) / first
		if declineRate > declineRateFloor && latest < decliningMaxLatest {
			return "declining"
		}
	}

	recentStart := len(series) - int(math.Ceil(float64(len(series))*recentFraction))
	if recentStart > 0 && recentStart < len(series) {
		earlier := mean(series[:recentStart])
		recent := mean(series[recentStart:])
		if earlier > 0 && (recent-earlier)/earlier > emergenceFloor {
			return "emerging"
		}
	}

	if variance < stableMaxVariance && avg > stableMinAverage {
		return "stable"
	}

	return "uncertain"
}

// slope is the least-squares linear trend over the slice series, with
// slice index as the x axis.
func slope(series []float64) float64 {
	n := float64(len(series))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

func varianceOf(series []float64, avg float64) float64 {
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, v := range series {
		sum += (v - avg) * (v - avg)
	}
	return sum / float64(len(series))
}

func lastObserved(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
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
