package evolution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagement-agent/backend/internal/learning"
	"github.com/engagement-agent/backend/internal/storage/models"
)

type fakeSnapshotStore struct {
	snapshots   []models.PatternSnapshot
	predictions map[string]*models.EvolutionPrediction
	validations []models.ValidationResult
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{predictions: make(map[string]*models.EvolutionPrediction)}
}

func (f *fakeSnapshotStore) GetPatternSnapshots(projectID string, since time.Time) ([]models.PatternSnapshot, error) {
	var out []models.PatternSnapshot
	for _, s := range f.snapshots {
		if projectID != "" && s.ProjectID != projectID {
			continue
		}
		if s.RecordedAt.Before(since) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSnapshotStore) SaveEvolutionPrediction(p *models.EvolutionPrediction) error {
	copied := *p
	f.predictions[p.ID] = &copied
	return nil
}

func (f *fakeSnapshotStore) GetEvolutionPrediction(id string) (*models.EvolutionPrediction, error) {
	return f.predictions[id], nil
}

func (f *fakeSnapshotStore) InsertValidation(r *models.ValidationResult) error {
	for _, existing := range f.validations {
		if existing.SubjectID == r.SubjectID && existing.Kind == r.Kind && existing.Fingerprint == r.Fingerprint {
			return nil
		}
	}
	f.validations = append(f.validations, *r)
	return nil
}

func (f *fakeSnapshotStore) GetValidationByFingerprint(subjectID, kind, fingerprint string) (*models.ValidationResult, error) {
	for i := range f.validations {
		v := &f.validations[i]
		if v.SubjectID == subjectID && v.Kind == kind && v.Fingerprint == fingerprint {
			return v, nil
		}
	}
	return nil, nil
}

// seedSeries writes one snapshot per slice of a one-year window, with
// the given per-slice effectiveness values.
func seedSeries(store *fakeSnapshotStore, projectID, domain, name string, values []float64) {
	now := time.Now()
	sliceWidth := (365 * 24 * time.Hour) / time.Duration(len(values))
	start := now.Add(-365 * 24 * time.Hour)

	for i, v := range values {
		store.snapshots = append(store.snapshots, models.PatternSnapshot{
			ProjectID:     projectID,
			Domain:        domain,
			Name:          name,
			Effectiveness: v,
			RecordedAt:    start.Add(time.Duration(i)*sliceWidth + sliceWidth/2),
		})
	}
}

func newTestTracker(store *fakeSnapshotStore) *Tracker {
	learningStore, _ := learning.NewStore(nil)
	return NewTracker(store, learningStore, nil, DefaultConfig())
}

func TestInvalidTimeWindowRejectedBeforeStoreAccess(t *testing.T) {
	tracker := newTestTracker(newFakeSnapshotStore())

	for _, window := range []string{"", "5m", "10y", "weekly"} {
		_, err := tracker.TrackProjectPatternEvolution(context.Background(), "p-1", window)
		assert.ErrorIs(t, err, ErrInvalidTimeWindow, "window %q", window)
	}
}

func TestClassifyDeclining(t *testing.T) {
	store := newFakeSnapshotStore()
	seedSeries(store, "p-1", "methodology", "agile-scrum", []float64{0.9, 0.7, 0.5, 0.3})

	tracker := newTestTracker(store)
	analysis, err := tracker.TrackProjectPatternEvolution(context.Background(), "p-1", "1y")
	require.NoError(t, err)

	require.Len(t, analysis.Patterns, 1)
	assert.Equal(t, "declining", analysis.Patterns[0].Classification)
	assert.Negative(t, analysis.Patterns[0].Trend)
}

func TestClassifyEmerging(t *testing.T) {
	store := newFakeSnapshotStore()
	seedSeries(store, "p-1", "technology", "event-driven", []float64{0.4, 0.4, 0.45, 0.8})

	tracker := newTestTracker(store)
	analysis, err := tracker.TrackProjectPatternEvolution(context.Background(), "p-1", "1y")
	require.NoError(t, err)

	require.Len(t, analysis.Patterns, 1)
	assert.Equal(t, "emerging", analysis.Patterns[0].Classification)
	assert.Positive(t, analysis.Patterns[0].Trend)
}

func TestClassifyStable(t *testing.T) {
	store := newFakeSnapshotStore()
	seedSeries(store, "p-1", "team", "cross-functional", []float64{0.8, 0.82, 0.78, 0.8})

	tracker := newTestTracker(store)
	analysis, err := tracker.TrackProjectPatternEvolution(context.Background(), "p-1", "1y")
	require.NoError(t, err)

	require.Len(t, analysis.Patterns, 1)
	assert.Equal(t, "stable", analysis.Patterns[0].Classification)
	assert.Greater(t, analysis.Patterns[0].Stability, 0.9)
}

func TestClassificationIsExclusive(t *testing.T) {
	series := [][]float64{
		{0.9, 0.7, 0.5, 0.3},
		{0.4, 0.4, 0.45, 0.8},
		{0.8, 0.82, 0.78, 0.8},
		{0.1, 0.9, 0.1, 0.9},
		{0.5, 0.5, 0.5, 0.5},
	}

	for _, values := range series {
		store := newFakeSnapshotStore()
		seedSeries(store, "p-1", "risk", "pattern", values)

		tracker := newTestTracker(store)
		analysis, err := tracker.TrackProjectPatternEvolution(context.Background(), "p-1", "1y")
		require.NoError(t, err)

		require.Len(t, analysis.Patterns, 1)
		got := analysis.Patterns[0].Classification
		assert.Contains(t, []string{"declining", "emerging", "stable", "uncertain"}, got)
	}
}

func TestSlope(t *testing.T) {
	assert.InDelta(t, 0.1, slope([]float64{0.1, 0.2, 0.3, 0.4}), 1e-9)
	assert.InDelta(t, -0.1, slope([]float64{0.4, 0.3, 0.2, 0.1}), 1e-9)
	assert.InDelta(t, 0.0, slope([]float64{0.5, 0.5, 0.5, 0.5}), 1e-9)
	assert.Zero(t, slope([]float64{0.5}))
}

func TestEmptySliceCarriesPreviousValue(t *testing.T) {
	store := newFakeSnapshotStore()
	now := time.Now()
	// Observations only in the first half of the window.
	store.snapshots = append(store.snapshots,
		models.PatternSnapshot{ProjectID: "p-1", Domain: "risk", Name: "n", Effectiveness: 0.8, RecordedAt: now.Add(-300 * 24 * time.Hour)},
		models.PatternSnapshot{ProjectID: "p-1", Domain: "risk", Name: "n", Effectiveness: 0.8, RecordedAt: now.Add(-200 * 24 * time.Hour)},
	)

	tracker := newTestTracker(store)
	analysis, err := tracker.TrackProjectPatternEvolution(context.Background(), "p-1", "1y")
	require.NoError(t, err)

	require.Len(t, analysis.Patterns, 1)
	assert.InDelta(t, 0.8, analysis.Patterns[0].LatestEffectiveness, 1e-9,
		"a quiet period must not read as a collapse to zero")
}

func TestPredictionLifecycle(t *testing.T) {
	store := newFakeSnapshotStore()
	seedSeries(store, "p-1", "methodology", "agile-scrum", []float64{0.5, 0.6, 0.7, 0.8})

	tracker := newTestTracker(store)

	prediction, err := tracker.PredictPatternEvolution(context.Background(), "p-1", "6m")
	require.NoError(t, err)
	assert.Equal(t, "pending", prediction.Status)
	require.Contains(t, prediction.Domains, "methodology")

	result, err := tracker.ValidateEvolutionPredictions(context.Background(), prediction.ID, map[string]float64{
		"methodology": prediction.Domains["methodology"].Projected,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, result.Accuracy, 1e-9)

	stored, err := store.GetEvolutionPrediction(prediction.ID)
	require.NoError(t, err)
	assert.Equal(t, "validated", stored.Status)
}

func TestValidateUnknownPrediction(t *testing.T) {
	tracker := newTestTracker(newFakeSnapshotStore())

	_, err := tracker.ValidateEvolutionPredictions(context.Background(), "ghost", map[string]float64{})
	assert.ErrorIs(t, err, ErrUnknownPrediction)
}

func TestValidateIsIdempotent(t *testing.T) {
	store := newFakeSnapshotStore()
	seedSeries(store, "p-1", "risk", "pattern", []float64{0.5, 0.6, 0.7, 0.8})

	tracker := newTestTracker(store)

	prediction, err := tracker.PredictPatternEvolution(context.Background(), "p-1", "6m")
	require.NoError(t, err)

	actual := map[string]float64{"risk": 0.7}

	first, err := tracker.ValidateEvolutionPredictions(context.Background(), prediction.ID, actual)
	require.NoError(t, err)

	second, err := tracker.ValidateEvolutionPredictions(context.Background(), prediction.ID, actual)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.validations, 1)
}

func TestPredictRejectsInvalidHorizon(t *testing.T) {
	tracker := newTestTracker(newFakeSnapshotStore())

	_, err := tracker.PredictPatternEvolution(context.Background(), "p-1", "never")
	assert.ErrorIs(t, err, ErrInvalidTimeWindow)
}
