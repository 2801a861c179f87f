package learning

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/storage/models"
	"github.com/engagement-agent/backend/pkg/logger"
)

const (
	MinWeight = 0.1
	MaxWeight = 2.0

	// Accuracy-based adjustment applies only once a type has seen a
	// minimal number of validations; before that predictions pass
	// through unscaled.
	minValidations = 3

	lowAccuracyCutoff  = 0.5
	highAccuracyCutoff = 0.8
	lowAccuracyFactor  = 0.8
	highAccuracyFactor = 1.2
	neutralFactor      = 1.0
)

// Persister saves weight state across restarts. The sqlite client
// satisfies it; tests pass nil.
type Persister interface {
	UpsertLearningWeight(weight *models.LearningWeight) error
	GetLearningWeights() ([]models.LearningWeight, error)
}

// Store holds per-type learning weights and validation accuracy. It is
// the one piece of shared mutable state in the engine, so every
// read-modify-write is serialized behind the mutex.
type Store struct {
	mu        sync.Mutex
	weights   map[string]*models.LearningWeight
	persister Persister
}

func NewStore(persister Persister) (*Store, error) {
	s := &Store{
		weights:   make(map[string]*models.LearningWeight),
		persister: persister,
	}

	if persister != nil {
		saved, err := persister.GetLearningWeights()
		if err != nil {
			return nil, err
		}
		for i := range saved {
			w := saved[i]
			s.weights[w.Type] = &w
		}
		logger.Info("Learning weights loaded", zap.Int("types", len(saved)))
	}

	return s, nil
}

// WeightFor returns the current multiplier for a type, 1.0 if the type
// has never been adjusted.
func (s *Store) WeightFor(typ string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.weights[typ]; ok {
		return w.Weight
	}
	return 1.0
}

// ScaleFor is the full confidence multiplier for a recommendation
// type: the feedback-driven weight times the accuracy adjustment.
func (s *Store) ScaleFor(typ string) float64 {
	return s.WeightFor(typ) * s.AdjustmentFor(typ)
}

// Adjust nudges a type's weight by delta, clamped to [MinWeight,
// MaxWeight], and returns the new value.
func (s *Store) Adjust(typ string, delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.getLocked(typ)
	w.Weight = clampWeight(w.Weight + delta)
	w.UpdatedAt = time.Now()
	s.persistLocked(w)

	logger.Debug("Learning weight adjusted",
		zap.String("type", typ),
		zap.Float64("delta", delta),
		zap.Float64("weight", w.Weight),
	)

	return w.Weight
}

// RecordValidation folds one validated prediction outcome into the
// type's accuracy statistics.
func (s *Store) RecordValidation(typ string, correct bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.getLocked(typ)
	w.Validations++
	if correct {
		w.Correct++
	}
	w.UpdatedAt = time.Now()
	s.persistLocked(w)
}

// AdjustmentFor derives the probability correction factor from the
// type's validation accuracy.
func (s *Store) AdjustmentFor(typ string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.weights[typ]
	if !ok || w.Validations < minValidations {
		return neutralFactor
	}

	accuracy := float64(w.Correct) / float64(w.Validations)
	switch {
	case accuracy < lowAccuracyCutoff:
		return lowAccuracyFactor
	case accuracy > highAccuracyCutoff:
		return highAccuracyFactor
	default:
		return neutralFactor
	}
}

// Accuracy reports a type's validation accuracy and sample size.
func (s *Store) Accuracy(typ string) (float64, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.weights[typ]
	if !ok || w.Validations == 0 {
		return 0, 0
	}
	return float64(w.Correct) / float64(w.Validations), w.Validations
}

// Snapshot returns a copy of all weight entries, for export and
// insight reporting.
func (s *Store) Snapshot() []models.LearningWeight {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.LearningWeight, 0, len(s.weights))
	for _, w := range s.weights {
		out = append(out, *w)
	}
	return out
}

func (s *Store) getLocked(typ string) *models.LearningWeight {
	w, ok := s.weights[typ]
	if !ok {
		w = &models.LearningWeight{Type: typ, Weight: 1.0, UpdatedAt: time.Now()}
		s.weights[typ] = w
	}
	return w
}

func (s *Store) persistLocked(w *models.LearningWeight) {
	if s.persister == nil {
		return
	}
	if err := s.persister.UpsertLearningWeight(w); err != nil {
		logger.Warn("Failed to persist learning weight",
			zap.String("type", w.Type),
			zap.Error(err),
		)
	}
}

func clampWeight(v float64) float64 {
	if v < MinWeight {
		return MinWeight
	}
	if v > MaxWeight {
		return MaxWeight
	}
	return v
}
