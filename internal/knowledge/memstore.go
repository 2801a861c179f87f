package knowledge

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/engagement-agent/backend/internal/storage/models"
)

// MemStore is an in-memory Store used for tests and local development.
type MemStore struct {
	mu          sync.RWMutex
	Projects    []models.HistoricalProject
	Risks       []models.RiskRecord
	RecOutcomes []models.RecommendationOutcome
	Transitions []models.MaturityTransition
	Records     map[string]any
}

func NewMemStore() *MemStore {
	return &MemStore{Records: make(map[string]any)}
}

func (m *MemStore) QueryProjects(_ context.Context, filter Filter) ([]models.HistoricalProject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.HistoricalProject
	for _, p := range m.Projects {
		if filter.ProjectID != "" && p.ID != filter.ProjectID {
			continue
		}
		if filter.ProjectType != "" && !strings.EqualFold(p.Context.ProjectType, filter.ProjectType) {
			continue
		}
		if filter.Industry != "" && !strings.EqualFold(p.Context.Industry, filter.Industry) {
			continue
		}
		if !filter.Since.IsZero() && p.CompletedAt.Before(filter.Since) {
			continue
		}
		out = append(out, p)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemStore) QueryRisks(_ context.Context, filter Filter) ([]models.RiskRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.RiskRecord
	for _, r := range m.Risks {
		if filter.RiskType != "" && r.Type != filter.RiskType {
			continue
		}
		if !filter.Since.IsZero() && r.RecordedAt.Before(filter.Since) {
			continue
		}
		out = append(out, r)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemStore) QueryRecommendationOutcomes(_ context.Context, filter Filter) ([]models.RecommendationOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.RecommendationOutcome, len(m.RecOutcomes))
	copy(out, m.RecOutcomes)
	return out, nil
}

func (m *MemStore) QueryMaturityTransitions(_ context.Context, fromLevel, toLevel string) ([]models.MaturityTransition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.MaturityTransition
	for _, t := range m.Transitions {
		if fromLevel != "" && !strings.EqualFold(t.FromLevel, fromLevel) {
			continue
		}
		if toLevel != "" && !strings.EqualFold(t.ToLevel, toLevel) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *MemStore) GetProject(_ context.Context, projectID string) (*models.HistoricalProject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.Projects {
		if m.Projects[i].ID == projectID {
			p := m.Projects[i]
			return &p, nil
		}
	}
	return nil, ErrContextNotFound
}

func (m *MemStore) CreateRecord(_ context.Context, kind string, payload any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := kind + ":" + uuid.New().String()
	m.Records[id] = payload
	return id, nil
}

func (m *MemStore) UpdateRecord(_ context.Context, id string, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Records[id]; !ok {
		m.Records[id] = patch
		return nil
	}
	if existing, ok := m.Records[id].(map[string]any); ok {
		for k, v := range patch {
			existing[k] = v
		}
	} else {
		m.Records[id] = patch
	}
	return nil
}
