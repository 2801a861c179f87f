package knowledge

import (
	"context"
	"errors"
	"time"

	"github.com/engagement-agent/backend/internal/storage/models"
)

var (
	ErrContextNotFound  = errors.New("project context not found")
	ErrStoreUnavailable = errors.New("knowledge store unavailable")
)

// Filter narrows a store query. Zero-valued fields are ignored so
// callers only set what they care about.
type Filter struct {
	ProjectID   string
	ProjectType string
	Industry    string
	RiskType    string
	Since       time.Time
	Limit       int
}

// Store is the read/write boundary to the engagement vault. Reads may
// be eventually consistent; no transactional guarantees are assumed.
type Store interface {
	QueryProjects(ctx context.Context, filter Filter) ([]models.HistoricalProject, error)
	QueryRisks(ctx context.Context, filter Filter) ([]models.RiskRecord, error)
	QueryRecommendationOutcomes(ctx context.Context, filter Filter) ([]models.RecommendationOutcome, error)
	QueryMaturityTransitions(ctx context.Context, fromLevel, toLevel string) ([]models.MaturityTransition, error)
	GetProject(ctx context.Context, projectID string) (*models.HistoricalProject, error)
	CreateRecord(ctx context.Context, kind string, payload any) (string, error)
	UpdateRecord(ctx context.Context, id string, patch map[string]any) error
}

// ContextBuilder resolves a project id into its normalized context.
type ContextBuilder interface {
	BuildProjectContext(ctx context.Context, projectID string) (*models.ProjectContext, error)
}
