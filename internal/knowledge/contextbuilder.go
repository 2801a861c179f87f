package knowledge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/storage/models"
	"github.com/engagement-agent/backend/pkg/logger"
)

// StoreContextBuilder resolves contexts straight from the vault's
// project node, filling derived metrics the analyzers expect.
type StoreContextBuilder struct {
	store Store
}

func NewStoreContextBuilder(store Store) *StoreContextBuilder {
	return &StoreContextBuilder{store: store}
}

func (b *StoreContextBuilder) BuildProjectContext(ctx context.Context, projectID string) (*models.ProjectContext, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: empty project id", ErrContextNotFound)
	}

	project, err := b.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	pc := project.Context
	pc.ProjectID = project.ID
	pc.UpdatedAt = time.Now()

	if pc.Metrics == nil {
		pc.Metrics = make(map[string]float64)
	}

	// Derived pace metric: phase throughput in transitions per week,
	// when the project carries phase history.
	if len(project.Phases) > 0 {
		var totalDays float64
		for _, phase := range project.Phases {
			totalDays += phase.DurationDays
		}
		if totalDays > 0 {
			pc.Metrics["phase_throughput"] = float64(len(project.Phases)) / (totalDays / 7.0)
		}
	}

	logger.Debug("Project context built",
		zap.String("project_id", projectID),
		zap.String("project_type", pc.ProjectType),
		zap.Int("metrics", len(pc.Metrics)),
	)

	return &pc, nil
}
