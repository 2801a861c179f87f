package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagement-agent/backend/internal/storage/models"
)

func TestBuildProjectContext(t *testing.T) {
	store := NewMemStore()
	store.Projects = []models.HistoricalProject{{
		ID: "p-1",
		Context: models.ProjectContext{
			ProjectType: "api-development",
			TeamSize:    5,
		},
		Phases: []models.PhaseTransition{
			{FromPhase: "discovery", ToPhase: "design", DurationDays: 7},
			{FromPhase: "design", ToPhase: "build", DurationDays: 7},
		},
		CompletedAt: time.Now(),
	}}

	builder := NewStoreContextBuilder(store)

	pc, err := builder.BuildProjectContext(context.Background(), "p-1")
	require.NoError(t, err)

	assert.Equal(t, "p-1", pc.ProjectID)
	assert.Equal(t, "api-development", pc.ProjectType)
	// 2 transitions over 2 weeks.
	assert.InDelta(t, 1.0, pc.Metrics["phase_throughput"], 1e-9)
}

func TestBuildProjectContextUnknownID(t *testing.T) {
	builder := NewStoreContextBuilder(NewMemStore())

	_, err := builder.BuildProjectContext(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrContextNotFound)

	_, err = builder.BuildProjectContext(context.Background(), "")
	assert.ErrorIs(t, err, ErrContextNotFound)
}
