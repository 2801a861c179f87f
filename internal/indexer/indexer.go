package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/embedding"
	"github.com/engagement-agent/backend/internal/knowledge"
	"github.com/engagement-agent/backend/internal/metrics"
	"github.com/engagement-agent/backend/internal/storage/models"
	"github.com/engagement-agent/backend/internal/vector/milvus"
	"github.com/engagement-agent/backend/pkg/logger"
)

// Indexer keeps the milvus context index in sync with the vault and
// answers approximate candidate lookups for the analyzers.
type Indexer struct {
	store     knowledge.Store
	vectorDB  *milvus.Client
	embedder  *embedding.Client
	batchSize int
}

func New(store knowledge.Store, vectorDB *milvus.Client, embedder *embedding.Client) *Indexer {
	return &Indexer{
		store:     store,
		vectorDB:  vectorDB,
		embedder:  embedder,
		batchSize: 50,
	}
}

// Reindex walks every historical project in the vault, embeds its
// context and upserts the vectors in batches.
func (i *Indexer) Reindex(ctx context.Context) (int, error) {
	projects, err := i.store.QueryProjects(ctx, knowledge.Filter{Limit: 10000})
	if err != nil {
		return 0, fmt.Errorf("failed to list projects for indexing: %w", err)
	}

	logger.Info("Reindexing project contexts", zap.Int("projects", len(projects)))
	metrics.GraphProjectsTotal.Set(float64(len(projects)))

	indexed := 0
	batch := make([]milvus.ContextVector, 0, i.batchSize)

	for idx := range projects {
		project := &projects[idx]

		vec, err := i.embedder.EmbedContext(ctx, &project.Context)
		if err != nil {
			logger.Warn("Failed to embed project context",
				zap.String("project_id", project.ID),
				zap.Error(err),
			)
			continue
		}

		batch = append(batch, milvus.ContextVector{
			ProjectID:   project.ID,
			Embedding:   vec,
			ProjectType: project.Context.ProjectType,
			Industry:    project.Context.Industry,
			IndexedAt:   time.Now(),
		})

		if len(batch) >= i.batchSize {
			if err := i.vectorDB.Upsert(ctx, batch); err != nil {
				return indexed, err
			}
			indexed += len(batch)
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := i.vectorDB.Upsert(ctx, batch); err != nil {
			return indexed, err
		}
		indexed += len(batch)
	}

	logger.Info("Reindex completed", zap.Int("indexed", indexed))
	metrics.ProjectsIndexed.Add(float64(indexed))

	return indexed, nil
}

// IndexProject embeds and upserts a single project's context.
func (i *Indexer) IndexProject(ctx context.Context, project *models.HistoricalProject) error {
	vec, err := i.embedder.EmbedContext(ctx, &project.Context)
	if err != nil {
		return fmt.Errorf("failed to embed context: %w", err)
	}

	err = i.vectorDB.Upsert(ctx, []milvus.ContextVector{{
		ProjectID:   project.ID,
		Embedding:   vec,
		ProjectType: project.Context.ProjectType,
		Industry:    project.Context.Industry,
		IndexedAt:   time.Now(),
	}})
	if err == nil {
		metrics.ProjectsIndexed.Inc()
	}
	return err
}

// Candidates returns the ids of historical projects whose embedded
// contexts sit nearest to the given one. Used as a prefilter; exact
// similarity scoring decides what survives.
func (i *Indexer) Candidates(ctx context.Context, pc *models.ProjectContext, topK int) ([]string, error) {
	vec, err := i.embedder.EmbedContext(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query context: %w", err)
	}

	candidates, err := i.vectorDB.FindCandidates(ctx, vec, topK, "")
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.ProjectID != pc.ProjectID {
			ids = append(ids, c.ProjectID)
		}
	}

	return ids, nil
}
