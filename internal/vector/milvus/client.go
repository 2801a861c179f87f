package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/engagement-agent/backend/pkg/logger"
)

// Client stores embedded project contexts for approximate
// candidate retrieval ahead of exact similarity scoring.
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

type ContextVector struct {
	ProjectID   string
	Embedding   []float32
	ProjectType string
	Industry    string
	IndexedAt   time.Time
}

type Candidate struct {
	ProjectID   string
	ProjectType string
	Industry    string
	Score       float32
}

func NewClient(endpoint, apiKey, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(
		context.Background(),
		endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus context index initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Embedded project context vectors",
		Fields: []*entity.Field{
			{
				Name:       "project_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "project_type",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "industry",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "indexed_at",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, _ := entity.NewIndexIvfFlat(entity.L2, 1024)
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Upsert(ctx context.Context, vectors []ContextVector) error {
	if len(vectors) == 0 {
		return nil
	}

	projectIDs := make([]string, len(vectors))
	embeddings := make([][]float32, len(vectors))
	projectTypes := make([]string, len(vectors))
	industries := make([]string, len(vectors))
	indexedAts := make([]int64, len(vectors))

	for i, v := range vectors {
		projectIDs[i] = v.ProjectID
		embeddings[i] = v.Embedding
		projectTypes[i] = v.ProjectType
		industries[i] = v.Industry
		indexedAts[i] = v.IndexedAt.Unix()
	}

	_, err := m.client.Upsert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("project_id", projectIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("project_type", projectTypes),
		entity.NewColumnVarChar("industry", industries),
		entity.NewColumnInt64("indexed_at", indexedAts),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert context vectors: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Context vectors indexed", zap.Int("count", len(vectors)))

	return nil
}

func (m *Client) FindCandidates(ctx context.Context, queryEmbedding []float32, topK int, projectType string) ([]Candidate, error) {
	expr := ""
	if projectType != "" {
		expr = fmt.Sprintf(`project_type == "%s"`, projectType)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"project_id", "project_type", "industry"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search candidates: %w", err)
	}

	candidates := make([]Candidate, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			idCol := sr.Fields.GetColumn("project_id")
			typeCol := sr.Fields.GetColumn("project_type")
			industryCol := sr.Fields.GetColumn("industry")

			projectID, _ := idCol.Get(i)
			pType, _ := typeCol.Get(i)
			industry, _ := industryCol.Get(i)

			candidates = append(candidates, Candidate{
				ProjectID:   projectID.(string),
				ProjectType: pType.(string),
				Industry:    industry.(string),
				Score:       sr.Scores[i],
			})
		}
	}

	logger.Debug("Candidate search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(candidates)),
	)

	return candidates, nil
}
