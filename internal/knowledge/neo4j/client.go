package neo4j

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/knowledge"
	"github.com/engagement-agent/backend/internal/storage/models"
	"github.com/engagement-agent/backend/pkg/circuitbreaker"
	"github.com/engagement-agent/backend/pkg/logger"
	"github.com/engagement-agent/backend/pkg/retry"
)

// Client implements knowledge.Store over the neo4j engagement vault.
// Projects, risks and recommendation outcomes are nodes; contexts are
// flattened onto node properties so queries stay index-friendly.
type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx := context.Background()
	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Neo4j knowledge store initialized", zap.String("uri", uri))

	return &Client{
		driver:      driver,
		database:    database,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
			defer session.Close(ctx)
			return operation(session)
		})
	})
	if err != nil {
		return fmt.Errorf("%w: %v", knowledge.ErrStoreUnavailable, err)
	}
	return nil
}

func (c *Client) QueryProjects(ctx context.Context, filter knowledge.Filter) ([]models.HistoricalProject, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var projects []models.HistoricalProject

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (p:Project)
			WHERE ($project_type = '' OR p.project_type = $project_type)
			  AND ($industry = '' OR p.industry = $industry)
			  AND ($since = 0 OR p.completed_at >= $since)
			RETURN p
			ORDER BY p.completed_at DESC
			LIMIT $limit
		`

		var since int64
		if !filter.Since.IsZero() {
			since = filter.Since.Unix()
		}

		result, err := session.Run(ctx, query, map[string]any{
			"project_type": filter.ProjectType,
			"industry":     filter.Industry,
			"since":        since,
			"limit":        limit,
		})
		if err != nil {
			return fmt.Errorf("failed to query projects: %w", err)
		}

		projects = projects[:0]
		for result.Next(ctx) {
			node, ok := result.Record().Get("p")
			if !ok {
				continue
			}
			props := node.(neo4j.Node).Props
			projects = append(projects, projectFromProps(props))
		}

		return result.Err()
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Projects queried from vault",
		zap.String("project_type", filter.ProjectType),
		zap.Int("results", len(projects)),
	)

	return projects, nil
}

func (c *Client) GetProject(ctx context.Context, projectID string) (*models.HistoricalProject, error) {
	var project *models.HistoricalProject

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		result, err := session.Run(ctx,
			`MATCH (p:Project {id: $id}) RETURN p LIMIT 1`,
			map[string]any{"id": projectID},
		)
		if err != nil {
			return fmt.Errorf("failed to get project: %w", err)
		}

		if result.Next(ctx) {
			node, ok := result.Record().Get("p")
			if ok {
				p := projectFromProps(node.(neo4j.Node).Props)
				project = &p
			}
		}

		return result.Err()
	})
	if err != nil {
		return nil, err
	}

	if project == nil {
		return nil, knowledge.ErrContextNotFound
	}

	return project, nil
}

func (c *Client) QueryRisks(ctx context.Context, filter knowledge.Filter) ([]models.RiskRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}

	var risks []models.RiskRecord

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (r:Risk)
			WHERE ($risk_type = '' OR r.type = $risk_type)
			RETURN r
			ORDER BY r.base_probability DESC
			LIMIT $limit
		`

		result, err := session.Run(ctx, query, map[string]any{
			"risk_type": filter.RiskType,
			"limit":     limit,
		})
		if err != nil {
			return fmt.Errorf("failed to query risks: %w", err)
		}

		risks = risks[:0]
		for result.Next(ctx) {
			node, ok := result.Record().Get("r")
			if !ok {
				continue
			}
			risks = append(risks, riskFromProps(node.(neo4j.Node).Props))
		}

		return result.Err()
	})
	if err != nil {
		return nil, err
	}

	return risks, nil
}

func (c *Client) QueryRecommendationOutcomes(ctx context.Context, filter knowledge.Filter) ([]models.RecommendationOutcome, error) {
	var outcomes []models.RecommendationOutcome

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (o:RecommendationOutcome)
			RETURN o.type, o.methodology, o.success_rate, o.count, o.avg_impact
		`

		result, err := session.Run(ctx, query, nil)
		if err != nil {
			return fmt.Errorf("failed to query recommendation outcomes: %w", err)
		}

		outcomes = outcomes[:0]
		for result.Next(ctx) {
			record := result.Record()
			outcomes = append(outcomes, models.RecommendationOutcome{
				Type:        stringValue(record, "o.type"),
				Methodology: stringValue(record, "o.methodology"),
				SuccessRate: floatValue(record, "o.success_rate"),
				Count:       intValue(record, "o.count"),
				AvgImpact:   floatValue(record, "o.avg_impact"),
			})
		}

		return result.Err()
	})
	if err != nil {
		return nil, err
	}

	return outcomes, nil
}

func (c *Client) QueryMaturityTransitions(ctx context.Context, fromLevel, toLevel string) ([]models.MaturityTransition, error) {
	var transitions []models.MaturityTransition

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (t:MaturityTransition)
			WHERE ($from = '' OR t.from_level = $from)
			  AND ($to = '' OR t.to_level = $to)
			RETURN t.from_level, t.to_level, t.actions, t.success_rate, t.count
			ORDER BY t.success_rate DESC
		`

		result, err := session.Run(ctx, query, map[string]any{
			"from": fromLevel,
			"to":   toLevel,
		})
		if err != nil {
			return fmt.Errorf("failed to query maturity transitions: %w", err)
		}

		transitions = transitions[:0]
		for result.Next(ctx) {
			record := result.Record()
			transitions = append(transitions, models.MaturityTransition{
				FromLevel:   stringValue(record, "t.from_level"),
				ToLevel:     stringValue(record, "t.to_level"),
				Actions:     stringSliceValue(record, "t.actions"),
				SuccessRate: floatValue(record, "t.success_rate"),
				Count:       intValue(record, "t.count"),
			})
		}

		return result.Err()
	})
	if err != nil {
		return nil, err
	}

	return transitions, nil
}

func (c *Client) CreateRecord(ctx context.Context, kind string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record payload: %w", err)
	}

	id := fmt.Sprintf("%s:%s", kind, uuid.New().String())

	err = c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `
			CREATE (n:EngineRecord {id: $id, kind: $kind, payload: $payload, created_at: timestamp()})
		`, map[string]any{
			"id":      id,
			"kind":    kind,
			"payload": string(data),
		})
		return err
	})
	if err != nil {
		return "", err
	}

	logger.Debug("Record created in vault", zap.String("record_id", id), zap.String("kind", kind))

	return id, nil
}

func (c *Client) UpdateRecord(ctx context.Context, id string, patch map[string]any) error {
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to marshal record patch: %w", err)
	}

	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `
			MATCH (n:EngineRecord {id: $id})
			SET n.patch = $patch, n.updated_at = timestamp()
		`, map[string]any{
			"id":    id,
			"patch": string(data),
		})
		return err
	})
}
