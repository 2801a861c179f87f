package embedding

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/metrics"
	"github.com/engagement-agent/backend/internal/storage/models"
	"github.com/engagement-agent/backend/pkg/circuitbreaker"
	"github.com/engagement-agent/backend/pkg/logger"
	"github.com/engagement-agent/backend/pkg/retry"
)

// Client embeds canonical text renderings of project contexts for the
// vector index. It deliberately exposes no completion API; the engine
// does no language understanding.
type Client struct {
	client      *openai.Client
	model       string
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(apiKey, model string) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("embedding", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Embedding client initialized", zap.String("model", model))

	return &Client{
		client:      client,
		model:       model,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *Client) EmbedContext(ctx context.Context, pc *models.ProjectContext) ([]float32, error) {
	return c.EmbedText(ctx, ContextText(pc))
}

func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Model: openai.EmbeddingModel(c.model),
				Input: []string{text},
			})
			if err != nil {
				return fmt.Errorf("embedding request failed: %w", err)
			}
			if len(resp.Data) == 0 {
				return fmt.Errorf("embedding response was empty")
			}
			embedding = resp.Data[0].Embedding
			metrics.EmbeddingTokensUsed.Add(float64(resp.Usage.TotalTokens))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return embedding, nil
}

// ContextText renders a project context into the stable text form used
// for embedding. Deterministic: identical contexts embed identically.
func ContextText(pc *models.ProjectContext) string {
	techs := append([]string(nil), pc.Technologies...)
	sort.Strings(techs)

	var b strings.Builder
	fmt.Fprintf(&b, "project type: %s\n", pc.ProjectType)
	fmt.Fprintf(&b, "client type: %s\n", pc.ClientType)
	fmt.Fprintf(&b, "industry: %s\n", pc.Industry)
	fmt.Fprintf(&b, "technologies: %s\n", strings.Join(techs, ", "))
	fmt.Fprintf(&b, "team size: %d\n", pc.TeamSize)
	fmt.Fprintf(&b, "timeline weeks: %d\n", pc.TimelineWeeks)
	fmt.Fprintf(&b, "complexity: %.1f\n", pc.Complexity)

	return b.String()
}
