package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/metrics"
	"github.com/engagement-agent/backend/internal/recommend"
	"github.com/engagement-agent/backend/internal/storage/models"
	"github.com/engagement-agent/backend/pkg/logger"
)

type RecommendationHandler struct {
	engine *recommend.Engine
}

func NewRecommendationHandler(engine *recommend.Engine) *RecommendationHandler {
	return &RecommendationHandler{
		engine: engine,
	}
}

func (h *RecommendationHandler) HandleGenerate(c *fiber.Ctx) error {
	req := struct {
		ProjectID string `json:"project_id"`
		recommend.Options
	}{Options: recommend.DefaultOptions()}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.ProjectID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "project_id is required",
		})
	}

	start := time.Now()
	bundle, err := h.engine.GenerateRecommendations(c.Context(), req.ProjectID, req.Options)
	metrics.AnalysisDuration.WithLabelValues("recommendations").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AnalysisTotal.WithLabelValues("recommendations", "error").Inc()
		logger.Error("Recommendation generation failed",
			zap.String("project_id", req.ProjectID),
			zap.Error(err),
		)
		return errorResponse(c, err)
	}

	metrics.AnalysisTotal.WithLabelValues("recommendations", "success").Inc()
	for recType, count := range bundle.Summary.ByCategory {
		metrics.RecommendationsGenerated.WithLabelValues(recType).Add(float64(count))
	}

	return c.JSON(bundle)
}

func (h *RecommendationHandler) HandleTransition(c *fiber.Ctx) error {
	var req struct {
		ProjectID    string `json:"project_id"`
		CurrentLevel string `json:"current_level"`
		TargetLevel  string `json:"target_level"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.ProjectID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "project_id is required",
		})
	}

	recs, err := h.engine.GetTransitionRecommendations(c.Context(), req.ProjectID, req.CurrentLevel, req.TargetLevel)
	if err != nil {
		logger.Error("Transition recommendations failed",
			zap.String("project_id", req.ProjectID),
			zap.Error(err),
		)
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"project_id":      req.ProjectID,
		"current_level":   req.CurrentLevel,
		"target_level":    req.TargetLevel,
		"recommendations": recs,
	})
}

func (h *RecommendationHandler) HandleFeedback(c *fiber.Ctx) error {
	var req struct {
		ProjectID string                 `json:"project_id"`
		Feedback  models.FeedbackEntry   `json:"feedback"`
		Outcomes  []models.OutcomeReport `json:"outcomes"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.ProjectID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "project_id is required",
		})
	}

	insights, err := h.engine.UpdateFromFeedback(c.Context(), req.ProjectID, req.Feedback, req.Outcomes)
	if err != nil {
		logger.Error("Feedback processing failed",
			zap.String("project_id", req.ProjectID),
			zap.Error(err),
		)
		return errorResponse(c, err)
	}

	metrics.FeedbackReceived.WithLabelValues(insights.RecommendationType).Inc()
	metrics.LearningWeightValue.WithLabelValues(insights.RecommendationType).Set(insights.Weight)

	return c.JSON(insights)
}
