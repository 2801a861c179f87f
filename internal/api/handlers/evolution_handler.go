package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/evolution"
	"github.com/engagement-agent/backend/internal/metrics"
	"github.com/engagement-agent/backend/pkg/logger"
)

type EvolutionHandler struct {
	tracker *evolution.Tracker
}

func NewEvolutionHandler(tracker *evolution.Tracker) *EvolutionHandler {
	return &EvolutionHandler{
		tracker: tracker,
	}
}

func (h *EvolutionHandler) HandleTrack(c *fiber.Ctx) error {
	var req struct {
		ProjectID  string `json:"project_id"`
		TimeWindow string `json:"time_window"`
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

	start := time.Now()
	analysis, err := h.tracker.TrackProjectPatternEvolution(c.Context(), req.ProjectID, req.TimeWindow)
	metrics.AnalysisDuration.WithLabelValues("evolution").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AnalysisTotal.WithLabelValues("evolution", "error").Inc()
		logger.Error("Evolution tracking failed",
			zap.String("project_id", req.ProjectID),
			zap.String("time_window", req.TimeWindow),
			zap.Error(err),
		)
		return errorResponse(c, err)
	}

	metrics.AnalysisTotal.WithLabelValues("evolution", "success").Inc()

	return c.JSON(analysis)
}

func (h *EvolutionHandler) HandlePredict(c *fiber.Ctx) error {
	var req struct {
		ProjectID string `json:"project_id"`
		Horizon   string `json:"horizon"`
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

	prediction, err := h.tracker.PredictPatternEvolution(c.Context(), req.ProjectID, req.Horizon)
	if err != nil {
		logger.Error("Evolution prediction failed",
			zap.String("project_id", req.ProjectID),
			zap.Error(err),
		)
		return errorResponse(c, err)
	}

	return c.JSON(prediction)
}
