package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/evolution"
	"github.com/engagement-agent/backend/internal/metrics"
	"github.com/engagement-agent/backend/internal/risk"
	"github.com/engagement-agent/backend/internal/storage/models"
	"github.com/engagement-agent/backend/pkg/logger"
)

type ValidationHandler struct {
	detector *risk.Detector
	tracker  *evolution.Tracker
}

func NewValidationHandler(detector *risk.Detector, tracker *evolution.Tracker) *ValidationHandler {
	return &ValidationHandler{
		detector: detector,
		tracker:  tracker,
	}
}

func (h *ValidationHandler) HandleRiskValidation(c *fiber.Ctx) error {
	var req struct {
		ProjectID string               `json:"project_id"`
		Outcome   models.ActualOutcome `json:"outcome"`
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

	result, err := h.detector.ValidateRiskPredictions(c.Context(), req.ProjectID, req.Outcome)
	if err != nil {
		logger.Error("Risk validation failed",
			zap.String("project_id", req.ProjectID),
			zap.Error(err),
		)
		return errorResponse(c, err)
	}

	metrics.ValidationAccuracy.WithLabelValues("risk").Set(result.Accuracy)

	return c.JSON(result)
}

func (h *ValidationHandler) HandleEvolutionValidation(c *fiber.Ctx) error {
	var req struct {
		PredictionID string             `json:"prediction_id"`
		Actuals      map[string]float64 `json:"actuals"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.PredictionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "prediction_id is required",
		})
	}

	result, err := h.tracker.ValidateEvolutionPredictions(c.Context(), req.PredictionID, req.Actuals)
	if err != nil {
		logger.Error("Evolution validation failed",
			zap.String("prediction_id", req.PredictionID),
			zap.Error(err),
		)
		return errorResponse(c, err)
	}

	metrics.ValidationAccuracy.WithLabelValues("evolution").Set(result.Accuracy)

	return c.JSON(result)
}
