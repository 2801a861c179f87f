package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/metrics"
	"github.com/engagement-agent/backend/internal/patterns"
	"github.com/engagement-agent/backend/internal/risk"
	"github.com/engagement-agent/backend/pkg/logger"
)

type AnalysisHandler struct {
	analyzer *patterns.Analyzer
	detector *risk.Detector
}

func NewAnalysisHandler(analyzer *patterns.Analyzer, detector *risk.Detector) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer: analyzer,
		detector: detector,
	}
}

func (h *AnalysisHandler) HandlePatternAnalysis(c *fiber.Ctx) error {
	var req struct {
		ProjectID string `json:"project_id"`
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
	analysis, err := h.analyzer.AnalyzeProjectPatterns(c.Context(), req.ProjectID)
	metrics.AnalysisDuration.WithLabelValues("patterns").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AnalysisTotal.WithLabelValues("patterns", "error").Inc()
		logger.Error("Pattern analysis failed",
			zap.String("project_id", req.ProjectID),
			zap.Error(err),
		)
		return errorResponse(c, err)
	}

	metrics.AnalysisTotal.WithLabelValues("patterns", "success").Inc()
	metrics.SimilarProjectsFound.Observe(float64(analysis.SimilarCount))
	metrics.AnalysisConfidence.WithLabelValues("patterns").Observe(analysis.Confidence)

	return c.JSON(analysis)
}

func (h *AnalysisHandler) HandleRiskDetection(c *fiber.Ctx) error {
	var req struct {
		ProjectID string `json:"project_id"`
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
	assessment, err := h.detector.DetectRiskPatterns(c.Context(), req.ProjectID)
	metrics.AnalysisDuration.WithLabelValues("risks").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AnalysisTotal.WithLabelValues("risks", "error").Inc()
		logger.Error("Risk detection failed",
			zap.String("project_id", req.ProjectID),
			zap.Error(err),
		)
		return errorResponse(c, err)
	}

	metrics.AnalysisTotal.WithLabelValues("risks", "success").Inc()
	metrics.RiskLevelTotal.WithLabelValues(assessment.RiskLevel).Inc()

	return c.JSON(assessment)
}
