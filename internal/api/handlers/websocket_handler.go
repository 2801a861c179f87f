package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/patterns"
	"github.com/engagement-agent/backend/internal/recommend"
	"github.com/engagement-agent/backend/internal/risk"
	"github.com/engagement-agent/backend/pkg/logger"
)

// WebSocketHandler streams a full analysis run stage by stage so
// clients can render results as they land instead of waiting for the
// slowest stage.
type WebSocketHandler struct {
	analyzer *patterns.Analyzer
	detector *risk.Detector
	engine   *recommend.Engine
}

func NewWebSocketHandler(analyzer *patterns.Analyzer, detector *risk.Detector, engine *recommend.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		analyzer: analyzer,
		detector: detector,
		engine:   engine,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type      string `json:"type"`
			ProjectID string `json:"project_id"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "analyze" || msg.ProjectID == "" {
			continue
		}

		logger.Info("Processing WebSocket analysis", zap.String("project_id", msg.ProjectID))

		if err := h.streamAnalysis(c, msg.ProjectID); err != nil {
			logger.Error("Failed to stream analysis", zap.Error(err))
			h.sendError(c, "Failed to run analysis")
		}
	}
}

func (h *WebSocketHandler) streamAnalysis(c *websocket.Conn, projectID string) error {
	ctx := context.Background()

	h.sendStage(c, "status", "Analyzing delivery patterns...")

	analysis, err := h.analyzer.AnalyzeProjectPatterns(ctx, projectID)
	if err != nil {
		return err
	}
	if err := h.sendStage(c, "patterns", analysis); err != nil {
		return err
	}

	h.sendStage(c, "status", "Detecting risk patterns...")

	assessment, err := h.detector.DetectRiskPatterns(ctx, projectID)
	if err != nil {
		return err
	}
	if err := h.sendStage(c, "risks", assessment); err != nil {
		return err
	}

	h.sendStage(c, "status", "Generating recommendations...")

	bundle, err := h.engine.GenerateRecommendations(ctx, projectID, recommend.DefaultOptions())
	if err != nil {
		return err
	}
	if err := h.sendStage(c, "recommendations", bundle); err != nil {
		return err
	}

	return h.sendStage(c, "complete", map[string]interface{}{
		"project_id":      projectID,
		"similar_count":   analysis.SimilarCount,
		"risk_level":      assessment.RiskLevel,
		"recommendations": bundle.Summary.Total,
	})
}

func (h *WebSocketHandler) sendStage(c *websocket.Conn, stage string, payload interface{}) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    stage,
		"payload": payload,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
