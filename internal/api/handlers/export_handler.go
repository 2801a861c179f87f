package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/export"
	"github.com/engagement-agent/backend/pkg/logger"
)

type ExportHandler struct {
	exporter *export.Exporter
}

func NewExportHandler(exporter *export.Exporter) *ExportHandler {
	return &ExportHandler{
		exporter: exporter,
	}
}

func (h *ExportHandler) HandleExport(c *fiber.Ctx) error {
	format := c.Query("format", "json")

	data, contentType, err := h.exporter.ExportPatterns(c.Context(), format)
	if err != nil {
		logger.Error("Pattern export failed",
			zap.String("format", format),
			zap.Error(err),
		)
		return errorResponse(c, err)
	}

	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(data)
}
