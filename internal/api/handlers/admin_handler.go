package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/engagement-agent/backend/pkg/logger"
)

// Reindexer rebuilds the vector index from the knowledge store. The
// indexer satisfies it; nil when the vector index is disabled.
type Reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

type AdminHandler struct {
	reindexer Reindexer
}

func NewAdminHandler(reindexer Reindexer) *AdminHandler {
	return &AdminHandler{reindexer: reindexer}
}

func (h *AdminHandler) HandleReindex(c *fiber.Ctx) error {
	if h.reindexer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Vector index is disabled",
		})
	}

	indexed, err := h.reindexer.Reindex(c.Context())
	if err != nil {
		logger.Error("Reindex failed", zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"indexed": indexed,
	})
}
