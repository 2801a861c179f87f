package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/engagement-agent/backend/internal/evolution"
	"github.com/engagement-agent/backend/internal/export"
	"github.com/engagement-agent/backend/internal/knowledge"
	"github.com/engagement-agent/backend/internal/recommend"
	"github.com/engagement-agent/backend/internal/risk"
)

// statusFor maps analyzer errors onto HTTP status codes. Anything not
// in the taxonomy is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, knowledge.ErrContextNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, risk.ErrNoPrediction):
		return fiber.StatusNotFound
	case errors.Is(err, evolution.ErrUnknownPrediction):
		return fiber.StatusNotFound
	case errors.Is(err, evolution.ErrInvalidTimeWindow):
		return fiber.StatusBadRequest
	case errors.Is(err, recommend.ErrInvalidFeedback):
		return fiber.StatusBadRequest
	case errors.Is(err, recommend.ErrInvalidMaturityLevel):
		return fiber.StatusBadRequest
	case errors.Is(err, export.ErrUnsupportedFormat):
		return fiber.StatusBadRequest
	case errors.Is(err, knowledge.ErrStoreUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func errorResponse(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	message := err.Error()
	if status == fiber.StatusInternalServerError {
		message = "Internal error"
	}
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}
