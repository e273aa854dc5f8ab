package transport

import (
	"errors"

	"github.com/abd0-omar/newzletter/internal/domain"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// retryAfterSeconds is the hint returned while a prior attempt with the
// same idempotency key is still in flight.
const retryAfterSeconds = "1"

// ErrorHandler maps domain errors to HTTP responses. Contention on an
// idempotency key is a retryable condition, not a failure, and carries
// a Retry-After header so well-behaved clients back off.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusFromError(err)

		if errors.Is(err, domain.ErrPendingRequest) {
			c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error("request error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err),
			)
		} else {
			logger.Warn("request rejected",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err),
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}

func statusFromError(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrPendingRequest):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
