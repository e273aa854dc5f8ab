package transport

import (
	"strings"

	"github.com/abd0-omar/newzletter/internal/observability"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestID tags every request with a correlation id, echoing it back
// to the client and into the context handlers pass down to services.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(fiber.HeaderXRequestID, requestID)
		c.SetUserContext(observability.WithCorrelationID(c.Context(), requestID))

		return c.Next()
	}
}
