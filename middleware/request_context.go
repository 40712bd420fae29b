// middleware/request_context.go
package middleware

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	HeaderRequestID    = "X-Request-ID"
	RequestIDLocalsKey = "request_id"
)

// RequestContextMiddleware tags every request with an id (kept from the caller
// when it sends a valid one) and logs method, path, status and latency.
func RequestContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(HeaderRequestID)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		c.Locals(RequestIDLocalsKey, requestID)
		c.Set(HeaderRequestID, requestID)

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		log.Printf("👤 [REQ] %s %s %s → %d (%s)", requestID, c.Method(), c.Path(), status, time.Since(start).Round(time.Microsecond))
		return err
	}
}
