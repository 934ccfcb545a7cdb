package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// LoggingMiddleware logs one line per request. 5xx responses log at error
// level and 4xx at warn.
func LoggingMiddleware(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else if status < fiber.StatusBadRequest {
				status = fiber.StatusInternalServerError
			}
		}

		attrs := []any{
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
			"ip", c.IP(),
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start),
			"user_agent", c.Get(fiber.HeaderUserAgent),
		}
		if err != nil {
			attrs = append(attrs, "error", err)
		}

		ctx := c.UserContext()
		switch {
		case status >= fiber.StatusInternalServerError:
			logger.ErrorContext(ctx, "request", attrs...)
		case status >= fiber.StatusBadRequest:
			logger.WarnContext(ctx, "request", attrs...)
		default:
			logger.InfoContext(ctx, "request", attrs...)
		}
		return err
	}
}
