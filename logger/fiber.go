package logger

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// FiberMiddleware attaches a request-scoped logger to the user context and logs
// one line per request once the handler chain has finished.
func FiberMiddleware(base *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := strings.TrimSpace(c.Get(requestIDHeader))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Set(requestIDHeader, requestID)

		log := base.With(zap.String("request_id", requestID))
		c.SetUserContext(WithContext(c.UserContext(), log))

		chainErr := c.Next()

		status := c.Response().StatusCode()
		if chainErr != nil {
			// The error handler has not run yet; report the status it will most likely pick.
			if fe, ok := chainErr.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		route := "unknown"
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		if tenant, ok := c.Locals("tenantID").(string); ok && tenant != "" {
			fields = append(fields, zap.String("tenant_id", tenant))
		}
		if chainErr != nil {
			fields = append(fields, zap.Error(chainErr))
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= fiber.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
		return chainErr
	}
}
