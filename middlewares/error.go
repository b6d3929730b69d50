package middlewares

import (
	"errors"
	"strings"

	ierr "agency-billing-backend/errors"
	"agency-billing-backend/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler centralizes error responses and keeps messages sanitized.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// 1) Fiber errors (use their status code + message)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}

	// 2) Validation errors (422 + per-field info)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := make(map[string]string, len(ve))
		for _, fe := range ve {
			// drop the struct name: "items[0].title"
			field := fe.Namespace()
			if i := strings.IndexByte(field, '.'); i >= 0 {
				field = field[i+1:]
			}
			out[field] = fe.Tag()
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "validation failed",
			"code":    ierr.ErrCodeValidation,
			"errors":  out,
		})
	}

	// 3) Domain errors
	if kind := ierr.Kind(err); kind != nil {
		status := ierr.HTTPStatusFromErr(err)
		if status >= fiber.StatusInternalServerError {
			logger.FromContext(c.UserContext()).Error("request failed", zap.Error(err))
			return c.Status(status).JSON(fiber.Map{"message": "internal server error", "code": kind.Code})
		}

		message := ierr.Hint(err)
		if message == "" {
			message = kind.Message
		}
		body := fiber.Map{"message": message, "code": kind.Code}
		if limit, ok := ierr.LimitFrom(err); ok {
			body["details"] = fiber.Map{"limit": limit}
		}
		return c.Status(status).JSON(body)
	}

	// 4) Unknown errors (500)
	logger.FromContext(c.UserContext()).Error("internal error", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "internal server error",
	})
}
