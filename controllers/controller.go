package controllers

import (
	"time"

	"agency-billing-backend/database"
	ierr "agency-billing-backend/errors"
	"agency-billing-backend/ledger"
	"agency-billing-backend/services"
	"agency-billing-backend/utils"

	"github.com/gofiber/fiber/v2"
)

// Handlers holds the fiber handlers and the services behind them.
type Handlers struct {
	svc *services.Services
}

func New(svc *services.Services) *Handlers {
	return &Handlers{svc: svc}
}

func tenantOf(c *fiber.Ctx) (string, error) {
	tenant, err := database.TenantID(c)
	if err != nil {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Could not retrieve tenant")
	}
	return tenant, nil
}

// WithKind pins the document kind for a route group.
func WithKind(kind ledger.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("kind", kind)
		return c.Next()
	}
}

func kindOf(c *fiber.Ctx) (ledger.Kind, error) {
	if kind, ok := c.Locals("kind").(ledger.Kind); ok {
		return kind, nil
	}
	return ledger.ParseKind(c.Params("kind"))
}

// optionalDate parses an optional date field; "" means unset.
func optionalDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, ok := utils.ParseDate(value)
	if !ok {
		return nil, ierr.NewErrorf("invalid %s %q", field, value).
			WithHintf("%s must be a date (YYYY-MM-DD)", field).
			Mark(ierr.ErrValidation)
	}
	return &t, nil
}
