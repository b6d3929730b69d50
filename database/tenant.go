package database

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// TenantID returns the tenant resolved by the auth middleware.
func TenantID(c *fiber.Ctx) (string, error) {
	tenant, _ := c.Locals("tenantID").(string)
	if strings.TrimSpace(tenant) == "" {
		return "", errors.New("tenant missing from request context")
	}
	return tenant, nil
}

type txKey struct{}

// WithTx returns a context carrying the request transaction.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction stored by WithTx, or nil.
func TxFromContext(ctx context.Context) *gorm.DB {
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return tx
}
