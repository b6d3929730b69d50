package middlewares

import (
	"context"

	"agency-billing-backend/database"
	"agency-billing-backend/logger"
	"agency-billing-backend/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TenantEnsurer mirrors an authenticated tenant into the store.
type TenantEnsurer interface {
	Ensure(ctx context.Context, tenantID string) (*models.Tenant, error)
}

// TenantTx opens a per-request DB transaction for the authenticated tenant.
// Order: run AFTER IsAuthenticatedHeader() (so tenantID/userID are present),
// and AFTER Idempotency() (so idempotency records aren't tied to the handler TX).
//
// The transaction travels in the user context; services join it and nest
// their own transactions as savepoints.
func TenantTx(db *gorm.DB, tenants TenantEnsurer) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		tenantID, _ := c.Locals("tenantID").(string)
		if tenantID == "" {
			return c.Next()
		}

		tx := db.WithContext(c.UserContext()).Begin()
		if tx.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to begin transaction")
		}
		log := logger.FromContext(c.UserContext())

		defer func() {
			if r := recover(); r != nil {
				_ = tx.Rollback()
				panic(r) // re-panic after rollback so Fiber's handler can catch
			}
			if err != nil {
				_ = tx.Rollback()
				return
			}
			if e := tx.Commit().Error; e != nil {
				log.Error("tx commit failed", zap.Error(e))
				err = fiber.NewError(fiber.StatusInternalServerError, "transaction commit failed")
			}
		}()

		ctx := logger.WithContext(c.UserContext(), log.With(zap.String("tenant_id", tenantID)))
		c.SetUserContext(database.WithTx(ctx, tx))

		if _, err = tenants.Ensure(c.UserContext(), tenantID); err != nil {
			return err
		}
		return c.Next()
	}
}
