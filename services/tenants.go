package services

import (
	"context"
	"errors"
	"strings"

	"agency-billing-backend/ledger"
	"agency-billing-backend/logger"
	"agency-billing-backend/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Tenants mirrors identity-provider tenants and manages their plan.
type Tenants struct {
	Params
}

func NewTenants(p Params) *Tenants {
	return &Tenants{Params: p}
}

// Ensure returns the tenant row, creating it on first sight.
func (s *Tenants) Ensure(ctx context.Context, tenantID string) (*models.Tenant, error) {
	db := s.conn(ctx)
	var tenant models.Tenant
	err := db.Where("id = ?", tenantID).Take(&tenant).Error
	if err == nil {
		return &tenant, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, dbError(err, "tenant")
	}

	// Two first requests may race here; the loser's insert is a no-op.
	tenant = models.Tenant{ID: tenantID, PlanKey: string(ledger.DefaultPlan)}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&tenant)
	if res.Error != nil {
		return nil, dbError(res.Error, "tenant")
	}
	if res.RowsAffected == 1 {
		logger.FromContext(ctx).Info("tenant mirrored", zap.String("tenant_id", tenantID))
		return &tenant, nil
	}
	return s.Get(ctx, tenantID)
}

func (s *Tenants) Get(ctx context.Context, tenantID string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.conn(ctx).Where("id = ?", tenantID).Take(&tenant).Error; err != nil {
		return nil, dbError(err, "tenant")
	}
	return &tenant, nil
}

// Rename updates the agency's display name.
func (s *Tenants) Rename(ctx context.Context, tenantID, name string) (*models.Tenant, error) {
	return s.update(ctx, tenantID, map[string]any{"name": strings.TrimSpace(name)})
}

// ChangePlan switches the tenant to another plan. Documents already created
// this month keep counting against the new plan's quota.
func (s *Tenants) ChangePlan(ctx context.Context, tenantID, planKey string) (*models.Tenant, error) {
	key, err := ledger.ParsePlanKey(planKey)
	if err != nil {
		return nil, err
	}
	tenant, err := s.update(ctx, tenantID, map[string]any{"plan_key": string(key)})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("tenant plan changed",
		zap.String("tenant_id", tenantID), zap.String("plan", string(key)))
	return tenant, nil
}

func (s *Tenants) update(ctx context.Context, tenantID string, updates map[string]any) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", tenantID).Take(&tenant).Error; err != nil {
			return dbError(err, "tenant")
		}
		if err := tx.Model(&tenant).Updates(updates).Error; err != nil {
			return dbError(err, "tenant")
		}
		return tx.Where("id = ?", tenantID).Take(&tenant).Error
	})
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}
