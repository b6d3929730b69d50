package services

import (
	"context"

	ierr "agency-billing-backend/errors"
	"agency-billing-backend/ledger"
	"agency-billing-backend/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlanLimiter enforces the monthly document quota of the tenant's plan.
//
// The check locks the tenant row, so when it runs inside the transaction that
// inserts the document, concurrent creations for one tenant are serialised
// and the quota cannot be overshot.
type PlanLimiter struct {
	Params
}

func NewPlanLimiter(p Params) *PlanLimiter {
	return &PlanLimiter{Params: p}
}

// Usage describes how much of the monthly quota a tenant has used.
type Usage struct {
	Plan      ledger.Plan `json:"plan"`
	Kind      ledger.Kind `json:"kind"`
	Used      int         `json:"used"`
	Remaining int         `json:"remaining"`
}

// CheckAndReserve returns LimitReached when the tenant's plan has no room for
// another document of kind this month.
func (l *PlanLimiter) CheckAndReserve(ctx context.Context, tenantID string, kind ledger.Kind) error {
	return l.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return l.checkAndReserve(tx, tenantID, kind)
	})
}

// Usage reports the current month's consumption without locking.
func (l *PlanLimiter) Usage(ctx context.Context, tenantID string, kind ledger.Kind) (*Usage, error) {
	db := l.conn(ctx)
	var tenant models.Tenant
	if err := db.Where("id = ?", tenantID).Take(&tenant).Error; err != nil {
		return nil, dbError(err, "tenant")
	}
	plan := ledger.LookupPlan(tenant.PlanKey)
	used, err := l.countBillable(db, tenantID, kind)
	if err != nil {
		return nil, err
	}
	return &Usage{Plan: plan, Kind: kind, Used: used, Remaining: plan.Remaining(used)}, nil
}

func (l *PlanLimiter) checkAndReserve(tx *gorm.DB, tenantID string, kind ledger.Kind) error {
	var tenant models.Tenant
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", tenantID).
		Take(&tenant).Error
	if err != nil {
		return dbError(err, "tenant")
	}

	plan := ledger.LookupPlan(tenant.PlanKey)
	if plan.Unlimited {
		return nil
	}
	used, err := l.countBillable(tx, tenantID, kind)
	if err != nil {
		return err
	}
	return plan.Allow(used)
}

// countBillable counts kind documents in billable statuses created since the
// start of the current UTC month. Drafts voided without being sent are free.
func (l *PlanLimiter) countBillable(db *gorm.DB, tenantID string, kind ledger.Kind) (int, error) {
	billable := lo.Map(kind.BillableStatuses(), func(s ledger.Status, _ int) string { return string(s) })

	var n int64
	err := db.Model(&models.Document{}).
		Where("tenant_id = ? AND kind = ? AND status IN ? AND created_at >= ?",
			tenantID, string(kind), billable, ledger.MonthStart(l.now())).
		Where("(status <> ? OR sent_at IS NOT NULL)", string(ledger.StatusVoid)).
		Count(&n).Error
	if err != nil {
		return 0, ierr.Wrap(err, ierr.ErrDatabase, "count billable documents")
	}
	return int(n), nil
}
