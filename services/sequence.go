package services

import (
	"context"

	ierr "agency-billing-backend/errors"
	"agency-billing-backend/ledger"

	"gorm.io/gorm"
)

// SequenceAllocator hands out per-tenant document numbers. Values are unique
// and increasing per tenant but not gapless.
type SequenceAllocator struct {
	Params
}

func NewSequenceAllocator(p Params) *SequenceAllocator {
	return &SequenceAllocator{Params: p}
}

// upsert-and-increment in one statement; the row lock taken by the UPDATE
// serialises concurrent callers for the same tenant.
const nextValueSQL = `INSERT INTO sequence_counters (tenant_id, current_value) VALUES (?, 1)
ON CONFLICT (tenant_id) DO UPDATE SET current_value = sequence_counters.current_value + 1
RETURNING current_value`

// Next returns the tenant's next counter value.
func (a *SequenceAllocator) Next(ctx context.Context, tenantID string) (int64, error) {
	return a.next(a.conn(ctx), tenantID)
}

// NextNumber allocates a value and formats it for kind, e.g. INV-2026-0042.
func (a *SequenceAllocator) NextNumber(ctx context.Context, tenantID string, kind ledger.Kind) (string, error) {
	return a.nextNumber(a.conn(ctx), tenantID, kind)
}

func (a *SequenceAllocator) next(db *gorm.DB, tenantID string) (int64, error) {
	if tenantID == "" {
		return 0, ierr.NewError("empty tenant id").Mark(ierr.ErrValidation)
	}
	var value int64
	res := db.Raw(nextValueSQL, tenantID).Scan(&value)
	if res.Error != nil {
		return 0, ierr.Wrap(res.Error, ierr.ErrDatabase, "increment sequence counter")
	}
	if value <= 0 {
		return 0, ierr.NewErrorf("sequence counter for tenant %s returned %d", tenantID, value).
			Mark(ierr.ErrDatabase)
	}
	return value, nil
}

func (a *SequenceAllocator) nextNumber(db *gorm.DB, tenantID string, kind ledger.Kind) (string, error) {
	value, err := a.next(db, tenantID)
	if err != nil {
		return "", err
	}
	return ledger.FormatNumber(a.Prefixes.For(kind), a.now().Year(), value), nil
}
