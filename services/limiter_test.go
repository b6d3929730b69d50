package services

import (
	"context"
	"testing"
	"time"

	ierr "agency-billing-backend/errors"
	"agency-billing-backend/ledger"
	"agency-billing-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedDocuments inserts n documents directly, bypassing the limiter.
func seedDocuments(t *testing.T, f *fixture, tenantID string, kind ledger.Kind, status ledger.Status, createdAt time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		doc := models.Document{
			TenantID:  tenantID,
			Kind:      kind,
			Number:    "SEED-" + uuid.NewString()[:8],
			Status:    status,
			Currency:  "EUR",
			CreatedAt: createdAt,
		}
		require.NoError(t, f.db.Create(&doc).Error)
	}
}

func TestPlanLimiter_FreePlanBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tenant := f.tenant(t, ledger.PlanFree)
	seedDocuments(t, f, tenant, ledger.KindInvoice, ledger.StatusSent, now, 4)
	require.NoError(t, f.limiter.CheckAndReserve(ctx, tenant, ledger.KindInvoice))

	seedDocuments(t, f, tenant, ledger.KindInvoice, ledger.StatusPaid, now, 1)
	err := f.limiter.CheckAndReserve(ctx, tenant, ledger.KindInvoice)
	require.Error(t, err)
	assert.True(t, ierr.IsLimitReached(err))
	limit, ok := ierr.LimitFrom(err)
	require.True(t, ok)
	assert.Equal(t, 5, limit)
}

func TestPlanLimiter_OnlyBillableThisMonthCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	lastMonth := ledger.MonthStart(now).Add(-time.Hour)

	tenant := f.tenant(t, ledger.PlanFree)
	seedDocuments(t, f, tenant, ledger.KindInvoice, ledger.StatusDraft, now, 10)
	seedDocuments(t, f, tenant, ledger.KindInvoice, ledger.StatusSent, lastMonth, 10)
	seedDocuments(t, f, tenant, ledger.KindProposal, ledger.StatusSent, now, 10)
	seedDocuments(t, f, tenant, ledger.KindInvoice, ledger.StatusSent, now, 4)

	require.NoError(t, f.limiter.CheckAndReserve(ctx, tenant, ledger.KindInvoice))
	assert.True(t, ierr.IsLimitReached(f.limiter.CheckAndReserve(ctx, tenant, ledger.KindProposal)))

	usage, err := f.limiter.Usage(ctx, tenant, ledger.KindInvoice)
	require.NoError(t, err)
	assert.Equal(t, 4, usage.Used)
	assert.Equal(t, 1, usage.Remaining)
	assert.Equal(t, ledger.PlanFree, usage.Plan.Key)
}

func TestPlanLimiter_VoidCountsOnlyOnceSent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tenant := f.tenant(t, ledger.PlanFree)
	seedDocuments(t, f, tenant, ledger.KindInvoice, ledger.StatusVoid, now, 3)
	seedDocuments(t, f, tenant, ledger.KindInvoice, ledger.StatusSent, now, 2)

	usage, err := f.limiter.Usage(ctx, tenant, ledger.KindInvoice)
	require.NoError(t, err)
	assert.Equal(t, 2, usage.Used)

	require.NoError(t, f.db.Model(&models.Document{}).
		Where("tenant_id = ? AND status = ?", tenant, string(ledger.StatusVoid)).
		Update("sent_at", now).Error)

	usage, err = f.limiter.Usage(ctx, tenant, ledger.KindInvoice)
	require.NoError(t, err)
	assert.Equal(t, 5, usage.Used)
	assert.True(t, ierr.IsLimitReached(f.limiter.CheckAndReserve(ctx, tenant, ledger.KindInvoice)))
}

func TestPlanLimiter_ProIsUnlimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant := f.tenant(t, ledger.PlanPro)
	seedDocuments(t, f, tenant, ledger.KindInvoice, ledger.StatusSent, time.Now().UTC(), 60)

	require.NoError(t, f.limiter.CheckAndReserve(ctx, tenant, ledger.KindInvoice))

	usage, err := f.limiter.Usage(ctx, tenant, ledger.KindInvoice)
	require.NoError(t, err)
	assert.Equal(t, 60, usage.Used)
	assert.Equal(t, -1, usage.Remaining)
}

func TestPlanLimiter_UnknownTenant(t *testing.T) {
	f := newFixture(t)
	err := f.limiter.CheckAndReserve(context.Background(), "nobody", ledger.KindInvoice)
	assert.True(t, ierr.IsNotFound(err))
}
