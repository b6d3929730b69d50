package services

import (
	"context"
	"testing"

	"agency-billing-backend/database/dbtest"
	"agency-billing-backend/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_test_secret"

type fixture struct {
	db        *gorm.DB
	tenants   *Tenants
	sequences *SequenceAllocator
	limiter   *PlanLimiter
	catalog   *Catalog
	clients   *Clients
	documents *Documents
	payments  *PaymentLedger
	processor *ProcessorPayments
	reports   *Reports
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return fixtureOn(dbtest.OpenTestDB(t))
}

// forEachStore runs fn against SQLite, and against Postgres when
// dbtest.PostgresDSNEnv is set. Only Postgres honours the row locks; on
// SQLite the single pooled connection serialises concurrent callers.
func forEachStore(t *testing.T, fn func(t *testing.T, f *fixture)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, newFixture(t)) })
	t.Run("postgres", func(t *testing.T) { fn(t, fixtureOn(dbtest.OpenPostgres(t))) })
}

func fixtureOn(db *gorm.DB) *fixture {
	s := New(Params{DB: db}, testWebhookSecret)
	return &fixture{
		db:        db,
		tenants:   s.Tenants,
		sequences: s.Sequences,
		limiter:   s.Limiter,
		catalog:   s.Catalog,
		clients:   s.Clients,
		documents: s.Documents,
		payments:  s.Payments,
		processor: s.Processor,
		reports:   s.Reports,
	}
}

// tenant creates a tenant on plan and returns its id.
func (f *fixture) tenant(t *testing.T, plan ledger.PlanKey) string {
	t.Helper()
	id := "tenant-" + uuid.NewString()[:8]
	_, err := f.tenants.Ensure(context.Background(), id)
	require.NoError(t, err)
	_, err = f.tenants.ChangePlan(context.Background(), id, string(plan))
	require.NoError(t, err)
	return id
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func line(title, qty, price string) ItemInput {
	return ItemInput{Title: title, Quantity: dec(qty), UnitPrice: ptr(dec(price))}
}

// sentInvoice creates an invoice of one line priced total with no tax and sends it.
func (f *fixture) sentInvoice(t *testing.T, tenantID, total string) string {
	t.Helper()
	ctx := context.Background()
	doc, err := f.documents.Create(ctx, tenantID, ledger.KindInvoice, DocumentInput{
		Currency: "EUR",
		Items:    []ItemInput{line("Retainer", "1", total)},
	})
	require.NoError(t, err)
	_, err = f.documents.Transition(ctx, tenantID, ledger.KindInvoice, doc.ID, ledger.StatusSent)
	require.NoError(t, err)
	return doc.ID
}
