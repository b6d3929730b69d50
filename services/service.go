// Package services applies the ledger rules against the store. Every mutating
// operation runs in one transaction; when the caller already holds a
// transaction (the per-request one) the work nests inside it as a savepoint.
package services

import (
	"context"
	"errors"
	"time"

	"agency-billing-backend/database"
	ierr "agency-billing-backend/errors"
	"agency-billing-backend/ledger"
	"agency-billing-backend/models"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Params are the dependencies shared by all services.
type Params struct {
	DB       *gorm.DB
	Prefixes ledger.Prefixes
	Clock    func() time.Time
}

func (p Params) now() time.Time {
	if p.Clock != nil {
		return p.Clock().UTC()
	}
	return time.Now().UTC()
}

// conn joins the request transaction when ctx carries one.
func (p Params) conn(ctx context.Context) *gorm.DB {
	if tx := database.TxFromContext(ctx); tx != nil {
		return tx.WithContext(ctx)
	}
	return p.DB.WithContext(ctx)
}

// dbError marks unexpected store failures; gorm.ErrRecordNotFound becomes NotFound.
func dbError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ierr.NewErrorf("%s not found", what).
			WithHintf("The %s does not exist", what).
			Mark(ierr.ErrNotFound)
	}
	return ierr.Wrap(err, ierr.ErrDatabase, "load "+what)
}

// lockDocument loads a tenant's document and takes a row lock on it for the
// rest of tx. Items are preloaded in position order.
func lockDocument(tx *gorm.DB, tenantID, id string, preloadItems bool) (*models.Document, error) {
	var doc models.Document
	q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id)
	if err := q.Take(&doc).Error; err != nil {
		return nil, dbError(err, "document")
	}
	if preloadItems {
		if err := tx.Where("document_id = ?", doc.ID).Order("position").Find(&doc.Items).Error; err != nil {
			return nil, dbError(err, "document items")
		}
	}
	return &doc, nil
}

// loadPayments returns the payments recorded against a document, oldest first.
func loadPayments(tx *gorm.DB, documentID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := tx.Where("document_id = ?", documentID).
		Order("payment_date ASC, created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, dbError(err, "payments")
	}
	return payments, nil
}

func amountsOf(payments []models.Payment) []decimal.Decimal {
	return lo.Map(payments, func(p models.Payment, _ int) decimal.Decimal { return p.Amount })
}

// Services bundles every service of the application.
type Services struct {
	Tenants   *Tenants
	Sequences *SequenceAllocator
	Limiter   *PlanLimiter
	Clients   *Clients
	Catalog   *Catalog
	Documents *Documents
	Payments  *PaymentLedger
	Processor *ProcessorPayments
	Reports   *Reports
}

// New wires the services on top of p. webhookSecret verifies Stripe deliveries.
func New(p Params, webhookSecret string) *Services {
	s := &Services{
		Tenants:   NewTenants(p),
		Sequences: NewSequenceAllocator(p),
		Limiter:   NewPlanLimiter(p),
		Clients:   NewClients(p),
		Catalog:   NewCatalog(p),
		Payments:  NewPaymentLedger(p),
		Reports:   NewReports(p),
	}
	s.Documents = NewDocuments(p, s.Limiter, s.Sequences, s.Catalog)
	s.Processor = NewProcessorPayments(p, s.Documents, webhookSecret)
	return s
}
