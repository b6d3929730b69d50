package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	ierr "agency-billing-backend/errors"
	"agency-billing-backend/ledger"
	"agency-billing-backend/logger"
	"agency-billing-backend/models"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultCurrency is used when a document is created without one.
const DefaultCurrency = "EUR"

// Documents manages proposals and invoices.
type Documents struct {
	Params
	limiter   *PlanLimiter
	sequences *SequenceAllocator
	catalog   *Catalog
	policy    ledger.SettlementPolicy
}

func NewDocuments(p Params, limiter *PlanLimiter, sequences *SequenceAllocator, catalog *Catalog) *Documents {
	return &Documents{Params: p, limiter: limiter, sequences: sequences, catalog: catalog}
}

// ItemInput is one requested line. When ServiceID is set, a blank title,
// description or missing unit price is taken from the price list.
type ItemInput struct {
	ServiceID   *string
	Title       string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   *decimal.Decimal
}

// DocumentInput is the full writable state of a document.
type DocumentInput struct {
	ClientID  *string
	Title     string
	Notes     string
	Currency  string
	TaxRate   decimal.Decimal
	IssueDate *time.Time
	DueDate   *time.Time
	Items     []ItemInput
}

// DocumentView is a document with its derived settlement.
type DocumentView struct {
	*models.Document
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	BalanceDue      decimal.Decimal `json:"balance_due"`
	IsSettled       bool            `json:"is_settled"`
	StatusConfirmed bool            `json:"status_confirmed"`
}

func (s *Documents) view(doc *models.Document, payments []models.Payment) DocumentView {
	st := s.policy.Evaluate(doc.Status, doc.Total, amountsOf(payments))
	return DocumentView{
		Document:        doc,
		PaidAmount:      st.PaidAmount,
		BalanceDue:      st.BalanceDue,
		IsSettled:       st.IsSettled,
		StatusConfirmed: st.StatusConfirmed,
	}
}

// Create validates the input, checks the plan quota, allocates a number and
// stores the document with its first version, all in one transaction.
func (s *Documents) Create(ctx context.Context, tenantID string, kind ledger.Kind, in DocumentInput) (*models.Document, error) {
	var doc *models.Document
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		items, totals, err := s.price(tx, tenantID, in)
		if err != nil {
			return err
		}
		if err := s.checkClient(tx, tenantID, in.ClientID); err != nil {
			return err
		}
		if err := s.limiter.checkAndReserve(tx, tenantID, kind); err != nil {
			return err
		}
		number, err := s.sequences.nextNumber(tx, tenantID, kind)
		if err != nil {
			return err
		}

		doc = &models.Document{
			TenantID:  tenantID,
			Kind:      kind,
			Number:    number,
			ClientID:  in.ClientID,
			Status:    ledger.StatusDraft,
			Title:     strings.TrimSpace(in.Title),
			Notes:     in.Notes,
			Currency:  currencyOrDefault(in.Currency),
			TaxRate:   ledger.RoundTaxRate(in.TaxRate),
			Subtotal:  totals.Subtotal,
			TaxAmount: totals.TaxAmount,
			Total:     totals.Total,
			IssueDate: in.IssueDate,
			DueDate:   in.DueDate,
			Items:     items,
		}
		if err := tx.Create(doc).Error; err != nil {
			return dbError(err, "document")
		}
		return writeSnapshot(tx, doc)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("document created",
		zap.String("kind", string(kind)),
		zap.String("document_id", doc.ID),
		zap.String("number", doc.Number),
		zap.String("total", doc.Total.StringFixed(2)))
	return doc, nil
}

// Update replaces the items and header of a draft document.
func (s *Documents) Update(ctx context.Context, tenantID string, kind ledger.Kind, id string, in DocumentInput) (*models.Document, error) {
	var doc *models.Document
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		doc, err = s.lock(tx, tenantID, kind, id)
		if err != nil {
			return err
		}
		if err := ledger.CheckEditable(doc.Status); err != nil {
			return err
		}

		items, totals, err := s.price(tx, tenantID, in)
		if err != nil {
			return err
		}
		if err := s.checkClient(tx, tenantID, in.ClientID); err != nil {
			return err
		}
		payments, err := loadPayments(tx, doc.ID)
		if err != nil {
			return err
		}
		if err := s.policy.CheckRetotal(totals.Total, ledger.PaidAmount(amountsOf(payments))); err != nil {
			return err
		}

		if err := tx.Where("document_id = ?", doc.ID).Delete(&models.DocumentItem{}).Error; err != nil {
			return dbError(err, "document items")
		}
		for i := range items {
			items[i].DocumentID = doc.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return dbError(err, "document items")
		}

		err = tx.Model(doc).Select(
			"client_id", "title", "notes", "currency", "tax_rate",
			"subtotal", "tax_amount", "total", "issue_date", "due_date",
		).Updates(&models.Document{
			ClientID:  in.ClientID,
			Title:     strings.TrimSpace(in.Title),
			Notes:     in.Notes,
			Currency:  currencyOrDefault(in.Currency),
			TaxRate:   ledger.RoundTaxRate(in.TaxRate),
			Subtotal:  totals.Subtotal,
			TaxAmount: totals.TaxAmount,
			Total:     totals.Total,
			IssueDate: in.IssueDate,
			DueDate:   in.DueDate,
		}).Error
		if err != nil {
			return dbError(err, "document")
		}

		doc, err = s.lock(tx, tenantID, kind, id)
		if err != nil {
			return err
		}
		return writeSnapshot(tx, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Transition moves a document to status to. Leaving draft makes the document
// billable, so the plan quota is checked again; voiding a draft does not.
func (s *Documents) Transition(ctx context.Context, tenantID string, kind ledger.Kind, id string, to ledger.Status) (*models.Document, error) {
	var doc *models.Document
	var from ledger.Status
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		doc, err = s.lock(tx, tenantID, kind, id)
		if err != nil {
			return err
		}
		from = doc.Status
		if err := ledger.CheckTransition(kind, from, to); err != nil {
			return err
		}
		if !from.IsBillable() && to.IsBillable() && to != ledger.StatusVoid {
			if err := s.limiter.checkAndReserve(tx, tenantID, kind); err != nil {
				return err
			}
		}
		return s.setStatus(tx, doc, to)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("document status changed",
		zap.String("document_id", doc.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return doc, nil
}

// setStatus writes the new status, stamps sent_at and issue_date on first
// send, and snapshots the result. doc must be locked in tx with its items.
func (s *Documents) setStatus(tx *gorm.DB, doc *models.Document, to ledger.Status) error {
	updates := map[string]any{"status": to}
	doc.Status = to
	if to == ledger.StatusSent && doc.SentAt == nil {
		now := s.now()
		updates["sent_at"], doc.SentAt = now, &now
		if doc.IssueDate == nil {
			updates["issue_date"], doc.IssueDate = now, &now
		}
	}
	if err := tx.Model(doc).Updates(updates).Error; err != nil {
		return dbError(err, "document")
	}
	return writeSnapshot(tx, doc)
}

// Get returns one document with items and settlement.
func (s *Documents) Get(ctx context.Context, tenantID string, kind ledger.Kind, id string) (*DocumentView, error) {
	db := s.conn(ctx)
	var doc models.Document
	err := db.Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("position") }).
		Preload("Client").
		Where("tenant_id = ? AND kind = ? AND id = ?", tenantID, kind, id).
		Take(&doc).Error
	if err != nil {
		return nil, dbError(err, "document")
	}
	payments, err := loadPayments(db, doc.ID)
	if err != nil {
		return nil, err
	}
	v := s.view(&doc, payments)
	return &v, nil
}

// ListFilter narrows a document listing.
type ListFilter struct {
	Status   ledger.Status
	ClientID string
	Limit    int
	Offset   int
}

// List returns the tenant's documents of kind, newest first, with settlement.
func (s *Documents) List(ctx context.Context, tenantID string, kind ledger.Kind, f ListFilter) ([]DocumentView, error) {
	db := s.conn(ctx)
	q := db.Where("tenant_id = ? AND kind = ?", tenantID, kind)
	if f.Status != "" {
		if !f.Status.Valid(kind) {
			return nil, ierr.NewErrorf("unknown status %q", f.Status).
				WithHintf("Unknown %s status %q", kind, f.Status).
				Mark(ierr.ErrValidation)
		}
		q = q.Where("status = ?", f.Status)
	}
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var docs []models.Document
	if err := q.Preload("Client").Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, dbError(err, "documents")
	}
	if len(docs) == 0 {
		return []DocumentView{}, nil
	}

	var payments []models.Payment
	ids := lo.Map(docs, func(d models.Document, _ int) string { return d.ID })
	if err := db.Where("document_id IN ?", ids).Find(&payments).Error; err != nil {
		return nil, dbError(err, "payments")
	}
	byDoc := lo.GroupBy(payments, func(p models.Payment) string { return p.DocumentID })

	return lo.Map(docs, func(d models.Document, i int) DocumentView {
		return s.view(&docs[i], byDoc[d.ID])
	}), nil
}

// Delete removes a draft or void document with everything it owns.
func (s *Documents) Delete(ctx context.Context, tenantID string, kind ledger.Kind, id string) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := s.lock(tx, tenantID, kind, id)
		if err != nil {
			return err
		}
		if doc.Status != ledger.StatusDraft && doc.Status != ledger.StatusVoid {
			return ierr.NewErrorf("delete %s in status %s", kind, doc.Status).
				WithHint("Only draft or void documents can be deleted").
				Mark(ierr.ErrInvalidStateTransition)
		}
		for _, child := range []any{&models.DocumentItem{}, &models.Payment{}, &models.DocumentVersion{}} {
			if err := tx.Where("document_id = ?", doc.ID).Delete(child).Error; err != nil {
				return dbError(err, "document children")
			}
		}
		return dbError(tx.Delete(doc).Error, "document")
	})
}

// Versions lists the snapshots of a document, oldest first.
func (s *Documents) Versions(ctx context.Context, tenantID string, kind ledger.Kind, id string) ([]models.DocumentVersion, error) {
	db := s.conn(ctx)
	var n int64
	if err := db.Model(&models.Document{}).
		Where("tenant_id = ? AND kind = ? AND id = ?", tenantID, kind, id).
		Count(&n).Error; err != nil {
		return nil, dbError(err, "document")
	}
	if n == 0 {
		return nil, dbError(gorm.ErrRecordNotFound, "document")
	}
	var versions []models.DocumentVersion
	if err := db.Where("document_id = ?", id).Order("version_no").Find(&versions).Error; err != nil {
		return nil, dbError(err, "document versions")
	}
	return versions, nil
}

func (s *Documents) lock(tx *gorm.DB, tenantID string, kind ledger.Kind, id string) (*models.Document, error) {
	doc, err := lockDocument(tx, tenantID, id, true)
	if err != nil {
		return nil, err
	}
	if doc.Kind != kind {
		return nil, dbError(gorm.ErrRecordNotFound, "document")
	}
	return doc, nil
}

// price resolves catalog references, normalises the lines and computes totals.
func (s *Documents) price(tx *gorm.DB, tenantID string, in DocumentInput) ([]models.DocumentItem, ledger.Totals, error) {
	lines := make([]ledger.LineItem, len(in.Items))
	for i, it := range in.Items {
		line := ledger.LineItem{Title: it.Title, Description: it.Description, Quantity: it.Quantity}
		if it.UnitPrice != nil {
			line.UnitPrice = *it.UnitPrice
		}
		if it.ServiceID != nil && *it.ServiceID != "" {
			svc, err := s.catalog.get(tx, tenantID, *it.ServiceID)
			if err != nil {
				return nil, ledger.Totals{}, ierr.WithError(err).
					WithHintf("Item %d: service does not exist", i+1).
					Mark(ierr.ErrValidation)
			}
			if strings.TrimSpace(line.Title) == "" {
				line.Title = svc.Name
			}
			if line.Description == "" {
				line.Description = svc.Description
			}
			if it.UnitPrice == nil {
				line.UnitPrice = svc.UnitPrice
			}
		}
		lines[i] = line.Normalized()
	}

	totals, err := ledger.ComputeTotals(lines, in.TaxRate)
	if err != nil {
		return nil, ledger.Totals{}, err
	}

	items := make([]models.DocumentItem, len(lines))
	for i, line := range lines {
		items[i] = models.DocumentItem{
			ServiceID:   in.Items[i].ServiceID,
			Position:    i + 1,
			Title:       line.Title,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.Total(),
		}
	}
	return items, totals, nil
}

func (s *Documents) checkClient(tx *gorm.DB, tenantID string, clientID *string) error {
	if clientID == nil {
		return nil
	}
	var n int64
	if err := tx.Model(&models.Client{}).
		Where("tenant_id = ? AND id = ?", tenantID, *clientID).
		Count(&n).Error; err != nil {
		return dbError(err, "client")
	}
	if n == 0 {
		return ierr.NewErrorf("client %s not found", *clientID).
			WithHint("The selected client does not exist").
			Mark(ierr.ErrValidation)
	}
	return nil
}

type documentSnapshot struct {
	Number    string                `json:"number"`
	Kind      ledger.Kind           `json:"kind"`
	Status    ledger.Status         `json:"status"`
	ClientID  *string               `json:"client_id"`
	Title     string                `json:"title"`
	Currency  string                `json:"currency"`
	TaxRate   decimal.Decimal       `json:"tax_rate"`
	Subtotal  decimal.Decimal       `json:"subtotal"`
	TaxAmount decimal.Decimal       `json:"tax_amount"`
	Total     decimal.Decimal       `json:"total"`
	IssueDate *time.Time            `json:"issue_date,omitempty"`
	DueDate   *time.Time            `json:"due_date,omitempty"`
	Items     []models.DocumentItem `json:"items"`
}

// writeSnapshot appends the next version of doc.
func writeSnapshot(tx *gorm.DB, doc *models.Document) error {
	raw, err := json.Marshal(documentSnapshot{
		Number:    doc.Number,
		Kind:      doc.Kind,
		Status:    doc.Status,
		ClientID:  doc.ClientID,
		Title:     doc.Title,
		Currency:  doc.Currency,
		TaxRate:   doc.TaxRate,
		Subtotal:  doc.Subtotal,
		TaxAmount: doc.TaxAmount,
		Total:     doc.Total,
		IssueDate: doc.IssueDate,
		DueDate:   doc.DueDate,
		Items:     doc.Items,
	})
	if err != nil {
		return ierr.Wrap(err, ierr.ErrSystem, "encode document snapshot")
	}

	var last int
	if err := tx.Model(&models.DocumentVersion{}).
		Where("document_id = ?", doc.ID).
		Select("COALESCE(MAX(version_no), 0)").
		Scan(&last).Error; err != nil {
		return dbError(err, "document versions")
	}
	version := models.DocumentVersion{
		DocumentID: doc.ID,
		VersionNo:  last + 1,
		Status:     doc.Status,
		Snapshot:   datatypes.JSON(raw),
	}
	return dbError(tx.Create(&version).Error, "document version")
}

func currencyOrDefault(c string) string {
	if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
		return c
	}
	return DefaultCurrency
}
