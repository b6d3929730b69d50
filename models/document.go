package models

import (
	"time"

	"agency-billing-backend/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Document is the live state of a proposal or invoice.
type Document struct {
	ID       string      `json:"id" gorm:"primaryKey;size:36"`
	TenantID string      `json:"-" gorm:"size:64;not null;index:idx_documents_tenant_kind_created,priority:1;uniqueIndex:idx_documents_tenant_number,priority:1"`
	Kind     ledger.Kind `json:"kind" gorm:"size:16;not null;index:idx_documents_tenant_kind_created,priority:2"`
	Number   string      `json:"number" gorm:"size:64;not null;uniqueIndex:idx_documents_tenant_number,priority:2"`
	ClientID *string     `json:"client_id" gorm:"size:36;index"`
	Client   *Client     `json:"client,omitempty" gorm:"foreignKey:ClientID;references:ID;constraint:OnUpdate:RESTRICT,OnDelete:SET NULL"`

	Status ledger.Status `json:"status" gorm:"size:16;not null;index"`
	Title  string        `json:"title" gorm:"size:255"`
	Notes  string        `json:"notes"`

	Currency  string          `json:"currency" gorm:"size:3;not null"`
	TaxRate   decimal.Decimal `json:"tax_rate" gorm:"type:numeric(5,4);not null;default:0"`
	Subtotal  decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2);not null;default:0"`
	TaxAmount decimal.Decimal `json:"tax_amount" gorm:"type:numeric(12,2);not null;default:0"`
	Total     decimal.Decimal `json:"total" gorm:"type:numeric(12,2);not null;default:0"`

	IssueDate *time.Time `json:"issue_date"`
	DueDate   *time.Time `json:"due_date"`
	SentAt    *time.Time `json:"sent_at"`

	Items    []DocumentItem    `json:"items" gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
	Payments []Payment         `json:"-" gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
	Versions []DocumentVersion `json:"-" gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_documents_tenant_kind_created,priority:3"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (doc *Document) BeforeCreate(tx *gorm.DB) (err error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	return
}

// LineItems converts the stored items into ledger line items.
func (doc *Document) LineItems() []ledger.LineItem {
	out := make([]ledger.LineItem, len(doc.Items))
	for i, it := range doc.Items {
		out[i] = it.LineItem()
	}
	return out
}

// Totals returns the stored money summary.
func (doc *Document) Totals() ledger.Totals {
	return ledger.Totals{Subtotal: doc.Subtotal, TaxAmount: doc.TaxAmount, Total: doc.Total}
}

// DocumentItem is one row of a document. Rows are replaced as a whole on edit.
type DocumentItem struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	DocumentID  string          `json:"-" gorm:"size:36;not null;index"`
	ServiceID   *string         `json:"service_id" gorm:"size:36;index"`
	Position    int             `json:"position" gorm:"not null"`
	Title       string          `json:"title" gorm:"size:255;not null"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:numeric(12,3);not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(14,4);not null"`
	LineTotal   decimal.Decimal `json:"line_total" gorm:"type:numeric(12,2);not null"`
}

func (it DocumentItem) LineItem() ledger.LineItem {
	return ledger.LineItem{
		Title:       it.Title,
		Description: it.Description,
		Quantity:    it.Quantity,
		UnitPrice:   it.UnitPrice,
	}
}

// DocumentVersion is an immutable snapshot taken on every edit and status change.
type DocumentVersion struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	DocumentID string         `json:"document_id" gorm:"size:36;not null;uniqueIndex:idx_document_versions_doc_version,priority:1"`
	VersionNo  int            `json:"version_no" gorm:"not null;uniqueIndex:idx_document_versions_doc_version,priority:2"`
	Status     ledger.Status  `json:"status" gorm:"size:16;not null"`
	Snapshot   datatypes.JSON `json:"snapshot"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Payment is money received against an invoice. Reference holds the payment
// processor's identifier for processor-recorded payments.
type Payment struct {
	ID          string               `json:"id" gorm:"primaryKey;size:36"`
	TenantID    string               `json:"-" gorm:"size:64;not null;index"`
	DocumentID  string               `json:"document_id" gorm:"size:36;not null;index:idx_payments_document_date,priority:1;uniqueIndex:idx_payments_document_reference,priority:1"`
	Amount      decimal.Decimal      `json:"amount" gorm:"type:numeric(12,2);not null"`
	PaymentDate time.Time            `json:"payment_date" gorm:"not null;index:idx_payments_document_date,priority:2"`
	Method      ledger.PaymentMethod `json:"method" gorm:"size:32;not null"`
	Reference   *string              `json:"reference" gorm:"size:255;uniqueIndex:idx_payments_document_reference,priority:2"`
	Note        string               `json:"note"`
	CreatedAt   time.Time            `json:"created_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return
}

// SequenceCounter is the per-tenant document number counter. It only moves
// forward, through a single atomic UPDATE ... RETURNING.
type SequenceCounter struct {
	TenantID     string `gorm:"primaryKey;size:64"`
	CurrentValue int64  `gorm:"not null;default:0"`
}
