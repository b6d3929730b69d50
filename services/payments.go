package services

import (
	"context"
	"strings"

	ierr "agency-billing-backend/errors"
	"agency-billing-backend/ledger"
	"agency-billing-backend/logger"
	"agency-billing-backend/models"
	"agency-billing-backend/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentLedger records manual payments against invoices.
//
// Every check runs under a row lock on the invoice, so two concurrent payments
// for the same invoice see each other and can never jointly overpay it.
type PaymentLedger struct {
	Params
	policy ledger.SettlementPolicy
}

func NewPaymentLedger(p Params) *PaymentLedger {
	return &PaymentLedger{Params: p}
}

// RecordPaymentInput is a manual payment as entered by a user.
type RecordPaymentInput struct {
	Amount      decimal.Decimal
	PaymentDate string
	Method      string
	Note        string
}

// RecordedPayment is the stored payment and the settlement it results in.
type RecordedPayment struct {
	Payment    models.Payment    `json:"payment"`
	Settlement ledger.Settlement `json:"settlement"`
}

// List returns the payments of a document by payment date.
func (l *PaymentLedger) List(ctx context.Context, tenantID, documentID string) ([]models.Payment, error) {
	db := l.conn(ctx)
	if err := l.ensureDocument(db, tenantID, documentID); err != nil {
		return nil, err
	}
	return loadPayments(db, documentID)
}

// Record admits a payment against the invoice's balance due. It never
// changes the invoice status; settlement is derived from the payments.
func (l *PaymentLedger) Record(ctx context.Context, tenantID, documentID string, in RecordPaymentInput) (*RecordedPayment, error) {
	var out RecordedPayment
	err := l.conn(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := lockDocument(tx, tenantID, documentID, false)
		if err != nil {
			return err
		}

		if !in.Amount.IsPositive() {
			return ierr.NewErrorf("payment amount %s is not positive", in.Amount).
				WithHint("Amount must be greater than zero").
				Mark(ierr.ErrValidation)
		}
		paidOn, ok := utils.ParseDate(in.PaymentDate)
		if !ok {
			return ierr.NewErrorf("payment date %q", in.PaymentDate).
				WithHint("Payment date is required (YYYY-MM-DD)").
				Mark(ierr.ErrValidation)
		}
		if err := ledger.CanTakePayments(doc.Kind, doc.Status); err != nil {
			return err
		}

		payments, err := loadPayments(tx, doc.ID)
		if err != nil {
			return err
		}
		current := l.policy.Evaluate(doc.Status, doc.Total, amountsOf(payments))
		if current.StatusConfirmed {
			return ierr.NewError("invoice marked paid").
				WithHint("This invoice is already fully paid").
				Mark(ierr.ErrAlreadySettled)
		}
		amount, err := l.policy.Admit(doc.Total, current.PaidAmount, in.Amount)
		if err != nil {
			return err
		}

		out.Payment = models.Payment{
			TenantID:    tenantID,
			DocumentID:  doc.ID,
			Amount:      amount,
			PaymentDate: paidOn,
			Method:      ledger.NormalizeMethod(in.Method),
			Note:        strings.TrimSpace(in.Note),
		}
		if err := tx.Create(&out.Payment).Error; err != nil {
			return dbError(err, "payment")
		}
		out.Settlement = l.policy.Evaluate(doc.Status, doc.Total, append(amountsOf(payments), amount))
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("payment recorded",
		zap.String("document_id", documentID),
		zap.String("payment_id", out.Payment.ID),
		zap.String("amount", out.Payment.Amount.StringFixed(2)),
		zap.Bool("settled", out.Settlement.IsSettled))
	return &out, nil
}

// Delete removes a manual payment. Payments of an invoice the processor
// confirmed as paid are frozen.
func (l *PaymentLedger) Delete(ctx context.Context, tenantID, documentID, paymentID string) error {
	return l.conn(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := lockDocument(tx, tenantID, documentID, false)
		if err != nil {
			return err
		}
		if doc.Status == ledger.StatusPaid {
			return ierr.NewError("delete payment of paid invoice").
				WithHint("Payments of a paid invoice cannot be deleted").
				Mark(ierr.ErrInvalidStateTransition)
		}
		res := tx.Where("document_id = ? AND id = ?", doc.ID, paymentID).Delete(&models.Payment{})
		if res.Error != nil {
			return dbError(res.Error, "payment")
		}
		if res.RowsAffected == 0 {
			return dbError(gorm.ErrRecordNotFound, "payment")
		}
		return nil
	})
}

// Summary returns the current settlement of a document.
func (l *PaymentLedger) Summary(ctx context.Context, tenantID, documentID string) (*ledger.Settlement, error) {
	db := l.conn(ctx)
	var doc models.Document
	if err := db.Where("tenant_id = ? AND id = ?", tenantID, documentID).Take(&doc).Error; err != nil {
		return nil, dbError(err, "document")
	}
	payments, err := loadPayments(db, doc.ID)
	if err != nil {
		return nil, err
	}
	st := l.policy.Evaluate(doc.Status, doc.Total, amountsOf(payments))
	return &st, nil
}

func (l *PaymentLedger) ensureDocument(db *gorm.DB, tenantID, documentID string) error {
	var n int64
	if err := db.Model(&models.Document{}).
		Where("tenant_id = ? AND id = ?", tenantID, documentID).
		Count(&n).Error; err != nil {
		return dbError(err, "document")
	}
	if n == 0 {
		return dbError(gorm.ErrRecordNotFound, "document")
	}
	return nil
}
