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
	"agency-billing-backend/utils"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Checkout session metadata keys set when the checkout link is created.
const (
	MetadataTenantID   = "tenant_id"
	MetadataDocumentID = "document_id"
)

// ProcessorPayments is the privileged entry point for payments confirmed by
// the payment processor. Unlike the manual ledger it records the payment and
// marks the invoice paid in the same transaction.
type ProcessorPayments struct {
	Params
	documents     *Documents
	webhookSecret string
	policy        ledger.SettlementPolicy
}

func NewProcessorPayments(p Params, documents *Documents, webhookSecret string) *ProcessorPayments {
	return &ProcessorPayments{Params: p, documents: documents, webhookSecret: webhookSecret}
}

// ConfirmedPayment describes a processor-confirmed payment.
type ConfirmedPayment struct {
	TenantID   string
	DocumentID string
	Reference  string
	Amount     decimal.Decimal
	Currency   string
	PaidAt     time.Time
}

// WebhookResult tells the caller what a webhook delivery did.
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Handled   bool   `json:"handled"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// HandleWebhook verifies a Stripe delivery and applies completed checkout
// sessions. Other event types are acknowledged without effect.
func (p *ProcessorPayments) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	log := logger.FromContext(ctx)
	if p.webhookSecret == "" {
		return nil, ierr.NewError("stripe webhook secret not configured").
			WithHint("Online payments are not configured").
			Mark(ierr.ErrSystem)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		log.Warn("stripe webhook verification failed", zap.Error(err))
		return nil, ierr.NewError("failed to verify webhook signature").
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrValidation)
	}

	res := &WebhookResult{EventID: event.ID, EventType: string(event.Type)}
	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		log.Debug("ignoring stripe event", zap.String("event_type", res.EventType))
		return res, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, ierr.NewError("failed to parse checkout session data").
			WithHint("Invalid checkout session data in webhook").
			Mark(ierr.ErrValidation)
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		log.Info("checkout session completed without payment",
			zap.String("session_id", session.ID),
			zap.String("payment_status", string(session.PaymentStatus)))
		return res, nil
	}

	confirmed := ConfirmedPayment{
		TenantID:   session.Metadata[MetadataTenantID],
		DocumentID: session.Metadata[MetadataDocumentID],
		Reference:  session.ID,
		Amount:     utils.FromMinorUnits(session.AmountTotal, string(session.Currency)),
		Currency:   strings.ToUpper(string(session.Currency)),
		PaidAt:     time.Unix(event.Created, 0).UTC(),
	}
	if confirmed.DocumentID == "" {
		confirmed.DocumentID = session.ClientReferenceID
	}
	if confirmed.TenantID == "" || confirmed.DocumentID == "" {
		return nil, ierr.NewErrorf("checkout session %s without billing metadata", session.ID).
			WithHint("Checkout session is missing tenant_id or document_id metadata").
			Mark(ierr.ErrValidation)
	}

	ctx = logger.WithContext(ctx, log.With(
		zap.String("tenant_id", confirmed.TenantID),
		zap.String("stripe_event_id", event.ID)))
	duplicate, err := p.RecordConfirmed(ctx, confirmed)
	if err != nil {
		return nil, err
	}
	res.Handled = true
	res.Duplicate = duplicate
	return res, nil
}

// RecordConfirmed records a processor payment and sets the invoice to paid.
// A replay with the same reference changes nothing and reports duplicate.
// The recorded amount is capped at the balance due; the processor is the
// authority on settlement, so the invoice becomes paid either way. A draft
// skips the plan quota check: the money has already been captured.
func (p *ProcessorPayments) RecordConfirmed(ctx context.Context, in ConfirmedPayment) (duplicate bool, err error) {
	log := logger.FromContext(ctx)
	if in.Reference == "" {
		return false, ierr.NewError("processor payment without reference").
			WithHint("Payment reference is required").
			Mark(ierr.ErrValidation)
	}
	if in.PaidAt.IsZero() {
		in.PaidAt = p.now()
	}

	err = p.conn(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := lockDocument(tx, in.TenantID, in.DocumentID, true)
		if err != nil {
			return err
		}

		var seen int64
		if err := tx.Model(&models.Payment{}).
			Where("document_id = ? AND reference = ?", doc.ID, in.Reference).
			Count(&seen).Error; err != nil {
			return dbError(err, "payment")
		}
		if seen > 0 {
			duplicate = true
			return nil
		}

		next, err := p.policy.Confirm(doc.Kind, doc.Status)
		if err != nil {
			return err
		}
		if in.Currency != "" && !strings.EqualFold(in.Currency, doc.Currency) {
			return ierr.NewErrorf("payment currency %s for %s invoice", in.Currency, doc.Currency).
				WithHint("Payment currency does not match the invoice currency").
				Mark(ierr.ErrValidation)
		}

		payments, err := loadPayments(tx, doc.ID)
		if err != nil {
			return err
		}
		balance := ledger.BalanceDue(doc.Total, ledger.PaidAmount(amountsOf(payments)))
		amount := decimal.Min(utils.Round2(in.Amount), balance)
		if in.Amount.GreaterThan(balance) {
			log.Warn("processor payment exceeds balance due",
				zap.String("document_id", doc.ID),
				zap.String("amount", in.Amount.StringFixed(2)),
				zap.String("balance_due", balance.StringFixed(2)))
		}
		if amount.IsPositive() {
			ref := in.Reference
			payment := models.Payment{
				TenantID:    in.TenantID,
				DocumentID:  doc.ID,
				Amount:      amount,
				PaymentDate: in.PaidAt,
				Method:      ledger.MethodCard,
				Reference:   &ref,
				Note:        "Online payment",
			}
			if err := tx.Create(&payment).Error; err != nil {
				return dbError(err, "payment")
			}
		}

		if doc.Status == next {
			return nil
		}
		if doc.Status == ledger.StatusDraft {
			log.Info("processor payment moves draft invoice to paid without plan check",
				zap.String("document_id", doc.ID))
		}
		return p.documents.setStatus(tx, doc, next)
	})
	if err != nil {
		return false, err
	}

	log.Info("processor payment applied",
		zap.String("document_id", in.DocumentID),
		zap.String("reference", in.Reference),
		zap.Bool("duplicate", duplicate))
	return duplicate, nil
}
