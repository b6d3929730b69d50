package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	ierr "agency-billing-backend/errors"
	"agency-billing-backend/ledger"
	"agency-billing-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signedEvent builds a Stripe event payload and its Stripe-Signature header.
func signedEvent(t *testing.T, secret, eventType string, object map[string]any) ([]byte, string) {
	t.Helper()
	now := time.Now().Unix()
	payload, err := json.Marshal(map[string]any{
		"id":          fmt.Sprintf("evt_%d", time.Now().UnixNano()),
		"object":      "event",
		"type":        eventType,
		"created":     now,
		"api_version": "2025-03-31.basil",
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", now, payload)
	return payload, fmt.Sprintf("t=%d,v1=%s", now, hex.EncodeToString(mac.Sum(nil)))
}

func checkoutSession(sessionID, tenantID, documentID string, amountTotal int64) map[string]any {
	return map[string]any{
		"id":             sessionID,
		"object":         "checkout.session",
		"payment_status": "paid",
		"amount_total":   amountTotal,
		"currency":       "eur",
		"metadata": map[string]string{
			MetadataTenantID:   tenantID,
			MetadataDocumentID: documentID,
		},
	}
}

func TestProcessorPayments_CheckoutCompletedMarksPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant := f.tenant(t, ledger.PlanPro)
	id := f.sentInvoice(t, tenant, "100")

	_, err := f.payments.Record(ctx, tenant, id, pay("40"))
	require.NoError(t, err)

	payload, sig := signedEvent(t, testWebhookSecret, "checkout.session.completed",
		checkoutSession("cs_test_1", tenant, id, 6000))
	res, err := f.processor.HandleWebhook(ctx, payload, sig)
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.False(t, res.Duplicate)

	view, err := f.documents.Get(ctx, tenant, ledger.KindInvoice, id)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, view.Status)
	assert.True(t, view.StatusConfirmed)
	assert.True(t, view.IsSettled)
	assert.True(t, view.PaidAmount.Equal(dec("100")))

	payments, err := f.payments.List(ctx, tenant, id)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	card := payments[1]
	assert.Equal(t, ledger.MethodCard, card.Method)
	require.NotNil(t, card.Reference)
	assert.Equal(t, "cs_test_1", *card.Reference)
	assert.True(t, card.Amount.Equal(dec("60")))

	// Replays of the same session are acknowledged without effect.
	payload, sig = signedEvent(t, testWebhookSecret, "checkout.session.completed",
		checkoutSession("cs_test_1", tenant, id, 6000))
	res, err = f.processor.HandleWebhook(ctx, payload, sig)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)

	payments, err = f.payments.List(ctx, tenant, id)
	require.NoError(t, err)
	assert.Len(t, payments, 2)

	// The processor-confirmed status wins over further manual entries.
	_, err = f.payments.Record(ctx, tenant, id, pay("1"))
	assert.True(t, ierr.IsAlreadySettled(err))
}

func TestProcessorPayments_OverpaymentIsCapped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant := f.tenant(t, ledger.PlanPro)
	id := f.sentInvoice(t, tenant, "50")

	dup, err := f.processor.RecordConfirmed(ctx, ConfirmedPayment{
		TenantID: tenant, DocumentID: id, Reference: "cs_over", Amount: dec("80"), Currency: "EUR",
	})
	require.NoError(t, err)
	assert.False(t, dup)

	summary, err := f.payments.Summary(ctx, tenant, id)
	require.NoError(t, err)
	assert.True(t, summary.PaidAmount.Equal(dec("50")))
	assert.True(t, summary.IsSettled)

	versions, err := f.documents.Versions(ctx, tenant, ledger.KindInvoice, id)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, versions[len(versions)-1].Status)
}

func TestProcessorPayments_DraftAtQuotaStillPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant := f.tenant(t, ledger.PlanFree)

	draft, err := f.documents.Create(ctx, tenant, ledger.KindInvoice, DocumentInput{
		Currency: "EUR",
		Items:    []ItemInput{line("Deposit", "1", "30")},
	})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		f.sentInvoice(t, tenant, "10")
	}
	require.True(t, ierr.IsLimitReached(f.limiter.CheckAndReserve(ctx, tenant, ledger.KindInvoice)))

	dup, err := f.processor.RecordConfirmed(ctx, ConfirmedPayment{
		TenantID: tenant, DocumentID: draft.ID, Reference: "cs_draft", Amount: dec("30"), Currency: "EUR",
	})
	require.NoError(t, err)
	assert.False(t, dup)

	view, err := f.documents.Get(ctx, tenant, ledger.KindInvoice, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, view.Status)
	assert.True(t, view.IsSettled)
}

func TestProcessorPayments_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant := f.tenant(t, ledger.PlanPro)
	id := f.sentInvoice(t, tenant, "50")

	t.Run("bad signature", func(t *testing.T) {
		payload, sig := signedEvent(t, "whsec_other", "checkout.session.completed",
			checkoutSession("cs_1", tenant, id, 5000))
		_, err := f.processor.HandleWebhook(ctx, payload, sig)
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("missing metadata", func(t *testing.T) {
		payload, sig := signedEvent(t, testWebhookSecret, "checkout.session.completed",
			checkoutSession("cs_2", "", "", 5000))
		_, err := f.processor.HandleWebhook(ctx, payload, sig)
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("currency mismatch", func(t *testing.T) {
		_, err := f.processor.RecordConfirmed(ctx, ConfirmedPayment{
			TenantID: tenant, DocumentID: id, Reference: "cs_3", Amount: dec("50"), Currency: "USD",
		})
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("void invoice", func(t *testing.T) {
		voided := f.sentInvoice(t, tenant, "10")
		_, err := f.documents.Transition(ctx, tenant, ledger.KindInvoice, voided, ledger.StatusVoid)
		require.NoError(t, err)
		_, err = f.processor.RecordConfirmed(ctx, ConfirmedPayment{
			TenantID: tenant, DocumentID: voided, Reference: "cs_4", Amount: dec("10"),
		})
		assert.True(t, ierr.IsInvalidStateTransition(err))
	})

	t.Run("unknown document", func(t *testing.T) {
		_, err := f.processor.RecordConfirmed(ctx, ConfirmedPayment{
			TenantID: tenant, DocumentID: "missing", Reference: "cs_5", Amount: dec("10"),
		})
		assert.True(t, ierr.IsNotFound(err))
	})

	var n int64
	require.NoError(t, f.db.Model(&models.Payment{}).Where("document_id = ?", id).Count(&n).Error)
	assert.Zero(t, n)
}

func TestProcessorPayments_IgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payload, sig := signedEvent(t, testWebhookSecret, "customer.created", map[string]any{"id": "cus_1", "object": "customer"})
	res, err := f.processor.HandleWebhook(ctx, payload, sig)
	require.NoError(t, err)
	assert.False(t, res.Handled)
	assert.Equal(t, "customer.created", res.EventType)

	unpaid := checkoutSession("cs_unpaid", "t", "d", 100)
	unpaid["payment_status"] = "unpaid"
	payload, sig = signedEvent(t, testWebhookSecret, "checkout.session.completed", unpaid)
	res, err = f.processor.HandleWebhook(ctx, payload, sig)
	require.NoError(t, err)
	assert.False(t, res.Handled)
}
