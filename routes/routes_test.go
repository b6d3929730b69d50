package routes

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agency-billing-backend/database/dbtest"
	ierr "agency-billing-backend/errors"
	"agency-billing-backend/middlewares"
	"agency-billing-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	jwtSecret     = "routes-test-secret"
	webhookSecret = "whsec_routes_test"
)

type api struct {
	t     *testing.T
	app   *fiber.App
	token string
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db := dbtest.OpenTestDB(t)
	app := fiber.New(fiber.Config{ErrorHandler: middlewares.ErrorHandler})
	Register(app, Options{
		DB:        db,
		Services:  services.New(services.Params{DB: db}, webhookSecret),
		JWTSecret: jwtSecret,
	})
	return &api{t: t, app: app}
}

// as returns a client acting for a fresh tenant.
func (a *api) as(tenantID string) *api {
	a.t.Helper()
	token, err := middlewares.GenerateJWT(jwtSecret, "user-"+tenantID, tenantID, time.Hour)
	require.NoError(a.t, err)
	return &api{t: a.t, app: a.app, token: token}
}

type response struct {
	status int
	header http.Header
	body   map[string]any
}

func (a *api) do(method, path string, body any, headers ...string) response {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)

	out := response{status: resp.StatusCode, header: resp.Header}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	if len(raw) > 0 {
		require.NoError(a.t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

func money(t *testing.T, v any) decimal.Decimal {
	t.Helper()
	s, ok := v.(string)
	require.True(t, ok, "expected decimal string, got %T", v)
	return decimal.RequireFromString(s)
}

func invoiceBody(price string) map[string]any {
	return map[string]any{
		"title":    "Website relaunch",
		"tax_rate": "0.20",
		"items": []map[string]any{
			{"title": "Design", "quantity": "2", "unit_price": price},
		},
	}
}

func (a *api) sentInvoice(price string) string {
	a.t.Helper()
	created := a.do(http.MethodPost, "/api/invoices", invoiceBody(price))
	require.Equal(a.t, http.StatusCreated, created.status, created.body)
	id := created.body["id"].(string)
	sent := a.do(http.MethodPost, "/api/invoices/"+id+"/status", map[string]any{"status": "sent"})
	require.Equal(a.t, http.StatusOK, sent.status, sent.body)
	return id
}

func TestHealthIsPublic(t *testing.T) {
	res := newAPI(t).do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "ok", res.body["status"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	res := newAPI(t).do(http.MethodGet, "/api/invoices", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
}

func TestInvoiceLifecycle(t *testing.T) {
	a := newAPI(t).as("agency-" + uuid.NewString()[:8])

	client := a.do(http.MethodPost, "/api/clients", map[string]any{"company_name": "Acme GmbH", "country": "de"})
	require.Equal(t, http.StatusCreated, client.status, client.body)
	assert.Equal(t, "DE", client.body["country"])

	body := invoiceBody("50")
	body["client_id"] = client.body["id"]
	created := a.do(http.MethodPost, "/api/invoices", body)
	require.Equal(t, http.StatusCreated, created.status, created.body)
	id := created.body["id"].(string)

	assert.Equal(t, "draft", created.body["status"])
	assert.Regexp(t, `^INV-\d{4}-0001$`, created.body["number"])
	assert.True(t, money(t, created.body["subtotal"]).Equal(decimal.NewFromInt(100)))
	assert.True(t, money(t, created.body["tax_amount"]).Equal(decimal.NewFromInt(20)))
	assert.True(t, money(t, created.body["total"]).Equal(decimal.NewFromInt(120)))

	// Proposals take no payments.
	proposal := a.do(http.MethodPost, "/api/proposals", invoiceBody("10"))
	require.Equal(t, http.StatusCreated, proposal.status, proposal.body)
	assert.Regexp(t, `^PRO-\d{4}-0002$`, proposal.body["number"])
	early := a.do(http.MethodPost, "/api/invoices/"+proposal.body["id"].(string)+"/payments", map[string]any{"amount": "10", "payment_date": "2026-01-15"})
	assert.Equal(t, http.StatusConflict, early.status)

	sent := a.do(http.MethodPost, "/api/invoices/"+id+"/status", map[string]any{"status": "sent"})
	require.Equal(t, http.StatusOK, sent.status, sent.body)
	assert.Equal(t, "sent", sent.body["status"])

	edit := a.do(http.MethodPut, "/api/invoices/"+id, invoiceBody("10"))
	assert.Equal(t, http.StatusConflict, edit.status)
	assert.Equal(t, ierr.ErrCodeInvalidStateTransition, edit.body["code"])

	over := a.do(http.MethodPost, "/api/invoices/"+id+"/payments", map[string]any{"amount": "150", "payment_date": "2026-01-15"})
	assert.Equal(t, http.StatusUnprocessableEntity, over.status)
	assert.Equal(t, ierr.ErrCodeExceedsBalance, over.body["code"])

	full := a.do(http.MethodPost, "/api/invoices/"+id+"/payments", map[string]any{"amount": "120", "payment_date": "2026-01-15", "method": "transfer"})
	require.Equal(t, http.StatusCreated, full.status, full.body)
	settlement := full.body["settlement"].(map[string]any)
	assert.Equal(t, true, settlement["is_settled"])

	again := a.do(http.MethodPost, "/api/invoices/"+id+"/payments", map[string]any{"amount": "1", "payment_date": "2026-01-16"})
	assert.Equal(t, http.StatusConflict, again.status)
	assert.Equal(t, ierr.ErrCodeAlreadySettled, again.body["code"])

	got := a.do(http.MethodGet, "/api/invoices/"+id, nil)
	require.Equal(t, http.StatusOK, got.status)
	assert.Equal(t, true, got.body["is_settled"])
	assert.True(t, money(t, got.body["balance_due"]).IsZero())
	// Settlement is derived; the stored status is unchanged.
	assert.Equal(t, "sent", got.body["status"])

	versions := a.do(http.MethodGet, "/api/invoices/"+id+"/versions", nil)
	require.Equal(t, http.StatusOK, versions.status)
	assert.Len(t, versions.body["versions"], 2)

	// The invoice is not reachable as a proposal.
	wrongKind := a.do(http.MethodGet, "/api/proposals/"+id, nil)
	assert.Equal(t, http.StatusNotFound, wrongKind.status)
}

func TestInvalidDocumentRollsBack(t *testing.T) {
	a := newAPI(t).as("agency-" + uuid.NewString()[:8])

	res := a.do(http.MethodPost, "/api/invoices", map[string]any{"tax_rate": "0.2", "items": []any{}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.status)
	assert.Equal(t, ierr.ErrCodeValidation, res.body["code"])
	assert.Equal(t, "Add at least one item", res.body["message"])

	badCurrency := invoiceBody("10")
	badCurrency["currency"] = "EURO"
	res = a.do(http.MethodPost, "/api/invoices", badCurrency)
	assert.Equal(t, http.StatusUnprocessableEntity, res.status)

	// No number was consumed by the failed attempts.
	ok := a.do(http.MethodPost, "/api/invoices", invoiceBody("10"))
	require.Equal(t, http.StatusCreated, ok.status, ok.body)
	assert.Regexp(t, `-0001$`, ok.body["number"])
}

func TestPlanLimitOnFreePlan(t *testing.T) {
	a := newAPI(t).as("agency-" + uuid.NewString()[:8])

	for i := 0; i < 5; i++ {
		a.sentInvoice("10")
	}

	res := a.do(http.MethodPost, "/api/invoices", invoiceBody("10"))
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, ierr.ErrCodeLimitReached, res.body["code"])
	assert.Equal(t, map[string]any{"limit": float64(5)}, res.body["details"])

	// Proposals are counted separately.
	proposal := a.do(http.MethodPost, "/api/proposals", invoiceBody("10"))
	assert.Equal(t, http.StatusCreated, proposal.status)

	upgrade := a.do(http.MethodPut, "/api/tenant/plan", map[string]any{"plan": "pro"})
	require.Equal(t, http.StatusOK, upgrade.status, upgrade.body)

	res = a.do(http.MethodPost, "/api/invoices", invoiceBody("10"))
	assert.Equal(t, http.StatusCreated, res.status)
}

func TestTenantIsolation(t *testing.T) {
	base := newAPI(t)
	owner := base.as("agency-" + uuid.NewString()[:8])
	other := base.as("agency-" + uuid.NewString()[:8])

	id := owner.sentInvoice("10")

	assert.Equal(t, http.StatusNotFound, other.do(http.MethodGet, "/api/invoices/"+id, nil).status)
	pay := other.do(http.MethodPost, "/api/invoices/"+id+"/payments", map[string]any{"amount": "1", "payment_date": "2026-01-15"})
	assert.Equal(t, http.StatusNotFound, pay.status)

	list := other.do(http.MethodGet, "/api/invoices", nil)
	require.Equal(t, http.StatusOK, list.status)
	assert.Empty(t, list.body["documents"])
}

func TestIdempotentClientCreate(t *testing.T) {
	a := newAPI(t).as("agency-" + uuid.NewString()[:8])
	body := map[string]any{"company_name": "Initech"}

	first := a.do(http.MethodPost, "/api/clients", body, "Idempotency-Key", "create-initech")
	require.Equal(t, http.StatusCreated, first.status, first.body)

	replay := a.do(http.MethodPost, "/api/clients", body, "Idempotency-Key", "create-initech")
	assert.Equal(t, http.StatusCreated, replay.status)
	assert.Equal(t, "true", replay.header.Get("Idempotent-Replayed"))
	assert.Equal(t, first.body["id"], replay.body["id"])

	// Without the key the duplicate name is rejected.
	dup := a.do(http.MethodPost, "/api/clients", body)
	assert.Equal(t, http.StatusConflict, dup.status)
	assert.Equal(t, ierr.ErrCodeAlreadyExists, dup.body["code"])
}

func TestStripeWebhookMarksInvoicePaid(t *testing.T) {
	base := newAPI(t)
	tenant := "agency-" + uuid.NewString()[:8]
	a := base.as(tenant)
	id := a.sentInvoice("50")

	now := time.Now().Unix()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_routes_1",
		"object":      "event",
		"type":        "checkout.session.completed",
		"created":     now,
		"api_version": "2025-03-31.basil",
		"data": map[string]any{"object": map[string]any{
			"id":             "cs_routes_1",
			"object":         "checkout.session",
			"payment_status": "paid",
			"amount_total":   12000,
			"currency":       "eur",
			"metadata":       map[string]string{"tenant_id": tenant, "document_id": id},
		}},
	})
	require.NoError(t, err)
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	fmt.Fprintf(mac, "%d.%s", now, payload)
	signature := fmt.Sprintf("t=%d,v1=%s", now, hex.EncodeToString(mac.Sum(nil)))

	send := func(sig string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Stripe-Signature", sig)
		resp, err := base.app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	assert.Equal(t, http.StatusUnprocessableEntity, send("t=1,v1=deadbeef").StatusCode)
	assert.Equal(t, http.StatusOK, send(signature).StatusCode)

	got := a.do(http.MethodGet, "/api/invoices/"+id, nil)
	require.Equal(t, http.StatusOK, got.status)
	assert.Equal(t, "paid", got.body["status"])
	assert.Equal(t, true, got.body["status_confirmed"])

	// Payments of a paid invoice are frozen.
	payments := a.do(http.MethodGet, "/api/invoices/"+id+"/payments", nil)
	require.Equal(t, http.StatusOK, payments.status)
	list := payments.body["payments"].([]any)
	require.Len(t, list, 1)
	paymentID := list[0].(map[string]any)["id"].(string)
	del := a.do(http.MethodDelete, "/api/invoices/"+id+"/payments/"+paymentID, nil)
	assert.Equal(t, http.StatusConflict, del.status)
}
