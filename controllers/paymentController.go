package controllers

import (
	"agency-billing-backend/middlewares"
	"agency-billing-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type paymentInput struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate string          `json:"payment_date"`
	Method      string          `json:"method" validate:"max=32"`
	Note        string          `json:"note"`
}

// CreatePayment records a manual payment against an invoice.
func (h *Handlers) CreatePayment(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	var in paymentInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	rec, err := h.svc.Payments.Record(c.UserContext(), tenant, c.Params("id"), services.RecordPaymentInput(in))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

func (h *Handlers) ListPayments(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	payments, err := h.svc.Payments.List(ctx, tenant, c.Params("id"))
	if err != nil {
		return err
	}
	summary, err := h.svc.Payments.Summary(ctx, tenant, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"payments":   payments,
		"settlement": summary,
		"message":    "success",
	})
}

func (h *Handlers) DeletePayment(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	if err := h.svc.Payments.Delete(c.UserContext(), tenant, c.Params("id"), c.Params("paymentId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
