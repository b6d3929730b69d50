package controllers

import (
	"github.com/gofiber/fiber/v2"
)

// StripeWebhook receives payment processor events. It is public; the
// signature header authenticates the delivery.
func (h *Handlers) StripeWebhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)
	res, err := h.svc.Processor.HandleWebhook(c.UserContext(), payload, c.Get("Stripe-Signature"))
	if err != nil {
		return err
	}
	return c.JSON(res)
}
