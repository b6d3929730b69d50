package controllers

import (
	"agency-billing-backend/ledger"
	"agency-billing-backend/middlewares"

	"github.com/gofiber/fiber/v2"
)

type tenantInput struct {
	Name string `json:"name" validate:"required,max=255"`
}

type planInput struct {
	Plan string `json:"plan" validate:"required"`
}

func (h *Handlers) GetTenant(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	t, err := h.svc.Tenants.Get(c.UserContext(), tenant)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"tenant": t,
		"plan":   ledger.LookupPlan(t.PlanKey),
	})
}

func (h *Handlers) UpdateTenant(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	var in tenantInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	t, err := h.svc.Tenants.Rename(c.UserContext(), tenant, in.Name)
	if err != nil {
		return err
	}
	return c.JSON(t)
}

func (h *Handlers) ChangePlan(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	var in planInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	t, err := h.svc.Tenants.ChangePlan(c.UserContext(), tenant, in.Plan)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"tenant": t,
		"plan":   ledger.LookupPlan(t.PlanKey),
	})
}

// GetUsage reports this month's quota use for a document kind.
func (h *Handlers) GetUsage(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	kind, err := kindOf(c)
	if err != nil {
		return err
	}
	usage, err := h.svc.Limiter.Usage(c.UserContext(), tenant, kind)
	if err != nil {
		return err
	}
	return c.JSON(usage)
}
