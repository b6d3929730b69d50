package controllers

import (
	"agency-billing-backend/middlewares"
	"agency-billing-backend/services"
	"agency-billing-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type serviceInput struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Unit        string          `json:"unit" validate:"max=32"`
}

type servicePatch struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string          `json:"description"`
	UnitPrice   *decimal.Decimal `json:"unit_price" validate:"omitempty,gte=0"`
	Unit        *string          `json:"unit" validate:"omitempty,max=32"`
	Active      *bool            `json:"active"`
}

// CreateServices creates a batch of price-list entries.
func (h *Handlers) CreateServices(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	var inputs []serviceInput
	if err := c.BodyParser(&inputs); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	for i := range inputs {
		if err := middlewares.ValidateStruct(&inputs[i]); err != nil {
			return err
		}
		utils.NormalizeDTO(&inputs[i])
	}

	created, err := h.svc.Catalog.CreateBatch(c.UserContext(), tenant, lo.Map(inputs, func(in serviceInput, _ int) services.CatalogInput {
		return services.CatalogInput(in)
	}))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"services": created,
		"message":  "success",
	})
}

func (h *Handlers) GetServices(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	items, err := h.svc.Catalog.List(c.UserContext(), tenant, c.QueryBool("active"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"services": items,
		"message":  "success",
	})
}

func (h *Handlers) UpdateService(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	var in servicePatch
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&in)

	item, err := h.svc.Catalog.Update(c.UserContext(), tenant, c.Params("id"), utils.UpdatesFromPtrDTO(&in, nil))
	if err != nil {
		return err
	}
	return c.JSON(item)
}
