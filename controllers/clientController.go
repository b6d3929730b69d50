package controllers

import (
	"agency-billing-backend/middlewares"
	"agency-billing-backend/services"
	"agency-billing-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type clientInput struct {
	CompanyName string `json:"company_name" validate:"required,max=255"`
	ContactName string `json:"contact_name" validate:"max=255"`
	Email       string `json:"email" validate:"omitempty,email,max=255"`
	PhoneNumber string `json:"phone_number" validate:"max=64"`
	Address     string `json:"address"`
	City        string `json:"city" validate:"max=128"`
	Country     string `json:"country" validate:"omitempty,len=2"`
	Zip         string `json:"zip" validate:"max=32"`
	VatID       string `json:"vat_id" validate:"max=64"`
}

type clientPatch struct {
	CompanyName *string `json:"company_name" validate:"omitempty,min=1,max=255"`
	ContactName *string `json:"contact_name" validate:"omitempty,max=255"`
	Email       *string `json:"email" validate:"omitempty,email,max=255"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,max=64"`
	Address     *string `json:"address"`
	City        *string `json:"city" validate:"omitempty,max=128"`
	Country     *string `json:"country" validate:"omitempty,len=2"`
	Zip         *string `json:"zip" validate:"omitempty,max=32"`
	VatID       *string `json:"vat_id" validate:"omitempty,max=64"`
	Active      *bool   `json:"active"`
}

func (h *Handlers) CreateClient(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	var in clientInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizeDTO(&in)

	client, err := h.svc.Clients.Create(c.UserContext(), tenant, services.ClientInput(in))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(client)
}

func (h *Handlers) GetClients(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	clients, err := h.svc.Clients.List(c.UserContext(), tenant, c.QueryBool("active"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"clients": clients,
		"message": "success",
	})
}

func (h *Handlers) GetClient(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	client, err := h.svc.Clients.Get(c.UserContext(), tenant, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(client)
}

func (h *Handlers) UpdateClient(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	var in clientPatch
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&in)

	client, err := h.svc.Clients.Update(c.UserContext(), tenant, c.Params("id"), utils.UpdatesFromPtrDTO(&in, nil))
	if err != nil {
		return err
	}
	return c.JSON(client)
}
