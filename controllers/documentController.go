package controllers

import (
	"agency-billing-backend/ledger"
	"agency-billing-backend/middlewares"
	"agency-billing-backend/services"
	"agency-billing-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type documentItemInput struct {
	ServiceID   *string          `json:"service_id" validate:"omitempty,max=36"`
	Title       string           `json:"title" validate:"max=255"`
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

type documentInput struct {
	ClientID  *string             `json:"client_id" validate:"omitempty,max=36"`
	Title     string              `json:"title" validate:"max=255"`
	Notes     string              `json:"notes"`
	Currency  string              `json:"currency" validate:"omitempty,iso4217"`
	TaxRate   decimal.Decimal     `json:"tax_rate"`
	IssueDate string              `json:"issue_date"`
	DueDate   string              `json:"due_date"`
	Items     []documentItemInput `json:"items" validate:"dive"`
}

type statusInput struct {
	Status string `json:"status" validate:"required"`
}

// toService converts the request body; decimal precision is left to the ledger.
func (in documentInput) toService() (services.DocumentInput, error) {
	issue, err := optionalDate("issue_date", in.IssueDate)
	if err != nil {
		return services.DocumentInput{}, err
	}
	due, err := optionalDate("due_date", in.DueDate)
	if err != nil {
		return services.DocumentInput{}, err
	}
	return services.DocumentInput{
		ClientID:  in.ClientID,
		Title:     in.Title,
		Notes:     in.Notes,
		Currency:  in.Currency,
		TaxRate:   in.TaxRate,
		IssueDate: issue,
		DueDate:   due,
		Items: lo.Map(in.Items, func(it documentItemInput, _ int) services.ItemInput {
			return services.ItemInput(it)
		}),
	}, nil
}

func (h *Handlers) bindDocument(c *fiber.Ctx) (string, ledger.Kind, services.DocumentInput, error) {
	tenant, err := tenantOf(c)
	if err != nil {
		return "", "", services.DocumentInput{}, err
	}
	kind, err := kindOf(c)
	if err != nil {
		return "", "", services.DocumentInput{}, err
	}
	var in documentInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return "", "", services.DocumentInput{}, err
	}
	out, err := in.toService()
	return tenant, kind, out, err
}

func (h *Handlers) CreateDocument(c *fiber.Ctx) error {
	tenant, kind, in, err := h.bindDocument(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.Documents.Create(c.UserContext(), tenant, kind, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

func (h *Handlers) UpdateDocument(c *fiber.Ctx) error {
	tenant, kind, in, err := h.bindDocument(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.Documents.Update(c.UserContext(), tenant, kind, c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

func (h *Handlers) GetDocuments(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	kind, err := kindOf(c)
	if err != nil {
		return err
	}
	docs, err := h.svc.Documents.List(c.UserContext(), tenant, kind, services.ListFilter{
		Status:   ledger.Status(c.Query("status")),
		ClientID: c.Query("client_id"),
		Limit:    utils.ParseIntDefault(c.Query("limit"), 0),
		Offset:   utils.ParseIntDefault(c.Query("offset"), 0),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"documents": docs,
		"message":   "success",
	})
}

func (h *Handlers) GetDocument(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	kind, err := kindOf(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.Documents.Get(c.UserContext(), tenant, kind, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

func (h *Handlers) DeleteDocument(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	kind, err := kindOf(c)
	if err != nil {
		return err
	}
	if err := h.svc.Documents.Delete(c.UserContext(), tenant, kind, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ChangeDocumentStatus moves a document along its lifecycle.
func (h *Handlers) ChangeDocumentStatus(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	kind, err := kindOf(c)
	if err != nil {
		return err
	}
	var in statusInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	doc, err := h.svc.Documents.Transition(c.UserContext(), tenant, kind, c.Params("id"), ledger.Status(in.Status))
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

func (h *Handlers) GetDocumentVersions(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	kind, err := kindOf(c)
	if err != nil {
		return err
	}
	versions, err := h.svc.Documents.Versions(c.UserContext(), tenant, kind, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"versions": versions,
		"message":  "success",
	})
}
