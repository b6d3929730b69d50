package controllers

import (
	"time"

	"agency-billing-backend/ledger"

	"github.com/gofiber/fiber/v2"
)

// GetTaxReport sums the tax of issued invoices in [from, to). Both default
// to the current UTC month.
func (h *Handlers) GetTaxReport(c *fiber.Ctx) error {
	tenant, err := tenantOf(c)
	if err != nil {
		return err
	}
	from, err := optionalDate("from", c.Query("from"))
	if err != nil {
		return err
	}
	to, err := optionalDate("to", c.Query("to"))
	if err != nil {
		return err
	}
	if from == nil {
		start := ledger.MonthStart(time.Now())
		from = &start
	}
	if to == nil {
		end := ledger.MonthStart(*from).AddDate(0, 1, 0)
		to = &end
	}

	report, err := h.svc.Reports.TaxSummary(c.UserContext(), tenant, *from, *to)
	if err != nil {
		return err
	}
	return c.JSON(report)
}
