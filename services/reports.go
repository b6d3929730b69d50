package services

import (
	"context"
	"slices"
	"time"

	ierr "agency-billing-backend/errors"
	"agency-billing-backend/ledger"
	"agency-billing-backend/models"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Reports aggregates stored documents.
type Reports struct {
	Params
}

func NewReports(p Params) *Reports {
	return &Reports{Params: p}
}

// TaxRow sums the invoices of one currency.
type TaxRow struct {
	Currency  string          `json:"currency"`
	Invoices  int             `json:"invoices"`
	Gross     decimal.Decimal `json:"gross"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Net       decimal.Decimal `json:"net"`
}

// TaxReport is the tax contained in issued invoices over a period.
type TaxReport struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
	Rows []TaxRow  `json:"rows"`
}

var reportedStatuses = []ledger.Status{ledger.StatusSent, ledger.StatusOverdue, ledger.StatusPaid}

// TaxSummary treats each issued invoice's stored total as tax-inclusive and
// extracts its tax, per invoice, then sums per currency. Invoices are
// selected by issue date (creation date when unset) in [from, to).
func (r *Reports) TaxSummary(ctx context.Context, tenantID string, from, to time.Time) (*TaxReport, error) {
	from, to = from.UTC(), to.UTC()
	if !to.After(from) {
		return nil, ierr.NewError("empty report period").
			WithHint("The end of the period must be after its start").
			Mark(ierr.ErrValidation)
	}

	var docs []models.Document
	err := r.conn(ctx).
		Where("tenant_id = ? AND kind = ? AND status IN ?", tenantID, ledger.KindInvoice, reportedStatuses).
		Where("COALESCE(issue_date, created_at) >= ? AND COALESCE(issue_date, created_at) < ?", from, to).
		Find(&docs).Error
	if err != nil {
		return nil, dbError(err, "invoices")
	}

	byCurrency := lo.GroupBy(docs, func(d models.Document) string { return d.Currency })
	currencies := lo.Keys(byCurrency)
	slices.Sort(currencies)

	report := &TaxReport{From: from, To: to, Rows: make([]TaxRow, 0, len(currencies))}
	for _, cur := range currencies {
		row := TaxRow{Currency: cur, Gross: decimal.Zero, TaxAmount: decimal.Zero}
		for _, d := range byCurrency[cur] {
			row.Invoices++
			row.Gross = row.Gross.Add(d.Total)
			row.TaxAmount = row.TaxAmount.Add(ledger.TaxFor(ledger.TaxModeInclusive, d.Total, d.TaxRate))
		}
		row.Net = row.Gross.Sub(row.TaxAmount)
		report.Rows = append(report.Rows, row)
	}
	return report, nil
}
