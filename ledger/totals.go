package ledger

import "github.com/shopspring/decimal"

// Totals is the stored money summary of a document.
// Total always equals Subtotal + TaxAmount.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

// ComputeTotals validates items and rate and returns the exclusive-mode totals.
// The rate is rounded to TaxRatePlaces first, so the totals match the stored rate.
func ComputeTotals(items []LineItem, taxRate decimal.Decimal) (Totals, error) {
	taxRate = RoundTaxRate(taxRate)
	if err := ValidateItems(items); err != nil {
		return Totals{}, err
	}
	if err := ValidateTaxRate(taxRate); err != nil {
		return Totals{}, err
	}
	subtotal := Subtotal(items)
	tax, total := ApplyTax(subtotal, taxRate)
	return Totals{Subtotal: subtotal, TaxAmount: tax, Total: total}, nil
}
