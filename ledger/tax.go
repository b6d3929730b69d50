package ledger

import (
	ierr "agency-billing-backend/errors"
	"agency-billing-backend/utils"

	"github.com/shopspring/decimal"
)

// TaxMode says whether an amount excludes or already includes tax.
type TaxMode string

const (
	TaxModeExclusive TaxMode = "exclusive" // subtotal + tax
	TaxModeInclusive TaxMode = "inclusive" // total already includes tax
)

// TaxRatePlaces is the stored precision of a tax rate.
const TaxRatePlaces = 4

var one = decimal.NewFromInt(1)

// RoundTaxRate rounds rate to the stored precision.
func RoundTaxRate(rate decimal.Decimal) decimal.Decimal {
	return rate.Round(TaxRatePlaces)
}

// ValidateTaxRate accepts rates in [0, 1), e.g. 0.20 for 20%, after rounding
// to the stored precision.
func ValidateTaxRate(rate decimal.Decimal) error {
	if r := RoundTaxRate(rate); r.IsNegative() || r.GreaterThanOrEqual(one) {
		return ierr.NewErrorf("tax rate %s out of range", rate).
			WithHint("Tax rate must be between 0 and 1 (e.g. 0.20 for 20%)").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ApplyTax adds tax on top of subtotal.
func ApplyTax(subtotal, rate decimal.Decimal) (taxAmount, total decimal.Decimal) {
	taxAmount = utils.Round2(subtotal.Mul(rate))
	return taxAmount, subtotal.Add(taxAmount)
}

// ExtractTax recovers the tax portion of a tax-inclusive total.
func ExtractTax(total, rate decimal.Decimal) decimal.Decimal {
	if total.IsZero() || rate.IsZero() {
		return decimal.Zero
	}
	return utils.Round2(total.Mul(rate).Div(one.Add(rate)))
}

// TaxFor returns the tax contained in (inclusive) or owed on (exclusive) amount.
func TaxFor(mode TaxMode, amount, rate decimal.Decimal) decimal.Decimal {
	if mode == TaxModeInclusive {
		return ExtractTax(amount, rate)
	}
	tax, _ := ApplyTax(amount, rate)
	return tax
}
