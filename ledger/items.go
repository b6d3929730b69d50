package ledger

import (
	"strings"

	ierr "agency-billing-backend/errors"
	"agency-billing-backend/utils"

	"github.com/shopspring/decimal"
)

// LineItem is one priced row of a proposal or invoice.
type LineItem struct {
	Title       string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Stored precision of quantities and unit prices.
const (
	QuantityPlaces  = 3
	UnitPricePlaces = 4
)

// Normalized trims text and rounds quantity and unit price to their stored
// precision, so totals computed before and after persisting agree.
func (li LineItem) Normalized() LineItem {
	return LineItem{
		Title:       strings.TrimSpace(li.Title),
		Description: strings.TrimSpace(li.Description),
		Quantity:    li.Quantity.Round(QuantityPlaces),
		UnitPrice:   li.UnitPrice.Round(UnitPricePlaces),
	}
}

// Total is round2(quantity × unit price).
func (li LineItem) Total() decimal.Decimal {
	return utils.Round2(li.Quantity.Mul(li.UnitPrice))
}

// ValidateItems rejects empty item lists, blank titles and negative
// quantities or prices.
func ValidateItems(items []LineItem) error {
	if len(items) == 0 {
		return ierr.NewError("document has no items").
			WithHint("Add at least one item").
			Mark(ierr.ErrValidation)
	}
	for i, it := range items {
		if strings.TrimSpace(it.Title) == "" {
			return ierr.NewErrorf("item %d has no title", i).
				WithHintf("Item %d: title is required", i+1).
				Mark(ierr.ErrValidation)
		}
		if it.Quantity.IsNegative() {
			return ierr.NewErrorf("item %d has negative quantity %s", i, it.Quantity).
				WithHintf("Item %d: quantity must not be negative", i+1).
				Mark(ierr.ErrValidation)
		}
		if it.UnitPrice.IsNegative() {
			return ierr.NewErrorf("item %d has negative unit price %s", i, it.UnitPrice).
				WithHintf("Item %d: unit price must not be negative", i+1).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// Subtotal sums the rounded line totals.
func Subtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Total())
	}
	return sum
}
