package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Round2 rounds x to 2 decimal places (half away from zero).
func Round2(x decimal.Decimal) decimal.Decimal {
	return x.Round(2)
}

// FromMinorUnits converts an integer amount in the currency's minor unit
// (cents for EUR/USD) into a decimal amount.
func FromMinorUnits(amount int64, currency string) decimal.Decimal {
	if IsZeroDecimalCurrency(currency) {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}

var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {}, "MGA": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// IsZeroDecimalCurrency reports whether the ISO 4217 currency has no minor unit.
func IsZeroDecimalCurrency(currency string) bool {
	_, ok := zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))]
	return ok
}
