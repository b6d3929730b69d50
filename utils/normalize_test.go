package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type createDTO struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

type patchDTO struct {
	Name      *string
	UnitPrice *decimal.Decimal
	Note      *string
}

func TestNormalizeDTO(t *testing.T) {
	dto := createDTO{Name: "  Design  ", UnitPrice: decimal.RequireFromString("10.555"), Quantity: 3}
	NormalizeDTO(&dto)

	assert.Equal(t, "Design", dto.Name)
	assert.Equal(t, "10.56", dto.UnitPrice.StringFixed(2))
	assert.Equal(t, 3, dto.Quantity)
}

func TestNormalizePtrDTO(t *testing.T) {
	name := " Hosting "
	price := decimal.RequireFromString("4.004")
	dto := patchDTO{Name: &name, UnitPrice: &price}
	NormalizePtrDTO(&dto)

	assert.Equal(t, "Hosting", *dto.Name)
	assert.Equal(t, "4.00", dto.UnitPrice.StringFixed(2))
	assert.Nil(t, dto.Note)
}

func TestNormalize_IgnoresNonPointer(t *testing.T) {
	dto := createDTO{Name: " x "}
	NormalizeDTO(dto)
	assert.Equal(t, " x ", dto.Name)
}
