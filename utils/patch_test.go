package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type clientPatch struct {
	Name   *string          `json:"name"`
	Email  *string          `json:"email,omitempty"`
	Budget *decimal.Decimal `json:"budget"`
	Secret *string          `json:"-"`
	Plain  string           `json:"plain"`
}

func TestUpdatesFromPtrDTO(t *testing.T) {
	name := "Acme"
	secret := "s"
	dto := clientPatch{Name: &name, Secret: &secret, Plain: "ignored"}

	got := UpdatesFromPtrDTO(&dto, map[string]string{"name": "company_name"})

	assert.Equal(t, map[string]any{"company_name": "Acme"}, got)
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 20, ParseIntDefault("20", 50))
	assert.Equal(t, 50, ParseIntDefault("-1", 50))
	assert.Equal(t, 50, ParseIntDefault("abc", 50))
	assert.Equal(t, 0, ParseIntDefault(" 0 ", 50))
}
