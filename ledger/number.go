package ledger

import (
	"fmt"
	"strings"
)

// Default number prefixes per kind.
const (
	DefaultInvoicePrefix  = "INV"
	DefaultProposalPrefix = "PRO"
)

// Prefixes maps a document kind to its number prefix.
type Prefixes map[Kind]string

// For returns the prefix configured for kind, or the built-in default.
func (p Prefixes) For(kind Kind) string {
	if v := strings.TrimSpace(p[kind]); v != "" {
		return v
	}
	if kind == KindProposal {
		return DefaultProposalPrefix
	}
	return DefaultInvoicePrefix
}

// FormatNumber renders "{PREFIX}-{year}-{value:04d}".
func FormatNumber(prefix string, year int, value int64) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, value)
}
