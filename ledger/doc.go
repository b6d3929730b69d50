// Package ledger holds the billing rules shared by proposals and invoices:
// line valuation, tax, document totals, status transitions, payment
// settlement, plan quotas and document numbering.
//
// Nothing in this package touches storage; the services package applies
// these rules inside database transactions.
package ledger
