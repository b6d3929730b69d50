package ledger

import (
	"strings"

	ierr "agency-billing-backend/errors"
	"agency-billing-backend/utils"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how a payment was made.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCard         PaymentMethod = "card"
	MethodOther        PaymentMethod = "other"
)

// NormalizeMethod coerces unknown methods to "other".
func NormalizeMethod(s string) PaymentMethod {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodCash, MethodBankTransfer, MethodCard:
		return m
	}
	return MethodOther
}

// Settlement is the read-side payment state of a document. StatusConfirmed
// means the stored status is paid, set by the processor or by hand, and
// overrides the payment sum.
type Settlement struct {
	Total           decimal.Decimal `json:"total"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	BalanceDue      decimal.Decimal `json:"balance_due"`
	IsSettled       bool            `json:"is_settled"`
	StatusConfirmed bool            `json:"status_confirmed"`
}

// SettlementPolicy is the single authority on settlement. It is used by the
// manual payment ledger (Admit, Evaluate) and by the payment processor
// integration (Confirm). A stored paid status always wins over the payment sum.
type SettlementPolicy struct{}

// PaidAmount sums payment amounts.
func PaidAmount(amounts []decimal.Decimal) decimal.Decimal {
	return decimal.Sum(decimal.Zero, amounts...)
}

// BalanceDue is max(0, total - paid).
func BalanceDue(total, paid decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, total.Sub(paid))
}

// Evaluate derives the settlement of a document from its stored status,
// total and the amounts paid so far.
func (SettlementPolicy) Evaluate(status Status, total decimal.Decimal, amounts []decimal.Decimal) Settlement {
	paid := PaidAmount(amounts)
	s := Settlement{
		Total:      total,
		PaidAmount: paid,
		BalanceDue: BalanceDue(total, paid),
		IsSettled:  paid.GreaterThanOrEqual(total),
	}
	if status == StatusPaid {
		s.StatusConfirmed = true
		s.IsSettled = true
		s.BalanceDue = decimal.Zero
	}
	return s
}

// CheckRetotal rejects a new document total below the amount already paid.
func (SettlementPolicy) CheckRetotal(total, paid decimal.Decimal) error {
	if total.LessThan(paid) {
		return ierr.NewErrorf("new total %s below paid amount %s", total, paid).
			WithHintf("Payments of %s exceed the new total", paid.StringFixed(2)).
			Mark(ierr.ErrExceedsBalance)
	}
	return nil
}

// Admit checks a new payment of amount against total and paidSoFar and
// returns the amount rounded to cents.
func (SettlementPolicy) Admit(total, paidSoFar, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ierr.NewErrorf("payment amount %s is not positive", amount).
			WithHint("Amount must be greater than zero").
			Mark(ierr.ErrValidation)
	}
	rounded := utils.Round2(amount)
	if !rounded.IsPositive() {
		return decimal.Zero, ierr.NewErrorf("payment amount %s rounds to zero", amount).
			WithHint("Amount must be at least 0.01").
			Mark(ierr.ErrValidation)
	}
	balance := BalanceDue(total, paidSoFar)
	if !balance.IsPositive() {
		return decimal.Zero, ierr.NewError("document already settled").
			WithHint("This invoice is already fully paid").
			Mark(ierr.ErrAlreadySettled)
	}
	if rounded.GreaterThan(balance) {
		return decimal.Zero, ierr.NewErrorf("payment %s exceeds balance due %s", rounded, balance).
			WithHintf("Amount exceeds the balance due of %s", balance.StringFixed(2)).
			Mark(ierr.ErrExceedsBalance)
	}
	return rounded, nil
}

// Confirm returns the status a processor-confirmed payment moves an invoice to.
// Replays against an already paid invoice are accepted.
func (SettlementPolicy) Confirm(kind Kind, from Status) (Status, error) {
	if kind != KindInvoice {
		return from, ierr.NewErrorf("processor payment for %s", kind).
			WithHint("Only invoices can be paid online").
			Mark(ierr.ErrInvalidStateTransition)
	}
	switch from {
	case StatusDraft, StatusSent, StatusOverdue, StatusPaid:
		return StatusPaid, nil
	}
	return from, ierr.NewErrorf("processor payment for invoice in status %s", from).
		WithHintf("An invoice in status %s cannot be paid", from).
		Mark(ierr.ErrInvalidStateTransition)
}

// CanTakePayments reports whether manual payments may be recorded.
func CanTakePayments(kind Kind, status Status) error {
	if kind != KindInvoice {
		return ierr.NewErrorf("payment against %s", kind).
			WithHint("Payments can only be recorded against invoices").
			Mark(ierr.ErrInvalidStateTransition)
	}
	if status == StatusVoid {
		return ierr.NewError("payment against void invoice").
			WithHint("Payments cannot be recorded against a void invoice").
			Mark(ierr.ErrInvalidStateTransition)
	}
	return nil
}
