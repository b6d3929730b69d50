package ledger

import (
	"strings"

	ierr "agency-billing-backend/errors"

	"github.com/samber/lo"
)

// Kind distinguishes proposals from invoices.
type Kind string

const (
	KindProposal Kind = "proposal"
	KindInvoice  Kind = "invoice"
)

// Status is the lifecycle state of a document.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusViewed   Status = "viewed"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPaid     Status = "paid"
	StatusOverdue  Status = "overdue"
	StatusVoid     Status = "void"
)

// EditableStatus is the only status in which items and tax rate may change.
const EditableStatus = StatusDraft

var transitions = map[Kind]map[Status][]Status{
	KindProposal: {
		StatusDraft:  {StatusSent},
		StatusSent:   {StatusViewed, StatusApproved, StatusRejected},
		StatusViewed: {StatusApproved, StatusRejected},
	},
	KindInvoice: {
		StatusDraft:   {StatusSent, StatusVoid},
		StatusSent:    {StatusPaid, StatusOverdue, StatusVoid},
		StatusOverdue: {StatusPaid, StatusVoid},
	},
}

var statuses = map[Kind][]Status{
	KindProposal: {StatusDraft, StatusSent, StatusViewed, StatusApproved, StatusRejected},
	KindInvoice:  {StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusVoid},
}

// ParseKind accepts "proposal", "invoice" and their plural route forms.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "proposal", "proposals":
		return KindProposal, nil
	case "invoice", "invoices":
		return KindInvoice, nil
	}
	return "", ierr.NewErrorf("unknown document kind %q", s).
		WithHint("Document kind must be proposal or invoice").
		Mark(ierr.ErrValidation)
}

// Statuses lists every status valid for kind.
func (k Kind) Statuses() []Status {
	return statuses[k]
}

// BillableStatuses lists the statuses counted against the monthly plan quota.
func (k Kind) BillableStatuses() []Status {
	return lo.Filter(statuses[k], func(s Status, _ int) bool { return s.IsBillable() })
}

// Valid reports whether s belongs to kind's lifecycle.
func (s Status) Valid(kind Kind) bool {
	return lo.Contains(statuses[kind], s)
}

func (s Status) IsEditable() bool { return s == EditableStatus }

// IsBillable: everything except pure drafts.
func (s Status) IsBillable() bool { return s != StatusDraft }

// IsTerminal reports whether no further transition leaves s.
func (s Status) IsTerminal(kind Kind) bool {
	return len(transitions[kind][s]) == 0
}

// CheckTransition returns ErrInvalidStateTransition unless kind permits from → to.
func CheckTransition(kind Kind, from, to Status) error {
	if !to.Valid(kind) {
		return ierr.NewErrorf("status %q is not valid for a %s", to, kind).
			WithHintf("Unknown %s status %q", kind, to).
			Mark(ierr.ErrValidation)
	}
	if !lo.Contains(transitions[kind][from], to) {
		return ierr.NewErrorf("%s cannot move from %s to %s", kind, from, to).
			WithHintf("A %s in status %s cannot be marked %s", kind, from, to).
			Mark(ierr.ErrInvalidStateTransition)
	}
	return nil
}

// CheckEditable guards item and tax edits.
func CheckEditable(status Status) error {
	if status.IsEditable() {
		return nil
	}
	return ierr.NewErrorf("document in status %s is not editable", status).
		WithHint("Only draft documents can be edited").
		Mark(ierr.ErrInvalidStateTransition)
}
