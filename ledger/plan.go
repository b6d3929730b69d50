package ledger

import (
	"strings"
	"time"

	ierr "agency-billing-backend/errors"
)

// PlanKey identifies a subscription plan.
type PlanKey string

const (
	PlanFree    PlanKey = "free"
	PlanStarter PlanKey = "starter"
	PlanPro     PlanKey = "pro"
)

// DefaultPlan applies to tenants without a plan key.
const DefaultPlan = PlanFree

// Plan is immutable plan configuration.
type Plan struct {
	Key                  PlanKey `json:"key"`
	MonthlyDocumentLimit int     `json:"monthly_document_limit"`
	Unlimited            bool    `json:"unlimited"`
}

var plans = map[PlanKey]Plan{
	PlanFree:    {Key: PlanFree, MonthlyDocumentLimit: 5},
	PlanStarter: {Key: PlanStarter, MonthlyDocumentLimit: 50},
	PlanPro:     {Key: PlanPro, Unlimited: true},
}

// LookupPlan returns the plan for key; empty or unknown keys fall back to DefaultPlan.
func LookupPlan(key string) Plan {
	if p, ok := plans[PlanKey(strings.ToLower(strings.TrimSpace(key)))]; ok {
		return p
	}
	return plans[DefaultPlan]
}

// ParsePlanKey validates a plan key supplied by a caller.
func ParsePlanKey(key string) (PlanKey, error) {
	k := PlanKey(strings.ToLower(strings.TrimSpace(key)))
	if _, ok := plans[k]; !ok {
		return "", ierr.NewErrorf("unknown plan %q", key).
			WithHint("Plan must be one of free, starter, pro").
			Mark(ierr.ErrValidation)
	}
	return k, nil
}

// Allow returns LimitReached when used documents already fill the quota.
func (p Plan) Allow(used int) error {
	if p.Unlimited || used < p.MonthlyDocumentLimit {
		return nil
	}
	return ierr.NewLimitReached(p.MonthlyDocumentLimit)
}

// Remaining returns how many documents may still be created, -1 when unlimited.
func (p Plan) Remaining(used int) int {
	if p.Unlimited {
		return -1
	}
	return max(0, p.MonthlyDocumentLimit-used)
}

// MonthStart is 00:00 UTC on the first day of t's UTC month.
func MonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
