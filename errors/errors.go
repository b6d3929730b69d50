package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Error kinds. Every error returned by the billing services is marked with one
// of these so callers can branch with errors.Is.
var (
	ErrValidation             = new(ErrCodeValidation, "validation error")
	ErrNotFound               = new(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists          = new(ErrCodeAlreadyExists, "resource already exists")
	ErrInvalidStateTransition = new(ErrCodeInvalidStateTransition, "operation not permitted in current status")
	ErrAlreadySettled         = new(ErrCodeAlreadySettled, "document is already settled")
	ErrExceedsBalance         = new(ErrCodeExceedsBalance, "payment exceeds balance due")
	ErrLimitReached           = new(ErrCodeLimitReached, "plan limit reached")
	ErrPermissionDenied       = new(ErrCodePermissionDenied, "permission denied")
	ErrDatabase               = new(ErrCodeDatabase, "database error")
	ErrSystem                 = new(ErrCodeSystemError, "system error")

	statusCodeMap = map[error]int{
		ErrValidation:             http.StatusUnprocessableEntity,
		ErrNotFound:               http.StatusNotFound,
		ErrAlreadyExists:          http.StatusConflict,
		ErrInvalidStateTransition: http.StatusConflict,
		ErrAlreadySettled:         http.StatusConflict,
		ErrExceedsBalance:         http.StatusUnprocessableEntity,
		ErrLimitReached:           http.StatusForbidden,
		ErrPermissionDenied:       http.StatusForbidden,
		ErrDatabase:               http.StatusInternalServerError,
		ErrSystem:                 http.StatusInternalServerError,
	}
)

const (
	ErrCodeValidation             = "validation_error"
	ErrCodeNotFound               = "not_found"
	ErrCodeAlreadyExists          = "already_exists"
	ErrCodeInvalidStateTransition = "invalid_state_transition"
	ErrCodeAlreadySettled         = "already_settled"
	ErrCodeExceedsBalance         = "exceeds_balance"
	ErrCodeLimitReached           = "limit_reached"
	ErrCodePermissionDenied       = "permission_denied"
	ErrCodeDatabase               = "database_error"
	ErrCodeSystemError            = "system_error"
)

// InternalError is a sentinel error kind.
type InternalError struct {
	Code    string
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func new(code, message string) *InternalError {
	return &InternalError{Code: code, Message: message}
}

// LimitReachedError carries the plan quota that was hit.
type LimitReachedError struct {
	Limit int
}

func (e *LimitReachedError) Error() string {
	return fmt.Sprintf("monthly document limit of %d reached", e.Limit)
}

// NewLimitReached returns an error marked ErrLimitReached carrying limit.
func NewLimitReached(limit int) error {
	err := errors.WithHintf(&LimitReachedError{Limit: limit},
		"Your plan allows %d documents per month. Upgrade to create more.", limit)
	return errors.Mark(err, ErrLimitReached)
}

// LimitFrom extracts the numeric limit from a LimitReached error.
func LimitFrom(err error) (int, bool) {
	var le *LimitReachedError
	if errors.As(err, &le) {
		return le.Limit, true
	}
	return 0, false
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

func IsValidation(err error) bool             { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool               { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool          { return errors.Is(err, ErrAlreadyExists) }
func IsInvalidStateTransition(err error) bool { return errors.Is(err, ErrInvalidStateTransition) }
func IsAlreadySettled(err error) bool         { return errors.Is(err, ErrAlreadySettled) }
func IsExceedsBalance(err error) bool         { return errors.Is(err, ErrExceedsBalance) }
func IsLimitReached(err error) bool           { return errors.Is(err, ErrLimitReached) }

// Kind returns the sentinel err is marked with, or nil for unclassified errors.
func Kind(err error) *InternalError {
	for ref := range statusCodeMap {
		if errors.Is(err, ref) {
			return ref.(*InternalError)
		}
	}
	return nil
}

// HTTPStatusFromErr maps an error kind to an HTTP status code.
func HTTPStatusFromErr(err error) int {
	for ref, status := range statusCodeMap {
		if errors.Is(err, ref) {
			return status
		}
	}
	return http.StatusInternalServerError
}

// Hint returns the user-facing hints attached to err, flattened.
func Hint(err error) string {
	return errors.FlattenHints(err)
}
