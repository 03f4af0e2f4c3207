package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict")
	ErrAlreadySettled    = errors.New("deal already settled")
	ErrSelfApproval      = errors.New("requester cannot resolve their own approval request")
	ErrNotPending        = errors.New("not pending")
	ErrValidation        = errors.New("validation error")
	ErrApprovalRequired  = errors.New("approval required")
	ErrDealNotReleased   = errors.New("deal not released")
	ErrNoInvestments     = errors.New("deal has no investments")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrFundingExceeded   = errors.New("investment exceeds funding target")
)

// Conflict reasons surfaced by the idempotency manager and approval gate.
const (
	ReasonInProgress       = "already in progress"
	ReasonKeyReuse         = "key reuse with different request"
	ReasonConcurrentUpdate = "concurrent update, retry"
	ReasonApprovalRejected = "approval request was rejected"
)

// TransitionError reports an illegal lifecycle move.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Invalid transition: %s → %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ConflictError reports idempotency key reuse or a concurrent duplicate.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Reason }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ValidationError reports malformed input on a named field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ApprovalRequiredError carries the id of the parked approval request.
type ApprovalRequiredError struct {
	RequestID uuid.UUID
}

func (e *ApprovalRequiredError) Error() string {
	return "approval required: request " + e.RequestID.String()
}

func (e *ApprovalRequiredError) Is(target error) bool { return target == ErrApprovalRequired }

func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(reason string) error {
	return &ConflictError{Reason: reason}
}
