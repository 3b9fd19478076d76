// Package apperr defines the error taxonomy shared by the booking, fleet,
// identity and payment services. Handlers map these onto HTTP statuses;
// anything else is treated as an internal failure.
package apperr

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated means no valid session accompanied the request.
var ErrUnauthenticated = errors.New("unauthenticated")

// ValidationError reports malformed input. No write is performed when one
// is returned.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// NotFoundError covers both unknown ids and ownership mismatches; callers
// are not told which.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// AllocationError means no cab of the requested type could be resolved.
type AllocationError struct {
	CabType string
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("unable to book %s cab", e.CabType)
}

// ConflictError reports a uniqueness violation, e.g. duplicate email.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// SettlementError means the payment provider declined. The booking is left
// untouched; the rider must submit a fresh payment.
type SettlementError struct {
	PaymentID string
}

func (e *SettlementError) Error() string {
	return "payment settlement failed"
}

func IsValidation(err error) bool {
	var t *ValidationError
	return errors.As(err, &t)
}

func IsNotFound(err error) bool {
	var t *NotFoundError
	return errors.As(err, &t)
}

func IsAllocation(err error) bool {
	var t *AllocationError
	return errors.As(err, &t)
}

func IsConflict(err error) bool {
	var t *ConflictError
	return errors.As(err, &t)
}

func IsSettlement(err error) bool {
	var t *SettlementError
	return errors.As(err, &t)
}
