package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced job, assignment or user does not exist
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor's role may not perform the operation
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports a missing or invalid input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// ConflictReason distinguishes why a write lost a race
type ConflictReason string

const (
	ConflictAlreadyClaimed ConflictReason = "already_claimed"
	ConflictDoubleBooked   ConflictReason = "double_booked"
	ConflictStaleStatus    ConflictReason = "stale_status"
)

// ConflictError is returned when a conditional write found the job in a different state
type ConflictError struct {
	Reason  ConflictReason
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message == "" {
		return "conflict: " + string(e.Reason)
	}
	return fmt.Sprintf("conflict (%s): %s", e.Reason, e.Message)
}

// PreconditionError is returned when a transition rule is not satisfied. No state changed.
type PreconditionError struct {
	Rule    string
	Message string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition %s failed: %s", e.Rule, e.Message)
}

// DeliveryError wraps a push, SMS or email failure
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsPrecondition(err error) bool {
	var p *PreconditionError
	return errors.As(err, &p)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Result is the structured outcome returned to callers
type Result struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	FieldName string `json:"field_name,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

const (
	ResultSuccess = "success"
	ResultFail    = "fail"
)

// Success builds a success result
func Success(message string) Result {
	return Result{Status: ResultSuccess, Message: message}
}

// FailureOf converts a business error into a fail result. It reports false
// for errors that are not part of the business taxonomy.
func FailureOf(err error) (Result, bool) {
	var (
		v *ValidationError
		c *ConflictError
		p *PreconditionError
	)
	switch {
	case errors.As(err, &v):
		return Result{Status: ResultFail, Message: v.Message, FieldName: v.Field}, true
	case errors.As(err, &c):
		return Result{Status: ResultFail, Message: c.Message, Reason: string(c.Reason)}, true
	case errors.As(err, &p):
		return Result{Status: ResultFail, Message: p.Message, Reason: p.Rule}, true
	case errors.Is(err, ErrNotFound):
		return Result{Status: ResultFail, Message: err.Error(), Reason: "not_found"}, true
	case errors.Is(err, ErrForbidden):
		return Result{Status: ResultFail, Message: err.Error(), Reason: "forbidden"}, true
	}
	return Result{}, false
}
