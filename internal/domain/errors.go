package domain

import "fmt"

// Error types for consistent error handling across the service.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// RejectionReason tags why a plan was rejected.
type RejectionReason string

const (
	ReasonMissingField RejectionReason = "missing_field"
	ReasonMalformed    RejectionReason = "malformed"
	ReasonOutOfRange   RejectionReason = "out_of_range"
	ReasonInvalidRange RejectionReason = "invalid_range"
	ReasonUnknownValue RejectionReason = "unknown_value"
)

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Reason  RejectionReason
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrCorruptRecord indicates a stored plan that cannot be rebuilt.
type ErrCorruptRecord struct {
	ID     string
	Reason string
}

func (e *ErrCorruptRecord) Error() string {
	return fmt.Sprintf("corrupt plan record %q: %s", e.ID, e.Reason)
}

// ErrForbidden indicates the caller lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
