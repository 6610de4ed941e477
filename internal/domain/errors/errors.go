package errors

import (
	"errors"
	"fmt"
)

var (
	// Auth errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")

	// Catalog errors
	ErrProductNotFound   = errors.New("product not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrProductInactive   = errors.New("product is not available")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateSlug     = errors.New("slug already in use")

	// Cart errors
	ErrCartEmpty        = errors.New("cart is empty")
	ErrCartItemNotFound = errors.New("cart item not found")

	// Order errors
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderNotCancelable = errors.New("order can no longer be cancelled")
	ErrOrderAlreadyPaid   = errors.New("order is already paid")

	// Payment errors
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrUpstreamAuth: the payment provider rejected our configured
	// credentials. Operator-correctable; retrying without fixing the
	// credentials is pointless.
	ErrUpstreamAuth = errors.New("payment provider authentication failed")

	// ErrUpstreamRequest: transient network/provider failure, or a provider
	// response we do not recognize. Safe to retry or re-poll.
	ErrUpstreamRequest = errors.New("payment provider request failed")

	// ErrReconciliationConflict: a callback or status result references an
	// unknown or already-terminal transaction. Logged for operator
	// visibility, never surfaced to the provider's callback caller.
	ErrReconciliationConflict = errors.New("reconciliation conflict")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error on local input. No network
// call has been attempted when one of these is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
