package model

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON             = "INVALID_JSON"
	ErrCodeValidation              = "VALIDATION_FAILED"
	ErrCodeProductNotFound         = "PRODUCT_NOT_FOUND"
	ErrCodeOrderNotFound           = "ORDER_NOT_FOUND"
	ErrCodeDuplicateOrder          = "DUPLICATE_ORDER"
	ErrCodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	ErrCodeAttemptNotFound         = "ATTEMPT_NOT_FOUND"
	ErrCodeInvalidAttemptState     = "INVALID_ATTEMPT_STATE"
	ErrCodeRateLimited             = "RATE_LIMITED"
	ErrCodePaymentNotVerified      = "PAYMENT_NOT_VERIFIED"
	ErrCodeInvalidDownloadToken    = "INVALID_DOWNLOAD_TOKEN"
	ErrCodeGateway                 = "GATEWAY_ERROR"
	ErrCodeNetwork                 = "NETWORK_ERROR"
	ErrCodeUnauthorised            = "UNAUTHORIZED"
	ErrCodeInternalError           = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrProductNotFound         = NewDomainError(ErrCodeProductNotFound, "Product not found")
	ErrOrderNotFound           = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrDuplicateOrder          = NewDomainError(ErrCodeDuplicateOrder, "An order with this id already exists")
	ErrInvalidStatusTransition = NewDomainError(ErrCodeInvalidStatusTransition, "Order status cannot move backwards from a terminal state")
	ErrAttemptNotFound         = NewDomainError(ErrCodeAttemptNotFound, "Checkout attempt not found")
	ErrInvalidAttemptState     = NewDomainError(ErrCodeInvalidAttemptState, "Operation not allowed in the current checkout state")
	ErrRateLimited             = NewDomainError(ErrCodeRateLimited, "Too many attempts, please try again later")
	ErrPaymentNotVerified      = NewDomainError(ErrCodePaymentNotVerified, "Payment could not be verified")
	ErrInvalidDownloadToken    = NewDomainError(ErrCodeInvalidDownloadToken, "Download link is invalid or has expired")
)

// ValidationError carries the complete error list for every failing field.
// It is recoverable: the customer corrects the input and resubmits.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(e.Fields[name], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// GatewayError means the payment provider rejected the request.
type GatewayError struct {
	Provider   string
	StatusCode int
	Status     string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s gateway error: %d %s", e.Provider, e.StatusCode, e.Status)
}

// NetworkError means the request to an external service never completed.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DeliveryError means the confirmation email was not accepted by the mail API.
type DeliveryError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("email delivery failed: %v", e.Err)
	}
	return fmt.Sprintf("email delivery failed: %d %s", e.StatusCode, e.Status)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a failed read or write of the persisted order snapshot.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("order snapshot %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
