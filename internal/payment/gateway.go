// Package payment talks to payment providers. Live providers are reached over
// HTTPS; the demo provider fabricates successful payments and must be selected
// explicitly.
package payment

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"digistore/internal/config"
	"digistore/internal/model"

	"github.com/rs/zerolog"
)

// Currency is the only currency the store charges in.
const Currency = "NGN"

// VerifiedStatus is the normalised provider status of a settled payment.
const VerifiedStatus = "successful"

// Gateway is implemented by every payment provider.
type Gateway interface {
	// Name identifies the provider in logs and events.
	Name() string

	// Live reports whether the gateway moves real money.
	Live() bool

	// GenerateReference returns a fresh transaction reference.
	GenerateReference() string

	// Initialize registers a payment with the provider and returns where the
	// customer should be sent to pay.
	Initialize(ctx context.Context, req PaymentRequest) (*Initialization, error)

	// Verify asks the provider for the authoritative state of a transaction.
	Verify(ctx context.Context, transactionID string) (*Verification, error)
}

// PaymentRequest describes a single charge.
type PaymentRequest struct {
	Reference   string
	Amount      int64
	Currency    string
	Customer    model.CustomerInfo
	ProductID   string
	ProductName string
	RedirectURL string
}

// Initialization is the provider's answer to a payment request.
type Initialization struct {
	Reference    string `json:"reference"`
	RedirectLink string `json:"redirectLink"`
}

// Verification is the provider's record of a transaction.
type Verification struct {
	TransactionID string `json:"transactionId"`
	Reference     string `json:"reference"`
	ProviderRef   string `json:"providerRef,omitempty"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	CustomerEmail string `json:"customerEmail,omitempty"`
}

// Successful reports whether the verification settles a charge of amount
// against reference.
func (v *Verification) Successful(reference string, amount int64) bool {
	if v == nil {
		return false
	}
	return v.Status == VerifiedStatus &&
		v.Reference == reference &&
		v.Amount >= amount &&
		strings.EqualFold(v.Currency, Currency)
}

// Mismatch describes why a verification does not settle the charge, or ""
// when it does.
func (v *Verification) Mismatch(reference string, amount int64) string {
	switch {
	case v == nil:
		return "no verification record"
	case v.Status != VerifiedStatus:
		return fmt.Sprintf("provider status %q", v.Status)
	case v.Reference != reference:
		return fmt.Sprintf("reference %q does not match %q", v.Reference, reference)
	case v.Amount < amount:
		return fmt.Sprintf("amount %d is less than %d", v.Amount, amount)
	case !strings.EqualFold(v.Currency, Currency):
		return fmt.Sprintf("currency %q is not %s", v.Currency, Currency)
	}
	return ""
}

// Status tracks one payment attempt with the provider.
type Status string

const (
	StatusInitiated            Status = "initiated"
	StatusAwaitingVerification Status = "awaiting_verification"
	StatusVerifiedSuccess      Status = "verified_success"
	StatusVerifiedFailure      Status = "verified_failure"
	StatusCancelledByUser      Status = "cancelled_by_user"
)

// IsTerminal reports whether no further provider interaction is expected.
func (s Status) IsTerminal() bool {
	return s == StatusVerifiedSuccess || s == StatusVerifiedFailure || s == StatusCancelledByUser
}

// Callback statuses delivered by the embedded checkout widget.
const (
	CallbackSuccessful = "successful"
	CallbackCancelled  = "cancelled"
)

// CallbackResult is what the checkout widget reports when it closes.
// It is a hint only: a successful callback still has to be verified.
type CallbackResult struct {
	Status        string
	TransactionID string
}

// ParseCallback normalises a widget callback.
func ParseCallback(status, transactionID string) CallbackResult {
	return CallbackResult{
		Status:        strings.ToLower(strings.TrimSpace(status)),
		TransactionID: strings.TrimSpace(transactionID),
	}
}

// Successful reports whether the widget claims the payment went through.
func (c CallbackResult) Successful() bool {
	return c.Status == CallbackSuccessful
}

// Cancelled reports whether the customer closed the widget.
func (c CallbackResult) Cancelled() bool {
	return c.Status == CallbackCancelled
}

// New builds the gateway selected by cfg. A live provider never falls back to
// the demo gateway.
func New(cfg config.PaymentConfig, logger zerolog.Logger) (Gateway, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case config.ProviderFlutterwave:
		if cfg.SecretKey == "" {
			return nil, fmt.Errorf("flutterwave secret key is required")
		}
		return NewFlutterwave(cfg.BaseURL, cfg.SecretKey, cfg.RedirectURL, client, logger), nil
	case config.ProviderPaystack:
		if cfg.SecretKey == "" {
			return nil, fmt.Errorf("paystack secret key is required")
		}
		return NewPaystack(cfg.BaseURL, cfg.SecretKey, cfg.RedirectURL, client, logger), nil
	case config.ProviderDemo:
		return NewDemo(cfg.RedirectURL, cfg.DemoDelay, logger), nil
	default:
		return nil, fmt.Errorf("unknown payment provider: %s", cfg.Provider)
	}
}
