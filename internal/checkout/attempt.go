package checkout

import (
	"sync"
	"time"

	"digistore/internal/model"
	"digistore/internal/payment"
)

// State is the position of an attempt in the checkout flow.
type State string

const (
	StateCollectingInfo  State = "collecting_info"
	StateValidating      State = "validating"
	StateAwaitingPayment State = "awaiting_payment"
	StateReconciling     State = "reconciling"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
	StateCancelled       State = "cancelled"
)

// IsTerminal reports whether the attempt accepts no further transitions.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// busy states are owned by an in-flight call and must not be swept.
func (s State) busy() bool {
	return s == StateValidating || s == StateReconciling
}

// Attempt is one customer's pass through checkout for one product.
type Attempt struct {
	ID              string              `json:"id"`
	State           State               `json:"state"`
	PaymentStatus   payment.Status      `json:"paymentStatus,omitempty"`
	ProductID       string              `json:"productId"`
	ProductName     string              `json:"productName"`
	Amount          int64               `json:"amount"`
	Customer        model.CustomerInfo  `json:"customer"`
	Reference       string              `json:"reference,omitempty"`
	RedirectLink    string              `json:"redirectLink,omitempty"`
	PublicKey       string              `json:"publicKey,omitempty"`
	TransactionID   string              `json:"transactionId,omitempty"`
	OrderID         string              `json:"orderId,omitempty"`
	DownloadURL     string              `json:"downloadUrl,omitempty"`
	Errors          map[string][]string `json:"errors,omitempty"`
	Message         string              `json:"message,omitempty"`
	CancelRequested bool                `json:"cancelRequested,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// entry guards one attempt. Transitions of the same attempt are serialised;
// separate attempts never contend.
type entry struct {
	mu      sync.Mutex
	attempt Attempt
}

// view returns a copy safe to hand out. Callers hold e.mu.
func (e *entry) view() *Attempt {
	a := e.attempt
	if e.attempt.Errors != nil {
		a.Errors = make(map[string][]string, len(e.attempt.Errors))
		for k, v := range e.attempt.Errors {
			a.Errors[k] = append([]string(nil), v...)
		}
	}
	return &a
}
