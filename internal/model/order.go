package model

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further status change is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// CanTransitionTo reports whether an order in status s may move to next.
// Status only advances pending -> completed|failed; repeating the current
// status is accepted as a no-op.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	return s == OrderStatusPending
}

// Order represents one purchase attempt and its outcome.
// ID equals the payment reference and never changes.
type Order struct {
	ID               string      `json:"id" db:"id"`
	ProductID        string      `json:"productId" db:"product_id"`
	ProductName      string      `json:"productName" db:"product_name"`
	Amount           int64       `json:"amount" db:"amount"`
	CustomerName     string      `json:"customerName" db:"customer_name"`
	CustomerEmail    string      `json:"customerEmail" db:"customer_email"`
	CustomerPhone    string      `json:"customerPhone" db:"customer_phone"`
	Status           OrderStatus `json:"status" db:"status"`
	PaymentReference string      `json:"paymentReference" db:"payment_reference"`
	TransactionID    string      `json:"transactionId,omitempty" db:"transaction_id"`
	DownloadURL      string      `json:"downloadUrl" db:"download_url"`
	CreatedAt        time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time   `json:"updatedAt" db:"updated_at"`
}

// OrderStats aggregates the merged order set.
type OrderStats struct {
	TotalRevenue        int64 `json:"totalRevenue"`
	OrderCount          int   `json:"orderCount"`
	CompletedOrderCount int   `json:"completedOrderCount"`
	PendingOrderCount   int   `json:"pendingOrderCount"`
	FailedOrderCount    int   `json:"failedOrderCount"`
}
