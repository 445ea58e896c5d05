// Package events publishes order lifecycle events for downstream consumers.
package events

import (
	"context"
	"time"

	"digistore/internal/model"

	"github.com/rs/zerolog"
)

// Event types, also used as routing keys.
const (
	OrderCompleted = "order.completed"
	OrderFailed    = "order.failed"
)

// Event describes a settled order.
type Event struct {
	Type          string    `json:"type"`
	OrderID       string    `json:"orderId"`
	ProductID     string    `json:"productId"`
	Amount        int64     `json:"amount"`
	CustomerEmail string    `json:"customerEmail"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// NewOrderEvent builds an event of eventType for order.
func NewOrderEvent(eventType string, order *model.Order, at time.Time) Event {
	return Event{
		Type:          eventType,
		OrderID:       order.ID,
		ProductID:     order.ProductID,
		Amount:        order.Amount,
		CustomerEmail: order.CustomerEmail,
		Status:        string(order.Status),
		OccurredAt:    at.UTC(),
	}
}

// Publisher delivers events. Publish failures never roll back an order.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// logPublisher records events in the log only.
type logPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher returns a publisher that only logs events.
func NewLogPublisher(logger zerolog.Logger) Publisher {
	return &logPublisher{logger: logger.With().Str("component", "events").Logger()}
}

func (p *logPublisher) Publish(_ context.Context, event Event) error {
	p.logger.Info().
		Str("type", event.Type).
		Str("order_id", event.OrderID).
		Int64("amount", event.Amount).
		Msg("order event")
	return nil
}

func (p *logPublisher) Close() error {
	return nil
}
