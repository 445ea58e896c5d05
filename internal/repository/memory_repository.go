package repository

import (
	"context"
	"sync"

	"digistore/internal/model"

	"github.com/rs/zerolog"
)

// memoryOrderRepository keeps orders in process memory. Used for development
// and as the default working set.
type memoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]model.Order
	logger zerolog.Logger
}

// NewMemoryOrderRepository creates an empty in-memory order repository.
func NewMemoryOrderRepository(logger zerolog.Logger) OrderRepository {
	return &memoryOrderRepository{
		orders: make(map[string]model.Order),
		logger: logger.With().Str("repository", "memory-order").Logger(),
	}
}

func (r *memoryOrderRepository) Create(_ context.Context, order *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		r.logger.Warn().Str("order_id", order.ID).Msg("duplicate order id")
		return model.ErrDuplicateOrder
	}
	r.orders[order.ID] = *order

	r.logger.Debug().Str("order_id", order.ID).Msg("order created successfully")
	return nil
}

func (r *memoryOrderRepository) GetByID(_ context.Context, id string) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	return &order, nil
}

func (r *memoryOrderRepository) Update(_ context.Context, order *model.Order, expected model.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[order.ID]
	if !ok {
		return model.ErrOrderNotFound
	}
	if current.Status != expected {
		return model.ErrInvalidStatusTransition
	}

	current.Status = order.Status
	current.TransactionID = order.TransactionID
	current.DownloadURL = order.DownloadURL
	current.UpdatedAt = order.UpdatedAt
	r.orders[order.ID] = current

	r.logger.Debug().
		Str("order_id", order.ID).
		Str("status", string(order.Status)).
		Msg("order updated successfully")
	return nil
}

func (r *memoryOrderRepository) List(_ context.Context) ([]model.Order, error) {
	r.mu.RLock()
	orders := make([]model.Order, 0, len(r.orders))
	for _, o := range r.orders {
		orders = append(orders, o)
	}
	r.mu.RUnlock()

	SortNewestFirst(orders)
	return orders, nil
}
