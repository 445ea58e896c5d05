package repository

import (
	"context"
	"sort"

	"digistore/internal/model"
)

// OrderRepository is the system of record for orders.
type OrderRepository interface {
	// Create inserts a new order. It returns model.ErrDuplicateOrder when an
	// order with the same ID already exists.
	Create(ctx context.Context, order *model.Order) error

	// GetByID retrieves an order by its ID. It returns nil, nil when absent.
	GetByID(ctx context.Context, id string) (*model.Order, error)

	// Update writes the mutable fields of order (status, transaction ID,
	// download URL, updated time) provided the stored status still equals
	// expected. It returns model.ErrOrderNotFound when the order is absent and
	// model.ErrInvalidStatusTransition when the stored status has moved on.
	Update(ctx context.Context, order *model.Order, expected model.OrderStatus) error

	// List returns every order, newest first.
	List(ctx context.Context) ([]model.Order, error)
}

// SortNewestFirst orders by creation time descending, breaking ties by ID so
// the result is deterministic.
func SortNewestFirst(orders []model.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID < orders[j].ID
	})
}
