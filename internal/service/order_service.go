package service

import (
	"context"
	"fmt"
	"strings"

	"digistore/internal/model"

	"github.com/rs/zerolog"
)

// OrderLedger is the merged order store. Implemented by *ledger.Store.
type OrderLedger interface {
	GetAllOrders(ctx context.Context) ([]model.Order, error)
	GetOrdersByEmail(ctx context.Context, email string) ([]model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	Stats(ctx context.Context) (*model.OrderStats, error)
}

// orderService implements OrderService.
type orderService struct {
	orders OrderLedger
	logger zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(orders OrderLedger, logger zerolog.Logger) OrderService {
	return &orderService{
		orders: orders,
		logger: logger.With().Str("service", "order").Logger(),
	}
}

// List returns all orders, or those placed with email.
func (s *orderService) List(ctx context.Context, email string) ([]model.Order, error) {
	var (
		orders []model.Order
		err    error
	)
	if email = strings.TrimSpace(email); email != "" {
		orders, err = s.orders.GetOrdersByEmail(ctx, email)
	} else {
		orders, err = s.orders.GetAllOrders(ctx)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	s.logger.Debug().Int("count", len(orders)).Bool("filtered", email != "").Msg("listed orders")
	return orders, nil
}

// GetByID retrieves an order by its ID.
func (s *orderService) GetByID(ctx context.Context, id string) (*model.Order, error) {
	if id == "" {
		return nil, model.ErrOrderNotFound
	}

	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

// Stats aggregates revenue and counts.
func (s *orderService) Stats(ctx context.Context) (*model.OrderStats, error) {
	stats, err := s.orders.Stats(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to compute order stats")
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	return stats, nil
}
