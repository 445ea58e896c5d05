package repository

import (
	"context"
	"errors"
	"fmt"

	"digistore/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const orderColumns = `id, product_id, product_name, amount, customer_name, customer_email,
	customer_phone, status, payment_reference, transaction_id, download_url, created_at, updated_at`

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// Create inserts a new order. A conflicting ID inserts nothing.
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		order.ID,
		order.ProductID,
		order.ProductName,
		order.Amount,
		order.CustomerName,
		order.CustomerEmail,
		order.CustomerPhone,
		order.Status,
		order.PaymentReference,
		order.TransactionID,
		order.DownloadURL,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn().Str("order_id", order.ID).Msg("duplicate order id")
		return model.ErrDuplicateOrder
	}

	r.logger.Debug().
		Str("order_id", order.ID).
		Msg("order created successfully")

	return nil
}

// GetByID retrieves an order by its ID.
func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	return order, nil
}

// Update applies a guarded status change. The WHERE clause on status keeps
// concurrent writers in other processes from moving an order backwards.
func (r *orderRepository) Update(ctx context.Context, order *model.Order, expected model.OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $2, transaction_id = $3, download_url = $4, updated_at = $5
		WHERE id = $1 AND status = $6
	`

	tag, err := r.pool.Exec(ctx, query,
		order.ID,
		order.Status,
		order.TransactionID,
		order.DownloadURL,
		order.UpdatedAt,
		expected,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID).
			Msg("failed to update order")
		return fmt.Errorf("failed to update order: %w", err)
	}

	if tag.RowsAffected() == 0 {
		existing, err := r.GetByID(ctx, order.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return model.ErrOrderNotFound
		}
		return model.ErrInvalidStatusTransition
	}

	r.logger.Debug().
		Str("order_id", order.ID).
		Str("status", string(order.Status)).
		Msg("order updated successfully")

	return nil
}

// List returns every order, newest first.
func (r *orderRepository) List(ctx context.Context) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID,
		&o.ProductID,
		&o.ProductName,
		&o.Amount,
		&o.CustomerName,
		&o.CustomerEmail,
		&o.CustomerPhone,
		&o.Status,
		&o.PaymentReference,
		&o.TransactionID,
		&o.DownloadURL,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
