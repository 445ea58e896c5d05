package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"digistore/internal/model"

	"github.com/rs/zerolog"
)

// sqliteTimeLayout is fixed width so stored timestamps sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// sqliteOrderRepository implements OrderRepository on a SQLite file, for
// single-node deployments without PostgreSQL.
type sqliteOrderRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteOrderRepository creates a SQLite-backed order repository. The
// schema must already be migrated.
func NewSQLiteOrderRepository(db *sql.DB, logger zerolog.Logger) OrderRepository {
	return &sqliteOrderRepository{
		db:     db,
		logger: logger.With().Str("repository", "sqlite-order").Logger(),
	}
}

func (r *sqliteOrderRepository) Create(ctx context.Context, order *model.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`

	res, err := r.db.ExecContext(ctx, query,
		order.ID,
		order.ProductID,
		order.ProductName,
		order.Amount,
		order.CustomerName,
		order.CustomerEmail,
		order.CustomerPhone,
		string(order.Status),
		order.PaymentReference,
		order.TransactionID,
		order.DownloadURL,
		formatSQLiteTime(order.CreatedAt),
		formatSQLiteTime(order.UpdatedAt),
	)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	if affected == 0 {
		r.logger.Warn().Str("order_id", order.ID).Msg("duplicate order id")
		return model.ErrDuplicateOrder
	}

	r.logger.Debug().Str("order_id", order.ID).Msg("order created successfully")
	return nil
}

func (r *sqliteOrderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

	order, err := scanSQLiteOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	return order, nil
}

func (r *sqliteOrderRepository) Update(ctx context.Context, order *model.Order, expected model.OrderStatus) error {
	query := `
		UPDATE orders
		SET status = ?, transaction_id = ?, download_url = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	res, err := r.db.ExecContext(ctx, query,
		string(order.Status),
		order.TransactionID,
		order.DownloadURL,
		formatSQLiteTime(order.UpdatedAt),
		order.ID,
		string(expected),
	)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to update order")
		return fmt.Errorf("failed to update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if affected == 0 {
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

func (r *sqliteOrderRepository) List(ctx context.Context) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		order, err := scanSQLiteOrder(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteOrder(row rowScanner) (*model.Order, error) {
	var (
		o                    model.Order
		status               string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&o.ID,
		&o.ProductID,
		&o.ProductName,
		&o.Amount,
		&o.CustomerName,
		&o.CustomerEmail,
		&o.CustomerPhone,
		&status,
		&o.PaymentReference,
		&o.TransactionID,
		&o.DownloadURL,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Status = model.OrderStatus(status)
	if o.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if o.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}
	return &o, nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}
