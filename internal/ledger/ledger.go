// Package ledger is the order store consulted by checkout. Orders live in a
// primary repository, the system of record. An optional snapshot blob mirrors
// them as a cache and may still hold orders from earlier processes that the
// repository never saw, so reads merge both.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"digistore/internal/model"
	"digistore/internal/repository"
	"digistore/internal/security"
	"digistore/internal/snapshot"

	"github.com/rs/zerolog"
)

// Store creates, updates and queries orders. Writes are serialised so the
// snapshot blob is never read-modify-written concurrently.
type Store struct {
	mu       sync.Mutex
	repo     repository.OrderRepository
	snapshot snapshot.Store
	now      func() time.Time
	logger   zerolog.Logger
}

// New creates a store over repo. snap may be nil to disable the snapshot.
func New(repo repository.OrderRepository, snap snapshot.Store, logger zerolog.Logger) *Store {
	return &Store{
		repo:     repo,
		snapshot: snap,
		now:      time.Now,
		logger:   logger.With().Str("component", "ledger").Logger(),
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// CreateOrder validates and stores a new order. CreatedAt is assigned when
// zero, status defaults to pending and the payment reference to the ID.
// An ID already present in the repository or the snapshot is rejected with
// model.ErrDuplicateOrder.
func (s *Store) CreateOrder(ctx context.Context, data model.Order) (*model.Order, error) {
	order := data
	if order.Status == "" {
		order.Status = model.OrderStatusPending
	}
	if order.PaymentReference == "" {
		order.PaymentReference = order.ID
	}
	if err := validateOrder(order); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now().UTC()
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}

	existing, err := s.repo.GetByID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check order id: %w", err)
	}
	snap := s.loadSnapshot(ctx)
	if existing != nil || indexOf(snap, order.ID) >= 0 {
		s.logger.Warn().Str("order_id", order.ID).Msg("duplicate order id rejected")
		return nil, model.ErrDuplicateOrder
	}

	if err := s.repo.Create(ctx, &order); err != nil {
		return nil, err
	}

	if snap != nil {
		s.saveSnapshot(ctx, append(snap, order))
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("product_id", order.ProductID).
		Int64("amount", order.Amount).
		Str("status", string(order.Status)).
		Msg("order created")

	created := order
	return &created, nil
}

// GetOrder returns the order with id, checking the repository before the
// snapshot. It returns nil, nil when neither has it.
func (s *Store) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order != nil {
		return order, nil
	}

	snap := s.loadSnapshot(ctx)
	if i := indexOf(snap, id); i >= 0 {
		found := snap[i]
		return &found, nil
	}
	return nil, nil
}

// UpdateOrderStatus moves the order to status. See UpdateOrder.
func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	return s.UpdateOrder(ctx, id, func(o *model.Order) {
		o.Status = status
	})
}

// UpdateOrder applies mutate to the order with id and stores the result in
// the repository and the snapshot independently. Only status, transaction ID
// and download URL may change. Status never moves backwards: repeating the
// current status is a no-op and any other change from a terminal status
// fails with model.ErrInvalidStatusTransition. It returns nil, nil when the
// order exists in neither place.
func (s *Store) UpdateOrder(ctx context.Context, id string, mutate func(o *model.Order)) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	primary, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	snap := s.loadSnapshot(ctx)
	snapIdx := indexOf(snap, id)

	var current model.Order
	switch {
	case primary != nil:
		current = *primary
	case snapIdx >= 0:
		current = snap[snapIdx]
	default:
		return nil, nil
	}

	next := current
	mutate(&next)
	next = withMutableFields(current, next)

	if !next.Status.Valid() {
		return nil, &model.ValidationError{Fields: map[string][]string{
			"status": {fmt.Sprintf("unknown status %q", next.Status)},
		}}
	}
	if !current.Status.CanTransitionTo(next.Status) {
		s.logger.Warn().
			Str("order_id", id).
			Str("from", string(current.Status)).
			Str("to", string(next.Status)).
			Msg("rejected status transition")
		return nil, model.ErrInvalidStatusTransition
	}
	if sameMutableFields(current, next) {
		return &current, nil
	}
	next.UpdatedAt = s.now().UTC()

	if primary != nil {
		if err := s.repo.Update(ctx, &next, current.Status); err != nil {
			return nil, err
		}
	}

	if snap != nil {
		if snapIdx >= 0 {
			cached := snap[snapIdx]
			if cached.Status.CanTransitionTo(next.Status) {
				snap[snapIdx] = withMutableFields(cached, next)
			} else {
				s.logger.Warn().
					Str("order_id", id).
					Str("snapshot_status", string(cached.Status)).
					Msg("snapshot copy already terminal, left unchanged")
			}
		} else {
			snap = append(snap, next)
		}
		s.saveSnapshot(ctx, snap)
	}

	s.logger.Info().
		Str("order_id", id).
		Str("from", string(current.Status)).
		Str("to", string(next.Status)).
		Msg("order updated")

	return &next, nil
}

// GetAllOrders merges repository and snapshot, keeping the repository copy
// of any order held by both, newest first.
func (s *Store) GetAllOrders(ctx context.Context) ([]model.Order, error) {
	primary, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return merge(primary, s.loadSnapshot(ctx)), nil
}

// GetOrdersByEmail returns the merged orders placed with email, ignoring case.
func (s *Store) GetOrdersByEmail(ctx context.Context, email string) ([]model.Order, error) {
	all, err := s.GetAllOrders(ctx)
	if err != nil {
		return nil, err
	}

	email = strings.TrimSpace(email)
	matched := make([]model.Order, 0)
	for _, o := range all {
		if strings.EqualFold(o.CustomerEmail, email) {
			matched = append(matched, o)
		}
	}
	return matched, nil
}

// Stats aggregates the merged order set in one pass. Revenue counts
// completed orders only.
func (s *Store) Stats(ctx context.Context) (*model.OrderStats, error) {
	all, err := s.GetAllOrders(ctx)
	if err != nil {
		return nil, err
	}

	stats := &model.OrderStats{OrderCount: len(all)}
	for _, o := range all {
		switch o.Status {
		case model.OrderStatusCompleted:
			stats.CompletedOrderCount++
			stats.TotalRevenue += o.Amount
		case model.OrderStatusPending:
			stats.PendingOrderCount++
		case model.OrderStatusFailed:
			stats.FailedOrderCount++
		}
	}
	return stats, nil
}

// GetTotalRevenue sums the amount of completed orders.
func (s *Store) GetTotalRevenue(ctx context.Context) (int64, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.TotalRevenue, nil
}

// GetOrderCount counts the merged order set.
func (s *Store) GetOrderCount(ctx context.Context) (int, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.OrderCount, nil
}

// GetCompletedOrderCount counts completed orders.
func (s *Store) GetCompletedOrderCount(ctx context.Context) (int, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.CompletedOrderCount, nil
}

// Refresh rewrites the snapshot from the merged set and returns how many
// orders it now holds. Unlike the write path it reports snapshot failures.
func (s *Store) Refresh(ctx context.Context) (int, error) {
	if s.snapshot == nil {
		return 0, fmt.Errorf("snapshot is disabled")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	primary, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list orders: %w", err)
	}
	cached, err := s.snapshot.Load(ctx)
	if err != nil {
		return 0, &model.PersistenceError{Op: "load", Err: err}
	}

	merged := merge(primary, cached)
	if err := s.snapshot.Save(ctx, merged); err != nil {
		return 0, &model.PersistenceError{Op: "save", Err: err}
	}

	s.logger.Info().Int("orders", len(merged)).Msg("snapshot refreshed")
	return len(merged), nil
}

// loadSnapshot returns the snapshot contents, or nil when the snapshot is
// disabled or unreadable. Failures are logged, never returned.
func (s *Store) loadSnapshot(ctx context.Context) []model.Order {
	if s.snapshot == nil {
		return nil
	}
	orders, err := s.snapshot.Load(ctx)
	if err != nil {
		perr := &model.PersistenceError{Op: "load", Err: err}
		s.logger.Error().Err(perr).Msg("order snapshot unavailable, using repository only")
		return nil
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders
}

func (s *Store) saveSnapshot(ctx context.Context, orders []model.Order) {
	if err := s.snapshot.Save(ctx, orders); err != nil {
		perr := &model.PersistenceError{Op: "save", Err: err}
		s.logger.Error().Err(perr).Int("orders", len(orders)).Msg("order snapshot not updated")
	}
}

func validateOrder(o model.Order) error {
	fields := map[string][]string{}

	if strings.TrimSpace(o.ID) == "" {
		fields["id"] = []string{"Order id is required"}
	}
	if r := security.ValidateEmail(o.CustomerEmail); !r.IsValid {
		fields["customerEmail"] = r.Errors
	}
	if r := security.ValidateAmount(float64(o.Amount)); !r.IsValid {
		fields["amount"] = r.Errors
	}
	if !o.Status.Valid() {
		fields["status"] = []string{fmt.Sprintf("unknown status %q", o.Status)}
	}

	if len(fields) > 0 {
		return &model.ValidationError{Fields: fields}
	}
	return nil
}

// withMutableFields returns base with only the fields an update may change
// taken from next.
func withMutableFields(base, next model.Order) model.Order {
	base.Status = next.Status
	base.TransactionID = next.TransactionID
	base.DownloadURL = next.DownloadURL
	base.UpdatedAt = next.UpdatedAt
	return base
}

func sameMutableFields(a, b model.Order) bool {
	return a.Status == b.Status &&
		a.TransactionID == b.TransactionID &&
		a.DownloadURL == b.DownloadURL
}

func indexOf(orders []model.Order, id string) int {
	for i := range orders {
		if orders[i].ID == id {
			return i
		}
	}
	return -1
}

func merge(primary, cached []model.Order) []model.Order {
	seen := make(map[string]struct{}, len(primary)+len(cached))
	merged := make([]model.Order, 0, len(primary)+len(cached))

	for _, o := range primary {
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}
		merged = append(merged, o)
	}
	for _, o := range cached {
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}
		merged = append(merged, o)
	}

	repository.SortNewestFirst(merged)
	return merged
}
