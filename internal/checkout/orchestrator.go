// Package checkout drives a purchase from product selection to a settled
// order. Completion is only ever granted after the payment provider has
// verified the transaction server side; what the browser reports is a hint.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"digistore/internal/events"
	"digistore/internal/model"
	"digistore/internal/notify"
	"digistore/internal/payment"
	"digistore/internal/security"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ProductSource resolves the product being bought.
type ProductSource interface {
	GetByID(ctx context.Context, id string) (*model.Product, error)
}

// OrderStore records orders. Implemented by *ledger.Store.
type OrderStore interface {
	CreateOrder(ctx context.Context, data model.Order) (*model.Order, error)
	UpdateOrder(ctx context.Context, id string, mutate func(o *model.Order)) (*model.Order, error)
}

// LinkSigner issues the download link for a completed order.
type LinkSigner interface {
	Sign(orderID, productID string) (string, error)
}

// Config tunes the orchestrator.
type Config struct {
	RateLimitMax    int
	RateLimitWindow time.Duration
	GatewayTimeout  time.Duration
	AttemptTTL      time.Duration
	RedirectURL     string
	// PublicKey is handed to clients that open the provider's inline widget.
	// It is only exposed for live gateways.
	PublicKey string
}

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Products ProductSource
	Orders   OrderStore
	Gateway  payment.Gateway
	Limiter  security.Limiter
	Notifier notify.Dispatcher
	Events   events.Publisher
	Links    LinkSigner
}

// Orchestrator owns every live checkout attempt.
type Orchestrator struct {
	cfg  Config
	deps Deps

	mu       sync.RWMutex
	attempts map[string]*entry

	now    func() time.Time
	logger zerolog.Logger
}

// New creates an orchestrator. Events and Notifier may be nil.
func New(cfg Config, deps Deps, logger zerolog.Logger) *Orchestrator {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 15 * time.Second
	}
	if cfg.AttemptTTL <= 0 {
		cfg.AttemptTTL = time.Hour
	}
	logger = logger.With().Str("component", "checkout").Logger()
	if deps.Events == nil {
		deps.Events = events.NewLogPublisher(logger)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogDispatcher(logger)
	}

	return &Orchestrator{
		cfg:      cfg,
		deps:     deps,
		attempts: make(map[string]*entry),
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the time source. Call before the orchestrator is shared.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

func (o *Orchestrator) clock() time.Time {
	return o.now().UTC()
}

// Start opens an attempt for productID in collecting_info.
func (o *Orchestrator) Start(ctx context.Context, productID string) (*Attempt, error) {
	product, err := o.deps.Products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, model.ErrProductNotFound
	}

	now := o.clock()
	e := &entry{attempt: Attempt{
		ID:          uuid.NewString(),
		State:       StateCollectingInfo,
		ProductID:   product.ID,
		ProductName: product.Name,
		Amount:      product.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}}

	o.mu.Lock()
	o.attempts[e.attempt.ID] = e
	o.mu.Unlock()

	o.logger.Debug().
		Str("attempt_id", e.attempt.ID).
		Str("product_id", product.ID).
		Msg("checkout started")

	return e.view(), nil
}

// Get returns a copy of the attempt.
func (o *Orchestrator) Get(id string) (*Attempt, error) {
	e, err := o.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view(), nil
}

// Submit validates the customer details and registers the payment with the
// gateway. Invalid details return the attempt to collecting_info with every
// field error; a rate-limited email gets model.ErrRateLimited. A gateway
// failure fails the attempt without creating an order.
func (o *Orchestrator) Submit(ctx context.Context, id string, info model.CustomerInfo) (*Attempt, error) {
	e, err := o.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.attempt.State != StateCollectingInfo {
		e.mu.Unlock()
		return nil, model.ErrInvalidAttemptState
	}
	o.transition(e, StateValidating)
	e.attempt.Errors = nil
	e.attempt.Message = ""
	e.mu.Unlock()

	clean, verr := security.ValidateCustomer(info)
	if verr != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
		o.transition(e, StateCollectingInfo)
		e.attempt.Customer = clean
		var fields *model.ValidationError
		if errors.As(verr, &fields) {
			e.attempt.Errors = fields.Fields
		}
		return nil, verr
	}

	if !o.allow(ctx, clean.Email) {
		e.mu.Lock()
		defer e.mu.Unlock()
		o.transition(e, StateCollectingInfo)
		e.attempt.Customer = clean
		e.attempt.Message = model.ErrRateLimited.Message
		return nil, model.ErrRateLimited
	}

	e.mu.Lock()
	reference := o.deps.Gateway.GenerateReference()
	e.attempt.Customer = clean
	e.attempt.Reference = reference
	e.attempt.PaymentStatus = payment.StatusInitiated
	req := payment.PaymentRequest{
		Reference:   reference,
		Amount:      e.attempt.Amount,
		Currency:    payment.Currency,
		Customer:    clean,
		ProductID:   e.attempt.ProductID,
		ProductName: e.attempt.ProductName,
		RedirectURL: o.cfg.RedirectURL,
	}
	e.mu.Unlock()

	gctx, cancel := context.WithTimeout(ctx, o.cfg.GatewayTimeout)
	init, err := o.deps.Gateway.Initialize(gctx, req)
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		o.transition(e, StateFailed)
		e.attempt.Message = err.Error()
		o.logger.Error().Err(err).
			Str("attempt_id", id).
			Str("reference", reference).
			Str("gateway", o.deps.Gateway.Name()).
			Msg("payment initialization failed")
		return nil, err
	}

	e.attempt.RedirectLink = init.RedirectLink
	if o.deps.Gateway.Live() {
		e.attempt.PublicKey = o.cfg.PublicKey
	}
	o.transition(e, StateAwaitingPayment)

	o.logger.Info().
		Str("attempt_id", id).
		Str("reference", reference).
		Str("gateway", o.deps.Gateway.Name()).
		Bool("live", o.deps.Gateway.Live()).
		Msg("awaiting payment")

	return e.view(), nil
}

// Cancel abandons the attempt. Before payment it simply moves to cancelled.
// During reconciliation the request is recorded and the verification result
// still applies.
func (o *Orchestrator) Cancel(_ context.Context, id string) (*Attempt, error) {
	e, err := o.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.attempt.State {
	case StateCollectingInfo, StateAwaitingPayment:
		o.transition(e, StateCancelled)
		if e.attempt.PaymentStatus != "" {
			e.attempt.PaymentStatus = payment.StatusCancelledByUser
		}
		o.logger.Info().Str("attempt_id", id).Msg("checkout cancelled")
	case StateReconciling:
		e.attempt.CancelRequested = true
		e.attempt.UpdatedAt = o.clock()
		o.logger.Info().Str("attempt_id", id).Msg("cancel requested during reconciliation")
	default:
		return nil, model.ErrInvalidAttemptState
	}
	return e.view(), nil
}

// Confirm is the gateway's success signal. It records a pending order, asks
// the provider to verify transactionID and settles the order on the answer.
// An empty transactionID verifies by the attempt's reference.
//
// Verification outcomes are reported through the returned attempt, not the
// error: rejected payments fail the order; an unreachable provider leaves it
// pending and fails the attempt so the customer can retry.
func (o *Orchestrator) Confirm(ctx context.Context, id, transactionID string) (*Attempt, error) {
	e, err := o.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.attempt.State != StateAwaitingPayment {
		e.mu.Unlock()
		return nil, model.ErrInvalidAttemptState
	}
	if transactionID = strings.TrimSpace(transactionID); transactionID == "" {
		transactionID = e.attempt.Reference
	}
	o.transition(e, StateReconciling)
	e.attempt.PaymentStatus = payment.StatusAwaitingVerification
	e.attempt.TransactionID = transactionID
	pending := o.pendingOrder(e)
	e.mu.Unlock()

	// The customer closing the tab must not abandon a payment mid-verification.
	ctx = context.WithoutCancel(ctx)

	order, err := o.deps.Orders.CreateOrder(ctx, pending)
	if err != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
		o.transition(e, StateFailed)
		e.attempt.Message = "order could not be recorded"
		o.logger.Error().Err(err).Str("attempt_id", id).Str("order_id", pending.ID).Msg("failed to create order")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	e.mu.Lock()
	e.attempt.OrderID = order.ID
	e.mu.Unlock()

	vctx, cancel := context.WithTimeout(ctx, o.cfg.GatewayTimeout)
	verification, verr := o.deps.Gateway.Verify(vctx, transactionID)
	cancel()

	return o.settle(ctx, e, order, verification, verr)
}

// HandleCallback applies what the embedded payment widget reported. A
// successful callback is only a hint and goes through Confirm.
func (o *Orchestrator) HandleCallback(ctx context.Context, id string, result payment.CallbackResult) (*Attempt, error) {
	switch {
	case result.Cancelled():
		return o.Cancel(ctx, id)
	case result.Successful():
		return o.Confirm(ctx, id, result.TransactionID)
	}

	e, err := o.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.attempt.State != StateAwaitingPayment {
		return nil, model.ErrInvalidAttemptState
	}

	failed := o.pendingOrder(e)
	failed.Status = model.OrderStatusFailed
	failed.TransactionID = result.TransactionID

	ctx = context.WithoutCancel(ctx)
	order, err := o.deps.Orders.CreateOrder(ctx, failed)
	if err != nil {
		o.transition(e, StateFailed)
		o.logger.Error().Err(err).Str("attempt_id", id).Msg("failed to record failed order")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	e.attempt.OrderID = order.ID
	e.attempt.TransactionID = result.TransactionID
	e.attempt.PaymentStatus = payment.StatusVerifiedFailure
	e.attempt.Message = fmt.Sprintf("payment %s", orUnknown(result.Status))
	o.transition(e, StateFailed)

	o.logger.Warn().
		Str("attempt_id", id).
		Str("order_id", order.ID).
		Str("callback_status", result.Status).
		Msg("payment widget reported failure")
	o.publish(ctx, events.OrderFailed, order)

	return e.view(), nil
}

// settle applies a verification outcome to the order and the attempt.
func (o *Orchestrator) settle(ctx context.Context, e *entry, order *model.Order, v *payment.Verification, verr error) (*Attempt, error) {
	log := o.logger.With().Str("attempt_id", e.attempt.ID).Str("order_id", order.ID).Logger()

	if verr != nil && isTransient(verr) {
		log.Warn().Err(verr).Msg("payment verification unavailable, order left pending")

		e.mu.Lock()
		defer e.mu.Unlock()
		e.attempt.Message = "payment could not be verified right now, please try again"
		o.transition(e, StateFailed)
		o.noteCancel(e, log)
		return e.view(), nil
	}

	if verr != nil || !v.Successful(order.PaymentReference, order.Amount) {
		var reason string
		if verr != nil {
			reason = verr.Error()
		} else {
			reason = v.Mismatch(order.PaymentReference, order.Amount)
		}
		log.Warn().Str("reason", reason).Msg("payment rejected by verification")

		failed, err := o.deps.Orders.UpdateOrder(ctx, order.ID, func(ord *model.Order) {
			ord.Status = model.OrderStatusFailed
			if v != nil {
				ord.TransactionID = v.TransactionID
			}
		})

		e.mu.Lock()
		defer e.mu.Unlock()
		e.attempt.PaymentStatus = payment.StatusVerifiedFailure
		e.attempt.Message = model.ErrPaymentNotVerified.Message + ": " + reason
		o.transition(e, StateFailed)
		o.noteCancel(e, log)
		if err != nil {
			log.Error().Err(err).Msg("failed to mark order failed")
			return nil, fmt.Errorf("failed to update order: %w", err)
		}
		if failed != nil {
			o.publish(ctx, events.OrderFailed, failed)
		}
		return e.view(), nil
	}

	link, err := o.deps.Links.Sign(order.ID, order.ProductID)
	if err != nil {
		log.Error().Err(err).Msg("failed to sign download link")
	}

	completed, err := o.deps.Orders.UpdateOrder(ctx, order.ID, func(ord *model.Order) {
		ord.Status = model.OrderStatusCompleted
		ord.TransactionID = v.TransactionID
		ord.DownloadURL = link
	})
	if err == nil && completed == nil {
		err = model.ErrOrderNotFound
	}
	if err != nil {
		log.Error().Err(err).Msg("verified payment could not be recorded")
		e.mu.Lock()
		defer e.mu.Unlock()
		e.attempt.PaymentStatus = payment.StatusVerifiedSuccess
		e.attempt.Message = "payment verified but order could not be completed"
		o.transition(e, StateFailed)
		return nil, fmt.Errorf("failed to complete order: %w", err)
	}

	log.Info().
		Int64("amount", completed.Amount).
		Str("transaction_id", completed.TransactionID).
		Msg("payment verified, order completed")

	if err := o.deps.Notifier.SendConfirmation(ctx, completed); err != nil {
		log.Error().Err(err).Msg("confirmation email not delivered")
	}
	o.publish(ctx, events.OrderCompleted, completed)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempt.PaymentStatus = payment.StatusVerifiedSuccess
	e.attempt.DownloadURL = completed.DownloadURL
	o.transition(e, StateCompleted)
	o.noteCancel(e, log)
	return e.view(), nil
}

// Sweep drops attempts idle for longer than the attempt TTL, skipping any
// with a call in flight. It returns how many were removed.
func (o *Orchestrator) Sweep() int {
	cutoff := o.clock().Add(-o.cfg.AttemptTTL)

	o.mu.Lock()
	defer o.mu.Unlock()

	removed := 0
	for id, e := range o.attempts {
		if !e.mu.TryLock() {
			continue
		}
		stale := !e.attempt.State.busy() && e.attempt.UpdatedAt.Before(cutoff)
		e.mu.Unlock()
		if stale {
			delete(o.attempts, id)
			removed++
		}
	}
	if removed > 0 {
		o.logger.Debug().Int("removed", removed).Msg("expired checkout attempts swept")
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Sweep()
		}
	}
}

// Len returns the number of tracked attempts.
func (o *Orchestrator) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.attempts)
}

func (o *Orchestrator) lookup(id string) (*entry, error) {
	o.mu.RLock()
	e, ok := o.attempts[id]
	o.mu.RUnlock()
	if !ok {
		return nil, model.ErrAttemptNotFound
	}
	return e, nil
}

// transition moves e to next. Callers hold e.mu.
func (o *Orchestrator) transition(e *entry, next State) {
	o.logger.Debug().
		Str("attempt_id", e.attempt.ID).
		Str("from", string(e.attempt.State)).
		Str("to", string(next)).
		Msg("attempt transition")
	e.attempt.State = next
	e.attempt.UpdatedAt = o.clock()
}

// pendingOrder builds the order recorded for e. Callers hold e.mu.
func (o *Orchestrator) pendingOrder(e *entry) model.Order {
	return model.Order{
		ID:               e.attempt.Reference,
		ProductID:        e.attempt.ProductID,
		ProductName:      e.attempt.ProductName,
		Amount:           e.attempt.Amount,
		CustomerName:     e.attempt.Customer.Name,
		CustomerEmail:    e.attempt.Customer.Email,
		CustomerPhone:    e.attempt.Customer.Phone,
		Status:           model.OrderStatusPending,
		PaymentReference: e.attempt.Reference,
	}
}

func (o *Orchestrator) noteCancel(e *entry, log zerolog.Logger) {
	if e.attempt.CancelRequested {
		log.Info().Str("state", string(e.attempt.State)).Msg("cancel arrived during reconciliation, verification result kept")
	}
}

// allow applies the per-email limit. A limiter outage lets the attempt
// through: payment is still verified before anything is granted.
func (o *Orchestrator) allow(ctx context.Context, email string) bool {
	if o.deps.Limiter == nil || o.cfg.RateLimitMax <= 0 {
		return true
	}
	ok, err := o.deps.Limiter.Allow(ctx, "checkout:"+strings.ToLower(email), o.cfg.RateLimitMax, o.cfg.RateLimitWindow)
	if err != nil {
		o.logger.Error().Err(err).Msg("rate limiter unavailable, allowing attempt")
		return true
	}
	if !ok {
		o.logger.Warn().Str("email", email).Msg("checkout rate limited")
	}
	return ok
}

func (o *Orchestrator) publish(ctx context.Context, eventType string, order *model.Order) {
	event := events.NewOrderEvent(eventType, order, o.clock())
	if err := o.deps.Events.Publish(ctx, event); err != nil {
		o.logger.Error().Err(err).Str("order_id", order.ID).Str("type", eventType).Msg("failed to publish order event")
	}
}

// isTransient reports whether verification failed for want of an answer
// rather than because the provider said no.
func isTransient(err error) bool {
	var netErr *model.NetworkError
	return errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
