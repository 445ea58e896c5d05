package payment

import (
	"context"
	"net/url"
	"sync"
	"time"

	"digistore/internal/model"
	"digistore/internal/security"

	"github.com/rs/zerolog"
)

// DemoAmount is what the demo gateway reports for transactions it did not start.
const DemoAmount int64 = 5000

// Initialized amounts are forgotten after demoAmountTTL, and at most
// demoMaxAmounts are held at once.
const (
	demoAmountTTL  = time.Hour
	demoMaxAmounts = 10_000
)

type demoAmount struct {
	amount    int64
	createdAt time.Time
}

// Demo simulates a provider that accepts every payment. It never moves money
// and must only be selected by configuration.
type Demo struct {
	redirectURL string
	delay       time.Duration
	refs        *security.ReferenceGenerator
	logger      zerolog.Logger

	ttl        time.Duration
	maxAmounts int
	clock      func() time.Time

	mu      sync.Mutex
	amounts map[string]demoAmount
}

var _ Gateway = (*Demo)(nil)

// NewDemo creates a demo gateway that waits delay before every verification.
func NewDemo(redirectURL string, delay time.Duration, logger zerolog.Logger) *Demo {
	return &Demo{
		redirectURL: redirectURL,
		delay:       delay,
		refs:        security.NewReferenceGenerator(),
		logger:      logger.With().Str("component", "demo-gateway").Logger(),
		ttl:         demoAmountTTL,
		maxAmounts:  demoMaxAmounts,
		clock:       time.Now,
		amounts:     make(map[string]demoAmount),
	}
}

func (d *Demo) Name() string { return "demo" }

func (d *Demo) Live() bool { return false }

func (d *Demo) GenerateReference() string {
	return d.refs.Generate(security.DefaultReferencePrefix)
}

// Initialize returns a redirect link that already reports success. The
// reference doubles as the demo transaction id.
func (d *Demo) Initialize(_ context.Context, req PaymentRequest) (*Initialization, error) {
	d.remember(req.Reference, req.Amount)

	base := req.RedirectURL
	if base == "" {
		base = d.redirectURL
	}
	q := url.Values{}
	q.Set("tx_ref", req.Reference)
	q.Set("transaction_id", req.Reference)
	q.Set("status", CallbackSuccessful)

	d.logger.Warn().
		Str("reference", req.Reference).
		Int64("amount", req.Amount).
		Msg("demo payment initialized, no money will move")

	return &Initialization{Reference: req.Reference, RedirectLink: base + "?" + q.Encode()}, nil
}

// Verify waits the configured delay and reports success.
func (d *Demo) Verify(ctx context.Context, transactionID string) (*Verification, error) {
	if d.delay > 0 {
		timer := time.NewTimer(d.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, &model.NetworkError{Op: "demo verify", Err: ctx.Err()}
		case <-timer.C:
		}
	}

	amount := DemoAmount
	d.mu.Lock()
	if entry, ok := d.amounts[transactionID]; ok {
		if d.clock().Sub(entry.createdAt) < d.ttl {
			amount = entry.amount
		}
		delete(d.amounts, transactionID)
	}
	d.mu.Unlock()

	return &Verification{
		TransactionID: transactionID,
		Reference:     transactionID,
		Amount:        amount,
		Currency:      Currency,
		Status:        VerifiedStatus,
	}, nil
}

// remember records amount for reference. Expired entries are dropped first;
// if the map is still full the oldest entry goes.
func (d *Demo) remember(reference string, amount int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock()
	for ref, entry := range d.amounts {
		if now.Sub(entry.createdAt) >= d.ttl {
			delete(d.amounts, ref)
		}
	}

	if _, exists := d.amounts[reference]; !exists && len(d.amounts) >= d.maxAmounts {
		oldest := ""
		var oldestAt time.Time
		for ref, entry := range d.amounts {
			if oldest == "" || entry.createdAt.Before(oldestAt) {
				oldest, oldestAt = ref, entry.createdAt
			}
		}
		delete(d.amounts, oldest)
		d.logger.Debug().Str("reference", oldest).Msg("demo amount evicted")
	}

	d.amounts[reference] = demoAmount{amount: amount, createdAt: now}
}

// pending returns how many initialized amounts are held.
func (d *Demo) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.amounts)
}
