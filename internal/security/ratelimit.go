package security

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Limiter throttles repeated attempts per identifier (client IP, email).
type Limiter interface {
	// Allow records one attempt for identifier and reports whether it is
	// within maxRequests for the current window.
	Allow(ctx context.Context, identifier string, maxRequests int, window time.Duration) (bool, error)
}

// DefaultMaxKeys bounds the number of identifiers tracked in memory.
const DefaultMaxKeys = 100_000

type rateWindow struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a fixed-window counter held in process memory.
// The map is bounded by maxKeys and swept of expired windows periodically.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	maxKeys int
	now     func() time.Time
	logger  zerolog.Logger
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter creates an in-memory limiter tracking at most maxKeys identifiers.
func NewMemoryLimiter(maxKeys int, logger zerolog.Logger) *MemoryLimiter {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &MemoryLimiter{
		windows: make(map[string]*rateWindow),
		maxKeys: maxKeys,
		now:     time.Now,
		logger:  logger.With().Str("component", "rate-limiter").Logger(),
	}
}

// SetClock replaces the time source. Intended for tests.
func (l *MemoryLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Allow implements Limiter. The count is incremented before the check, so
// once the limit is exceeded every further call in the window is denied.
func (l *MemoryLimiter) Allow(_ context.Context, identifier string, maxRequests int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[identifier]
	if !ok || !now.Before(w.resetAt) {
		if !ok && len(l.windows) >= l.maxKeys {
			l.evictLocked(now)
		}
		l.windows[identifier] = &rateWindow{count: 1, resetAt: now.Add(window)}
		return true, nil
	}

	w.count++
	if w.count > maxRequests {
		l.logger.Debug().
			Str("identifier", identifier).
			Int("count", w.count).
			Int("max_requests", maxRequests).
			Msg("rate limit exceeded")
		return false, nil
	}
	return true, nil
}

// Len returns the number of tracked identifiers.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Sweep removes every expired window and returns how many were removed.
func (l *MemoryLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(l.now())
}

// Run sweeps expired windows every interval until ctx is done.
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 {
				l.logger.Debug().Int("removed", removed).Msg("expired rate windows swept")
			}
		}
	}
}

func (l *MemoryLimiter) sweepLocked(now time.Time) int {
	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// evictLocked makes room for one new identifier: expired windows go first,
// then the window closest to expiry.
func (l *MemoryLimiter) evictLocked(now time.Time) {
	if l.sweepLocked(now) > 0 {
		return
	}

	var (
		oldestKey string
		oldestAt  time.Time
	)
	for key, w := range l.windows {
		if oldestKey == "" || w.resetAt.Before(oldestAt) {
			oldestKey, oldestAt = key, w.resetAt
		}
	}
	if oldestKey != "" {
		delete(l.windows, oldestKey)
		l.logger.Warn().
			Str("identifier", oldestKey).
			Int("max_keys", l.maxKeys).
			Msg("rate limiter full, evicted oldest window")
	}
}
