package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goSession/store"
)

const keyPrefix = "rate_limit:"

// Key returns the store key of an identifier's counter.
func Key(identifier string) string { return keyPrefix + identifier }

// Limiter enforces fixed-window limits over a [store.Store].
type Limiter struct {
	store store.Store
}

// New creates a Limiter backed by s.
func New(s store.Store) *Limiter {
	return &Limiter{store: s}
}

// Allow records a hit for identifier and reports whether it is within limit
// for the current window.
func (l *Limiter) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window < time.Second {
		return false, fmt.Errorf("%w: limit=%d window=%s", ErrInvalidLimit, limit, window)
	}

	key := Key(identifier)
	count, err := l.incrementWithTTL(ctx, key, window)
	if err != nil {
		return false, err
	}
	if count <= int64(limit) {
		return true, nil
	}
	l.repairWindow(ctx, key, window)
	return false, nil
}

// Check is Allow expressed as an error: ErrRateLimited when over the limit.
func (l *Limiter) Check(ctx context.Context, identifier string, limit int, window time.Duration) error {
	ok, err := l.Allow(ctx, identifier, limit, window)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}

// Count returns the current counter without incrementing. Missing keys
// return zero.
func (l *Limiter) Count(ctx context.Context, identifier string) (int64, error) {
	raw, ok, err := l.store.Get(ctx, Key(identifier))
	if err != nil || !ok {
		return 0, err
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || count < 0 {
		return 0, nil
	}
	return count, nil
}

// Remaining returns how long the current window has left, or zero when no
// window is open.
func (l *Limiter) Remaining(ctx context.Context, identifier string) (time.Duration, error) {
	ttl, ok, err := l.store.TTL(ctx, Key(identifier))
	if err != nil || !ok || ttl < 0 {
		return 0, err
	}
	return ttl, nil
}

// Reset clears the counter, typically after a successful flow.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	_, err := l.store.Delete(ctx, Key(identifier))
	return err
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return 0, err
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if _, err := l.store.Expire(ctx, key, ttl); err != nil {
			return 0, err
		}
	}

	return count, nil
}

// repairWindow restores the TTL of a counter whose first-hit EXPIRE was lost,
// which would otherwise deny the identifier forever. Best effort.
func (l *Limiter) repairWindow(ctx context.Context, key string, ttl time.Duration) {
	current, ok, err := l.store.TTL(ctx, key)
	if err == nil && ok && current == store.NoExpiry {
		_, _ = l.store.Expire(ctx, key, ttl)
	}
}
