package stores

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/store"
)

const codePrefix = "verification:"

// ErrInvalidCode rejects empty codes and sub-second lifetimes at issue time.
var ErrInvalidCode = errors.New("invalid verification code")

// CodeKey returns the store key of an identifier's code.
func CodeKey(identifier string) string { return codePrefix + identifier }

// CodeStore keeps one short-lived code per identifier, consumed at most once.
type CodeStore struct {
	store store.Store
}

// NewCodeStore creates a CodeStore backed by s.
func NewCodeStore(s store.Store) *CodeStore {
	return &CodeStore{store: s}
}

// Issue stores code for identifier, replacing any earlier code.
func (c *CodeStore) Issue(ctx context.Context, identifier, code string, ttl time.Duration) error {
	if code == "" || ttl < time.Second {
		return fmt.Errorf("%w: code must be non-empty and live at least one second", ErrInvalidCode)
	}
	return c.store.Set(ctx, CodeKey(identifier), code, ttl)
}

// VerifyAndConsume reports whether candidate matches the stored code and, if so,
// deletes it. A mismatch leaves the stored code in place so the caller can retry.
// Under concurrent submissions of the correct code exactly one caller wins.
func (c *CodeStore) VerifyAndConsume(ctx context.Context, identifier, candidate string) (bool, error) {
	if candidate == "" {
		return false, nil
	}
	key := CodeKey(identifier)

	stored, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) != 1 {
		return false, nil
	}

	return c.store.CompareAndDelete(ctx, key, stored)
}

// Peek reports whether a code is pending for identifier without consuming it.
func (c *CodeStore) Peek(ctx context.Context, identifier string) (bool, error) {
	return c.store.Exists(ctx, CodeKey(identifier))
}
