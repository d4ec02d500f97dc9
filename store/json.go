package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SetJSON encodes v as JSON and stores it under key.
func SetJSON[T any](ctx context.Context, s Store, key string, v T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return s.Set(ctx, key, string(raw), ttl)
}

// GetJSON loads key and decodes it into a T. The boolean is false when the
// key is absent.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var out T
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return out, false, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, true, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return out, true, nil
}
