// Package cache offers JSON blob caching for users and generic sessions,
// bounded recent-item lists, batch access and a store health check.
//
// Keys are user:<id> and session:<id>. Lists use caller-supplied keys.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/store"
)

const (
	userPrefix    = "user:"
	sessionPrefix = "session:"
	healthKey     = "health_check_test"
)

// Cache wraps a store with the cache key scheme. A ttl of zero passed to any
// write uses DefaultTTL; a negative ttl stores without expiry.
type Cache struct {
	store      store.Store
	defaultTTL time.Duration
}

// New returns a Cache. defaultTTL may be zero for "no expiry by default".
func New(s store.Store, defaultTTL time.Duration) *Cache {
	return &Cache{store: s, defaultTTL: defaultTTL}
}

// UserKey returns the cache key for a user blob.
func UserKey(id string) string { return userPrefix + id }

// SessionKey returns the cache key for a generic session blob.
func SessionKey(id string) string { return sessionPrefix + id }

func (c *Cache) ttl(ttl time.Duration) time.Duration {
	switch {
	case ttl < 0:
		return 0
	case ttl == 0:
		return c.defaultTTL
	}
	return ttl
}

func (c *Cache) put(ctx context.Context, key string, v any, ttl time.Duration) error {
	return store.SetJSON(ctx, c.store, key, v, c.ttl(ttl))
}

func (c *Cache) get(ctx context.Context, key string, out any) (bool, error) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return true, fmt.Errorf("%w: %v", store.ErrEncoding, err)
	}
	return true, nil
}

func (c *Cache) del(ctx context.Context, key string) (bool, error) {
	n, err := c.store.Delete(ctx, key)
	return n > 0, err
}

// PutUser caches v under user:<id>.
func (c *Cache) PutUser(ctx context.Context, id string, v any, ttl time.Duration) error {
	return c.put(ctx, UserKey(id), v, ttl)
}

// User decodes the cached user into out and reports whether it was present.
func (c *Cache) User(ctx context.Context, id string, out any) (bool, error) {
	return c.get(ctx, UserKey(id), out)
}

// ClearUser drops the cached user and reports whether it existed.
func (c *Cache) ClearUser(ctx context.Context, id string) (bool, error) {
	return c.del(ctx, UserKey(id))
}

// PutSession caches v under session:<id>.
func (c *Cache) PutSession(ctx context.Context, id string, v any, ttl time.Duration) error {
	return c.put(ctx, SessionKey(id), v, ttl)
}

// Session decodes the cached session into out and reports whether it was present.
func (c *Cache) Session(ctx context.Context, id string, out any) (bool, error) {
	return c.get(ctx, SessionKey(id), out)
}

// DeleteSession drops the cached session and reports whether it existed.
func (c *Cache) DeleteSession(ctx context.Context, id string) (bool, error) {
	return c.del(ctx, SessionKey(id))
}

// ExtendSession resets the cached session's ttl; a resolved ttl of zero
// removes its expiry. False means it was absent.
func (c *Cache) ExtendSession(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return c.store.Expire(ctx, SessionKey(id), c.ttl(ttl))
}

// Push prepends v to the list at key and trims it to maxLen newest items.
// A non-positive maxLen leaves the list unbounded.
func (c *Cache) Push(ctx context.Context, key string, v any, maxLen int64) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrEncoding, err)
	}
	if _, err := c.store.LPush(ctx, key, string(raw)); err != nil {
		return err
	}
	if maxLen > 0 {
		return c.store.LTrim(ctx, key, 0, maxLen-1)
	}
	return nil
}

// Items decodes the inclusive [start, stop] range of the list at key.
func Items[T any](ctx context.Context, c *Cache, key string, start, stop int64) ([]T, error) {
	raws, err := c.store.LRange(ctx, key, start, stop)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var item T
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrEncoding, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// SetMany writes raw string values under their keys with a shared ttl.
func (c *Cache) SetMany(ctx context.Context, items map[string]string, ttl time.Duration) error {
	ttl = c.ttl(ttl)
	for k, v := range items {
		if err := c.store.Set(ctx, k, v, ttl); err != nil {
			return err
		}
	}
	return nil
}

// GetMany reads keys in one round trip; absent keys are omitted.
func (c *Cache) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	return c.store.MGet(ctx, keys...)
}

// Healthy checks the store with a short-lived write followed by a delete.
func (c *Cache) Healthy(ctx context.Context) bool {
	if err := c.store.Set(ctx, healthKey, "ok", time.Second); err != nil {
		return false
	}
	_, _ = c.store.Delete(ctx, healthKey)
	return true
}
