package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable wraps every transport or protocol failure of the backing store.
	ErrUnavailable = errors.New("store unavailable")
	// ErrTimeout marks failures caused by an exceeded deadline. It is always
	// reported together with ErrUnavailable.
	ErrTimeout = errors.New("store operation timed out")
	// ErrWrongType is returned when a key holds a value of another kind.
	ErrWrongType = errors.New("store key holds the wrong kind of value")
	// ErrEncoding is returned by the JSON helpers when a value cannot be encoded or decoded.
	ErrEncoding = errors.New("store value encoding failed")
)

// NoExpiry is reported by TTL for keys that exist without a time-to-live.
const NoExpiry time.Duration = -1

// Store is the primitive key-value surface. A ttl of zero means "no expiry";
// positive ttls are applied in whole seconds.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Expire sets a ttl on an existing key. A ttl of zero or less removes
	// the expiry instead, as Persist does.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Persist removes the ttl of key; false means the key did not exist.
	Persist(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
	Incr(ctx context.Context, key string) (int64, error)

	LPush(ctx context.Context, key string, values ...string) (int64, error)
	RPush(ctx context.Context, key string, values ...string) (int64, error)
	LPop(ctx context.Context, key string) (string, bool, error)
	RPop(ctx context.Context, key string) (string, bool, error)
	LLen(ctx context.Context, key string) (int64, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)

	// MGet returns only the keys that exist.
	MGet(ctx context.Context, keys ...string) (map[string]string, error)
	// Keys iterates the keyspace incrementally; pattern uses glob syntax.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// CompareAndDelete deletes key only if it currently holds expected.
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	Ping(ctx context.Context) (time.Duration, error)
}

func wholeSeconds(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	if ttl < time.Second {
		return time.Second
	}
	return ttl.Truncate(time.Second)
}
