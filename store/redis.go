package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const compareAndDeleteScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var compareAndDeleteLua = redis.NewScript(compareAndDeleteScript)

const scanBatch = 1000

// RedisStore implements [Store] over a go-redis client. Every call runs under
// OperationTimeout in addition to any deadline already on the context.
type RedisStore struct {
	redis     redis.UniversalClient
	opTimeout time.Duration
}

// NewRedis wraps an existing client. A non-positive opTimeout disables the
// per-operation bound.
func NewRedis(client redis.UniversalClient, opTimeout time.Duration) *RedisStore {
	return &RedisStore{redis: client, opTimeout: opTimeout}
}

// DialConfig configures [Dial].
type DialConfig struct {
	URL            string
	ConnectTimeout time.Duration
	OpTimeout      time.Duration
	PoolSize       int
}

// Dial parses a redis:// URL, opens a pooled client and verifies it with PING.
func Dial(ctx context.Context, cfg DialConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.ConnectTimeout > 0 {
		opts.DialTimeout = cfg.ConnectTimeout
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MaxRetries = 3

	client := redis.NewClient(opts)
	s := NewRedis(client, cfg.OpTimeout)
	if _, err := s.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// Client returns the underlying go-redis client.
func (s *RedisStore) Client() redis.UniversalClient {
	return s.redis
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.redis.Close()
}

func (s *RedisStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w: %v", ErrUnavailable, ErrTimeout, err)
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) && strings.HasPrefix(replyErr.Error(), "WRONGTYPE") {
		return fmt.Errorf("%w: %w: %v", ErrUnavailable, ErrWrongType, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Set writes value under key with an optional ttl.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return wrapErr(s.redis.Set(ctx, key, value, wholeSeconds(ttl)).Err())
}

// Get reads key. The boolean is false when the key is absent.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	v, err := s.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapErr(err)
	}
	return v, true, nil
}

// Delete removes keys and reports how many existed.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	n, err := s.redis.Del(ctx, keys...).Result()
	return n, wrapErr(err)
}

// Exists reports whether key is present.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, wrapErr(err)
	}
	return n > 0, nil
}

// Expire sets a ttl on an existing key; false means the key did not exist.
// A non-positive ttl makes the key persistent.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return s.Persist(ctx, key)
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	ok, err := s.redis.Expire(ctx, key, wholeSeconds(ttl)).Result()
	return ok, wrapErr(err)
}

// Persist clears the ttl of key. A key that exists without ttl reports true.
func (s *RedisStore) Persist(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	if _, err := s.redis.Persist(ctx, key).Result(); err != nil {
		return false, wrapErr(err)
	}
	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, wrapErr(err)
	}
	return n > 0, nil
}

// TTL reports the remaining time-to-live, or NoExpiry for persistent keys.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	d, err := s.redis.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, wrapErr(err)
	}
	// go-redis passes the -2/-1 sentinels through unscaled.
	switch {
	case d == -2:
		return 0, false, nil
	case d == -1:
		return NoExpiry, true, nil
	}
	return d, true, nil
}

// Incr atomically increments the integer at key, creating it at 0 first.
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	n, err := s.redis.Incr(ctx, key).Result()
	return n, wrapErr(err)
}

// LPush prepends values and returns the new length.
func (s *RedisStore) LPush(ctx context.Context, key string, values ...string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	n, err := s.redis.LPush(ctx, key, toArgs(values)...).Result()
	return n, wrapErr(err)
}

// RPush appends values and returns the new length.
func (s *RedisStore) RPush(ctx context.Context, key string, values ...string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	n, err := s.redis.RPush(ctx, key, toArgs(values)...).Result()
	return n, wrapErr(err)
}

// LPop removes and returns the head of the list.
func (s *RedisStore) LPop(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return popResult(s.redis.LPop(ctx, key).Result())
}

// RPop removes and returns the tail of the list.
func (s *RedisStore) RPop(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return popResult(s.redis.RPop(ctx, key).Result())
}

func popResult(v string, err error) (string, bool, error) {
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapErr(err)
	}
	return v, true, nil
}

// LLen returns the list length, 0 when absent.
func (s *RedisStore) LLen(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	n, err := s.redis.LLen(ctx, key).Result()
	return n, wrapErr(err)
}

// LTrim keeps only the inclusive [start, stop] range.
func (s *RedisStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return wrapErr(s.redis.LTrim(ctx, key, start, stop).Err())
}

// LRange returns the inclusive [start, stop] range.
func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	v, err := s.redis.LRange(ctx, key, start, stop).Result()
	return v, wrapErr(err)
}

// SAdd adds members to the set at key.
func (s *RedisStore) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return wrapErr(s.redis.SAdd(ctx, key, toArgs(members)...).Err())
}

// SRem removes members from the set at key.
func (s *RedisStore) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return wrapErr(s.redis.SRem(ctx, key, toArgs(members)...).Err())
}

// SMembers returns every member of the set at key.
func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	v, err := s.redis.SMembers(ctx, key).Result()
	return v, wrapErr(err)
}

// SCard returns the set cardinality.
func (s *RedisStore) SCard(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	n, err := s.redis.SCard(ctx, key).Result()
	return n, wrapErr(err)
}

// MGet reads many keys in one round trip.
func (s *RedisStore) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	vals, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[keys[i]] = str
		}
	}
	return out, nil
}

// Keys collects keys matching pattern with SCAN so the server is never blocked.
func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var (
		cursor uint64
		out    []string
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, wrapErr(err)
		}
		out = append(out, keys...)
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

// CompareAndDelete removes key only while it still holds expected.
func (s *RedisStore) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	n, err := compareAndDeleteLua.Run(ctx, s.redis, []string{key}, expected).Int64()
	if err != nil {
		return false, wrapErr(err)
	}
	return n == 1, nil
}

// Ping checks connectivity and returns the round-trip latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, wrapErr(err)
	}
	return time.Since(start), nil
}

func toArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
