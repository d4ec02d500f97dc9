package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

type entryKind uint8

const (
	kindString entryKind = iota
	kindList
	kindSet
)

type entry struct {
	kind      entryKind
	str       string
	list      []string
	set       map[string]struct{}
	expiresAt time.Time
}

// MemoryStore is an in-process [Store] with lazy expiry. It is safe for
// concurrent use.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]*entry
	nowF func() time.Time
}

// NewMemory returns an empty MemoryStore using the wall clock.
func NewMemory() *MemoryStore {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock returns an empty MemoryStore driven by now.
func NewMemoryWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{data: make(map[string]*entry), nowF: now}
}

// lookup returns the live entry for key, dropping it when expired. Callers hold mu.
func (m *MemoryStore) lookup(key string) *entry {
	e, ok := m.data[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !m.nowF().Before(e.expiresAt) {
		delete(m.data, key)
		return nil
	}
	return e
}

func (m *MemoryStore) typed(key string, kind entryKind, create bool) (*entry, error) {
	e := m.lookup(key)
	if e == nil {
		if !create {
			return nil, nil
		}
		e = &entry{kind: kind}
		if kind == kindSet {
			e.set = make(map[string]struct{})
		}
		m.data[key] = e
		return e, nil
	}
	if e.kind != kind {
		return nil, fmt.Errorf("%w: %w: %q", ErrUnavailable, ErrWrongType, key)
	}
	return e, nil
}

func (m *MemoryStore) deadline(ttl time.Duration) time.Time {
	ttl = wholeSeconds(ttl)
	if ttl == 0 {
		return time.Time{}
	}
	return m.nowF().Add(ttl)
}

// Set writes value under key with an optional ttl.
func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = &entry{kind: kindString, str: value, expiresAt: m.deadline(ttl)}
	return nil
}

// Get reads key. The boolean is false when the key is absent.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.typed(key, kindString, false)
	if err != nil || e == nil {
		return "", false, err
	}
	return e.str, true, nil
}

// Delete removes keys and reports how many existed.
func (m *MemoryStore) Delete(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if m.lookup(k) != nil {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

// Exists reports whether key is present.
func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(key) != nil, nil
}

// Expire sets a ttl on an existing key; a non-positive ttl makes it persistent.
func (m *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.lookup(key)
	if e == nil {
		return false, nil
	}
	e.expiresAt = m.deadline(ttl)
	return true, nil
}

// Persist clears the expiry of key; false means the key did not exist.
func (m *MemoryStore) Persist(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.lookup(key)
	if e == nil {
		return false, nil
	}
	e.expiresAt = time.Time{}
	return true, nil
}

// TTL reports the remaining time-to-live, or NoExpiry for persistent keys.
func (m *MemoryStore) TTL(_ context.Context, key string) (time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.lookup(key)
	if e == nil {
		return 0, false, nil
	}
	if e.expiresAt.IsZero() {
		return NoExpiry, true, nil
	}
	return e.expiresAt.Sub(m.nowF()), true, nil
}

// Incr increments the integer at key, creating it at 0 first.
func (m *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.typed(key, kindString, true)
	if err != nil {
		return 0, err
	}
	var n int64
	if e.str != "" {
		n, err = strconv.ParseInt(e.str, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: value at %q is not an integer", ErrUnavailable, key)
		}
	}
	n++
	e.str = strconv.FormatInt(n, 10)
	return n, nil
}

// LPush prepends values to the list at key.
func (m *MemoryStore) LPush(_ context.Context, key string, values ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.typed(key, kindList, true)
	if err != nil {
		return 0, err
	}
	for _, v := range values {
		e.list = append([]string{v}, e.list...)
	}
	return int64(len(e.list)), nil
}

// RPush appends values to the list at key.
func (m *MemoryStore) RPush(_ context.Context, key string, values ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.typed(key, kindList, true)
	if err != nil {
		return 0, err
	}
	e.list = append(e.list, values...)
	return int64(len(e.list)), nil
}

// LPop removes and returns the head of the list.
func (m *MemoryStore) LPop(_ context.Context, key string) (string, bool, error) {
	return m.pop(key, true)
}

// RPop removes and returns the tail of the list.
func (m *MemoryStore) RPop(_ context.Context, key string) (string, bool, error) {
	return m.pop(key, false)
}

func (m *MemoryStore) pop(key string, head bool) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.typed(key, kindList, false)
	if err != nil || e == nil || len(e.list) == 0 {
		return "", false, err
	}
	var v string
	if head {
		v, e.list = e.list[0], e.list[1:]
	} else {
		v, e.list = e.list[len(e.list)-1], e.list[:len(e.list)-1]
	}
	if len(e.list) == 0 {
		delete(m.data, key)
	}
	return v, true, nil
}

// LLen returns the list length.
func (m *MemoryStore) LLen(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.typed(key, kindList, false)
	if err != nil || e == nil {
		return 0, err
	}
	return int64(len(e.list)), nil
}

// LTrim keeps only the inclusive range [start, stop] of the list.
func (m *MemoryStore) LTrim(_ context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.typed(key, kindList, false)
	if err != nil || e == nil {
		return err
	}
	lo, hi, ok := listRange(int64(len(e.list)), start, stop)
	if !ok {
		delete(m.data, key)
		return nil
	}
	e.list = append([]string(nil), e.list[lo:hi]...)
	return nil
}

// LRange returns the inclusive range [start, stop] of the list.
func (m *MemoryStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.typed(key, kindList, false)
	if err != nil || e == nil {
		return nil, err
	}
	lo, hi, ok := listRange(int64(len(e.list)), start, stop)
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), e.list[lo:hi]...), nil
}

// listRange resolves Redis-style inclusive, possibly negative, indexes into a
// half-open slice range.
func listRange(n, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return 0, 0, false
	}
	return start, stop + 1, true
}

// SAdd adds members to the set at key.
func (m *MemoryStore) SAdd(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.typed(key, kindSet, true)
	if err != nil {
		return err
	}
	for _, v := range members {
		e.set[v] = struct{}{}
	}
	return nil
}

// SRem removes members from the set at key. An emptied set is deleted.
func (m *MemoryStore) SRem(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.typed(key, kindSet, false)
	if err != nil || e == nil {
		return err
	}
	for _, v := range members {
		delete(e.set, v)
	}
	if len(e.set) == 0 {
		delete(m.data, key)
	}
	return nil
}

// SMembers returns the set members in sorted order.
func (m *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.typed(key, kindSet, false)
	if err != nil || e == nil {
		return []string{}, err
	}
	out := make([]string, 0, len(e.set))
	for v := range e.set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// SCard returns the set cardinality.
func (m *MemoryStore) SCard(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.typed(key, kindSet, false)
	if err != nil || e == nil {
		return 0, err
	}
	return int64(len(e.set)), nil
}

// MGet reads many string keys at once.
func (m *MemoryStore) MGet(_ context.Context, keys ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if e := m.lookup(k); e != nil && e.kind == kindString {
			out[k] = e.str
		}
	}
	return out, nil
}

// Keys returns live keys matching pattern in sorted order.
func (m *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.data {
		if m.lookup(k) != nil && globMatch(pattern, k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// CompareAndDelete removes key only while it still holds expected.
func (m *MemoryStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.lookup(key)
	if e == nil || e.kind != kindString || e.str != expected {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) (time.Duration, error) {
	return 0, nil
}

// globMatch supports the '*' and '?' wildcards of the Redis SCAN MATCH syntax.
func globMatch(pattern, s string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if pattern == "" {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if globMatch(pattern, s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if s == "" {
				return false
			}
		default:
			if s == "" || s[0] != pattern[0] {
				return false
			}
		}
		pattern, s = pattern[1:], s[1:]
	}
	return s == ""
}
