// Package store is the only layer that talks to the external key-value store.
//
// It exposes a small primitive surface (strings, counters, lists, sets, multi-get,
// key iteration and a compare-and-delete) that every other package builds on.
// [RedisStore] is the production implementation; [MemoryStore] is an in-process
// implementation of the same contract for tests and embedded tooling.
//
// # Error contract
//
// Absence is never an error: lookups report it through a boolean. Transport and
// protocol failures wrap [ErrUnavailable]; deadline failures additionally wrap
// [ErrTimeout] so callers can retry them.
//
// # What this package must NOT do
//
//   - Interpret the values it stores (beyond the JSON helpers).
//   - Import session, jwt, or the root package.
package store
