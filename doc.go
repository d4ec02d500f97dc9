// Package goSession manages the lifecycle of stateless bearer credentials
// backed by server-side session records.
//
// A credential is a signed JWT whose validity also requires a live record in
// the store. Revoking the record revokes the credential before its signature
// expires. Records are indexed per subject so that every session of a subject,
// or the one session of a device class, can be revoked at once.
//
// The same store also backs a fixed-window rate limiter, single-use
// verification codes and a small JSON cache.
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config]
// and value types (IssuedSession, Identity, SessionInfo, MetricsSnapshot).
// Key layout, record encoding and limiter mechanics live in sub-packages
// (session, store, internal/rate, internal/stores).
//
// # Error contract
//
// Every verification failure matches [ErrUnauthorized]. Failures caused by
// the store additionally match [ErrStoreUnavailable]; callers should treat
// them as retryable and must not mistake them for a revoked session. Write
// operations return store errors unchanged.
//
// # Concurrency
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build]. Issue and revoke-all are not atomic across keys; see the
// session package for the resulting races.
package goSession
