// Package middleware adapts [goSession.Engine] to net/http.
//
//   - [Guard] verifies the bearer credential and stores the identity in the
//     request context.
//   - [RequestMetadata] records user agent, device hint and client address for
//     session issuance.
//   - [RateLimit] applies a fixed-window budget per request key.
//
// The package makes no decisions of its own beyond pass or reject.
package middleware
