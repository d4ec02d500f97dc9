// Package rate implements a store-backed fixed-window counter per identifier.
//
// # Window semantics
//
// INCR, then EXPIRE only when the post-increment value is 1. A burst that
// straddles a window boundary can admit up to twice the limit; this is a known
// limitation of fixed windows. Keys use the rate_limit: prefix.
//
// # What this package must NOT do
//
//   - Decide what an identifier means (user, IP, route) or which limits apply.
//   - Be imported outside the goSession module.
package rate
