// Package internal holds helpers private to goSession.
//
// # Sub-packages
//
//   - config: environment and .env loading for the binaries
//   - logging: zap logger construction and masking fields
//   - rate: fixed-window counters over the store
//   - stores: one-time verification code storage
package internal
