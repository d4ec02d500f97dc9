// Package stores keeps short-lived one-time verification codes under
// "verification:<identifier>".
//
// A code is single use. Verification compares in constant time and consumes
// the stored value with a compare-and-delete, so two concurrent correct
// submissions cannot both succeed. A wrong candidate leaves the code in place
// until it expires.
//
// # What this package must NOT do
//
//   - Import goSession or any sibling internal package.
//   - Log or expose plaintext codes.
package stores
