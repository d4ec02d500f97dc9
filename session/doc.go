// Package session tracks issued credentials in the external store so they can
// be revoked before their natural expiry.
//
// # Keys
//
//   - auth:token:<credential> holds the JSON [Record] with a TTL equal to the
//     credential's validity window.
//   - auth:user_tokens:<subject> is a set of the subject's credentials whose TTL
//     is the validity window plus [DefaultIndexGrace].
//
// A credential is live if and only if its record exists. The subject index is a
// hint used for enumeration; every decision is confirmed against the record, and
// dangling index members are pruned opportunistically.
//
// # Architecture boundaries
//
// The [Registry] owns the record and index keys. It delegates signing to a
// [Codec] and device parsing to the device package. It does NOT speak HTTP,
// emit metrics, or decide how failures are presented to end users.
package session
