// Package jwt issues and verifies the signed bearer credentials behind a session.
//
// A credential carries only subject, issued-at, expiry and a random token id;
// liveness is decided elsewhere by the session registry. Verification failures
// are classified as [ErrMalformed], [ErrExpired] or [ErrSignature] so the caller
// can log the reason while still answering end users with a single signal.
package jwt
