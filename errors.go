package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/internal/stores"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/store"
)

var (
	// ErrUnauthorized is matched by every credential verification failure.
	ErrUnauthorized = session.ErrUnauthorized
	// ErrSessionRevoked is joined into rejections of credentials without a live record.
	ErrSessionRevoked = session.ErrRevoked
	// ErrSubjectMismatch is joined into rejections where the record names another subject.
	ErrSubjectMismatch = session.ErrSubjectMismatch
	// ErrRecordCorrupt is joined into rejections of undecodable records.
	ErrRecordCorrupt = session.ErrRecordCorrupt

	// ErrTokenMalformed, ErrTokenExpired and ErrTokenSignature classify codec failures.
	ErrTokenMalformed = jwt.ErrMalformed
	ErrTokenExpired   = jwt.ErrExpired
	ErrTokenSignature = jwt.ErrSignature

	// ErrStoreUnavailable marks infrastructure failures; they are retryable.
	ErrStoreUnavailable = store.ErrUnavailable
	// ErrStoreTimeout marks infrastructure failures caused by an exceeded deadline.
	ErrStoreTimeout = store.ErrTimeout

	ErrRateLimited  = rate.ErrRateLimited
	ErrInvalidLimit = rate.ErrInvalidLimit
	ErrInvalidCode  = stores.ErrInvalidCode

	// ErrInvalidDeviceClass rejects unknown device class names.
	ErrInvalidDeviceClass = errors.New("invalid device class")
	// ErrEngineNotReady is returned by methods of a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// IsInfrastructure reports whether err stems from the backing store rather
// than from the credential itself.
func IsInfrastructure(err error) bool {
	return errors.Is(err, store.ErrUnavailable)
}
