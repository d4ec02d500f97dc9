package goSession

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/store"
)

const (
	auditEventSessionIssued    = "session_issued"
	auditEventSessionReplaced  = "session_replaced"
	auditEventVerifyFailure    = "verify_failure"
	auditEventLogoutSession    = "logout_session"
	auditEventLogoutAll        = "logout_all"
	auditEventLogoutDevice     = "logout_device"
	auditEventSweep            = "maintenance_sweep"
	auditEventRateLimited      = "rate_limit_triggered"
	auditEventCodeIssued       = "code_issued"
	auditEventCodeConsumed     = "code_consumed"
	auditEventCodeRejected     = "code_rejected"
	auditEventStoreUnavailable = "store_unavailable"
)

// AuditErrorCode is the coarse failure class recorded on audit events.
type AuditErrorCode string

const (
	auditErrRevoked         AuditErrorCode = "revoked"
	auditErrExpired         AuditErrorCode = "expired"
	auditErrMalformed       AuditErrorCode = "malformed"
	auditErrSignature       AuditErrorCode = "invalid_signature"
	auditErrSubjectMismatch AuditErrorCode = "subject_mismatch"
	auditErrCorrupt         AuditErrorCode = "record_corrupt"
	auditErrRateLimited     AuditErrorCode = "rate_limited"
	auditErrTimeout         AuditErrorCode = "store_timeout"
	auditErrUnavailable     AuditErrorCode = "store_unavailable"
	auditErrUnauthorized    AuditErrorCode = "unauthorized"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectID string,
	credential string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	meta := metadataFromContext(ctx)
	event := AuditEvent{
		Timestamp:     time.Now().UTC(),
		EventType:     eventType,
		SubjectID:     subjectID,
		Fingerprint:   fingerprint(credential),
		SourceAddress: meta.SourceAddress,
		Success:       success,
		Metadata:      metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// fingerprint returns a short stable identifier for a credential that is safe
// to log.
func fingerprint(credential string) string {
	if credential == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:6])
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, store.ErrTimeout):
		return auditErrTimeout
	case errors.Is(err, store.ErrUnavailable):
		return auditErrUnavailable
	case errors.Is(err, session.ErrRevoked):
		return auditErrRevoked
	case errors.Is(err, session.ErrSubjectMismatch):
		return auditErrSubjectMismatch
	case errors.Is(err, session.ErrRecordCorrupt):
		return auditErrCorrupt
	case errors.Is(err, jwt.ErrExpired):
		return auditErrExpired
	case errors.Is(err, jwt.ErrSignature):
		return auditErrSignature
	case errors.Is(err, jwt.ErrMalformed):
		return auditErrMalformed
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	default:
		return auditErrInternal
	}
}
