package goSession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/cache"
	"github.com/MrEthical07/goSession/device"
	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/internal/stores"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/store"
	"go.uber.org/zap"
)

// Engine is the entry point for session issuance, verification and
// revocation, plus the rate limiter, one-time codes and cache built on the same
// store. It is safe for concurrent use after [Builder.Build].
type Engine struct {
	config   Config
	store    store.Store
	codec    *jwt.Manager
	registry *session.Registry
	limiter  *rate.Limiter
	codes    *stores.CodeStore
	cache    *cache.Cache
	metrics  *Metrics
	audit    *auditDispatcher
	sweeper  *session.Sweeper
	log      *zap.Logger
}

// IssuedSession is returned by [Engine.IssueSession].
type IssuedSession struct {
	Credential  string
	SubjectID   string
	DeviceClass device.Class
	DeviceLabel string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	// Replaced counts same-class sessions revoked by this issuance.
	Replaced int
}

// Identity is the verified caller behind a credential.
type Identity struct {
	SubjectID   string
	TokenID     string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	DeviceClass device.Class
	DeviceLabel string
}

// SessionInfo is one entry of a session listing.
type SessionInfo struct {
	Fingerprint   string       `json:"id"`
	DeviceClass   device.Class `json:"device_type"`
	DeviceLabel   string       `json:"device_name,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	ExpiresAt     time.Time    `json:"expires_at"`
	SourceAddress string       `json:"ip_address,omitempty"`
	Current       bool         `json:"is_current"`
}

// HealthStatus reports store reachability.
type HealthStatus struct {
	Healthy bool
	Latency time.Duration
	Error   string
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// storeFailure counts and logs infrastructure errors; other errors pass through.
func (e *Engine) storeFailure(ctx context.Context, op string, err error) error {
	if err != nil && IsInfrastructure(err) {
		e.metricInc(MetricStoreFailure)
		e.log.Warn("store operation failed", zap.String("op", op), zap.Error(err))
		e.emitAudit(ctx, auditEventStoreUnavailable, false, "", "", err, func() map[string]string {
			return map[string]string{"op": op}
		})
	}
	return err
}

// IssueSession creates a credential for subjectID. User agent, device hint and
// client address are read from ctx (see [WithUserAgent], [WithDeviceHint],
// [WithClientIP]). Store failures are returned; the session must then be
// treated as not created.
func (e *Engine) IssueSession(ctx context.Context, subjectID string) (*IssuedSession, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	out, err := e.registry.Issue(ctx, subjectID, metadataFromContext(ctx))
	if err != nil {
		return nil, e.storeFailure(ctx, "issue", err)
	}

	e.metricInc(MetricSessionIssued)
	if out.Replaced > 0 {
		e.metrics.Add(MetricSessionReplaced, uint64(out.Replaced))
		e.emitAudit(ctx, auditEventSessionReplaced, true, subjectID, "", nil, func() map[string]string {
			return map[string]string{"device_class": out.Record.DeviceType.String(), "replaced": fmt.Sprint(out.Replaced)}
		})
	}
	e.emitAudit(ctx, auditEventSessionIssued, true, subjectID, out.Credential, nil, func() map[string]string {
		return map[string]string{"device_class": out.Record.DeviceType.String(), "device_label": out.Record.DeviceLabel}
	})

	return &IssuedSession{
		Credential:  out.Credential,
		SubjectID:   subjectID,
		DeviceClass: out.Record.DeviceType,
		DeviceLabel: out.Record.DeviceLabel,
		IssuedAt:    out.Record.Created(),
		ExpiresAt:   out.Record.Expires(),
		Replaced:    out.Replaced,
	}, nil
}

// Verify authenticates credential. Every failure matches ErrUnauthorized;
// infrastructure causes additionally match ErrStoreUnavailable and are logged
// here with detail so callers can answer with a plain 401.
func (e *Engine) Verify(ctx context.Context, credential string) (*Identity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() { e.metrics.Observe(MetricVerifyLatency, time.Since(start)) }()
	}

	claims, rec, err := e.registry.Verify(ctx, credential)
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		switch {
		case IsInfrastructure(err):
			e.metricInc(MetricVerifyStoreFailure)
			_ = e.storeFailure(ctx, "verify", err)
		case errors.Is(err, session.ErrRevoked):
			e.metricInc(MetricVerifyRevoked)
		}
		e.log.Debug("credential rejected", zap.String("credential_fp", fingerprint(credential)), zap.Error(err))
		e.emitAudit(ctx, auditEventVerifyFailure, false, "", credential, err, nil)
		return nil, err
	}

	e.metricInc(MetricVerifySuccess)
	id := &Identity{
		SubjectID:   claims.Subject,
		TokenID:     claims.ID,
		ExpiresAt:   rec.Expires(),
		DeviceClass: rec.DeviceType,
		DeviceLabel: rec.DeviceLabel,
	}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// Revoke revokes one credential of subjectID. It is idempotent.
func (e *Engine) Revoke(ctx context.Context, subjectID, credential string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.registry.Revoke(ctx, subjectID, credential); err != nil {
		return e.storeFailure(ctx, "revoke", err)
	}
	e.metricInc(MetricRevoke)
	e.emitAudit(ctx, auditEventLogoutSession, true, subjectID, credential, nil, nil)
	return nil
}

// Logout verifies credential and revokes it.
func (e *Engine) Logout(ctx context.Context, credential string) error {
	id, err := e.Verify(ctx, credential)
	if err != nil {
		return err
	}
	return e.Revoke(ctx, id.SubjectID, credential)
}

// LogoutAll revokes every session of subjectID and returns how many were
// indexed before the revocation. Sessions issued concurrently may survive.
func (e *Engine) LogoutAll(ctx context.Context, subjectID string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.registry.RevokeAll(ctx, subjectID)
	if err != nil {
		return 0, e.storeFailure(ctx, "revoke_all", err)
	}
	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, subjectID, "", nil, func() map[string]string {
		return map[string]string{"revoked": fmt.Sprint(n)}
	})
	return n, nil
}

// RevokeDevice revokes the subject's session of the named device class.
// Finding none is not an error.
func (e *Engine) RevokeDevice(ctx context.Context, subjectID, class string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}
	c, ok := device.ParseClass(class)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrInvalidDeviceClass, class)
	}
	found, err := e.registry.RevokeDevice(ctx, subjectID, c)
	if err != nil {
		return false, e.storeFailure(ctx, "revoke_device", err)
	}
	if found {
		e.metricInc(MetricRevokeDevice)
	}
	e.emitAudit(ctx, auditEventLogoutDevice, true, subjectID, "", nil, func() map[string]string {
		return map[string]string{"device_class": c.String(), "found": fmt.Sprint(found)}
	})
	return found, nil
}

// LogoutDevice verifies credential and revokes its subject's session of class.
func (e *Engine) LogoutDevice(ctx context.Context, credential, class string) (bool, error) {
	id, err := e.Verify(ctx, credential)
	if err != nil {
		return false, err
	}
	return e.RevokeDevice(ctx, id.SubjectID, class)
}

// Sessions lists the live sessions of subjectID, newest first.
func (e *Engine) Sessions(ctx context.Context, subjectID string) ([]SessionInfo, error) {
	return e.listSessions(ctx, subjectID, "")
}

// ListSessions verifies credential and lists its subject's sessions, marking
// the caller's own session as current.
func (e *Engine) ListSessions(ctx context.Context, credential string) ([]SessionInfo, error) {
	id, err := e.Verify(ctx, credential)
	if err != nil {
		return nil, err
	}
	return e.listSessions(ctx, id.SubjectID, credential)
}

func (e *Engine) listSessions(ctx context.Context, subjectID, current string) ([]SessionInfo, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	sessions, err := e.registry.Sessions(ctx, subjectID)
	if err != nil {
		return nil, e.storeFailure(ctx, "sessions", err)
	}
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionInfo{
			Fingerprint:   fingerprint(s.Credential),
			DeviceClass:   s.Record.DeviceType,
			DeviceLabel:   s.Record.DeviceLabel,
			CreatedAt:     s.Record.Created(),
			ExpiresAt:     s.Record.Expires(),
			SourceAddress: s.Record.SourceAddress,
			Current:       current != "" && s.Credential == current,
		})
	}
	return out, nil
}

// SessionCount returns the size of the subject's index.
func (e *Engine) SessionCount(ctx context.Context, subjectID string) (int64, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.registry.Count(ctx, subjectID)
	return n, e.storeFailure(ctx, "count", err)
}

// SessionInfo returns the stored record of credential without verifying it.
func (e *Engine) SessionInfo(ctx context.Context, credential string) (*session.Record, bool, error) {
	if e == nil {
		return nil, false, ErrEngineNotReady
	}
	rec, ok, err := e.registry.Info(ctx, credential)
	return rec, ok, e.storeFailure(ctx, "info", err)
}

// Sweep runs one maintenance pass and returns the number of records removed.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.registry.Sweep(ctx)
	e.recordSweep(ctx, n, err)
	return n, e.storeFailure(ctx, "sweep", err)
}

func (e *Engine) recordSweep(ctx context.Context, removed int, err error) {
	e.metrics.Add(MetricSweepRemoved, uint64(removed))
	e.emitAudit(ctx, auditEventSweep, err == nil, "", "", err, func() map[string]string {
		return map[string]string{"removed": fmt.Sprint(removed)}
	})
}

// Allow records a hit for identifier against a fixed window.
func (e *Engine) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	err := e.CheckRate(ctx, identifier, limit, window)
	if errors.Is(err, ErrRateLimited) {
		return false, nil
	}
	return err == nil, err
}

// CheckRate is [Engine.Allow] expressed as an error: ErrRateLimited once the
// window is exhausted.
func (e *Engine) CheckRate(ctx context.Context, identifier string, limit int, window time.Duration) error {
	if e == nil {
		return ErrEngineNotReady
	}
	err := e.limiter.Check(ctx, identifier, limit, window)
	switch {
	case err == nil:
		e.metricInc(MetricRateLimitAllowed)
		return nil
	case errors.Is(err, ErrRateLimited):
		e.metricInc(MetricRateLimitDenied)
		e.emitAudit(ctx, auditEventRateLimited, false, "", "", err, func() map[string]string {
			return map[string]string{"identifier": logging.MaskIdentifier(identifier)}
		})
		return err
	}
	return e.storeFailure(ctx, "rate_limit", err)
}

// RateCount returns the current window count for identifier.
func (e *Engine) RateCount(ctx context.Context, identifier string) (int64, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.limiter.Count(ctx, identifier)
	return n, e.storeFailure(ctx, "rate_count", err)
}

// RateRemaining returns how long the identifier's current window has left.
func (e *Engine) RateRemaining(ctx context.Context, identifier string) (time.Duration, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	d, err := e.limiter.Remaining(ctx, identifier)
	return d, e.storeFailure(ctx, "rate_remaining", err)
}

// ResetRate clears the identifier's counter.
func (e *Engine) ResetRate(ctx context.Context, identifier string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.storeFailure(ctx, "rate_reset", e.limiter.Reset(ctx, identifier))
}

// IssueCode stores code for identifier, replacing any previous one.
func (e *Engine) IssueCode(ctx context.Context, identifier, code string, ttl time.Duration) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.codes.Issue(ctx, identifier, code, ttl); err != nil {
		return e.storeFailure(ctx, "code_issue", err)
	}
	e.metricInc(MetricCodeIssued)
	e.emitAudit(ctx, auditEventCodeIssued, true, "", "", nil, nil)
	return nil
}

// GenerateCode issues a random numeric code using the configured length and
// lifetime and returns it for delivery.
func (e *Engine) GenerateCode(ctx context.Context, identifier string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	code, err := internal.NewOTP(e.config.Codes.Digits)
	if err != nil {
		return "", err
	}
	if err := e.IssueCode(ctx, identifier, code, e.config.Codes.TTL); err != nil {
		return "", err
	}
	return code, nil
}

// VerifyCode consumes the identifier's code if candidate matches. A wrong
// candidate leaves the code in place.
func (e *Engine) VerifyCode(ctx context.Context, identifier, candidate string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}
	ok, err := e.codes.VerifyAndConsume(ctx, identifier, candidate)
	if err != nil {
		return false, e.storeFailure(ctx, "code_verify", err)
	}
	if ok {
		e.metricInc(MetricCodeConsumed)
		e.emitAudit(ctx, auditEventCodeConsumed, true, "", "", nil, nil)
	} else {
		e.metricInc(MetricCodeRejected)
		e.emitAudit(ctx, auditEventCodeRejected, false, "", "", nil, nil)
	}
	return ok, nil
}

// CodePending reports whether an unconsumed code exists for identifier.
func (e *Engine) CodePending(ctx context.Context, identifier string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}
	ok, err := e.codes.Peek(ctx, identifier)
	if err != nil {
		return false, e.storeFailure(ctx, "code_peek", err)
	}
	return ok, nil
}

// Cache returns the generic cache bound to the engine's store.
func (e *Engine) Cache() *cache.Cache {
	if e == nil {
		return nil
	}
	return e.cache
}

// Health pings the store.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil {
		return HealthStatus{Error: ErrEngineNotReady.Error()}
	}
	latency, err := e.store.Ping(ctx)
	if err != nil {
		return HealthStatus{Latency: latency, Error: err.Error()}
	}
	return HealthStatus{Healthy: true, Latency: latency}
}

// MetricsSnapshot returns a copy of the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Close stops the background sweeper and drains pending audit events. The
// store handle is owned by the caller and left open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.sweeper != nil {
		e.sweeper.Stop()
	}
	e.audit.Close()
	_ = e.log.Sync()
}
