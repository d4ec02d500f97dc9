package goSession

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/device"
	"github.com/MrEthical07/goSession/session"
)

const (
	chromeWindowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	iphoneUA        = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

func uaContext(ua string) context.Context {
	return WithUserAgent(context.Background(), ua)
}

func TestEngineIssueVerifyRoundTrip(t *testing.T) {
	engine, mr := buildRedisEngine(t, testConfig(), nil)

	ctx := WithClientIP(uaContext(chromeWindowsUA), "203.0.113.7")
	issued, err := engine.IssueSession(ctx, "u1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if issued.DeviceClass != device.Web || issued.DeviceLabel != "Chrome on Windows 10" {
		t.Fatalf("unexpected device: %q %q", issued.DeviceClass, issued.DeviceLabel)
	}
	if !mr.Exists(session.RecordKey(issued.Credential)) {
		t.Fatal("expected session record in store")
	}
	if ok, _ := mr.SIsMember(session.IndexKey("u1"), issued.Credential); !ok {
		t.Fatal("expected credential in subject index")
	}

	id, err := engine.Verify(context.Background(), issued.Credential)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if id.SubjectID != "u1" || id.DeviceClass != device.Web || id.TokenID == "" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if got := id.ExpiresAt.Sub(id.IssuedAt); got != 24*time.Hour {
		t.Fatalf("expected 24h validity, got %v", got)
	}

	rec, ok, err := engine.SessionInfo(context.Background(), issued.Credential)
	if err != nil || !ok {
		t.Fatalf("session info: ok=%v err=%v", ok, err)
	}
	if rec.SourceAddress != "203.0.113.7" {
		t.Fatalf("expected source address recorded, got %q", rec.SourceAddress)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricSessionIssued] != 1 || snap.Counters[MetricVerifySuccess] != 1 {
		t.Fatalf("unexpected counters: %v", snap.Counters)
	}
}

func TestEngineVerifyRejectsGarbageAsUnauthorized(t *testing.T) {
	engine := buildMemoryEngine(t, testConfig())

	for _, cred := range []string{"", "garbage", "a.b.c"} {
		_, err := engine.Verify(context.Background(), cred)
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("credential %q: expected ErrUnauthorized, got %v", cred, err)
		}
		if IsInfrastructure(err) {
			t.Fatalf("credential %q: malformed input must not look like an outage", cred)
		}
	}
}

func TestEngineSameDeviceReplacesSession(t *testing.T) {
	engine, _ := buildRedisEngine(t, testConfig(), nil)
	ctx := uaContext(iphoneUA)

	first, err := engine.IssueSession(ctx, "u1")
	if err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	web, err := engine.IssueSession(uaContext(chromeWindowsUA), "u1")
	if err != nil {
		t.Fatalf("web issue failed: %v", err)
	}
	second, err := engine.IssueSession(ctx, "u1")
	if err != nil {
		t.Fatalf("second issue failed: %v", err)
	}
	if second.Replaced != 1 {
		t.Fatalf("expected one replaced session, got %d", second.Replaced)
	}

	if _, err := engine.Verify(context.Background(), first.Credential); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected replaced credential revoked, got %v", err)
	}
	for _, cred := range []string{web.Credential, second.Credential} {
		if _, err := engine.Verify(context.Background(), cred); err != nil {
			t.Fatalf("expected credential to stay valid: %v", err)
		}
	}
	if n, _ := engine.SessionCount(context.Background(), "u1"); n != 2 {
		t.Fatalf("expected 2 indexed sessions, got %d", n)
	}
	if got := engine.MetricsSnapshot().Counters[MetricSessionReplaced]; got != 1 {
		t.Fatalf("expected replaced counter 1, got %d", got)
	}
}

func TestEngineMultipleSessionsPerDeviceWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Session.SingleSessionPerDevice = false
	engine := buildMemoryEngine(t, cfg)

	a, _ := engine.IssueSession(uaContext(iphoneUA), "u1")
	b, _ := engine.IssueSession(uaContext(iphoneUA), "u1")
	for _, cred := range []string{a.Credential, b.Credential} {
		if _, err := engine.Verify(context.Background(), cred); err != nil {
			t.Fatalf("expected both sessions valid: %v", err)
		}
	}
}

func TestEngineLogoutAndLogoutAll(t *testing.T) {
	engine, mr := buildRedisEngine(t, testConfig(), nil)

	web, _ := engine.IssueSession(WithDeviceHint(context.Background(), "web"), "u1")
	mob, _ := engine.IssueSession(WithDeviceHint(context.Background(), "mobile"), "u1")
	api, _ := engine.IssueSession(WithDeviceHint(context.Background(), "api"), "u1")
	other, _ := engine.IssueSession(context.Background(), "u2")

	if err := engine.Logout(context.Background(), web.Credential); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := engine.Verify(context.Background(), web.Credential); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected logged-out credential rejected, got %v", err)
	}
	if err := engine.Logout(context.Background(), web.Credential); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected second logout to fail verification, got %v", err)
	}

	n, err := engine.LogoutAll(context.Background(), "u1")
	if err != nil {
		t.Fatalf("logout all failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 revoked, got %d", n)
	}
	for _, cred := range []string{mob.Credential, api.Credential} {
		if _, err := engine.Verify(context.Background(), cred); !errors.Is(err, ErrSessionRevoked) {
			t.Fatalf("expected revoked, got %v", err)
		}
	}
	if mr.Exists(session.IndexKey("u1")) {
		t.Fatal("expected subject index removed")
	}
	if _, err := engine.Verify(context.Background(), other.Credential); err != nil {
		t.Fatalf("other subject must be unaffected: %v", err)
	}

	if n, err := engine.LogoutAll(context.Background(), "nobody"); err != nil || n != 0 {
		t.Fatalf("expected empty revoke-all to succeed with 0, got %d %v", n, err)
	}
}

func TestEngineRevokeIsIdempotent(t *testing.T) {
	engine := buildMemoryEngine(t, testConfig())
	issued, _ := engine.IssueSession(context.Background(), "u1")

	for i := 0; i < 2; i++ {
		if err := engine.Revoke(context.Background(), "u1", issued.Credential); err != nil {
			t.Fatalf("revoke %d failed: %v", i, err)
		}
	}
}

func TestEngineRevokeDevice(t *testing.T) {
	engine := buildMemoryEngine(t, testConfig())

	web, _ := engine.IssueSession(uaContext(chromeWindowsUA), "u1")
	mob, _ := engine.IssueSession(uaContext(iphoneUA), "u1")

	found, err := engine.LogoutDevice(context.Background(), web.Credential, "mobile")
	if err != nil {
		t.Fatalf("logout device failed: %v", err)
	}
	if !found {
		t.Fatal("expected mobile session found")
	}
	if _, err := engine.Verify(context.Background(), mob.Credential); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected mobile session revoked, got %v", err)
	}
	if _, err := engine.Verify(context.Background(), web.Credential); err != nil {
		t.Fatalf("web session must survive: %v", err)
	}

	found, err = engine.RevokeDevice(context.Background(), "u1", "desktop")
	if err != nil || found {
		t.Fatalf("expected nothing to revoke, got found=%v err=%v", found, err)
	}

	if _, err := engine.RevokeDevice(context.Background(), "u1", "tablet"); !errors.Is(err, ErrInvalidDeviceClass) {
		t.Fatalf("expected ErrInvalidDeviceClass, got %v", err)
	}
}

func TestEngineListSessionsMarksCurrent(t *testing.T) {
	engine := buildMemoryEngine(t, testConfig())

	web, _ := engine.IssueSession(uaContext(chromeWindowsUA), "u1")
	mob, _ := engine.IssueSession(WithClientIP(uaContext(iphoneUA), "198.51.100.2"), "u1")

	sessions, err := engine.ListSessions(context.Background(), mob.Credential)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}

	current := 0
	for _, s := range sessions {
		if s.Current {
			current++
			if s.DeviceClass != device.Mobile || s.SourceAddress != "198.51.100.2" {
				t.Fatalf("wrong session marked current: %+v", s)
			}
		}
		if s.Fingerprint == web.Credential || s.Fingerprint == mob.Credential {
			t.Fatal("listing must not expose raw credentials")
		}
	}
	if current != 1 {
		t.Fatalf("expected exactly one current session, got %d", current)
	}

	admin, err := engine.Sessions(context.Background(), "u1")
	if err != nil {
		t.Fatalf("sessions failed: %v", err)
	}
	for _, s := range admin {
		if s.Current {
			t.Fatal("admin listing has no current session")
		}
	}
}

func TestEngineStoreOutage(t *testing.T) {
	engine, mr := buildRedisEngine(t, testConfig(), nil)
	issued, err := engine.IssueSession(context.Background(), "u1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	mr.Close()

	_, err = engine.Verify(context.Background(), issued.Credential)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if !errors.Is(err, ErrStoreUnavailable) || !IsInfrastructure(err) {
		t.Fatalf("expected outage to be distinguishable, got %v", err)
	}
	if errors.Is(err, ErrSessionRevoked) {
		t.Fatal("outage must not be reported as revocation")
	}

	if _, err := engine.IssueSession(context.Background(), "u1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected issue to surface store failure, got %v", err)
	}
	if _, err := engine.Allow(context.Background(), "ip:1", 10, time.Minute); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected rate limit to surface store failure, got %v", err)
	}

	if h := engine.Health(context.Background()); h.Healthy || h.Error == "" {
		t.Fatalf("expected unhealthy status, got %+v", h)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricVerifyStoreFailure] != 1 || snap.Counters[MetricStoreFailure] < 3 {
		t.Fatalf("unexpected failure counters: %v", snap.Counters)
	}
}

func TestEngineRateLimit(t *testing.T) {
	engine, mr := buildRedisEngine(t, testConfig(), nil)
	ctx := context.Background()

	for i, want := range []bool{true, true, false} {
		ok, err := engine.Allow(ctx, "login:alice", 2, time.Minute)
		if err != nil {
			t.Fatalf("allow %d failed: %v", i, err)
		}
		if ok != want {
			t.Fatalf("hit %d: expected %v, got %v", i, want, ok)
		}
	}
	if n, _ := engine.RateCount(ctx, "login:alice"); n != 3 {
		t.Fatalf("expected count 3, got %d", n)
	}
	if left, _ := engine.RateRemaining(ctx, "login:alice"); left <= 0 || left > time.Minute {
		t.Fatalf("unexpected remaining window %v", left)
	}

	mr.FastForward(61 * time.Second)
	if ok, _ := engine.Allow(ctx, "login:alice", 2, time.Minute); !ok {
		t.Fatal("expected new window after expiry")
	}

	if err := engine.ResetRate(ctx, "login:alice"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if n, _ := engine.RateCount(ctx, "login:alice"); n != 0 {
		t.Fatalf("expected count 0 after reset, got %d", n)
	}

	if _, err := engine.Allow(ctx, "x", 0, time.Minute); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricRateLimitAllowed] != 3 || snap.Counters[MetricRateLimitDenied] != 1 {
		t.Fatalf("unexpected rate counters: %v", snap.Counters)
	}
}

func TestEngineCheckRate(t *testing.T) {
	engine := buildMemoryEngine(t, testConfig())
	ctx := context.Background()

	if err := engine.CheckRate(ctx, "ip:10.0.0.9", 1, time.Minute); err != nil {
		t.Fatalf("first hit: %v", err)
	}
	err := engine.CheckRate(ctx, "ip:10.0.0.9", 1, time.Minute)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if IsInfrastructure(err) {
		t.Fatal("rate limiting is not an outage")
	}
	if err := engine.CheckRate(ctx, "ip:10.0.0.9", 0, time.Minute); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricRateLimitAllowed] != 1 || snap.Counters[MetricRateLimitDenied] != 1 {
		t.Fatalf("unexpected rate counters: %v", snap.Counters)
	}
}

func TestEngineCodePending(t *testing.T) {
	engine := buildMemoryEngine(t, testConfig())
	ctx := context.Background()

	if pending, err := engine.CodePending(ctx, "carol"); err != nil || pending {
		t.Fatalf("expected nothing pending, got %v %v", pending, err)
	}
	_ = engine.IssueCode(ctx, "carol", "424242", time.Minute)
	if pending, _ := engine.CodePending(ctx, "carol"); !pending {
		t.Fatal("expected pending code")
	}
	if pending, _ := engine.CodePending(ctx, "carol"); !pending {
		t.Fatal("checking must not consume the code")
	}
	if ok, _ := engine.VerifyCode(ctx, "carol", "424242"); !ok {
		t.Fatal("expected code to verify")
	}
	if pending, _ := engine.CodePending(ctx, "carol"); pending {
		t.Fatal("expected no pending code after consumption")
	}
}

func TestEngineVerificationCodes(t *testing.T) {
	engine, mr := buildRedisEngine(t, testConfig(), nil)
	ctx := context.Background()

	code, err := engine.GenerateCode(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6 digits, got %q", code)
	}
	if ttl := mr.TTL("verification:alice@example.com"); ttl != 5*time.Minute {
		t.Fatalf("expected 5m code ttl, got %v", ttl)
	}

	if ok, err := engine.VerifyCode(ctx, "alice@example.com", "not-it"); err != nil || ok {
		t.Fatalf("expected mismatch, got ok=%v err=%v", ok, err)
	}
	if ok, err := engine.VerifyCode(ctx, "alice@example.com", code); err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	if ok, _ := engine.VerifyCode(ctx, "alice@example.com", code); ok {
		t.Fatal("expected code consumed")
	}

	if err := engine.IssueCode(ctx, "bob", "", time.Minute); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if err := engine.IssueCode(ctx, "bob", "123456", time.Minute); err != nil {
		t.Fatalf("issue code failed: %v", err)
	}
	mr.FastForward(time.Minute + time.Second)
	if ok, _ := engine.VerifyCode(ctx, "bob", "123456"); ok {
		t.Fatal("expected expired code rejected")
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricCodeIssued] != 2 || snap.Counters[MetricCodeConsumed] != 1 || snap.Counters[MetricCodeRejected] != 3 {
		t.Fatalf("unexpected code counters: %v", snap.Counters)
	}
}

const staleRecord = `{"subject_id":"u9","created_at":1,"expires_at":2,"device_type":"web"}`

func TestEngineSweepRemovesStaleRecords(t *testing.T) {
	engine, mr := buildRedisEngine(t, testConfig(), nil)

	live, _ := engine.IssueSession(context.Background(), "u1")
	_ = mr.Set(session.RecordKey("stale-credential"), staleRecord)
	_, _ = mr.SAdd(session.IndexKey("u9"), "stale-credential")

	n, err := engine.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}
	if mr.Exists(session.RecordKey("stale-credential")) {
		t.Fatal("expected stale record removed")
	}
	if _, err := engine.Verify(context.Background(), live.Credential); err != nil {
		t.Fatalf("live session must survive sweep: %v", err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricSweepRemoved]; got != 1 {
		t.Fatalf("expected sweep counter 1, got %d", got)
	}
}

func TestEngineBackgroundSweeper(t *testing.T) {
	cfg := testConfig()
	cfg.Session.SweepInterval = 20 * time.Millisecond
	engine, mr := buildRedisEngine(t, cfg, nil)
	_ = mr.Set(session.RecordKey("stale-credential"), staleRecord)

	deadline := time.Now().Add(2 * time.Second)
	for mr.Exists(session.RecordKey("stale-credential")) {
		if time.Now().After(deadline) {
			t.Fatal("expected background sweeper to remove stale record")
		}
		time.Sleep(10 * time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		engine.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the sweeper")
	}
}

func TestEngineCacheSharesStore(t *testing.T) {
	engine, mr := buildRedisEngine(t, testConfig(), nil)

	type profile struct {
		Name string `json:"name"`
	}
	if err := engine.Cache().PutUser(context.Background(), "u1", profile{Name: "Alice"}, time.Minute); err != nil {
		t.Fatalf("put user failed: %v", err)
	}
	if !mr.Exists("user:u1") {
		t.Fatal("expected user cache key")
	}
	var got profile
	if ok, err := engine.Cache().User(context.Background(), "u1", &got); err != nil || !ok || got.Name != "Alice" {
		t.Fatalf("unexpected cache read: ok=%v err=%v got=%+v", ok, err, got)
	}
}

func TestEngineHealth(t *testing.T) {
	engine := buildMemoryEngine(t, testConfig())
	if h := engine.Health(context.Background()); !h.Healthy {
		t.Fatalf("expected healthy, got %+v", h)
	}
}

func TestNilEngineNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.Verify(context.Background(), "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.IssueSession(context.Background(), "u1"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if err := e.CheckRate(context.Background(), "x", 1, time.Minute); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if e.AuditDropped() != 0 || e.Cache() != nil {
		t.Fatal("nil engine accessors must be inert")
	}
	e.Close()
}

func TestMetadataFromContext(t *testing.T) {
	ctx := WithUserAgent(context.Background(), "ua")
	ctx = WithDeviceHint(ctx, "api")
	ctx = WithClientIP(ctx, "10.0.0.1")

	meta := metadataFromContext(ctx)
	if meta.UserAgent != "ua" || meta.DeviceHint != "api" || meta.SourceAddress != "10.0.0.1" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if empty := metadataFromContext(context.Background()); empty != (session.Metadata{}) {
		t.Fatalf("expected empty metadata, got %+v", empty)
	}
}
