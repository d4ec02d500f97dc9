package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goSession.MetricSessionIssued, Name: "gosession_session_issued_total", Help: "Issued sessions."},
	{ID: goSession.MetricSessionReplaced, Name: "gosession_session_replaced_total", Help: "Sessions revoked by same-device replacement."},
	{ID: goSession.MetricVerifySuccess, Name: "gosession_verify_success_total", Help: "Accepted credentials."},
	{ID: goSession.MetricVerifyFailure, Name: "gosession_verify_failure_total", Help: "Rejected credentials."},
	{ID: goSession.MetricVerifyRevoked, Name: "gosession_verify_revoked_total", Help: "Credentials rejected for a missing session record."},
	{ID: goSession.MetricVerifyStoreFailure, Name: "gosession_verify_store_failure_total", Help: "Verifications failed by the store."},
	{ID: goSession.MetricRevoke, Name: "gosession_revoke_total", Help: "Single-session revocations."},
	{ID: goSession.MetricRevokeAll, Name: "gosession_revoke_all_total", Help: "Revoke-all operations."},
	{ID: goSession.MetricRevokeDevice, Name: "gosession_revoke_device_total", Help: "Device-class revocations that found a session."},
	{ID: goSession.MetricSweepRemoved, Name: "gosession_sweep_removed_total", Help: "Session records removed by maintenance sweeps."},
	{ID: goSession.MetricRateLimitAllowed, Name: "gosession_rate_limit_allowed_total", Help: "Rate-limit checks that allowed the request."},
	{ID: goSession.MetricRateLimitDenied, Name: "gosession_rate_limit_denied_total", Help: "Rate-limit checks that denied the request."},
	{ID: goSession.MetricCodeIssued, Name: "gosession_code_issued_total", Help: "Issued verification codes."},
	{ID: goSession.MetricCodeConsumed, Name: "gosession_code_consumed_total", Help: "Verification codes consumed on match."},
	{ID: goSession.MetricCodeRejected, Name: "gosession_code_rejected_total", Help: "Verification code mismatches."},
	{ID: goSession.MetricStoreFailure, Name: "gosession_store_failure_total", Help: "Store operations failed by timeout or unavailability."},
}

var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricVerifyLatency, Name: "gosession_verify_latency_seconds", Help: "Verify latency histogram."},
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const AuditDroppedName = "gosession_audit_dropped_total"

// HistogramUpperBounds are the bucket upper bounds in seconds, excluding +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBounds are the same bounds rendered as label values, including +Inf.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix renders the bounds for use inside instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
