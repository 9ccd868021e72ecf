package internaldefs

import (
	"github.com/MrEthical07/tokengate"
	internalmetrics "github.com/MrEthical07/tokengate/internal/metrics"
)

// BucketCount is the number of latency buckets, +Inf included.
const BucketCount = internalmetrics.HistBucketCount

// CounterDef names one exported counter.
type CounterDef struct {
	ID   tokengate.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   tokengate.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: tokengate.MetricLoginSuccess, Name: "tokengate_login_success_total", Help: "Successful login attempts."},
	{ID: tokengate.MetricLoginFailure, Name: "tokengate_login_failure_total", Help: "Login attempts rejected for bad credentials."},
	{ID: tokengate.MetricTokenIssued, Name: "tokengate_token_issued_total", Help: "Access tokens issued."},
	{ID: tokengate.MetricValidateSuccess, Name: "tokengate_validate_success_total", Help: "Bearer tokens authenticated to a principal."},
	{ID: tokengate.MetricTokenMalformed, Name: "tokengate_token_malformed_total", Help: "Tokens rejected as malformed."},
	{ID: tokengate.MetricTokenInvalidSignature, Name: "tokengate_token_invalid_signature_total", Help: "Tokens rejected for a bad signature."},
	{ID: tokengate.MetricTokenExpired, Name: "tokengate_token_expired_total", Help: "Tokens rejected as expired."},
	{ID: tokengate.MetricPrincipalNotFound, Name: "tokengate_principal_not_found_total", Help: "Valid tokens whose subject no longer exists."},
	{ID: tokengate.MetricStoreUnavailable, Name: "tokengate_store_unavailable_total", Help: "Identity store failures."},
	{ID: tokengate.MetricGateRejected, Name: "tokengate_gate_rejected_total", Help: "Requests rejected by the gate with 401."},
	{ID: tokengate.MetricGateForbidden, Name: "tokengate_gate_forbidden_total", Help: "Requests rejected by the gate with 403."},
	{ID: tokengate.MetricAuditDropped, Name: "tokengate_audit_dropped_total", Help: "Dropped audit events due to dispatcher backpressure."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: tokengate.MetricValidateLatency, Name: "tokengate_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds are the bucket upper bounds in seconds.
var HistogramBounds = [BucketCount]string{
	"0.0001",
	"0.00025",
	"0.0005",
	"0.001",
	"0.005",
	"0.025",
	"0.1",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed-size array, truncating or
// zero-padding as needed.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
