package internaldefs

import (
	"github.com/MrEthical07/authsdk"
)

// CounterDef binds a counter ID to its stable exported name.
type CounterDef struct {
	ID   authsdk.MetricID
	Name string
	Help string
}

// HistogramDef names the request-latency histogram.
type HistogramDef struct {
	Name string
	Help string
}

// CounterDefs lists every exported counter. Order here is render order.
var CounterDefs = []CounterDef{
	{ID: authsdk.MetricLoginSuccess, Name: "authsdk_login_success_total", Help: "Successful logins."},
	{ID: authsdk.MetricLoginFailure, Name: "authsdk_login_failure_total", Help: "Failed login attempts."},
	{ID: authsdk.MetricRegisterSuccess, Name: "authsdk_register_success_total", Help: "Successful registrations."},
	{ID: authsdk.MetricRegisterFailure, Name: "authsdk_register_failure_total", Help: "Failed registration attempts."},
	{ID: authsdk.MetricRefreshSuccess, Name: "authsdk_refresh_success_total", Help: "Successful credential refreshes."},
	{ID: authsdk.MetricRefreshFailure, Name: "authsdk_refresh_failure_total", Help: "Failed credential refreshes."},
	{ID: authsdk.MetricRefreshCollapsed, Name: "authsdk_refresh_collapsed_total", Help: "Refresh callers attached to an in-flight exchange."},
	{ID: authsdk.MetricRequestRetried, Name: "authsdk_request_retried_total", Help: "Requests replayed after a credential refresh."},
	{ID: authsdk.MetricOTPSent, Name: "authsdk_otp_sent_total", Help: "OTP challenges issued."},
	{ID: authsdk.MetricOTPResent, Name: "authsdk_otp_resent_total", Help: "OTP challenges resent."},
	{ID: authsdk.MetricOTPVerified, Name: "authsdk_otp_verified_total", Help: "OTP codes verified."},
	{ID: authsdk.MetricOTPInvalid, Name: "authsdk_otp_invalid_total", Help: "OTP codes rejected by the backend."},
	{ID: authsdk.MetricOTPExpired, Name: "authsdk_otp_expired_total", Help: "OTP challenges that expired unverified."},
	{ID: authsdk.MetricOTPAttemptsExceeded, Name: "authsdk_otp_attempts_exceeded_total", Help: "OTP challenges exhausted by failed attempts."},
	{ID: authsdk.MetricPasswordChanged, Name: "authsdk_password_changed_total", Help: "Successful password changes."},
	{ID: authsdk.MetricStorageDegraded, Name: "authsdk_storage_degraded_total", Help: "Credential persistence fallbacks to memory."},
	{ID: authsdk.MetricLogout, Name: "authsdk_logout_total", Help: "Logout operations."},
	{ID: authsdk.MetricSessionInvalidated, Name: "authsdk_session_invalidated_total", Help: "Sessions torn down after a rejected refresh."},
}

// LatencyDef is the single request-latency histogram.
var LatencyDef = HistogramDef{
	Name: "authsdk_request_latency_seconds",
	Help: "Backend round-trip latency histogram.",
}

// HistogramBounds are the upper bounds, in seconds, matching the core buckets.
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

// HistogramBoundSuffix is the metric-name-safe rendering of HistogramBounds.
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

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form both
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
