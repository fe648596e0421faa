package internaldefs

import (
	"github.com/verisella/authcore"
)

// CounterDef names one engine counter for the exporters.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for the exporters.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs maps every engine counter to its exported name. Order is
// the exposition order.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful login attempts."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed login attempts."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Successful registrations."},
	{ID: authcore.MetricRegisterFailure, Name: "authcore_register_failure_total", Help: "Failed registrations."},
	{ID: authcore.MetricRegisterRateLimited, Name: "authcore_register_rate_limited_total", Help: "Rate-limited registration attempts."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Created sessions."},
	{ID: authcore.MetricSessionInvalidated, Name: "authcore_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: authcore.MetricValidateSuccess, Name: "authcore_validate_success_total", Help: "Successful token validations."},
	{ID: authcore.MetricValidateFailure, Name: "authcore_validate_failure_total", Help: "Failed token validations."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh operations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: authcore.MetricReuseRecovered, Name: "authcore_reuse_recovered_total", Help: "Sessions replaced by the reuse-recovery fallback."},
	{ID: authcore.MetricVerificationSent, Name: "authcore_verification_sent_total", Help: "Dispatched verification codes."},
	{ID: authcore.MetricVerificationSuccess, Name: "authcore_verification_success_total", Help: "Confirmed verification codes."},
	{ID: authcore.MetricVerificationFailure, Name: "authcore_verification_failure_total", Help: "Rejected verification codes."},
	{ID: authcore.MetricMFAEnrollStarted, Name: "authcore_mfa_enroll_started_total", Help: "Started MFA enrollments."},
	{ID: authcore.MetricMFAEnabled, Name: "authcore_mfa_enabled_total", Help: "Completed MFA enrollments."},
	{ID: authcore.MetricMFASuccess, Name: "authcore_mfa_success_total", Help: "Successful MFA verifications."},
	{ID: authcore.MetricMFAFailure, Name: "authcore_mfa_failure_total", Help: "Failed MFA verifications."},
	{ID: authcore.MetricRecoveryCodeUsed, Name: "authcore_recovery_code_used_total", Help: "Consumed recovery codes."},
	{ID: authcore.MetricPasswordChangeSuccess, Name: "authcore_password_change_success_total", Help: "Successful password changes."},
	{ID: authcore.MetricPasswordChangeFailure, Name: "authcore_password_change_failure_total", Help: "Failed password changes."},
	{ID: authcore.MetricKeyRotation, Name: "authcore_key_rotation_total", Help: "Signing key rotations."},
	{ID: authcore.MetricPolicyReload, Name: "authcore_policy_reload_total", Help: "Policy document reloads."},
	{ID: authcore.MetricAdminLoginSuccess, Name: "authcore_admin_login_success_total", Help: "Successful admin logins."},
	{ID: authcore.MetricAdminLoginFailure, Name: "authcore_admin_login_failure_total", Help: "Failed admin logins."},
	{ID: authcore.MetricAdminDenied, Name: "authcore_admin_denied_total", Help: "Admin actions denied by permission checks."},
	{ID: authcore.MetricAdminAPIKeyUsed, Name: "authcore_admin_api_key_used_total", Help: "Authenticated admin API key uses."},
}

// HistogramDefs maps every engine histogram to its exported name.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricValidateLatency, Name: "authcore_validate_latency_seconds", Help: "Token validation latency."},
}

// HistogramBoundsSeconds are the bucket upper bounds in seconds, decade
// steps from one microsecond to one second. The engine's final bucket is
// the overflow and maps to +Inf.
var HistogramBoundsSeconds = []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1, 1}

// HistogramBoundSuffix renders each bound, overflow included, as an
// instrument-name-safe suffix for backends without native histograms.
var HistogramBoundSuffix = []string{
	"1us", "10us", "100us", "1ms", "10ms", "100ms", "1s", "inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form
// the exposition formats expect. The final element is the total count.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range raw {
		running += raw[i]
		out[i] = running
	}
	return out
}
