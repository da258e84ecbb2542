package internaldefs

import (
	goFleet "github.com/MrEthical07/goFleet"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goFleet.MetricID
	Name string
	Help string
}

// HistogramDef names one exported latency histogram.
type HistogramDef struct {
	ID   goFleet.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: goFleet.MetricRegisterSuccess, Name: "gofleet_register_success_total", Help: "Successful registrations."},
	{ID: goFleet.MetricRegisterDuplicate, Name: "gofleet_register_duplicate_total", Help: "Registrations rejected for a taken username."},
	{ID: goFleet.MetricRegisterFailure, Name: "gofleet_register_failure_total", Help: "Registrations rejected for invalid input or backend failures."},
	{ID: goFleet.MetricLoginSuccess, Name: "gofleet_login_success_total", Help: "Successful login attempts."},
	{ID: goFleet.MetricLoginFailure, Name: "gofleet_login_failure_total", Help: "Failed login attempts."},
	{ID: goFleet.MetricPasswordRehashed, Name: "gofleet_password_rehashed_total", Help: "Password hashes upgraded on login."},
	{ID: goFleet.MetricRefreshSuccess, Name: "gofleet_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: goFleet.MetricRefreshFailure, Name: "gofleet_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: goFleet.MetricRefreshReuseDetected, Name: "gofleet_refresh_reuse_detected_total", Help: "Refresh rotations that lost a concurrent race."},
	{ID: goFleet.MetricLogout, Name: "gofleet_logout_total", Help: "Logout operations."},
	{ID: goFleet.MetricAuthenticateSuccess, Name: "gofleet_authenticate_success_total", Help: "Accepted bearer access tokens."},
	{ID: goFleet.MetricAuthenticateFailure, Name: "gofleet_authenticate_failure_total", Help: "Rejected bearer access tokens."},
	{ID: goFleet.MetricRateLimitHit, Name: "gofleet_rate_limit_hit_total", Help: "Requests rejected by the rate limiter."},
	{ID: goFleet.MetricCacheHit, Name: "gofleet_cache_hit_total", Help: "Response cache hits."},
	{ID: goFleet.MetricCacheMiss, Name: "gofleet_cache_miss_total", Help: "Response cache misses."},
	{ID: goFleet.MetricCacheError, Name: "gofleet_cache_error_total", Help: "Cache operations degraded by store failures."},
	{ID: goFleet.MetricCacheInvalidation, Name: "gofleet_cache_invalidation_total", Help: "Cache invalidation calls."},
	{ID: goFleet.MetricCacheKeysInvalidated, Name: "gofleet_cache_keys_invalidated_total", Help: "Cache entries removed by invalidation."},
	{ID: goFleet.MetricBroadcastPublished, Name: "gofleet_broadcast_published_total", Help: "Events published to tenants."},
	{ID: goFleet.MetricBroadcastDelivered, Name: "gofleet_broadcast_delivered_total", Help: "Events delivered to live connections."},
	{ID: goFleet.MetricBroadcastDropped, Name: "gofleet_broadcast_dropped_total", Help: "Deliveries skipped for closed or full connections."},
	{ID: goFleet.MetricRealtimeConnected, Name: "gofleet_realtime_connected_total", Help: "Accepted real-time connections."},
	{ID: goFleet.MetricRealtimeRejected, Name: "gofleet_realtime_rejected_total", Help: "Real-time connections closed for a missing or invalid token."},
}

// HistogramDefs lists the exported latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: goFleet.MetricAuthenticateLatency, Name: "gofleet_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds.
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

// HistogramBoundSuffix is HistogramBounds spelled for metric names.
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

// NormalizeBuckets copies raw into a fixed eight-bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
