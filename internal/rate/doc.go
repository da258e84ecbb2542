// Package rate provides a Redis fixed-window counter used to throttle the
// authentication routes per client IP.
//
// # Window semantics
//
// INCR on the window key, EXPIRE on the first hit of the window. Keys are
// "<prefix>:<key>". A counter above the limit rejects until the key expires.
//
// # What this package must NOT do
//
//   - Decide which requests are throttled (middleware.RateLimit does that).
//   - Reject traffic when Redis is unreachable; callers fail open.
package rate
