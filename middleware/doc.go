// Package middleware exposes net/http middleware for the fleet API built on
// top of goFleet.Engine.
//
// # Middleware
//
//   - [Guard] authenticates the bearer access token and stores the
//     [goFleet.Principal] in the request context.
//   - [RequestContext] attaches client IP and User-Agent for audit events.
//   - [RateLimit] throttles a route group per client IP.
//   - [Timing] logs requests slower than a threshold.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; every pass/reject decision comes from
// Engine.Authenticate.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Reject traffic because the rate limit store is unreachable.
package middleware
