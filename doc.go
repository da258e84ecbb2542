// Package goFleet provides the authentication engine of a multi-tenant device
// fleet service: HS256 access tokens, persisted one-shot refresh tokens with
// rotation, and the shared metrics and audit plumbing used by the response
// cache and the real-time broadcaster.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goFleet is the public surface. It exposes [Engine], [Builder], [Config], the
// [UserStore] contract and value types. Flow orchestration lives in
// internal/flows; token signing in jwt; refresh token records in tokenstore.
//
// # Error contract
//
// Each operation collapses its failure causes into one sentinel so callers
// cannot tell an unknown handle from a wrong password or a revoked refresh
// token from a forged one: [ErrInvalidCredentials] for Login,
// [ErrReAuthRequired] for Refresh and Logout, [ErrUnauthenticated] for
// Authenticate.
//
// # What this package must NOT do
//
//   - Import sub-packages that re-import goFleet (cache layers, storage, HTTP).
//   - Consult the token store when authenticating access tokens.
package goFleet
