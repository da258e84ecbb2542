// Package tokenstore records issued refresh tokens and their revocation state.
//
// Records are looked up by the SHA-256 digest of the token string and must
// match kind and owner to count as active. Revocation is monotonic
// (false -> true) and idempotent.
//
// # Redis layout
//
//   - <prefix>:rec:<id>  hash {th, uid, kind, exp, rev, ct}
//   - <prefix>:tok:<sha> string -> record id
//
// Both keys expire at the token expiry plus the configured retention.
// RevokeIfActive runs as a single Lua script, so exactly one concurrent
// caller wins a rotation.
//
// # What this package must NOT do
//
//   - Verify token signatures (the jwt package does that).
//   - Store raw token strings.
package tokenstore
