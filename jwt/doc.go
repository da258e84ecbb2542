// Package jwt signs and verifies the bearer tokens used by goFleet.
//
// Access and refresh tokens are both HS256 JWTs, but each kind is signed with
// its own secret, so a leaked access secret cannot mint refresh tokens and the
// reverse. Verification is pure: it never touches a store.
//
// # What this package must NOT do
//
//   - Decide whether a refresh token is still active (that is the token store's job).
//   - Import any other goFleet package.
package jwt
