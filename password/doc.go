// Package password implements credential hashing for goFleet.
//
// [Argon2] is the primary hasher and emits PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Bcrypt] verifies digests carried over from older deployments, and [Multi]
// combines the two so imported users can log in and be rehashed.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Enforce password policy (minimum length lives in the engine config).
//   - Import any other goFleet package.
package password
