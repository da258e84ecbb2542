// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunRegister, RunLogin, RunRefresh, RunLogout,
// RunAuthenticate) accepts a typed dependency struct and returns a result
// carrying a failure kind and the resulting [AuthState]. Transitions follow
// the table in state.go and are reported to an optional [Observer].
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the user store, token codec and token
// store. They do NOT own any of these resources; ownership stays with the
// Engine, which maps failure kinds onto public sentinel errors.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goFleet (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency funcs.
package flows
