// Package tokengate provides a stateless bearer-token authentication core:
// credential verification at login, HS256 token issuance, per-request token
// validation, and principal resolution for authorization decisions.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// tokengate is the public surface. It exposes [Engine], [Builder], [Config], and value types
// ([Principal], [CredentialRecord], [LoginResult]). Token encoding lives in jwt/, password
// hashing in password/, transport adapters in middleware/ and identity storage adapters in
// store/. Audit dispatch and metric storage live under internal/ and are never exported
// except through the aliases declared here.
//
// # What this package must NOT do
//
//   - Log, return, or audit the signing key or any token string.
//   - Tell callers why a token was rejected beyond the error value; transports collapse
//     every rejection into a single unauthorized response.
//   - Keep per-token state. Validity depends only on the signature, the claims and the clock.
//   - Import any sub-package that re-imports tokengate (no import cycles).
//
// # Performance contract
//
// Authenticate is the hot path: one HMAC, one JSON decode and one store lookup through the
// configured [PrincipalResolver]. Login is deliberately expensive (Argon2id) and costs the same
// whether or not the username exists.
package tokengate
