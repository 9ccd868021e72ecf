package tokengate

import "errors"

var (
	// ErrInvalidCredential is returned by Login for an unknown user or a wrong
	// password. The two cases are deliberately indistinguishable.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrTokenMalformed reports a token whose structure or claims cannot be used.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenInvalidSignature reports a token whose MAC does not verify.
	ErrTokenInvalidSignature = errors.New("token signature invalid")
	// ErrTokenExpired reports a token presented at or after its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrPrincipalNotFound reports a validly signed token whose subject no longer exists.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrConfigurationFault reports unusable configuration or stored credential data.
	// It is fatal at startup.
	ErrConfigurationFault = errors.New("configuration fault")
	// ErrUserNotFound is returned by a [CredentialStore] when the username is absent.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned by store adapters when creating a duplicate username.
	ErrUserExists = errors.New("user already exists")
	// ErrStoreUnavailable reports a credential store failure other than not-found.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// IsUnauthorized reports whether err should be answered with a plain 401:
// every token rejection and every unknown principal.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenInvalidSignature) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrPrincipalNotFound) ||
		errors.Is(err, ErrInvalidCredential)
}
