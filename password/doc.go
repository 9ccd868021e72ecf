// Package password hashes and verifies login secrets with adaptive, salted
// one-way functions.
//
// # Output format
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Stored bcrypt hashes ($2a$, $2b$, $2y$) are accepted for verification so that
// credential records created by bcrypt-based systems keep working. [Verifier]
// picks the scheme from the stored hash prefix.
//
// # Failure semantics
//
// A wrong secret is never an error: Verify returns false, nil. An error is
// returned only when the stored hash itself cannot be interpreted
// ([ErrMalformedHash], [ErrUnsupportedScheme]); callers treat that as a
// configuration fault.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other tokengate package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
