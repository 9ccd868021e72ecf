package password

import "strings"

// Verifier checks presented secrets against stored hashes of any supported
// scheme and produces new hashes with Argon2id.
type Verifier struct {
	argon  *Argon2
	bcrypt *Bcrypt
	dummy  string
}

// NewVerifier builds a Verifier whose new hashes use p.
func NewVerifier(p Params) (*Verifier, error) {
	a, err := NewArgon2(p)
	if err != nil {
		return nil, err
	}
	b, err := NewBcrypt(0)
	if err != nil {
		return nil, err
	}
	dummy, err := a.Hash("tokengate-dummy-secret")
	if err != nil {
		return nil, err
	}
	return &Verifier{argon: a, bcrypt: b, dummy: dummy}, nil
}

// Hash produces an Argon2id PHC string for secret.
func (v *Verifier) Hash(secret string) (string, error) {
	return v.argon.Hash(secret)
}

// Verify reports whether secret is the one stored hash was derived from.
// Mismatch is (false, nil); an unreadable stored hash is an error.
func (v *Verifier) Verify(secret, stored string) (bool, error) {
	switch {
	case strings.HasPrefix(stored, argon2Prefix):
		return v.argon.Verify(secret, stored)
	case isBcrypt(stored):
		return v.bcrypt.Verify(secret, stored)
	case stored == "":
		return false, ErrMalformedHash
	default:
		return false, ErrUnsupportedScheme
	}
}

// Burn performs one full-cost verification against an internal hash and
// discards the result. Login paths call it for unknown identities so that
// they cost the same as a wrong password.
func (v *Verifier) Burn(secret string) {
	_, _ = v.argon.Verify(secret, v.dummy)
}

// NeedsUpgrade reports whether stored should be rehashed with the current
// Argon2id parameters. Any non-Argon2id hash needs upgrading.
func (v *Verifier) NeedsUpgrade(stored string) bool {
	if !strings.HasPrefix(stored, argon2Prefix) {
		return true
	}
	up, err := v.argon.NeedsUpgrade(stored)
	return err != nil || up
}
