package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// MinKeyBytes is the shortest HS256 signing key NewManager accepts.
const MinKeyBytes = 32

var (
	// ErrMalformed reports a token whose MAC verified but whose structure or
	// claims could not be decoded, or which lacks a subject or expiry.
	ErrMalformed = errors.New("token malformed")
	// ErrInvalidSignature reports a token whose MAC segment does not match.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrExpired reports a token validated at or after its expiry.
	ErrExpired = errors.New("token expired")

	// ErrInvalidConfig reports a Config that cannot be used to sign tokens.
	ErrInvalidConfig = errors.New("invalid token configuration")
	// ErrEmptySubject is returned by Issue when the subject is blank.
	ErrEmptySubject = errors.New("token subject must not be empty")
)

// Config holds the signing key and lifetime for issued tokens.
type Config struct {
	Secret []byte
	TTL    time.Duration
	// Issuer, when set, is written as "iss" and required on validation.
	Issuer string
}

// String omits the secret.
func (c Config) String() string {
	return fmt.Sprintf("jwt.Config{Secret:[REDACTED %d bytes] TTL:%s Issuer:%q}", len(c.Secret), c.TTL, c.Issuer)
}

// Claims is the verified content of a token.
type Claims struct {
	gjwt.RegisteredClaims
}

// Manager signs and validates HS256 tokens. It is immutable after
// construction and safe for concurrent use.
type Manager struct {
	key    []byte
	ttl    time.Duration
	issuer string
	parser *gjwt.Parser
}

// NewManager copies cfg.Secret and returns a Manager, or an error wrapping
// ErrInvalidConfig when the key is shorter than MinKeyBytes or TTL is not
// positive.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < MinKeyBytes {
		return nil, fmt.Errorf("%w: signing key must be at least %d bytes", ErrInvalidConfig, MinKeyBytes)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", ErrInvalidConfig)
	}

	key := make([]byte, len(cfg.Secret))
	copy(key, cfg.Secret)

	return &Manager{
		key:    key,
		ttl:    cfg.TTL,
		issuer: strings.TrimSpace(cfg.Issuer),
		parser: gjwt.NewParser(gjwt.WithStrictDecoding()),
	}, nil
}

// TTL reports the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue returns a token for subject valid for the configured TTL. Token
// times have second precision and now is truncated, not rounded, so a token
// issued at hh:mm:ss.5 expires half a second before now+ttl. It never
// outlives its TTL.
func (m *Manager) Issue(subject string, now time.Time) (string, error) {
	return m.IssueWithTTL(subject, now, m.ttl)
}

// IssueWithTTL is Issue with an explicit lifetime. now is truncated to the
// second, so exp-iat equals ttl for whole-second lifetimes. Output depends
// only on subject, now, ttl and the key.
func (m *Manager) IssueWithTTL(subject string, now time.Time, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", ErrEmptySubject
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%w: ttl must be positive", ErrInvalidConfig)
	}

	iat := now.Truncate(time.Second)
	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   subject,
		IssuedAt:  gjwt.NewNumericDate(iat),
		ExpiresAt: gjwt.NewNumericDate(iat.Add(ttl)),
	}}

	return gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(m.key)
}

// Validate checks token against the key and now.
//
// The MAC is checked first, over everything before the final '.', so any
// alteration of the token yields ErrInvalidSignature regardless of where it
// lands. Only then are header and claims decoded (ErrMalformed on failure)
// and expiry compared (ErrExpired when now >= exp). Validate has no side
// effects; repeated calls with the same input return equal claims.
func (m *Manager) Validate(token string, now time.Time) (*Claims, error) {
	dot := strings.LastIndexByte(token, '.')
	if dot < 0 {
		return nil, fmt.Errorf("%w: missing signature segment", ErrMalformed)
	}
	signingInput, sigSegment := token[:dot], token[dot+1:]

	sig, err := m.parser.DecodeSegment(sigSegment)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	if err := gjwt.SigningMethodHS256.Verify(signingInput, sig, m.key); err != nil {
		return nil, ErrInvalidSignature
	}

	claims := &Claims{}
	parsed, _, err := m.parser.ParseUnverified(token, claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if parsed.Method == nil || parsed.Method.Alg() != gjwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("%w: unexpected alg", ErrMalformed)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrMalformed)
	}

	opts := []gjwt.ParserOption{
		gjwt.WithExpirationRequired(),
		gjwt.WithTimeFunc(func() time.Time { return now }),
	}
	if m.issuer != "" {
		opts = append(opts, gjwt.WithIssuer(m.issuer))
	}
	if err := gjwt.NewValidator(opts...).Validate(claims); err != nil {
		if errors.Is(err, gjwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return claims, nil
}
