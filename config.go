package tokengate

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MrEthical07/tokengate/jwt"
	"github.com/MrEthical07/tokengate/password"
)

// Config is the engine configuration. The zero value is not usable: JWT.Secret
// and JWT.TTL have no defaults.
type Config struct {
	JWT       JWTConfig
	Password  PasswordConfig
	Principal PrincipalConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the process-wide signing key and token lifetime.
type JWTConfig struct {
	// Secret is the HS256 key, at least 32 bytes.
	Secret []byte
	TTL    time.Duration
	Issuer string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig sets the Argon2id cost used for new hashes and for the
// dummy verification run against unknown usernames.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (p PasswordConfig) params() password.Params {
	return password.Params{
		Memory:      p.Memory,
		Time:        p.Time,
		Parallelism: p.Parallelism,
		SaltLength:  p.SaltLength,
		KeyLength:   p.KeyLength,
	}
}

/*
====================================
PRINCIPAL CONFIG
====================================
*/

// PrincipalConfig controls the default [StoreResolver].
type PrincipalConfig struct {
	// DefaultAuthorities are granted to principals whose credential record
	// carries none.
	DefaultAuthorities []string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns defaults for every non-security setting. The caller
// must still supply JWT.Secret and JWT.TTL.
func DefaultConfig() Config {
	def := password.DefaultParams()
	return Config{
		Password: PasswordConfig{
			Memory:      def.Memory,
			Time:        def.Time,
			Parallelism: def.Parallelism,
			SaltLength:  def.SaltLength,
			KeyLength:   def.KeyLength,
		},
		Principal: PrincipalConfig{
			DefaultAuthorities: []string{"ROLE_USER"},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.Principal.DefaultAuthorities = slices.Clone(cfg.Principal.DefaultAuthorities)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// String renders the configuration with the signing key redacted.
func (c Config) String() string {
	return fmt.Sprintf(
		"tokengate.Config{JWT:{Secret:[REDACTED %d bytes] TTL:%s Issuer:%q} Password:%+v Principal:%+v Audit:%+v Metrics:%+v}",
		len(c.JWT.Secret), c.JWT.TTL, c.JWT.Issuer, c.Password, c.Principal, c.Audit, c.Metrics,
	)
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks c and returns an error wrapping [ErrConfigurationFault]
// describing the first problem found.
func (c *Config) Validate() error {
	fault := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrConfigurationFault}, args...)...)
	}

	// JWT
	if len(c.JWT.Secret) == 0 {
		return fault("JWT Secret is required")
	}
	if len(c.JWT.Secret) < jwt.MinKeyBytes {
		return fault("JWT Secret must be at least %d bytes", jwt.MinKeyBytes)
	}
	if c.JWT.TTL <= 0 {
		return fault("JWT TTL must be > 0")
	}
	if c.JWT.TTL%time.Second != 0 {
		return fault("JWT TTL must be a whole number of seconds")
	}

	// Password
	if err := c.Password.params().Validate(); err != nil {
		return fault("%v", err)
	}

	// Principal
	for _, a := range c.Principal.DefaultAuthorities {
		if strings.TrimSpace(a) == "" {
			return fault("Principal DefaultAuthorities must not contain blank entries")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fault("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
