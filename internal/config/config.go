package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/MrEthical07/tokengate"
	"github.com/MrEthical07/tokengate/store"
	"gopkg.in/yaml.v3"
)

// SecretEnvVar overrides jwt.secret when set.
const SecretEnvVar = "TOKENGATE_JWT_SECRET"

const (
	defaultHTTPAddr  = ":8080"
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
	defaultMetrics   = "/metrics"
)

// Config is the file configuration of the tokengate service.
type Config struct {
	Server    ServerConfig   `yaml:"server" toml:"server"`
	JWT       JWTConfig      `yaml:"jwt" toml:"jwt"`
	Password  PasswordConfig `yaml:"password" toml:"password"`
	Store     store.Config   `yaml:"store" toml:"store"`
	Logging   LoggingConfig  `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig  `yaml:"metrics" toml:"metrics"`
	Audit     AuditConfig    `yaml:"audit" toml:"audit"`
	SeedUsers []SeedUser     `yaml:"seed_users" toml:"seed_users"`
}

// ServerConfig holds listener addresses. An empty GRPCAddr disables gRPC.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr"`
}

// JWTConfig holds the token signing settings. Neither field has a default.
type JWTConfig struct {
	Secret     string `yaml:"secret" toml:"secret"`
	TTLMinutes int    `yaml:"ttl_minutes" toml:"ttl_minutes"`
	Issuer     string `yaml:"issuer" toml:"issuer"`
}

// PasswordConfig overrides Argon2id parameters. Zero fields keep the
// library defaults.
type PasswordConfig struct {
	Memory      uint32 `yaml:"memory_kib" toml:"memory_kib"`
	Time        uint32 `yaml:"time" toml:"time"`
	Parallelism uint8  `yaml:"parallelism" toml:"parallelism"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled        *bool  `yaml:"enabled" toml:"enabled"`
	Path           string `yaml:"path" toml:"path"`
	DisableLatency bool   `yaml:"disable_latency_histograms" toml:"disable_latency_histograms"`
}

// On reports whether metrics are enabled. They are unless set to false.
func (m MetricsConfig) On() bool {
	return m.Enabled == nil || *m.Enabled
}

// AuditConfig enables the audit trail. Output "stdout", "log" or a file path.
type AuditConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled"`
	Output     string `yaml:"output" toml:"output"`
	BufferSize int    `yaml:"buffer_size" toml:"buffer_size"`
}

// SeedUser is inserted into the store at startup when absent.
type SeedUser struct {
	Username     string   `yaml:"username" toml:"username"`
	PasswordHash string   `yaml:"password_hash" toml:"password_hash"`
	Authorities  []string `yaml:"authorities" toml:"authorities"`
}

// String redacts the signing secret.
func (c Config) String() string {
	secret := "<empty>"
	if c.JWT.Secret != "" {
		secret = "<redacted>"
	}
	return fmt.Sprintf("Config{http=%s grpc=%s store=%s ttl=%dm secret=%s seed_users=%d}",
		c.Server.HTTPAddr, c.Server.GRPCAddr, c.Store.Driver, c.JWT.TTLMinutes, secret, len(c.SeedUsers))
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded before decoding.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(string(data), formatFor(path))
}

// Parse decodes raw configuration text in format "yaml" or "toml".
func Parse(raw, format string) (*Config, error) {
	expanded := expandEnvVars(raw)

	var cfg Config
	switch format {
	case "toml":
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if v := os.Getenv(SecretEnvVar); v != "" {
		cfg.JWT.Secret = v
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func formatFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or the
// empty string when unset.
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = defaultHTTPAddr
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaultMetrics
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required (or set %s)", SecretEnvVar)
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("jwt.secret must be at least 32 bytes")
	}
	if c.JWT.TTLMinutes <= 0 {
		return fmt.Errorf("jwt.ttl_minutes is required and must be positive")
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	if c.Audit.BufferSize < 0 {
		return fmt.Errorf("audit.buffer_size must not be negative")
	}
	for i, u := range c.SeedUsers {
		if strings.TrimSpace(u.Username) == "" {
			return fmt.Errorf("seed_users[%d].username is required", i)
		}
		if u.PasswordHash == "" {
			return fmt.Errorf("seed_users[%d].password_hash is required", i)
		}
	}
	return nil
}

// ParseLevel maps a level name to slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", level)
	}
}

// TTL is the token lifetime.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.JWT.TTLMinutes) * time.Minute
}

// EngineConfig maps the file configuration onto tokengate.Config.
func (c *Config) EngineConfig() tokengate.Config {
	cfg := tokengate.DefaultConfig()
	cfg.JWT.Secret = []byte(c.JWT.Secret)
	cfg.JWT.TTL = c.TTL()
	cfg.JWT.Issuer = c.JWT.Issuer

	if c.Password.Memory != 0 {
		cfg.Password.Memory = c.Password.Memory
	}
	if c.Password.Time != 0 {
		cfg.Password.Time = c.Password.Time
	}
	if c.Password.Parallelism != 0 {
		cfg.Password.Parallelism = c.Password.Parallelism
	}

	cfg.Metrics.Enabled = c.Metrics.On()
	cfg.Metrics.EnableLatencyHistograms = !c.Metrics.DisableLatency

	cfg.Audit.Enabled = c.Audit.Enabled
	if c.Audit.BufferSize > 0 {
		cfg.Audit.BufferSize = c.Audit.BufferSize
	}
	return cfg
}
