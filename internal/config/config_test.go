package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/tokengate/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("TG_TEST_SECRET", testSecret)
	path := writeFile(t, "config.yaml", `
server:
  http_addr: "127.0.0.1:9090"
  grpc_addr: "127.0.0.1:50051"
jwt:
  secret: "${TG_TEST_SECRET}"
  ttl_minutes: 60
  issuer: tokengate
store:
  driver: sqlite
  dsn: ./data/tokengate.db
logging:
  level: debug
  format: json
audit:
  enabled: true
  output: stdout
seed_users:
  - username: alice
    password_hash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"
    authorities: [ROLE_USER, ROLE_ADMIN]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.HTTPAddr)
	assert.Equal(t, "127.0.0.1:50051", cfg.Server.GRPCAddr)
	assert.Equal(t, testSecret, cfg.JWT.Secret)
	assert.Equal(t, 60*time.Minute, cfg.TTL())
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "json", cfg.Logging.Format)
	require.Len(t, cfg.SeedUsers, 1)
	assert.Equal(t, []string{"ROLE_USER", "ROLE_ADMIN"}, cfg.SeedUsers[0].Authorities)
	assert.True(t, strings.HasPrefix(cfg.SeedUsers[0].PasswordHash, "$argon2id$"))
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.True(t, cfg.Metrics.On())
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[jwt]
secret = "`+testSecret+`"
ttl_minutes = 15

[metrics]
enabled = false

[[seed_users]]
username = "bob"
password_hash = "$2a$10$abcdefghijklmnopqrstuv"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.TTL())
	assert.False(t, cfg.Metrics.On())
	require.Len(t, cfg.SeedUsers, 1)
	assert.Equal(t, "bob", cfg.SeedUsers[0].Username)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeFile(t, "config.yaml", "jwt:\n  secret: "+testSecret+"\n  ttl_minutes: 5\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Empty(t, cfg.Server.GRPCAddr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestLoad_SecretEnvOverride(t *testing.T) {
	override := strings.Repeat("z", 40)
	t.Setenv(SecretEnvVar, override)
	path := writeFile(t, "config.yaml", "jwt:\n  ttl_minutes: 5\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, override, cfg.JWT.Secret)
}

func TestLoad_ShippedExample(t *testing.T) {
	t.Setenv(SecretEnvVar, testSecret)
	cfg, err := Load(filepath.Join("..", "..", "tokengate.yaml"))
	require.NoError(t, err)

	assert.Equal(t, testSecret, cfg.JWT.Secret)
	assert.Equal(t, "memory", cfg.Store.Driver)
	require.Len(t, cfg.SeedUsers, 1)
	alice := cfg.SeedUsers[0]
	assert.Equal(t, "alice", alice.Username)
	assert.Equal(t, []string{"ROLE_USER"}, alice.Authorities)

	hasher, err := password.NewArgon2(password.DefaultParams())
	require.NoError(t, err)
	ok, err := hasher.Verify("password123", alice.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
	stale, err := hasher.NeedsUpgrade(alice.PasswordHash)
	require.NoError(t, err)
	assert.False(t, stale, "hash should match the defaults used by tokengate hash")
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing secret", "jwt:\n  ttl_minutes: 5\n", "jwt.secret is required"},
		{"short secret", "jwt:\n  secret: short\n  ttl_minutes: 5\n", "at least 32 bytes"},
		{"missing ttl", "jwt:\n  secret: " + testSecret + "\n", "ttl_minutes"},
		{"negative ttl", "jwt:\n  secret: " + testSecret + "\n  ttl_minutes: -1\n", "ttl_minutes"},
		{"bad level", "jwt:\n  secret: " + testSecret + "\n  ttl_minutes: 5\nlogging:\n  level: loud\n", "logging.level"},
		{"bad format", "jwt:\n  secret: " + testSecret + "\n  ttl_minutes: 5\nlogging:\n  format: xml\n", "logging.format"},
		{"seed without hash", "jwt:\n  secret: " + testSecret + "\n  ttl_minutes: 5\nseed_users:\n  - username: a\n", "password_hash"},
		{"bad metrics path", "jwt:\n  secret: " + testSecret + "\n  ttl_minutes: 5\nmetrics:\n  path: metrics\n", "metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeFile(t, "config.yaml", "jwt: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TG_A", "alpha")
	assert.Equal(t, "x-alpha-", expandEnvVars("x-${TG_A}-${TG_UNSET_VAR_FOR_TEST}"))
	assert.Equal(t, "no vars", expandEnvVars("no vars"))
}

func TestEngineConfig(t *testing.T) {
	path := writeFile(t, "config.yaml", `
jwt:
  secret: `+testSecret+`
  ttl_minutes: 60
  issuer: tg
password:
  memory_kib: 32768
audit:
  enabled: true
  buffer_size: 16
metrics:
  disable_latency_histograms: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	ec := cfg.EngineConfig()
	require.NoError(t, ec.Validate())
	assert.Equal(t, []byte(testSecret), ec.JWT.Secret)
	assert.Equal(t, time.Hour, ec.JWT.TTL)
	assert.Equal(t, "tg", ec.JWT.Issuer)
	assert.Equal(t, uint32(32768), ec.Password.Memory)
	assert.True(t, ec.Audit.Enabled)
	assert.Equal(t, 16, ec.Audit.BufferSize)
	assert.True(t, ec.Metrics.Enabled)
	assert.False(t, ec.Metrics.EnableLatencyHistograms)
	assert.Equal(t, []string{"ROLE_USER"}, ec.Principal.DefaultAuthorities)
}

func TestConfigStringRedactsSecret(t *testing.T) {
	cfg := Config{JWT: JWTConfig{Secret: testSecret, TTLMinutes: 5}}
	s := cfg.String()
	assert.NotContains(t, s, testSecret)
	assert.Contains(t, s, "<redacted>")
}
