package tokengate

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/tokengate/internal/audit"
	"github.com/MrEthical07/tokengate/jwt"
	"github.com/MrEthical07/tokengate/password"
)

// Builder assembles an [Engine]. It is single-use: Build may succeed once.
type Builder struct {
	config Config

	store     CredentialStore
	resolver  PrincipalResolver
	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The secret is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithCredentialStore sets the identity store used by Login and, unless
// WithResolver is given, by the default [StoreResolver].
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithResolver overrides the principal resolver.
func (b *Builder) WithResolver(r PrincipalResolver) *Builder {
	b.resolver = r
	return b
}

// WithAuditSink sets where audit events go. Events are only dispatched when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now. Tests use it to move past token expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Authenticate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and constructs the engine. Every
// failure wraps [ErrConfigurationFault]; the process must not serve traffic
// when Build fails.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, fmt.Errorf("%w: credential store required", ErrConfigurationFault)
	}

	codec, err := jwt.NewManager(jwt.Config{
		Secret: cfg.JWT.Secret,
		TTL:    cfg.JWT.TTL,
		Issuer: cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationFault, err)
	}

	verifier, err := password.NewVerifier(cfg.Password.params())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationFault, err)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	resolver := b.resolver
	if resolver == nil {
		resolver = NewStoreResolver(b.store, cfg.Principal.DefaultAuthorities)
	}

	metrics := NewMetrics(cfg.Metrics)

	engine := &Engine{
		config:   cfg,
		codec:    codec,
		verifier: verifier,
		store:    b.store,
		resolver: resolver,
		metrics:  metrics,
		logger:   logger.With("component", "tokengate"),
		now:      clock,
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop:     func() { metrics.Inc(MetricAuditDropped) },
	}, b.auditSink)

	// The key now lives only inside the codec.
	engine.config.JWT.Secret = nil

	b.built = true

	return engine, nil
}
