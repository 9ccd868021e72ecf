package tokengate

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"time"

	internalaudit "github.com/MrEthical07/tokengate/internal/audit"
	internalmetrics "github.com/MrEthical07/tokengate/internal/metrics"
	"github.com/MrEthical07/tokengate/jwt"
)

// Principal is an authenticated identity plus its granted authorities.
// Values are treated as immutable once resolved.
type Principal struct {
	Subject     string
	Authorities []string
}

// HasAuthority reports whether p was granted authority.
func (p *Principal) HasAuthority(authority string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Authorities, authority)
}

// CredentialRecord links a username to the one-way hash of its secret.
// Authorities is optional; when empty the resolver's defaults apply.
type CredentialRecord struct {
	Username     string
	PasswordHash string
	Authorities  []string
}

// CredentialStore is the identity lookup the engine needs. Implementations
// return [ErrUserNotFound] when the username is absent and must be safe for
// concurrent use.
//
//	Implementations: store.MemoryStore, store.SQLStore, store.RedisStore
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (CredentialRecord, error)
}

// PrincipalResolver maps a verified subject to its current capability set.
// It returns [ErrPrincipalNotFound] when the subject no longer exists.
type PrincipalResolver interface {
	Resolve(ctx context.Context, subject string) (Principal, error)
}

// TokenValidator turns a bearer token into a principal. [Engine] satisfies
// it; middleware depends only on this contract.
type TokenValidator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// LoginResult is returned by a successful [Engine.Login].
type LoginResult struct {
	Token     string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims is the verified content of a token.
type Claims = jwt.Claims

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink is an [AuditSink] that logs events through [log/slog].
type SlogSink = internalaudit.SlogSink

// MultiSink fans events out to several sinks.
type MultiSink = internalaudit.MultiSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink creates a [SlogSink]. A nil logger selects slog.Default.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess          = MetricID(internalmetrics.MetricLoginSuccess)
	MetricLoginFailure          = MetricID(internalmetrics.MetricLoginFailure)
	MetricTokenIssued           = MetricID(internalmetrics.MetricTokenIssued)
	MetricValidateSuccess       = MetricID(internalmetrics.MetricValidateSuccess)
	MetricTokenMalformed        = MetricID(internalmetrics.MetricTokenMalformed)
	MetricTokenInvalidSignature = MetricID(internalmetrics.MetricTokenInvalidSignature)
	MetricTokenExpired          = MetricID(internalmetrics.MetricTokenExpired)
	MetricPrincipalNotFound     = MetricID(internalmetrics.MetricPrincipalNotFound)
	MetricStoreUnavailable      = MetricID(internalmetrics.MetricStoreUnavailable)
	MetricGateRejected          = MetricID(internalmetrics.MetricGateRejected)
	MetricGateForbidden         = MetricID(internalmetrics.MetricGateForbidden)
	MetricAuditDropped          = MetricID(internalmetrics.MetricAuditDropped)
	// MetricValidateLatency is the only histogram; it times Authenticate.
	MetricValidateLatency = MetricID(internalmetrics.MetricValidateLatency)
)

// Metrics holds atomic counters and an optional latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance configured by cfg. When Enabled is
// false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
