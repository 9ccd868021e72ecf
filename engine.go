package tokengate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/tokengate/internal/audit"
	"github.com/MrEthical07/tokengate/jwt"
	"github.com/MrEthical07/tokengate/password"
)

// Engine verifies credentials, issues tokens and authenticates bearer
// tokens. It is immutable after [Builder.Build] and safe for concurrent use.
type Engine struct {
	config   Config
	codec    *jwt.Manager
	verifier *password.Verifier
	store    CredentialStore
	resolver PrincipalResolver
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

var _ TokenValidator = (*Engine)(nil)

// Close flushes pending audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Metrics exposes the live metrics for exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsEnabled reports whether the engine collects metrics.
func (e *Engine) MetricsEnabled() bool {
	return e != nil && e.metrics.Enabled()
}

// MetricsSnapshot returns a point-in-time copy of the engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// TTL reports the configured token lifetime.
func (e *Engine) TTL() time.Duration {
	return e.config.JWT.TTL
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login checks username and secret against the credential store and, on
// success, issues a token for username.
//
// An unknown username and a wrong secret both return [ErrInvalidCredential]
// after the same amount of hashing work. Store failures return
// [ErrStoreUnavailable]; a stored hash that cannot be read returns
// [ErrConfigurationFault].
func (e *Engine) Login(ctx context.Context, username, secret string) (LoginResult, error) {
	if e == nil || e.codec == nil {
		return LoginResult{}, ErrEngineNotReady
	}

	username = strings.TrimSpace(username)
	if username == "" {
		e.verifier.Burn(secret)
		e.loginFailed(ctx, username, auditReasonUnknownUser)
		return LoginResult{}, ErrInvalidCredential
	}

	rec, err := e.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.verifier.Burn(secret)
			e.loginFailed(ctx, username, auditReasonUnknownUser)
			return LoginResult{}, ErrInvalidCredential
		}
		e.metricInc(MetricStoreUnavailable)
		e.loginFailed(ctx, username, auditReasonStoreUnavailable)
		e.logger.ErrorContext(ctx, "credential lookup failed", "error", err)
		if errors.Is(err, ErrStoreUnavailable) {
			return LoginResult{}, err
		}
		return LoginResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ok, err := e.verifier.Verify(secret, rec.PasswordHash)
	if err != nil {
		e.loginFailed(ctx, username, auditReasonMalformedHash)
		e.logger.ErrorContext(ctx, "stored password hash unreadable", "user", username, "error", err)
		return LoginResult{}, fmt.Errorf("%w: stored hash for %q: %v", ErrConfigurationFault, username, err)
	}
	if !ok {
		e.loginFailed(ctx, username, auditReasonWrongPassword)
		return LoginResult{}, ErrInvalidCredential
	}

	if e.verifier.NeedsUpgrade(rec.PasswordHash) {
		e.logger.InfoContext(ctx, "stored password hash uses outdated parameters", "user", username)
	}

	now := e.now()
	token, err := e.codec.Issue(username, now)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	issuedAt := now.Truncate(time.Second)
	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventLoginSuccess, true, username, "")

	return LoginResult{
		Token:     token,
		Subject:   username,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(e.codec.TTL()),
	}, nil
}

func (e *Engine) loginFailed(ctx context.Context, username, reason string) {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, username, reason)
}

// Issue signs a token for subject at the engine clock's current time.
func (e *Engine) Issue(subject string) (string, error) {
	if e == nil || e.codec == nil {
		return "", ErrEngineNotReady
	}
	token, err := e.codec.Issue(subject, e.now())
	if err != nil {
		return "", err
	}
	e.metricInc(MetricTokenIssued)
	return token, nil
}

// Validate checks token at the engine clock's current time and returns its
// claims. Rejections are [ErrTokenMalformed], [ErrTokenInvalidSignature] or
// [ErrTokenExpired].
func (e *Engine) Validate(token string) (*Claims, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.codec.Validate(token, e.now())
	if err != nil {
		return nil, e.classifyTokenError(err)
	}
	return claims, nil
}

func (e *Engine) classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		e.metricInc(MetricTokenExpired)
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrInvalidSignature):
		e.metricInc(MetricTokenInvalidSignature)
		return ErrTokenInvalidSignature
	default:
		e.metricInc(MetricTokenMalformed)
		return ErrTokenMalformed
	}
}

// Authenticate validates token and resolves its subject to a principal.
//
// Token rejections return the matching ErrToken* sentinel, an unknown
// subject returns [ErrPrincipalNotFound], and a resolver failure returns
// [ErrStoreUnavailable]. Callers facing clients must not reveal which.
func (e *Engine) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}
	}()

	claims, err := e.Validate(token)
	if err != nil {
		e.emitAudit(ctx, auditEventTokenRejected, false, "", auditReason(err))
		return nil, err
	}

	principal, err := e.resolver.Resolve(ctx, claims.Subject)
	if err != nil {
		switch {
		case errors.Is(err, ErrPrincipalNotFound):
			e.metricInc(MetricPrincipalNotFound)
			e.emitAudit(ctx, auditEventTokenRejected, false, claims.Subject, auditReasonPrincipalNotFound)
			return nil, ErrPrincipalNotFound
		default:
			e.metricInc(MetricStoreUnavailable)
			e.emitAudit(ctx, auditEventTokenRejected, false, claims.Subject, auditReasonStoreUnavailable)
			e.logger.ErrorContext(ctx, "principal resolution failed", "error", err)
			if errors.Is(err, ErrStoreUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	e.metricInc(MetricValidateSuccess)
	return &principal, nil
}

// HashPassword produces an Argon2id hash with the engine's parameters, for
// seeding credential stores.
func (e *Engine) HashPassword(secret string) (string, error) {
	if e == nil || e.verifier == nil {
		return "", ErrEngineNotReady
	}
	return e.verifier.Hash(secret)
}
