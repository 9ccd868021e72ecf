package tokengate

import (
	"context"
	"errors"

	internalaudit "github.com/MrEthical07/tokengate/internal/audit"
)

const (
	auditEventLoginSuccess  = "login_success"
	auditEventLoginFailure  = "login_failure"
	auditEventTokenRejected = "token_rejected"
)

const (
	auditReasonUnknownUser       = "unknown_user"
	auditReasonWrongPassword     = "wrong_password"
	auditReasonMalformedHash     = "malformed_hash"
	auditReasonStoreUnavailable  = "store_unavailable"
	auditReasonMalformed         = "malformed"
	auditReasonInvalidSignature  = "invalid_signature"
	auditReasonExpired           = "expired"
	auditReasonPrincipalNotFound = "principal_not_found"
	auditReasonInternal          = "internal_error"
)

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, subject, reason string) {
	if e == nil || e.audit == nil {
		return
	}

	event := internalaudit.NewEvent(eventType, success, e.now())
	event.Subject = subject
	event.IP = clientIPFromContext(ctx)
	event.RequestID = RequestIDFromContext(ctx)
	event.Reason = reason

	e.audit.Emit(ctx, event)
}

func auditReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTokenMalformed):
		return auditReasonMalformed
	case errors.Is(err, ErrTokenInvalidSignature):
		return auditReasonInvalidSignature
	case errors.Is(err, ErrTokenExpired):
		return auditReasonExpired
	case errors.Is(err, ErrPrincipalNotFound):
		return auditReasonPrincipalNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return auditReasonStoreUnavailable
	default:
		return auditReasonInternal
	}
}
