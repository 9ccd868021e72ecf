package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrEthical07/tokengate"
)

const (
	unauthorizedBody = `{"error":"unauthorized"}` + "\n"
	forbiddenBody    = `{"error":"forbidden"}` + "\n"
)

type options struct {
	logger  *slog.Logger
	metrics *tokengate.Metrics
}

// Option configures [Gate] and the gRPC interceptors.
type Option func(*options)

// WithLogger sets the logger used for rejection diagnostics. Rejection
// reasons are logged at debug level and never sent to the client.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics counts gate rejections and forbidden responses.
func WithMetrics(m *tokengate.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", "gate")
	return o
}

// PrincipalFromContext returns the principal the gate attached to ctx.
func PrincipalFromContext(ctx context.Context) (*tokengate.Principal, bool) {
	return tokengate.PrincipalFromContext(ctx)
}

// Gate returns middleware enforcing table in front of next.
//
// Public routes pass through with no principal. Every other request needs
// "Authorization: Bearer <token>" accepted by validator; any failure gets the
// same 401 response whatever the cause. A route Authority the principal
// lacks gets 403.
func Gate(validator tokengate.TokenValidator, table *RouteTable, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, _ := table.Match(r.Method, r.URL.Path)
			if route.Public {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := authenticate(r.Context(), validator, r.Header.Get("Authorization"))
			if err != nil {
				o.reject(r.Context(), err, "path", r.URL.Path)
				writeUnauthorized(w)
				return
			}

			if route.Authority != "" && !principal.HasAuthority(route.Authority) {
				o.forbid(r.Context(), principal.Subject, route.Authority)
				writeForbidden(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(tokengate.WithPrincipal(r.Context(), principal)))
		})
	}
}

// Guard protects every request behind next. It is Gate with an empty table.
func Guard(validator tokengate.TokenValidator, opts ...Option) func(http.Handler) http.Handler {
	return Gate(validator, nil, opts...)
}

// RequireAuthority rejects requests whose principal lacks authority. It must
// run after Gate; a request with no principal gets 401.
func RequireAuthority(authority string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := tokengate.PrincipalFromContext(r.Context())
			if !ok {
				writeUnauthorized(w)
				return
			}
			if !p.HasAuthority(authority) {
				writeForbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var errMissingToken = errors.New("missing bearer token")

func authenticate(ctx context.Context, validator tokengate.TokenValidator, header string) (*tokengate.Principal, error) {
	if validator == nil {
		return nil, tokengate.ErrEngineNotReady
	}
	token, ok := bearerToken(header)
	if !ok {
		return nil, errMissingToken
	}
	principal, err := validator.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, tokengate.ErrPrincipalNotFound
	}
	return principal, nil
}

func (o options) reject(ctx context.Context, err error, attrs ...any) {
	o.metrics.Inc(tokengate.MetricGateRejected)
	o.logger.DebugContext(ctx, "request rejected", append([]any{"reason", err.Error()}, attrs...)...)
}

func (o options) forbid(ctx context.Context, subject, authority string) {
	o.metrics.Inc(tokengate.MetricGateForbidden)
	o.logger.DebugContext(ctx, "request forbidden", "subject", subject, "authority", authority)
}

func writeUnauthorized(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(unauthorizedBody))
}

func writeForbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(forbiddenBody))
}

// bearerToken extracts the credential from an Authorization header value.
// The scheme is matched case-insensitively.
func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	value = strings.TrimSpace(value)
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
