package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/tokengate"
	"github.com/MrEthical07/tokengate/middleware"
	"github.com/MrEthical07/tokengate/password"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type memStore struct {
	mu      sync.RWMutex
	records map[string]tokengate.CredentialRecord
}

func (s *memStore) FindByUsername(_ context.Context, username string) (tokengate.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[username]
	if !ok {
		return tokengate.CredentialRecord{}, tokengate.ErrUserNotFound
	}
	return rec, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	engine  *tokengate.Engine
	clock   *clock
	metrics *tokengate.Metrics
	handler http.Handler
}

func testRoutes() *middleware.RouteTable {
	return middleware.MustRouteTable(
		middleware.Route{Method: http.MethodPost, Pattern: "/auth/login", Public: true},
		middleware.Route{Pattern: "/actuator/health", Public: true},
		middleware.Route{Pattern: "/admin/**", Authority: "ROLE_ADMIN"},
	)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := tokengate.DefaultConfig()
	cfg.JWT.Secret = []byte("middleware-test-secret-0123456789abcdef")
	cfg.JWT.TTL = 60 * time.Minute
	cfg.Password = tokengate.PasswordConfig{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

	h, err := password.NewArgon2(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	hash, err := h.Hash("password123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	store := &memStore{records: map[string]tokengate.CredentialRecord{
		"alice": {Username: "alice", PasswordHash: hash},
		"root":  {Username: "root", PasswordHash: hash, Authorities: []string{"ROLE_ADMIN"}},
	}}

	c := &clock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	engine, err := tokengate.New().WithConfig(cfg).WithCredentialStore(store).WithClock(c.Now).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	metrics := tokengate.NewMetrics(tokengate.MetricsConfig{Enabled: true})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := middleware.PrincipalFromContext(r.Context())
		if ok {
			_, _ = w.Write([]byte(p.Subject))
			return
		}
		_, _ = w.Write([]byte("anonymous"))
	})

	return &fixture{
		engine:  engine,
		clock:   c,
		metrics: metrics,
		handler: middleware.Gate(engine, testRoutes(), middleware.WithMetrics(metrics))(next),
	}
}

func (f *fixture) do(method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) token(t *testing.T, subject string) string {
	t.Helper()
	tok, err := f.engine.Issue(subject)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return tok
}

func assertUnauthorized(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if got := rr.Body.String(); got != "{\"error\":\"unauthorized\"}\n" {
		t.Fatalf("unexpected body %q", got)
	}
	if rr.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatal("missing WWW-Authenticate challenge")
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected content type %q", rr.Header().Get("Content-Type"))
	}
}

func TestGatePublicRoutesPassWithoutToken(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/auth/login"},
		{http.MethodGet, "/actuator/health"},
	} {
		rr := f.do(tc.method, tc.path, "")
		if rr.Code != http.StatusOK || rr.Body.String() != "anonymous" {
			t.Fatalf("%s %s: got %d %q", tc.method, tc.path, rr.Code, rr.Body.String())
		}
	}

	rr := f.do(http.MethodPost, "/actuator/health", "Bearer garbage")
	if rr.Code != http.StatusOK {
		t.Fatalf("public route must ignore bad tokens, got %d", rr.Code)
	}
}

func TestGateDotSegmentsDoNotReachPublicRoutes(t *testing.T) {
	f := newFixture(t)
	gate := middleware.Gate(f.engine, middleware.MustRouteTable(
		middleware.Route{Pattern: "/auth/**", Public: true},
		middleware.Route{Pattern: "/admin/**", Authority: "ROLE_ADMIN"},
	))
	handler := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := middleware.PrincipalFromContext(r.Context()); ok {
			_, _ = w.Write([]byte(p.Subject))
			return
		}
		_, _ = w.Write([]byte("anonymous"))
	}))
	serve := func(path, auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	for _, path := range []string{
		"/auth/../api/data",
		"/auth/%2e%2e/api/data",
		"/auth/./login",
		"//auth/login",
	} {
		assertUnauthorized(t, serve(path, ""))
	}

	if rr := serve("/auth/login", ""); rr.Code != http.StatusOK || rr.Body.String() != "anonymous" {
		t.Fatalf("canonical public path: got %d %q", rr.Code, rr.Body.String())
	}

	rr := serve("/auth/../api/data", "Bearer "+f.token(t, "alice"))
	if rr.Code != http.StatusOK || rr.Body.String() != "alice" {
		t.Fatalf("authenticated request: got %d %q", rr.Code, rr.Body.String())
	}

	rr = serve("/auth/../admin/users", "Bearer "+f.token(t, "alice"))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("authority of the cleaned route must apply, got %d", rr.Code)
	}
}

func TestGateAttachesPrincipal(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "alice")

	for _, scheme := range []string{"Bearer ", "bearer ", "BEARER "} {
		rr := f.do(http.MethodGet, "/api/data", scheme+tok)
		if rr.Code != http.StatusOK || rr.Body.String() != "alice" {
			t.Fatalf("scheme %q: got %d %q", scheme, rr.Code, rr.Body.String())
		}
	}
}

func TestGateUniformRejection(t *testing.T) {
	f := newFixture(t)
	valid := f.token(t, "alice")
	tampered := valid[:len(valid)-2] + flip(valid[len(valid)-2]) + valid[len(valid)-1:]
	ghost := f.token(t, "ghost")

	cases := map[string]string{
		"missing header":    "",
		"wrong scheme":      "Basic " + valid,
		"empty bearer":      "Bearer ",
		"malformed":         "Bearer not-a-token",
		"invalid signature": "Bearer " + tampered,
		"unknown principal": "Bearer " + ghost,
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			assertUnauthorized(t, f.do(http.MethodGet, "/api/data", header))
		})
	}

	f.clock.Advance(60 * time.Minute)
	assertUnauthorized(t, f.do(http.MethodGet, "/api/data", "Bearer "+valid))

	if got := f.metrics.Value(tokengate.MetricGateRejected); got != uint64(len(cases)+1) {
		t.Fatalf("expected %d gate rejections, got %d", len(cases)+1, got)
	}
}

func TestGateAuthority(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/admin/users", "Bearer "+f.token(t, "alice"))
	if rr.Code != http.StatusForbidden || !strings.Contains(rr.Body.String(), "forbidden") {
		t.Fatalf("expected 403, got %d %q", rr.Code, rr.Body.String())
	}

	rr = f.do(http.MethodGet, "/admin/users", "Bearer "+f.token(t, "root"))
	if rr.Code != http.StatusOK || rr.Body.String() != "root" {
		t.Fatalf("expected admin access, got %d %q", rr.Code, rr.Body.String())
	}

	if got := f.metrics.Value(tokengate.MetricGateForbidden); got != 1 {
		t.Fatalf("expected 1 forbidden, got %d", got)
	}
}

func TestLoginThenCallScenario(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Login(context.Background(), "alice", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	rr := f.do(http.MethodGet, "/api/data", "Bearer "+res.Token)
	if rr.Code != http.StatusOK || rr.Body.String() != "alice" {
		t.Fatalf("expected alice, got %d %q", rr.Code, rr.Body.String())
	}

	f.clock.Advance(59 * time.Minute)
	if rr := f.do(http.MethodGet, "/api/data", "Bearer "+res.Token); rr.Code != http.StatusOK {
		t.Fatalf("token must be valid before expiry, got %d", rr.Code)
	}

	f.clock.Advance(time.Minute)
	assertUnauthorized(t, f.do(http.MethodGet, "/api/data", "Bearer "+res.Token))
}

func TestGuardProtectsEverything(t *testing.T) {
	f := newFixture(t)
	h := middleware.Guard(f.engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/actuator/health", nil))
	assertUnauthorized(t, rr)
}

func TestGateWithoutValidatorRejects(t *testing.T) {
	h := middleware.Guard(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	h.ServeHTTP(rr, req)
	assertUnauthorized(t, rr)
}

func TestRequireAuthority(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := middleware.RequireAuthority("ROLE_ADMIN")(ok)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assertUnauthorized(t, rr)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(tokengate.WithPrincipal(req.Context(), &tokengate.Principal{Subject: "a", Authorities: []string{"ROLE_USER"}}))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}

	req = req.WithContext(tokengate.WithPrincipal(req.Context(), &tokengate.Principal{Subject: "a", Authorities: []string{"ROLE_ADMIN"}}))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func grpcRoutes() *middleware.RouteTable {
	return middleware.MustRouteTable(
		middleware.Route{Pattern: "/grpc.health.v1.Health/*", Public: true},
		middleware.Route{Pattern: "/admin.v1.Admin/*", Authority: "ROLE_ADMIN"},
	)
}

func TestUnaryServerInterceptor(t *testing.T) {
	f := newFixture(t)
	interceptor := middleware.UnaryServerInterceptor(f.engine, grpcRoutes())

	handler := func(ctx context.Context, req any) (any, error) {
		p, ok := middleware.PrincipalFromContext(ctx)
		if !ok {
			return "anonymous", nil
		}
		return p.Subject, nil
	}

	call := func(method, auth string) (any, error) {
		ctx := context.Background()
		if auth != "" {
			ctx = metadata.NewIncomingContext(ctx, metadata.Pairs("authorization", auth))
		}
		return interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, handler)
	}

	resp, err := call("/grpc.health.v1.Health/Check", "")
	if err != nil || resp != "anonymous" {
		t.Fatalf("public method: got %v, %v", resp, err)
	}

	resp, err = call("/data.v1.Data/Get", "Bearer "+f.token(t, "alice"))
	if err != nil || resp != "alice" {
		t.Fatalf("protected method: got %v, %v", resp, err)
	}

	for _, auth := range []string{"", "Bearer junk", "Token " + f.token(t, "alice")} {
		_, err = call("/data.v1.Data/Get", auth)
		if status.Code(err) != codes.Unauthenticated {
			t.Fatalf("auth %q: expected Unauthenticated, got %v", auth, err)
		}
		if status.Convert(err).Message() != "unauthorized" {
			t.Fatalf("rejection message leaks detail: %v", err)
		}
	}

	_, err = call("/admin.v1.Admin/Purge", "Bearer "+f.token(t, "alice"))
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *fakeStream) Context() context.Context { return s.ctx }

func TestStreamServerInterceptor(t *testing.T) {
	f := newFixture(t)
	interceptor := middleware.StreamServerInterceptor(f.engine, grpcRoutes())
	info := &grpc.StreamServerInfo{FullMethod: "/data.v1.Data/Watch", IsServerStream: true}

	var subject string
	handler := func(srv any, ss grpc.ServerStream) error {
		p, ok := middleware.PrincipalFromContext(ss.Context())
		if !ok {
			t.Fatal("principal missing from stream context")
		}
		subject = p.Subject
		return nil
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+f.token(t, "alice")))
	if err := interceptor(nil, &fakeStream{ctx: ctx}, info, handler); err != nil {
		t.Fatalf("stream rejected: %v", err)
	}
	if subject != "alice" {
		t.Fatalf("expected alice, got %q", subject)
	}

	err := interceptor(nil, &fakeStream{ctx: context.Background()}, info, handler)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func flip(c byte) string {
	if c == 'A' {
		return "B"
	}
	return "A"
}
