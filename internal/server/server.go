package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/tokengate"
	"github.com/MrEthical07/tokengate/metrics/export/prometheus"
	"github.com/MrEthical07/tokengate/middleware"
	"github.com/MrEthical07/tokengate/store"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in and out.
const RequestIDHeader = "X-Request-ID"

const maxBodyBytes = 64 << 10

// Options configures the HTTP surface.
type Options struct {
	// MetricsPath serves Prometheus text when non-empty and metrics are enabled.
	MetricsPath string
	Logger      *slog.Logger
	Now         func() time.Time
}

// Server is the reference HTTP service in front of an Engine.
type Server struct {
	engine  *tokengate.Engine
	backend store.Backend
	routes  *middleware.RouteTable
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

// New wires the HTTP handlers. engine and backend must be non-nil.
func New(engine *tokengate.Engine, backend store.Backend, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if !engine.MetricsEnabled() {
		opts.MetricsPath = ""
	}
	return &Server{
		engine:  engine,
		backend: backend,
		routes:  Routes(opts.MetricsPath),
		opts:    opts,
		logger:  logger.With("component", "http"),
		now:     now,
	}
}

// Routes is the public/protected table of the service. Anything not listed
// requires a valid bearer token. HEAD on health is public because ServeMux
// answers it through the GET pattern.
func Routes(metricsPath string) *middleware.RouteTable {
	routes := []middleware.Route{
		{Pattern: "/auth/**", Public: true},
		{Method: http.MethodGet, Pattern: "/actuator/health", Public: true},
		{Method: http.MethodHead, Pattern: "/actuator/health", Public: true},
	}
	if metricsPath != "" {
		routes = append(routes, middleware.Route{Method: http.MethodGet, Pattern: metricsPath, Public: true})
	}
	return middleware.MustRouteTable(routes...)
}

// Handler returns the complete handler chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /actuator/health", s.handleHealth)
	mux.HandleFunc("GET /api/data", s.handleListPosts)
	mux.HandleFunc("POST /api/posts", s.handleCreatePost)
	mux.HandleFunc("GET /api/me", s.handleMe)
	if s.opts.MetricsPath != "" {
		mux.Handle("GET "+s.opts.MetricsPath, prometheus.NewPrometheusExporter(s.engine).Handler())
	}

	gate := middleware.Gate(s.engine, s.routes,
		middleware.WithLogger(s.logger),
		middleware.WithMetrics(s.engine.Metrics()),
	)
	return s.withRequestContext(gate(mux))
}

// withRequestContext assigns a request ID, records the client IP and logs
// each request at debug level.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := tokengate.WithRequestID(r.Context(), id)
		ctx = tokengate.WithClientIP(ctx, clientIP(r))

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(ctx))

		s.logger.DebugContext(ctx, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"request_id", id,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type postRequest struct {
	Content string `json:"content"`
}

type postResponse struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	AuthorUsername string    `json:"authorUsername"`
}

type meResponse struct {
	Subject     string   `json:"subject"`
	Authorities []string `json:"authorities"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toPostResponse(p store.Post) postResponse {
	return postResponse{ID: p.ID, Content: p.Content, CreatedAt: p.CreatedAt, AuthorUsername: p.Author}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	res, err := s.engine.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, tokenResponse{Token: res.Token})
	case errors.Is(err, tokengate.ErrInvalidCredential):
		w.WriteHeader(http.StatusUnauthorized)
	case errors.Is(err, tokengate.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		s.logger.ErrorContext(r.Context(), "login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.backend.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "DOWN"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.backend.ListPosts(r.Context(), 0)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list posts failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}
	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	post, err := store.NewPost(principal.Subject, req.Content, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.backend.CreatePost(r.Context(), post); err != nil {
		s.logger.ErrorContext(r.Context(), "create post failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}
	writeJSON(w, http.StatusCreated, toPostResponse(post))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Subject: principal.Subject, Authorities: principal.Authorities})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
