package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/MrEthical07/tokengate"
	"github.com/MrEthical07/tokengate/internal/config"
	"github.com/MrEthical07/tokengate/internal/server"
	"github.com/MrEthical07/tokengate/middleware"
	"github.com/MrEthical07/tokengate/store"
	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 5 * time.Second

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	path := fs.String("config", "", "path to config file (yaml or toml)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(configPath(*path))
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	color.New(color.FgCyan).Print(banner)
	fmt.Println()

	backend, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("closing store", "error", err)
		}
	}()

	seeded, err := server.Seed(ctx, backend, cfg.SeedUsers, logger)
	if err != nil {
		return fmt.Errorf("seeding users: %w", err)
	}

	sink, closeSink, err := auditSink(cfg.Audit, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	engine, err := tokengate.New().
		WithConfig(cfg.EngineConfig()).
		WithCredentialStore(backend).
		WithAuditSink(sink).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	printStatus("HTTP", cfg.Server.HTTPAddr)
	if cfg.Server.GRPCAddr != "" {
		printStatus("gRPC", cfg.Server.GRPCAddr)
	}
	printStatus("Store", cfg.Store.Driver)
	printStatus("Token TTL", engine.TTL().String())
	printStatus("Seeded", fmt.Sprintf("%d user(s)", seeded))
	fmt.Println()

	metricsPath := ""
	if cfg.Metrics.On() {
		metricsPath = cfg.Metrics.Path
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.New(engine, backend, server.Options{MetricsPath: metricsPath, Logger: logger}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var grpcServer *grpc.Server
	var grpcLis net.Listener
	if cfg.Server.GRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", cfg.Server.GRPCAddr, err)
		}
		grpcServer = newGRPCServer(engine, logger)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if grpcServer != nil {
		g.Go(func() error {
			logger.Info("grpc server listening", "addr", cfg.Server.GRPCAddr)
			if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdown(httpServer, grpcServer, logger)
		return nil
	})

	return g.Wait()
}

func shutdown(httpServer *http.Server, grpcServer *grpc.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if grpcServer != nil {
		done := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			grpcServer.Stop()
		}
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
}

// grpcRoutes leaves the standard health service open.
func grpcRoutes() *middleware.RouteTable {
	return middleware.MustRouteTable(
		middleware.Route{Pattern: "/grpc.health.v1.Health/*", Public: true},
	)
}

func newGRPCServer(engine *tokengate.Engine, logger *slog.Logger) *grpc.Server {
	opts := []middleware.Option{
		middleware.WithLogger(logger.With("component", "grpc")),
		middleware.WithMetrics(engine.Metrics()),
	}
	routes := grpcRoutes()

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(middleware.UnaryServerInterceptor(engine, routes, opts...)),
		grpc.ChainStreamInterceptor(middleware.StreamServerInterceptor(engine, routes, opts...)),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}

// auditSink resolves audit.output. The returned func releases any file.
func auditSink(cfg config.AuditConfig, logger *slog.Logger) (tokengate.AuditSink, func(), error) {
	noop := func() {}
	if !cfg.Enabled {
		return tokengate.NoOpSink{}, noop, nil
	}

	switch cfg.Output {
	case "", "stdout":
		return tokengate.NewJSONWriterSink(os.Stdout), noop, nil
	case "log":
		return tokengate.NewSlogSink(logger), noop, nil
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, noop, fmt.Errorf("opening audit output: %w", err)
		}
		return tokengate.NewJSONWriterSink(f), func() { closeQuietly(f, logger) }, nil
	}
}

func closeQuietly(c io.Closer, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Warn("close failed", "error", err)
	}
}
