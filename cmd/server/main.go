// Package main is the entry point for the vecrelay server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/blueberrycongee/vecrelay/internal/api"
	"github.com/blueberrycongee/vecrelay/internal/config"
	"github.com/blueberrycongee/vecrelay/internal/hub"
	"github.com/blueberrycongee/vecrelay/internal/ingest"
	"github.com/blueberrycongee/vecrelay/internal/observability"
	"github.com/blueberrycongee/vecrelay/internal/ratelimit"
	"github.com/blueberrycongee/vecrelay/internal/store"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	envFile := flag.String("env", ".env", "path to an optional dotenv file")
	flag.Parse()

	// Initialize structured logger
	level := new(slog.LevelVar)
	logger := observability.NewLogger(observability.LoggerConfig{
		Level:      level,
		Output:     os.Stdout,
		JSONFormat: true,
	})
	slog.SetDefault(logger)

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to load env file", "path", *envFile, "error", err)
	}

	// Load configuration
	cfgManager, err := config.NewManager(*configPath, logger)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	defer cfgManager.Close()

	cfg := cfgManager.Get()
	if cfg.Logging.Format == "text" {
		logger = observability.NewLogger(observability.LoggerConfig{
			Level:  level,
			Output: os.Stdout,
		})
		slog.SetDefault(logger)
	}
	if lvl, err := observability.ParseLevel(cfg.Logging.Level); err == nil {
		level.Set(lvl)
	}

	logger.Info("starting vecrelay", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfgManager, logger, level); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfgManager *config.Manager, logger *slog.Logger, level *slog.LevelVar) error {
	cfg := cfgManager.Get()

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
		Insecure:    cfg.Tracing.Insecure,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	mode, err := ingest.ParseMode(cfg.Relay.BroadcastMode)
	if err != nil {
		return err
	}

	st := store.New(store.Config{TTL: cfg.Relay.TTL})
	registry := hub.NewRegistry(logger)
	gateway := ingest.NewGateway(st, registry, ingest.Config{
		Mode:   mode,
		Logger: logger,
		Tracer: tp.Tracer(),
	})
	limiter := ratelimit.New(limiterConfig(cfg.RateLimit))

	handler := api.NewHandler(api.HandlerConfig{
		Store:    st,
		Registry: registry,
		Gateway:  gateway,
		Limiter:  limiter,
		Logger:   logger,
		WebSocket: api.WebSocketConfig{
			ReadLimit:      cfg.WebSocket.ReadLimit,
			SendQueue:      cfg.WebSocket.SendQueue,
			WriteTimeout:   cfg.WebSocket.WriteTimeout,
			PingInterval:   cfg.WebSocket.PingInterval,
			PongTimeout:    cfg.WebSocket.PongTimeout,
			AllowedOrigins: cfg.WebSocket.AllowedOrigins,
		},
	})

	reloader := newRelayReloader(logger, st, gateway, limiter, level)
	cfgManager.OnChange(reloader.Reload)
	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	mux, err := buildMux(cfg, handler)
	if err != nil {
		return err
	}
	middleware, err := buildMiddlewareStack(cfg, logger, tp.Tracer())
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening",
			"port", cfg.Server.Port,
			"ttl", cfg.Relay.TTL,
			"broadcast_mode", string(mode),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if tpErr := tp.Shutdown(shutdownCtx); tpErr != nil {
			logger.Error("tracer shutdown error", "error", tpErr)
		}
		return err
	})

	return g.Wait()
}
