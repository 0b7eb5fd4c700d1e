package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/garrettladley/adega/internal/bling"
	"github.com/garrettladley/adega/internal/config"
	"github.com/garrettladley/adega/internal/db"
	xredis "github.com/garrettladley/adega/internal/redis"
	"github.com/garrettladley/adega/internal/server"
	"github.com/garrettladley/adega/internal/server/handler"
	"github.com/garrettladley/adega/internal/service/invoice"
	"github.com/garrettladley/adega/internal/service/webhook"
	"github.com/garrettladley/adega/internal/storage"
	"github.com/garrettladley/adega/internal/version"
	"github.com/garrettladley/adega/internal/xslog"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	logger := xslog.NewLoggerFromEnv(os.Stdout)
	slog.SetDefault(logger)

	ctx := context.Background()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", xslog.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Read()
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if cfg.Env.IsProduction() && version.IsDevelopment(version.Get()) {
		logger.WarnContext(ctx, "running an untagged build in production", xslog.Version())
	}

	handle, err := db.Open(ctx, db.Config{
		Driver: cfg.Database.Driver,
		URL:    cfg.Database.URL,
		Path:   cfg.Database.Path,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := handle.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close database", xslog.Error(err))
		}
	}()

	backend, dedup, err := initBackend(ctx, cfg, handle.Store, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close backend", xslog.Error(err))
		}
	}()

	webhookCfg := webhook.Config{
		Secret:      cfg.Bling.WebhookSecret,
		MaxRetries:  cfg.Webhook.MaxRetries,
		Timeout:     cfg.Webhook.Timeout(),
		LogTimeout:  cfg.Webhook.LogTimeout(),
		DedupWindow: cfg.Webhook.DedupWindow,
	}
	if !webhookCfg.Configured() {
		logger.ErrorContext(ctx, "BLING_WEBHOOK_SECRET is not set, every delivery will be refused")
	}

	// Services
	invoiceService := invoice.NewService(handle.Store)
	processor := webhook.NewProcessor(webhookCfg, invoiceService, handle.Store, webhook.WithDedupStore(dedup))
	logService := webhook.NewLogService(handle.Store)

	// Handlers
	deps := server.Deps{
		Logger:      logger,
		Logs:        handler.NewLogs(logService),
		Limiter:     backend,
		OperatorKey: cfg.OperatorAPIKey,
		Health: handler.NewHealth(map[string]handler.Pinger{
			"database": handle.Store,
			"backend":  backend,
		}),
	}

	var checker bling.TokenChecker
	if cfg.ERPConfigured() {
		oauthCfg := bling.NewConfig(cfg)
		tokens := bling.NewDBTokenSource(oauthCfg, handle.Store)
		checker = tokens
		deps.Auth = handler.NewAuth(oauthCfg, backend, tokens)
	} else {
		logger.InfoContext(ctx, "bling OAuth client not configured, connect routes disabled")
	}
	deps.Webhook = handler.NewWebhook(processor, webhookCfg.Configured(), checker)

	httpServer := server.New(":"+cfg.Port, server.Routes(deps))

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		logger.InfoContext(ctx, "starting server",
			xslog.Version(),
			xslog.Port(cfg.Port),
			xslog.Driver(string(handle.Driver)))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.InfoContext(ctx, "shutdown signal received, initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.InfoContext(ctx, "server stopped")
	return nil
}

// initBackend picks redis when configured and the in-process backend
// otherwise. Without redis, dedup falls back to the attempt log so that it
// survives restarts.
func initBackend(ctx context.Context, cfg config.Config, store storage.Store, logger *slog.Logger) (storage.Backend, storage.DedupStore, error) {
	redisCfg := xredis.Config{URL: cfg.Redis.URL}
	if !redisCfg.Enabled() {
		logger.InfoContext(ctx, "initializing in-memory backend")
		backend := storage.NewMemoryBackend(cfg.RateLimit.Limit, cfg.RateLimit.Burst)
		return backend, storage.NewAttemptDedupStore(store, cfg.Webhook.DedupWindow), nil
	}

	client, err := xredis.New(ctx, redisCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize redis client: %w", err)
	}

	logger.InfoContext(ctx, "initializing Redis backend")
	backend, err := storage.NewRedisBackend(storage.RedisConfig{
		Client:     client,
		RatePerSec: cfg.RateLimit.Limit,
		Burst:      cfg.RateLimit.Burst,
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return backend, backend, nil
}
