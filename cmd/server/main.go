// Package main is the entry point for the deckgate admission server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/manawise/deckgate"
	"github.com/manawise/deckgate/internal/config"
	"github.com/manawise/deckgate/internal/guest"
	"github.com/manawise/deckgate/internal/observability"
	"github.com/manawise/deckgate/internal/ratelimit"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfgManager, err := config.NewManager(*configPath, bootstrap)
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	appLogger := buildLogger(cfg.Logging)
	slog.SetDefault(appLogger.Slog())
	logger := appLogger.Slog()

	logger.Info("starting deckgate", "storage", cfg.Storage.Driver, "port", cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}
	cfgManager.OnChange(func(*config.Config) {
		logger.Info("configuration reloaded; storage and server changes apply on restart")
	})

	be, err := buildBackends(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer be.Close()

	gate := buildGate(cfg, be, logger)

	var smoother *ratelimit.Smoother
	if cfg.RateLimit.Smoothing.Enabled {
		smoother = ratelimit.NewSmoother(ratelimit.SmootherConfig{
			RPM:   cfg.RateLimit.Smoothing.RPM,
			Burst: cfg.RateLimit.Smoothing.Burst,
		})
		defer smoother.Close()
	}

	h := newHandler(gate, be, cfg.Server.TrustedProxyCIDRs, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/admission", h.Admission)
	mux.HandleFunc("POST /v1/cache", h.CacheWrite)
	mux.HandleFunc("GET /v1/cache/stats", h.CacheStats)
	mux.HandleFunc("GET /healthz", h.Health)
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.Handler())
	}

	var httpHandler http.Handler = mux
	httpHandler = smoothingMiddleware(smoother, h.clientIP)(httpHandler)
	httpHandler = loggingMiddleware(appLogger)(httpHandler)
	httpHandler = metricsMiddleware(httpHandler)
	httpHandler = observability.RequestIDMiddleware(httpHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	_ = cfgManager.Close()
	logger.Info("server stopped")
}

func buildLogger(cfg config.LoggingConfig) *observability.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return observability.NewLogger(observability.LoggerConfig{
		Level:      level,
		Output:     os.Stdout,
		JSONFormat: cfg.Format != "text",
	}, observability.NewRedactor())
}

func buildGate(cfg *config.Config, be *backends, logger *slog.Logger) *deckgate.Gate {
	tracker := guest.NewTracker(be.guestStore, guest.TrackerConfig{
		MessageLimit: cfg.Guest.MessageLimit,
		SessionTTL:   cfg.Guest.SessionTTL,
		Logger:       logger,
	})

	return deckgate.NewGate(tracker, be.limiter, be.cache,
		deckgate.WithLogger(logger),
		deckgate.WithTierCaps(cfg.RateLimit.FreeDailyCap, cfg.RateLimit.ProDailyCap),
		deckgate.WithCacheVersion(cfg.Cache.Version),
	)
}
