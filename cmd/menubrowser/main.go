package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
	"github.com/IqDevHose/grandm-qrcode/internal/gateway"
	"github.com/IqDevHose/grandm-qrcode/internal/handlers"
	"github.com/IqDevHose/grandm-qrcode/internal/i18n"
	"github.com/IqDevHose/grandm-qrcode/internal/menu"
	"github.com/IqDevHose/grandm-qrcode/internal/platform/config"
	"github.com/IqDevHose/grandm-qrcode/internal/platform/events"
	"github.com/IqDevHose/grandm-qrcode/internal/platform/observability"
	"github.com/IqDevHose/grandm-qrcode/internal/services"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", validation.Fields())
		} else {
			fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		}
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("menubrowser")
	ctx = observability.WithLogger(ctx, logger)

	gw, err := newGateway(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise gateway", zap.Error(err))
	}

	bundle, err := i18n.Load(cfg.Locale.Dir, domain.Locale(cfg.Locale.Default), supportedLocales(cfg.Locale.Supported))
	if err != nil {
		logger.Fatal("failed to load locales", zap.Error(err), zap.String("dir", cfg.Locale.Dir))
	}

	publisher, err := events.New(cfg.NATS.URL)
	if err != nil {
		logger.Fatal("failed to connect to nats", zap.Error(err))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("nats close error", zap.Error(err))
		}
	}()

	matchMode, err := menu.ParseMatchMode(cfg.Browsing.SearchMode)
	if err != nil {
		logger.Fatal("invalid search mode", zap.Error(err))
	}

	defaultRestaurant := cfg.Browsing.DefaultRestaurantID
	if defaultRestaurant == "" && cfg.Backend.Mode == config.BackendModeStatic {
		defaultRestaurant = gateway.DemoRestaurantID
	}

	sessionService, err := services.NewSessionService(services.SessionServiceDeps{
		Gateway:             gw,
		Bundle:              bundle,
		Publisher:           publisher,
		SubjectPrefix:       cfg.NATS.SubjectPrefix,
		DefaultRestaurantID: defaultRestaurant,
		FirstCursor:         cfg.Browsing.FirstCursor,
		NearEndThreshold:    cfg.Browsing.ScrollThreshold,
		MatchMode:           matchMode,
		IdleTTL:             cfg.Sessions.IdleTTL,
		SweepInterval:       cfg.Sessions.SweepInterval,
		MaxSessions:         cfg.Sessions.MaxSessions,
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("failed to initialise session service", zap.Error(err))
	}

	sweepCtx, sweepCancel := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sessionService.Run(sweepCtx)
	}()

	healthOpts := []handlers.HealthOption{handlers.WithHealthVersion(version)}
	if nats, ok := publisher.(*events.NATSPublisher); ok {
		healthOpts = append(healthOpts, handlers.WithReadinessCheck("nats", nats.Ready))
	}
	healthHandlers := handlers.NewHealthHandlers(healthOpts...)

	sessionHandlers := handlers.NewSessionHandlers(sessionService, bundle,
		handlers.WithCurrencyLabel(cfg.Locale.CurrencyLabel),
	)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
		middleware.Compress(5, "application/json"),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithSessionRoutes(sessionHandlers.Routes),
	)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("menu browser listening",
			zap.String("version", version),
			zap.String("backend_mode", cfg.Backend.Mode),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	sweepCancel()
	<-sweepDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	// Closing sessions first ends open snapshot streams so the server can drain.
	if err := sessionService.Shutdown(shutdownCtx); err != nil {
		logger.Error("session shutdown failed", zap.Error(err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newGateway(cfg config.Config, logger *zap.Logger) (gateway.Gateway, error) {
	switch cfg.Backend.Mode {
	case config.BackendModeStatic:
		gw := gateway.NewDemoGateway()
		gw.PageSize = cfg.Backend.StaticPageSize
		logger.Warn("serving the built-in demo menu", zap.String("restaurant_id", gateway.DemoRestaurantID))
		return gw, nil
	default:
		return gateway.NewHTTPGateway(cfg.Backend.BaseURL,
			gateway.WithTimeout(cfg.Backend.Timeout),
			gateway.WithLogger(logger.Named("gateway")),
		)
	}
}

func supportedLocales(codes []string) []domain.Locale {
	out := make([]domain.Locale, 0, len(codes))
	for _, code := range codes {
		out = append(out, domain.Locale(code))
	}
	return out
}
