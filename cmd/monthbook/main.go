package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"monthbook/internal/backend"
	"monthbook/internal/cache"
	"monthbook/internal/cli"
	apphttp "monthbook/internal/http"
	"monthbook/internal/identity"
	"monthbook/internal/metrics"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig("api")

	m := metrics.New()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger, m)
	result, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	cacheManager := cache.NewManager()
	cacheManager.Register(result.Service.SummaryCache())
	cacheManager.StartCleanup(time.Minute)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		Identity:           identity.Default(cfg.AuthTokenSecret),
		Metrics:            m,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustBodyUserID:    cfg.AuthTokenSecret == "",
	}, result.Service)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting monthbook server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"rate_limit_per_minute", cfg.RateLimitPerMinute,
		"bearer_tokens", cfg.AuthTokenSecret != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
