package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"aptprice/internal/backend"
	"aptprice/internal/cli"
	apphttp "aptprice/internal/http"
	applog "aptprice/internal/log"
	"aptprice/internal/services"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	cfg := cli.LoadAndValidateConfig()

	logger, err := cli.SetupLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	backendConfig.UserAgent = "aptprice/1.0"

	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog())
	result, err := factory.CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	lookup := services.NewLookupService(result.Fetcher, logger)
	history := services.NewHistoryService(result.Fetcher, services.HistoryOptions{
		Pause:         cfg.HistoryPause,
		DefaultMonths: cfg.HistoryMonths,
		Logger:        logger,
	})

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Lookup:             lookup,
		History:            history,
		Cache:              result.Cache,
		Backend:            cfg.DataBackend,
		DefaultCredential:  cfg.RTMSServiceKey,
		HistoryMonths:      cfg.HistoryMonths,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	logger.Info("Starting aptprice server",
		applog.FieldOperation, applog.OpStartup,
		"port", cfg.Port,
		applog.FieldBackend, cfg.DataBackend,
		"server_key_configured", cfg.RTMSServiceKey != "",
		"history_months", cfg.HistoryMonths)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully", applog.FieldOperation, applog.OpShutdown)
}
