package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"billed/internal/backend"
	"billed/internal/cli"
	apphttp "billed/internal/http"
	applog "billed/internal/log"
	"billed/internal/metrics"
	"billed/internal/middleware/ratelimit"
	"billed/internal/session"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	reg, err := metrics.NewRegistry()
	if err != nil {
		logger.Error("Failed to register metrics", "error", err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentStorage).Logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}()
	}

	sessions := session.NewManager(cfg.SessionSecret, cfg.SessionTTL).SecureCookies(cfg.SecureCookies)

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:           ":" + cfg.Port,
		SubmitTimeout:  cfg.SubmitTimeout,
		MaxUploadBytes: cfg.MaxUploadBytes,
		FormTTL:        cfg.FormTTL,
		ModalWidth:     cfg.ModalWidth,
		RateLimit: ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
		},
	}, result.Backend, sessions, logger, reg)
	if err != nil {
		logger.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	srv.ReadTimeout = 15 * time.Second
	srv.WriteTimeout = cfg.SubmitTimeout + 15*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting billed server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", "error", err, "port", cfg.Port)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := cli.ShutdownContext(30 * time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	logger.Info("Server stopped gracefully")
}
