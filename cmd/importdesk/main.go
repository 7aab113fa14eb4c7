package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"importdesk/internal/cli"
	apphttp "importdesk/internal/http"
	applog "importdesk/internal/log"
	"importdesk/internal/session"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp, nil)

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend client", applog.FieldError, err, "backend_url", cfg.BackendURL)
		os.Exit(1)
	}
	defer app.Close()

	sessions := session.NewRegistry(cfg.SessionMax, cfg.SessionTTL, app.NewSession)
	app.Caches.Register(sessions.Cache())

	srv := apphttp.NewServer(apphttp.Config{
		Addr:            ":" + cfg.Port,
		UploadMaxBytes:  cfg.UploadMaxBytes,
		ListingPageSize: cfg.ListingPageSize,
		SessionTTL:      cfg.SessionTTL,
	}, apphttp.Deps{
		Sessions:   sessions,
		Categories: app.Categories,
		Expenses:   app.Backend,
		Rules:      app.Backend,
		Probe:      app.Backend,
		Caches:     app.Caches,
		Logger:     logger,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = cfg.BackendTimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	app.Caches.StartCleanup(time.Minute)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		app.Caches.Stop()
	})

	logger.Info("Starting importdesk server",
		applog.FieldOperation, applog.OpStartup,
		"port", cfg.Port,
		"backend_url", cfg.BackendURL,
		"timezone", cfg.ImportTimezone,
		"events", app.Events != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully", applog.FieldOperation, applog.OpShutdown)
}
