// Package cli holds the startup helpers shared by cmd/importdesk and
// cmd/importdesk-cli, and the cobra commands of the command line front end.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"importdesk/internal/amqp"
	"importdesk/internal/backend"
	"importdesk/internal/cache"
	"importdesk/internal/config"
	applog "importdesk/internal/log"
	"importdesk/internal/session"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger at the configured level and makes it
// the slog default. A nil out means stdout.
func SetupLogger(cfg *config.Config, component string, out io.Writer) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Level = applog.ParseLevel(cfg.LogLevel)
	lc.Component = component
	if out != nil {
		lc.Output = out
	}
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// App is the set of collaborators both front ends are built from.
type App struct {
	Config     *config.Config
	Logger     *applog.Logger
	Backend    *backend.Client
	Categories *session.CategorySource
	Location   *time.Location
	// Events is nil when AMQP_URL is unset or the broker was unreachable.
	Events *amqp.Client
	Caches *cache.Manager
}

// NewApp wires the backend client, category source and optional AMQP client.
func NewApp(cfg *config.Config, logger *applog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	client, err := backend.New(backend.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:     cfg,
		Logger:     logger,
		Backend:    client,
		Categories: session.NewCategorySource(client, cfg.CategoryCacheTTL, cfg.FallbackCategories, logger),
		Location:   loc,
		Caches:     cache.NewManager(logger),
	}
	app.Caches.Register(app.Categories.Cache())

	if cfg.AMQPURL != "" {
		events, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, import events disabled",
				applog.FieldError, err,
				applog.FieldComponent, applog.ComponentAMQP)
		} else {
			app.Events = events
		}
	}
	return app, nil
}

// NewSession builds an import session bound to the app's backend.
func (a *App) NewSession(id string) *session.Session {
	opts := session.Options{
		Location:   a.Location,
		Categories: a.Categories,
		ResetDelay: a.Config.ConfirmResetDelay,
		Logger:     a.Logger,
	}
	if a.Events != nil {
		opts.Notifier = a.Events
	}
	return session.New(id, a.Backend, opts)
}

// Close releases the AMQP connection, if any.
func (a *App) Close() {
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.Logger.Warn("AMQP close failed", applog.FieldError, err)
		}
	}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
