// Package app orchestrates the long-running components of the commit-digest
// service: the HTTP server and the job processor.
package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sevigo/commit-digest/internal/config"
	"github.com/sevigo/commit-digest/internal/jobs"
	"github.com/sevigo/commit-digest/internal/server"
)

// App holds the main application components.
type App struct {
	ctx       context.Context
	cfg       *config.Config
	server    *server.Server
	processor *jobs.Processor
	logger    *slog.Logger
}

// NewApp assembles the application from already constructed components.
func NewApp(ctx context.Context, cfg *config.Config, srv *server.Server, processor *jobs.Processor, logger *slog.Logger) *App {
	logger.Info("commit-digest initialized",
		"llm_provider", cfg.AI.LLMProvider,
		"generator_model", cfg.AI.GeneratorModel,
		"db_driver", cfg.Database.Driver,
		"webhook_mode", cfg.Webhook.Mode,
		"processor_enabled", cfg.Processor.Enabled)
	return &App{
		ctx:       ctx,
		cfg:       cfg,
		server:    srv,
		processor: processor,
		logger:    logger,
	}
}

// Start launches the processor (when enabled) and then runs the HTTP server
// until it is stopped.
func (a *App) Start() error {
	if a.cfg.Processor.Enabled {
		if err := a.processor.Start(a.ctx); err != nil {
			a.logger.Error("failed to start job processor", "error", err)
			return err
		}
	} else {
		a.logger.Warn("job processor disabled; jobs will only be enqueued")
	}

	a.logger.Info("starting commit-digest", "server_port", a.cfg.Server.Port)
	if err := a.server.Start(); err != nil {
		a.logger.Error("failed to start HTTP server", "error", err)
		return err
	}
	return nil
}

// Stop shuts down the application cleanly.
func (a *App) Stop() error {
	a.logger.Info("shutting down commit-digest services")

	// Stop the HTTP server first to prevent new incoming requests.
	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
	}

	// In-flight jobs get the processor's shutdown timeout to finish.
	var processorErr error
	if a.cfg.Processor.Enabled {
		processorErr = a.processor.Stop(context.Background())
		if processorErr != nil {
			a.logger.Error("error during job processor shutdown", "error", processorErr)
		}
	}

	if err := errors.Join(serverErr, processorErr); err != nil {
		a.logger.Error("commit-digest stopped with errors", "error", err)
		return err
	}
	a.logger.Info("commit-digest stopped successfully")
	return nil
}
