package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MarketBrief/pkg/config"
	xhttp "MarketBrief/pkg/http"
	applogger "MarketBrief/pkg/logger"
)

// Scheduler is a background trigger source with an explicit lifecycle.
type Scheduler interface {
	Start(ctx context.Context)
	Stop()
}

// App encapsulates the long-running service lifecycle.
type App struct {
	cfg        *config.Config
	httpServer *xhttp.Server
	scheduler  Scheduler
	logger     *applogger.Logger
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, httpServer *xhttp.Server, scheduler Scheduler, logger *applogger.Logger) *App {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		httpServer: httpServer,
		scheduler:  scheduler,
		logger:     logger,
	}
}

// Run starts the HTTP trigger and the optional scheduler, then blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.RunContext(ctx)
}

// RunContext is Run with the stop signal supplied by ctx.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	schedCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.cfg.Trigger.Schedule.Enabled && a.scheduler != nil {
		a.scheduler.Start(schedCtx)
	}

	a.logger.Info("marketbrief ready",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
	)

	<-ctx.Done()
	a.logger.Info("shutdown signal received")

	return a.shutdown()
}

func (a *App) shutdown() error {
	if a.cfg.Trigger.Schedule.Enabled && a.scheduler != nil {
		a.scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
		return err
	}

	a.logger.Info("shutdown complete")
	return nil
}
