package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mid "FluxFeed/internal/middleware"
	"FluxFeed/internal/usecase"
	"FluxFeed/pkg/config"
	xhttp "FluxFeed/pkg/http"
	pkgkafka "FluxFeed/pkg/kafka"
	applogger "FluxFeed/pkg/logger"
	"FluxFeed/pkg/queue"
	"FluxFeed/pkg/scheduler"
)

// Components are the long-running parts of the process. Consumer may be nil.
type Components struct {
	Feed      *usecase.PriceFeed
	Pipeline  *mid.RealtimePipeline
	Consumer  *pkgkafka.Consumer
	Jobs      queue.Queue
	Scheduler *scheduler.Scheduler
	HTTP      *xhttp.Server
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg  *config.Config
	log  *applogger.Logger
	c    Components
	stop context.CancelFunc
}

func New(cfg *config.Config, log *applogger.Logger, c Components) *App {
	return &App{cfg: cfg, log: log, c: c}
}

// Start launches every component in dependency order: the tick pipeline
// before the feed that writes to it, workers before the HTTP server.
func (a *App) Start(ctx context.Context) error {
	ctx, a.stop = context.WithCancel(ctx)

	a.c.Pipeline.Start(ctx)
	a.c.Feed.Start(ctx)
	a.log.Info("ingest started",
		applogger.String("storage", a.cfg.Storage.Backend),
		applogger.Strings("stocks", a.cfg.Feed.StockSymbols))

	if a.c.Consumer != nil {
		go func() {
			if err := a.c.Consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.cfg.Storage.Kafka.Topic))
	}

	if err := a.c.Jobs.Start(); err != nil {
		a.stop()
		return err
	}
	a.c.Scheduler.Start()

	return a.c.HTTP.Start()
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	if err := a.Start(context.Background()); err != nil {
		a.log.Error("startup failed", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(ctx)
}

// Shutdown stops components in reverse start order. Infrastructure clients
// are closed by the injector's cleanup afterwards.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	if err := a.c.HTTP.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if err := a.c.Scheduler.Stop(ctx); err != nil {
		a.log.Warn("scheduler stop error", applogger.Error(err))
	}
	if err := a.c.Jobs.Stop(ctx); err != nil {
		a.log.Warn("job queue stop error", applogger.Error(err))
	}
	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// feed first so nothing writes into a stopped pipeline
	a.c.Feed.Stop()
	a.c.Pipeline.Stop()
	if a.stop != nil {
		a.stop()
	}

	a.log.Info("shutdown complete")
	return nil
}
