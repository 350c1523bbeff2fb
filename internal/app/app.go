// Package app wires configuration, storage and the analysis pipeline into
// the inform commands.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/inform/internal/controllers/restserver"
	"github.com/chrissnell/inform/internal/log"
	"github.com/chrissnell/inform/internal/storage"
	"github.com/chrissnell/inform/pkg/config"
)

// HealthInterval is how often the results store is probed.
const HealthInterval = time.Minute

// App serves stored runs until it is signalled to stop.
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return err
	}

	store, backend, err := OpenStore(ctx, cfg.Storage, a.logger)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("no results store configured; set storage.sqlite or storage.timescaledb")
	}
	defer store.Close()

	health := storage.NewHealthManager()
	if checker, ok := store.(storage.HealthChecker); ok {
		health.StartHealthMonitor(ctx, backend, checker, HealthInterval)
	}

	rest, err := restserver.NewController(ctx, &wg, store, health, cfg.Server, a.logger.Named("rest"))
	if err != nil {
		return err
	}
	if err := rest.StartController(); err != nil {
		return err
	}

	log.Info("Application started successfully")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	cancel()

	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
