// Package restserver serves stored runs over a read-only HTTP API.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/inform/internal/log"
	"github.com/chrissnell/inform/internal/storage"
	"github.com/chrissnell/inform/pkg/config"
)

// Controller represents the REST server controller
type Controller struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	store    storage.Store
	health   *storage.HealthManager
	Server   http.Server
	logger   *zap.SugaredLogger
	handlers *Handlers
}

// NewController creates a new REST server controller. health may be nil.
func NewController(ctx context.Context, wg *sync.WaitGroup, store storage.Store, health *storage.HealthManager, sc config.ServerData, logger *zap.SugaredLogger) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("REST server requires a results store")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if health == nil {
		health = storage.NewHealthManager()
	}
	ctrl := &Controller{
		ctx:    ctx,
		wg:     wg,
		store:  store,
		health: health,
		logger: logger,
	}

	if sc.ListenAddr == "" {
		logger.Info("server.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		sc.ListenAddr = config.DefaultListenAddr
	}
	if sc.Port == 0 {
		logger.Infof("server.port not provided; defaulting to %d", config.DefaultPort)
		sc.Port = config.DefaultPort
	}

	ctrl.handlers = NewHandlers(ctrl)
	ctrl.Server.Addr = fmt.Sprintf("%v:%v", sc.ListenAddr, sc.Port)
	ctrl.Server.Handler = ctrl.Handler()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// Handler returns the routed API wrapped in request logging.
func (c *Controller) Handler() http.Handler {
	return log.HTTPMiddleware(c.setupRouter())
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infow("starting REST server", "addr", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/runs", c.handlers.ListRuns).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}", c.handlers.GetRun).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}/blocks", c.handlers.GetBlocks).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}/cells", c.handlers.GetCells).Methods(http.MethodGet)
	router.HandleFunc("/health", c.handlers.Health).Methods(http.MethodGet)
	router.HandleFunc("/logs/http", c.handlers.HTTPLogs).Methods(http.MethodGet)

	return router
}
