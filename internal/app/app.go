// Package app wires the auction server together from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"market-connect/internal/auth"
	auction "market-connect/internal/auctionService"
	bidding "market-connect/internal/biddingService"
	"market-connect/internal/catalog"
	"market-connect/internal/config"
	"market-connect/internal/lifecycle"
	"market-connect/internal/metrics"
	"market-connect/internal/ratelimit"
	"market-connect/internal/realtime"
	"market-connect/internal/repository"
	"market-connect/internal/server"
	handler "market-connect/services/auction/handler"
	"market-connect/utils"
)

// idle rate-limit entries are forgotten after this long
const visitorIdle = 3 * time.Minute

// App holds the wired components of one server instance.
type App struct {
	cfg *config.Config

	Store     repository.AuctionStore
	Catalog   *catalog.StaticCatalog
	Hub       *realtime.Hub
	Bidding   *bidding.BiddingService
	Scheduler *lifecycle.Scheduler
	Registry  *auction.Registry
	Auth      *auth.Service
	Visitors  *ratelimit.Visitors
	Router    *gin.Engine

	closeStore func() error
	cancel     context.CancelFunc
	base       context.Context
}

// Option tweaks wiring, mostly for tests.
type Option func(*options)

type options struct {
	registry *prometheus.Registry
	now      func() time.Time
	store    repository.AuctionStore
}

// WithRegistry registers metrics with reg and serves them on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithClock replaces the server clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithStore uses store instead of the configured driver.
func WithStore(store repository.AuctionStore) Option {
	return func(o *options) { o.store = store }
}

// New builds every component from cfg. The caller owns Close.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}

	a := &App{cfg: cfg, closeStore: func() error { return nil }}
	a.base, a.cancel = context.WithCancel(context.Background())

	if o.store != nil {
		a.Store = o.store
	} else if err := a.openStore(); err != nil {
		a.cancel()
		return nil, err
	}

	var m *metrics.Metrics
	var metricsHandler http.Handler
	if o.registry != nil {
		m = metrics.New(o.registry)
		metricsHandler = promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
	} else {
		m = metrics.Nop()
	}

	a.Catalog = catalog.FromConfig(cfg.Catalog)
	a.Hub = realtime.NewHub(cfg.Realtime.SendBuffer, a.Store.GetAuction, m)
	a.Bidding = bidding.NewBiddingService(a.Store,
		bidding.WithClock(o.now),
		bidding.WithPublisher(a.Hub),
		bidding.WithMetrics(m),
	)
	a.Scheduler = lifecycle.NewScheduler(a.Store, a.Bidding, cfg.Scheduler.TickInterval, o.now, m)
	a.Registry = auction.NewRegistry(a.Store, a.Bidding, a.Scheduler, a.Catalog, o.now)
	a.Auth = auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	a.Visitors = ratelimit.NewVisitors(cfg.Bidding.RatePerSecond, cfg.Bidding.Burst)

	ws := handler.NewWebsocketHandler(a.base, a.Hub, a.Bidding, realtime.ConnConfig{
		WriteTimeout:   cfg.Realtime.WriteTimeout,
		PongWait:       cfg.Realtime.PongWait,
		PingPeriod:     cfg.Realtime.PingPeriod,
		MaxMessageSize: cfg.Realtime.MaxMessageSize,
		SubmitTimeout:  cfg.Bidding.SubmitTimeout,
	}, realtime.WithResolver(a.Registry), realtime.WithRateLimit(a.Visitors))

	a.Router = server.SetupRouter(server.RouterDeps{
		Auctions:  handler.NewAuctionHandler(a.Registry, a.Bidding, a.Visitors, cfg.Bidding.SubmitTimeout),
		Websocket: ws,
		Auth:      a.Auth,
		Metrics:   metricsHandler,
	})
	return a, nil
}

func (a *App) openStore() error {
	switch a.cfg.Store.Driver {
	case "sqlite":
		repo, err := repository.OpenSQLite(a.cfg.Store.DSN)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		a.Store = repo
		a.closeStore = repo.Close
	default:
		a.Store = repository.NewMemoryRepo()
	}
	utils.Info("auction store ready", map[string]any{"driver": a.cfg.Store.Driver})
	return nil
}

// Run serves HTTP on the configured address and runs the scheduler until ctx
// is cancelled or one of them fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: a.cfg.Server.ReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		utils.Info("starting auction server", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.Scheduler.Run(gctx)
	})

	g.Go(func() error {
		a.Visitors.Run(gctx, time.Minute, visitorIdle)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		utils.Info("shutting down auction server", nil)
		// websocket connections are hijacked, so Shutdown does not wait for them
		a.cancel()
		a.Hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close releases the store and ends realtime connections.
func (a *App) Close() error {
	a.cancel()
	a.Hub.Close()
	return a.closeStore()
}
