package internal

import (
	"context"
	"fmt"
	"jobstreak/internal/broadcast"
	"jobstreak/internal/controllers"
	"jobstreak/internal/monitor"
	"jobstreak/internal/providers"
	"jobstreak/internal/router"
	"jobstreak/internal/scheduler/interfaces"
	"jobstreak/internal/services"
	"jobstreak/internal/storage"
	"jobstreak/internal/structures"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type App struct {
	WebServer *http.Server
}

// Background holds the long-running workers started next to the web server.
type Background struct {
	Monitor     monitor.ReconnectMonitorInterface
	Broadcaster broadcast.BroadcasterInterface
	Store       services.StatsStoreInterface
	Local       storage.LocalStorage
	Cache       providers.CacheProviderInterface
}

func NewBackground(mon monitor.ReconnectMonitorInterface, broadcaster broadcast.BroadcasterInterface, store services.StatsStoreInterface, local storage.LocalStorage, cache providers.CacheProviderInterface) *Background {
	return &Background{Monitor: mon, Broadcaster: broadcaster, Store: store, Local: local, Cache: cache}
}

// start launches the reconnect monitor and, when enabled, the storage change watcher.
func (b *Background) start(ctx context.Context, conf *structures.Config, logger providers.Logger) *sync.WaitGroup {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Monitor.Run(ctx)
	}()

	if !conf.Storage.Watch || b.Local.Path() == "" {
		return &wg
	}
	watcher, err := storage.NewWatcher(b.Local.Path(), logger)
	if err != nil {
		logger.Errorf(providers.TypeStorage, "Storage watcher disabled: %s", err)
		return &wg
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		watcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		broadcast.WatchStorage(ctx, watcher, b.Broadcaster, b.Store.Load, b.Cache, logger)
	}()
	return &wg
}

func NewApp(healthController *controllers.HealthController, scheduler interfaces.SchedulerInterface, background *Background, msgRouter router.RouterInterface, conf *structures.Config, logger providers.Logger, routes providers.RouterProviderInterface, metrics providers.MetricsProviderInterface) (*App, error) {
	// Inner mux: API routes
	apiMux := http.NewServeMux()
	for _, route := range routes.GetRoutes() {
		apiMux.Handle(route.Url, route.Handler)
	}

	// Wrap API routes with metrics middleware
	instrumentedAPI := providers.MetricsMiddleware(metrics, apiMux)

	// Outer mux: infrastructure + instrumented API
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthController.Health)
	if conf.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.Handle("/", instrumentedAPI)

	logger.Infof(providers.TypeApp, "Starting %s", conf.AppName)

	app := &App{
		WebServer: &http.Server{
			Addr:              conf.WebServer.Host + ":" + strconv.Itoa(conf.WebServer.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	workers := background.start(ctx, conf, logger)
	scheduler.Init()

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof(providers.TypeApp, "Listening HTTP clients on %s:%d", conf.WebServer.Host, conf.WebServer.Port)
		if err := app.WebServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-stop:
		logger.Infof(providers.TypeApp, "Shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("server error: %w", err)
	}

	scheduler.Stop()
	cancel()
	workers.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := app.WebServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	msgRouter.Wait()
	if err := background.Local.Close(); err != nil {
		logger.Errorf(providers.TypeStorage, "Closing storage: %s", err)
	}
	if runErr != nil {
		return nil, runErr
	}
	logger.Infof(providers.TypeApp, "gracefully stopped")
	return app, nil
}
