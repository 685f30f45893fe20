//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"
	"jobstreak/internal"
	"jobstreak/internal/broadcast"
	"jobstreak/internal/controllers"
	"jobstreak/internal/monitor"
	"jobstreak/internal/providers"
	"jobstreak/internal/remote"
	"jobstreak/internal/remotesync"
	"jobstreak/internal/router"
	"jobstreak/internal/scheduler"
	"jobstreak/internal/services"
	"jobstreak/internal/storage"
	"jobstreak/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,
		providers.NewSecretsProvider,

		storage.NewLocalStorage,
		services.NewStatsStore,
		services.NewSyncQueue,

		remote.NewState,
		remote.NewTargets,
		remote.NewConnectivitySource,
		remote.NewProber,
		remote.FindFriendsSource,

		broadcast.NewBroadcaster,
		remotesync.NewRemoteSync,
		wire.Bind(new(remotesync.RemoteSyncInterface), new(*remotesync.RemoteSync)),
		monitor.NewReconnectMonitor,
		wire.Bind(new(monitor.ReconnectMonitorInterface), new(*monitor.ReconnectMonitor)),
		scheduler.NewScheduler,
		router.NewRouter,
		wire.Bind(new(router.RouterInterface), new(*router.Router)),

		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewBackground,
		internal.NewApp,
	)

	return nil, nil
}
