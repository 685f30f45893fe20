// Package monitor watches remote connectivity and retries the pending sync when the
// link comes back.
package monitor

import (
	"context"
	"jobstreak/internal/providers"
	"jobstreak/internal/remote"
	"jobstreak/internal/remotesync"

	"go.uber.org/atomic"
)

type ReconnectMonitorInterface interface {
	Run(ctx context.Context)
	// PlatformEvent reports an online/offline signal from the host platform.
	PlatformEvent(online bool)
	// HealthCheck probes the remote when no live connectivity stream is available.
	HealthCheck(ctx context.Context)
	// Sweep retries the pending sync if the link is up.
	Sweep(ctx context.Context)
}

type ReconnectMonitor struct {
	source  remote.ConnectivitySource
	prober  remote.Prober
	state   *remote.State
	sync    remotesync.RemoteSyncInterface
	logger  providers.Logger
	metrics providers.MetricsProviderInterface

	platform chan bool
	fallback *atomic.Bool
}

func NewReconnectMonitor(
	source remote.ConnectivitySource,
	prober remote.Prober,
	state *remote.State,
	sync remotesync.RemoteSyncInterface,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
) *ReconnectMonitor {
	metrics.SetConnected(state.Connected())
	return &ReconnectMonitor{
		source:   source,
		prober:   prober,
		state:    state,
		sync:     sync,
		logger:   logger,
		metrics:  metrics,
		platform: make(chan bool, 4),
		fallback: atomic.NewBool(true),
	}
}

// Run blocks until ctx is done.
func (m *ReconnectMonitor) Run(ctx context.Context) {
	updates := m.subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-updates:
			if !ok {
				m.logger.Warnf(providers.TypeSync, "Connectivity stream closed, falling back to probing")
				m.fallback.Store(true)
				updates = nil
				continue
			}
			m.observe(ctx, v, "stream")
		case v := <-m.platform:
			m.observe(ctx, v, "platform")
		}
	}
}

func (m *ReconnectMonitor) subscribe(ctx context.Context) <-chan bool {
	if m.source == nil {
		m.logger.Infof(providers.TypeSync, "No connectivity stream configured, probing")
		return nil
	}
	updates, err := m.source.Subscribe(ctx)
	if err != nil {
		m.logger.Warnf(providers.TypeSync, "Connectivity subscription failed, probing instead: %v", err)
		return nil
	}
	m.fallback.Store(false)
	return updates
}

func (m *ReconnectMonitor) PlatformEvent(online bool) {
	select {
	case m.platform <- online:
	default:
		m.logger.Debugf(providers.TypeSync, "platform event dropped, monitor busy")
	}
}

func (m *ReconnectMonitor) HealthCheck(ctx context.Context) {
	if !m.fallback.Load() || m.prober == nil {
		return
	}
	m.observe(ctx, m.prober.Probe(ctx), "probe")
}

func (m *ReconnectMonitor) Sweep(ctx context.Context) {
	if !m.state.Connected() {
		return
	}
	m.sync.RetryPending(ctx)
}

func (m *ReconnectMonitor) observe(ctx context.Context, connected bool, origin string) {
	m.metrics.SetConnected(connected)
	reconnected := m.state.SetConnected(connected)
	if !connected {
		m.logger.Debugf(providers.TypeSync, "remote unreachable (%s)", origin)
		return
	}
	if reconnected {
		m.logger.Infof(providers.TypeSync, "Remote reachable again (%s), retrying pending sync", origin)
		m.sync.RetryPending(ctx)
	}
}
