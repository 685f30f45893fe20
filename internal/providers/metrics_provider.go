package providers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"jobstreak/internal/structures"
	"time"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncIntent(action string, success bool)
	IncPushOutcome(outcome string)
	ObservePushDuration(duration time.Duration)
	SetPendingSync(present bool)
	SetConnected(connected bool)
	IncBroadcast(kind string, delivered bool)
	ObserveStorageDuration(op string, duration time.Duration)
}

type MetricsProvider struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	intentsTotal    *prometheus.CounterVec
	pushTotal       *prometheus.CounterVec
	pushDuration    prometheus.Histogram
	pendingSync     prometheus.Gauge
	connected       prometheus.Gauge
	broadcastTotal  *prometheus.CounterVec
	storageDuration *prometheus.HistogramVec
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) IncIntent(action string, success bool) {
	m.intentsTotal.WithLabelValues(action, boolLabel(success, "success", "failure")).Inc()
}

func (m *MetricsProvider) IncPushOutcome(outcome string) {
	m.pushTotal.WithLabelValues(outcome).Inc()
}

func (m *MetricsProvider) ObservePushDuration(duration time.Duration) {
	m.pushDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) SetPendingSync(present bool) {
	m.pendingSync.Set(boolGauge(present))
}

func (m *MetricsProvider) SetConnected(connected bool) {
	m.connected.Set(boolGauge(connected))
}

func (m *MetricsProvider) IncBroadcast(kind string, delivered bool) {
	m.broadcastTotal.WithLabelValues(kind, boolLabel(delivered, "delivered", "dropped")).Inc()
}

func (m *MetricsProvider) ObserveStorageDuration(op string, duration time.Duration) {
	m.storageDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func boolLabel(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}
	return newMetricsProvider(prometheus.DefaultRegisterer)
}

func newMetricsProvider(reg prometheus.Registerer) *MetricsProvider {
	factory := promauto.With(reg)
	return &MetricsProvider{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jobstreak_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobstreak_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "jobstreak_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "jobstreak_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		intentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jobstreak_intents_total",
			Help: "Intents handled by the message router",
		}, []string{"action", "result"}),

		pushTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jobstreak_push_total",
			Help: "Remote push attempts by outcome",
		}, []string{"outcome"}),

		pushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobstreak_push_duration_seconds",
			Help:    "Duration of remote push attempts in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		pendingSync: factory.NewGauge(prometheus.GaugeOpts{
			Name: "jobstreak_pending_sync",
			Help: "1 when a pending sync record is waiting for retry",
		}),

		connected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "jobstreak_remote_connected",
			Help: "1 when the remote store is reachable",
		}),

		broadcastTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jobstreak_broadcast_total",
			Help: "Change notifications sent to observers",
		}, []string{"kind", "result"}),

		storageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobstreak_storage_duration_seconds",
			Help:    "Duration of local storage operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) IncIntent(_ string, _ bool)                       {}
func (n *noopMetrics) IncPushOutcome(_ string)                          {}
func (n *noopMetrics) ObservePushDuration(_ time.Duration)              {}
func (n *noopMetrics) SetPendingSync(_ bool)                            {}
func (n *noopMetrics) SetConnected(_ bool)                              {}
func (n *noopMetrics) IncBroadcast(_ string, _ bool)                    {}
func (n *noopMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
