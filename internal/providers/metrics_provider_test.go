package providers

import (
	"jobstreak/internal/structures"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics_WhenDisabled(t *testing.T) {
	conf := &structures.Config{
		Metrics: structures.MetricsConfig{Enabled: false},
	}
	m := NewMetricsProvider(conf)
	_, ok := m.(*noopMetrics)
	assert.True(t, ok, "should return noopMetrics when disabled")

	m.IncRequestsTotal("GET /stats", 200)
	m.ObserveRequestDuration("GET /stats", time.Millisecond)
	m.IncCacheHits()
	m.IncCacheMisses()
	m.IncIntent("syncStats", true)
	m.IncPushOutcome("queued")
	m.ObservePushDuration(time.Millisecond)
	m.SetPendingSync(true)
	m.SetConnected(false)
	m.IncBroadcast("refreshStats", true)
	m.ObserveStorageDuration("update", time.Millisecond)
}

func TestMetricsProvider_CountsAndGauges(t *testing.T) {
	m := newMetricsProvider(prometheus.NewRegistry())

	m.IncRequestsTotal("POST /message", 200)
	m.IncRequestsTotal("POST /message", 201)
	m.IncRequestsTotal("POST /message", 404)
	assert.Equal(t, 2.0, promtest.ToFloat64(m.requestsTotal.WithLabelValues("POST /message", "2xx")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.requestsTotal.WithLabelValues("POST /message", "4xx")))

	m.IncIntent("trackApplication", true)
	m.IncIntent("trackApplication", false)
	m.IncIntent("trackApplication", false)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.intentsTotal.WithLabelValues("trackApplication", "success")))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.intentsTotal.WithLabelValues("trackApplication", "failure")))

	m.IncPushOutcome("succeeded")
	assert.Equal(t, 1.0, promtest.ToFloat64(m.pushTotal.WithLabelValues("succeeded")))

	m.SetPendingSync(true)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.pendingSync))
	m.SetPendingSync(false)
	assert.Equal(t, 0.0, promtest.ToFloat64(m.pendingSync))

	m.SetConnected(true)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.connected))

	m.IncBroadcast("statsUpdated", false)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.broadcastTotal.WithLabelValues("statsUpdated", "dropped")))

	m.IncCacheHits()
	m.IncCacheMisses()
	m.IncCacheMisses()
	assert.Equal(t, 1.0, promtest.ToFloat64(m.cacheHits))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.cacheMisses))
}

func TestMetricsProvider_SeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		newMetricsProvider(prometheus.NewRegistry())
		newMetricsProvider(prometheus.NewRegistry())
	})
}

func TestHttpStatusBucket(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{101, "1xx"},
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{400, "4xx"},
		{404, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, httpStatusBucket(tt.code))
	}
}
