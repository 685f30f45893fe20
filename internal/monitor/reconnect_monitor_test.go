package monitor

import (
	"context"
	"errors"
	"jobstreak/internal/models"
	"jobstreak/internal/remote"
	"jobstreak/internal/remotesync"
	"jobstreak/internal/testutil"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingSync struct {
	mu      sync.Mutex
	retries int
}

func (c *countingSync) Push(_ context.Context, _ string, _ *models.StatsSnapshot) remotesync.Outcome {
	return remotesync.Skipped
}

func (c *countingSync) RetryPending(_ context.Context) remotesync.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retries++
	return remotesync.Succeeded
}

func (c *countingSync) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retries
}

type chanSource struct {
	ch  chan bool
	err error
}

func (c *chanSource) Subscribe(_ context.Context) (<-chan bool, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.ch, nil
}

type staticProber struct{ up bool }

func (s *staticProber) Probe(_ context.Context) bool { return s.up }

func newTestMonitor(source remote.ConnectivitySource, prober remote.Prober) (*ReconnectMonitor, *countingSync, *testutil.MockMetrics) {
	cs := &countingSync{}
	m := testutil.NewMockMetrics()
	return NewReconnectMonitor(source, prober, remote.NewState(), cs, &testutil.MockLogger{}, m), cs, m
}

func runMonitor(t *testing.T, m *ReconnectMonitor) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

// --- stream ---

func TestMonitor_RetriesOnReconnect(t *testing.T) {
	src := &chanSource{ch: make(chan bool)}
	m, cs, metrics := newTestMonitor(src, nil)
	runMonitor(t, m)

	src.ch <- true
	src.ch <- false
	src.ch <- true

	assert.Eventually(t, func() bool { return cs.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, metrics.IsConnected())
	assert.True(t, m.state.Connected())
}

func TestMonitor_RepeatedConnectedIsNotATransition(t *testing.T) {
	src := &chanSource{ch: make(chan bool)}
	m, cs, _ := newTestMonitor(src, nil)
	runMonitor(t, m)

	src.ch <- false
	src.ch <- true
	src.ch <- true
	src.ch <- true
	// unbuffered sends above have all been received; one more proves the last was handled
	src.ch <- true

	assert.Equal(t, 1, cs.count())
}

func TestMonitor_DisconnectUpdatesState(t *testing.T) {
	src := &chanSource{ch: make(chan bool)}
	m, cs, metrics := newTestMonitor(src, nil)
	runMonitor(t, m)

	src.ch <- false

	assert.Eventually(t, func() bool { return !m.state.Connected() }, time.Second, 5*time.Millisecond)
	assert.False(t, metrics.IsConnected())
	assert.Zero(t, cs.count())
}

func TestMonitor_StreamClosedFallsBack(t *testing.T) {
	src := &chanSource{ch: make(chan bool)}
	m, _, _ := newTestMonitor(src, &staticProber{up: true})
	runMonitor(t, m)

	assert.Eventually(t, func() bool { return !m.fallback.Load() }, time.Second, 5*time.Millisecond)
	close(src.ch)
	assert.Eventually(t, func() bool { return m.fallback.Load() }, time.Second, 5*time.Millisecond)
}

// --- fallback ---

func TestMonitor_SubscribeErrorUsesProbe(t *testing.T) {
	prober := &staticProber{up: false}
	m, cs, _ := newTestMonitor(&chanSource{err: errors.New("refused")}, prober)
	runMonitor(t, m)

	m.HealthCheck(context.Background())
	assert.False(t, m.state.Connected())

	prober.up = true
	m.HealthCheck(context.Background())
	assert.True(t, m.state.Connected())
	assert.Equal(t, 1, cs.count())
}

func TestMonitor_HealthCheckIgnoredWithLiveStream(t *testing.T) {
	src := &chanSource{ch: make(chan bool)}
	m, _, _ := newTestMonitor(src, &staticProber{up: false})
	runMonitor(t, m)

	assert.Eventually(t, func() bool { return !m.fallback.Load() }, time.Second, 5*time.Millisecond)
	m.HealthCheck(context.Background())
	assert.True(t, m.state.Connected())
}

func TestMonitor_PlatformEvents(t *testing.T) {
	m, cs, _ := newTestMonitor(nil, nil)
	runMonitor(t, m)

	m.PlatformEvent(false)
	assert.Eventually(t, func() bool { return !m.state.Connected() }, time.Second, 5*time.Millisecond)

	m.PlatformEvent(true)
	assert.Eventually(t, func() bool { return cs.count() == 1 }, time.Second, 5*time.Millisecond)
}

// --- sweep ---

func TestMonitor_SweepOnlyWhenConnected(t *testing.T) {
	m, cs, _ := newTestMonitor(nil, nil)

	m.Sweep(context.Background())
	assert.Equal(t, 1, cs.count())

	m.state.SetConnected(false)
	m.Sweep(context.Background())
	assert.Equal(t, 1, cs.count())
}
