package testutil

import (
	"fmt"
	"jobstreak/internal/providers"
	"strings"
	"sync"
	"time"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (e LogEntry) Message() string {
	return fmt.Sprintf(e.Format, e.Args...)
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// Contains reports whether any entry of the given level mentions substr.
func (m *MockLogger) Contains(level, substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Logs {
		if e.Level == level && strings.Contains(e.Message(), substr) {
			return true
		}
	}
	return false
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

func (m *MockCache) Del(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Data, key)
}

// MockCompressor implements storage.Compressor with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
	Closed       bool
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() { m.Closed = true }

// MockMetrics implements providers.MetricsProviderInterface and counts calls.
type MockMetrics struct {
	mu             sync.Mutex
	Requests       []RequestCall
	CacheHits      int
	CacheMisses    int
	Intents        map[string]int
	PushOutcomes   map[string]int
	PendingSync    bool
	Connected      bool
	Broadcasts     map[string]int
	StorageLatency map[string]int
}

type RequestCall struct {
	Endpoint string
	Status   int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Intents:        make(map[string]int),
		PushOutcomes:   make(map[string]int),
		Broadcasts:     make(map[string]int),
		StorageLatency: make(map[string]int),
	}
}

func (m *MockMetrics) IncRequestsTotal(endpoint string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, RequestCall{Endpoint: endpoint, Status: status})
}

func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}

func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}

func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}

func (m *MockMetrics) IncIntent(action string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Intents[fmt.Sprintf("%s:%t", action, success)]++
}

func (m *MockMetrics) IncPushOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PushOutcomes[outcome]++
}

func (m *MockMetrics) ObservePushDuration(_ time.Duration) {}

func (m *MockMetrics) SetPendingSync(pending bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PendingSync = pending
}

func (m *MockMetrics) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Connected = connected
}

func (m *MockMetrics) IncBroadcast(kind string, delivered bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Broadcasts[fmt.Sprintf("%s:%t", kind, delivered)]++
}

func (m *MockMetrics) ObserveStorageDuration(op string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StorageLatency[op]++
}

func (m *MockMetrics) Outcome(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PushOutcomes[outcome]
}

func (m *MockMetrics) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Connected
}
