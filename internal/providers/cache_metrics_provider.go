package providers

import "jobstreak/internal/structures"

// MetricsCacheProvider counts stats view hits and misses.
type MetricsCacheProvider struct {
	views   CacheProviderInterface
	metrics MetricsProviderInterface
}

func (c *MetricsCacheProvider) Get(key string) ([]byte, bool) {
	view, hit := c.views.Get(key)
	if !hit {
		c.metrics.IncCacheMisses()
		return nil, false
	}
	c.metrics.IncCacheHits()
	return view, true
}

func (c *MetricsCacheProvider) Set(key string, value []byte) { c.views.Set(key, value) }

func (c *MetricsCacheProvider) Del(key string) { c.views.Del(key) }

// NewInstrumentedCacheProvider leaves a disabled cache unwrapped, otherwise every
// GET /stats would be reported as a miss.
func NewInstrumentedCacheProvider(conf *structures.Config, logger Logger, metrics MetricsProviderInterface) CacheProviderInterface {
	views := NewCacheProvider(conf, logger)
	if _, disabled := views.(*noopCache); disabled {
		return views
	}
	return &MetricsCacheProvider{views: views, metrics: metrics}
}
