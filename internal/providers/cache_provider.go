package providers

import (
	"jobstreak/internal/structures"

	"github.com/coocood/freecache"
)

// CacheProviderInterface holds rendered read views (GET /stats bodies) keyed per user.
// Every local mutation of a user's stats deletes that user's key.
type CacheProviderInterface interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Del(key string)
}

// StatsViewKey is the cache key of a user's rendered stats view.
func StatsViewKey(userID string) string {
	return "stats:" + userID
}

type CacheProvider struct {
	views *freecache.Cache
	ttl   int
}

func NewCacheProvider(conf *structures.Config, logger Logger) CacheProviderInterface {
	if !conf.Cache.Enabled || conf.Cache.Size <= 0 {
		logger.Infof(TypeApp, "Stats view cache disabled")
		return &noopCache{}
	}

	ttl := max(conf.Cache.TTL, 1)
	logger.Infof(TypeApp, "Stats view cache: %dMB, entries expire after %ds", conf.Cache.Size, ttl)

	return &CacheProvider{
		views: freecache.NewCache(conf.Cache.Size * 1024 * 1024),
		ttl:   ttl,
	}
}

func (c *CacheProvider) Get(key string) ([]byte, bool) {
	view, err := c.views.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	return view, true
}

// Set drops values larger than freecache's entry limit silently; the next read recomputes them.
func (c *CacheProvider) Set(key string, value []byte) {
	_ = c.views.Set([]byte(key), value, c.ttl)
}

func (c *CacheProvider) Del(key string) {
	c.views.Del([]byte(key))
}

type noopCache struct{}

func (n *noopCache) Get(_ string) ([]byte, bool) { return nil, false }
func (n *noopCache) Set(_ string, _ []byte)      {}
func (n *noopCache) Del(_ string)                {}
