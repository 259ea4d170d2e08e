package cache

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/codec"
	"github.com/tracelens/tracelens/internal/config"
	"github.com/tracelens/tracelens/internal/query"
)

// Cache key prefixes.
const (
	ServicesCachePrefix   = "services-"
	OperationsCachePrefix = "operations-"
	TracesCachePrefix     = "traces-"
)

// servicesKey is the single key used for the cached service list.
const servicesKey = "all"

// TraceCache bundles the caches for backend responses.
type TraceCache struct {
	ServicesCache   *PrefixedCache[[]string]
	OperationsCache *PrefixedCache[[]string]
	TracesCache     *PrefixedCache[query.Trace]
}

// NewTraceCache creates the cache set from the cache configuration.
func NewTraceCache(cfg *config.CacheConfig) *TraceCache {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	return &TraceCache{
		ServicesCache:   NewPrefixedCache[[]string](newCacheInstanceByType(cfg), ServicesCachePrefix, ttl),
		OperationsCache: NewPrefixedCache[[]string](newCacheInstanceByType(cfg), OperationsCachePrefix, ttl),
		TracesCache:     NewPrefixedCache[query.Trace](newCacheInstanceByType(cfg), TracesCachePrefix, ttl),
	}
}

// GetServices returns the cached service list, or false when absent.
func (t *TraceCache) GetServices(ctx context.Context) ([]string, bool) {
	services, err := t.ServicesCache.Get(ctx, servicesKey)
	if err != nil {
		return nil, false
	}
	return services, true
}

// SetServices stores the service list.
func (t *TraceCache) SetServices(ctx context.Context, services []string) {
	if err := t.ServicesCache.Set(ctx, servicesKey, services); err != nil {
		log.Errorf("failed to cache services: %v", err)
	}
}

// ClearAll drops every cached entry.
func (t *TraceCache) ClearAll(ctx context.Context) {
	errs := []error{
		t.ServicesCache.Clear(ctx),
		t.OperationsCache.Clear(ctx),
		t.TracesCache.Clear(ctx),
	}
	for _, err := range errs {
		if err != nil {
			log.Errorf("failed to clear cache: %v", err)
		}
	}
}

// Stats pairs cache statistics with the cache they belong to.
type Stats struct {
	*codec.Stats
	CacheName string `json:"cacheName"`
}

// GetStats returns statistics for all caches.
func (t *TraceCache) GetStats() []*Stats {
	return []*Stats{
		{Stats: t.ServicesCache.GetStats(), CacheName: "services"},
		{Stats: t.OperationsCache.GetStats(), CacheName: "operations"},
		{Stats: t.TracesCache.GetStats(), CacheName: "traces"},
	}
}
