package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracelens/tracelens/internal/config"
	"github.com/tracelens/tracelens/internal/query"
)

func memoryConfig() *config.CacheConfig {
	return &config.CacheConfig{Type: config.CacheTypeMemory, TTLSeconds: 60}
}

func TestPrefixedCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewPrefixedCache[[]string](newCacheInstanceByType(memoryConfig()), "test-", time.Minute)

	require.NoError(t, c.Set(ctx, "services", []string{"frontend", "cart"}))

	got, err := c.Get(ctx, "services")
	require.NoError(t, err)
	assert.Equal(t, []string{"frontend", "cart"}, got)

	require.NoError(t, c.Delete(ctx, "services"))
	_, err = c.Get(ctx, "services")
	assert.Error(t, err)
}

func TestTraceCacheServices(t *testing.T) {
	ctx := context.Background()
	tc := NewTraceCache(memoryConfig())

	_, ok := tc.GetServices(ctx)
	assert.False(t, ok)

	tc.SetServices(ctx, []string{"frontend"})
	services, ok := tc.GetServices(ctx)
	require.True(t, ok)
	assert.Equal(t, []string{"frontend"}, services)

	tc.ClearAll(ctx)
	_, ok = tc.GetServices(ctx)
	assert.False(t, ok)
}

func TestTraceCacheTraces(t *testing.T) {
	ctx := context.Background()
	tc := NewTraceCache(memoryConfig())

	trace := query.Trace{
		TraceID: "abc123",
		Spans:   []query.Span{{SpanID: "s1", OperationName: "HTTP GET", Duration: 1000}},
	}
	require.NoError(t, tc.TracesCache.Set(ctx, trace.TraceID, trace))

	got, err := tc.TracesCache.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, trace, got)
}

func TestTraceCacheStats(t *testing.T) {
	tc := NewTraceCache(memoryConfig())
	stats := tc.GetStats()
	require.Len(t, stats, 3)
	assert.Equal(t, "services", stats[0].CacheName)
}
