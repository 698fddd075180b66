package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickadesina/soc-cli/pkg/pathfind"
)

func testResult(ids ...string) *pathfind.PathResult {
	return &pathfind.PathResult{NodeIDs: ids, TotalCost: len(ids) - 1}
}

func TestPathCacheHitAndMiss(t *testing.T) {
	c := NewPathCache(10, 0)

	key := c.Key("alice", "bob")
	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, testResult("alice", "bob"))

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []string{"alice", "bob"}, got.NodeIDs)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestPathCacheKeyDirectional(t *testing.T) {
	c := NewPathCache(10, 0)
	assert.NotEqual(t, c.Key("alice", "bob"), c.Key("bob", "alice"))
	assert.NotEqual(t, c.Key("ab", "c"), c.Key("a", "bc"))
}

func TestPathCacheLRUEviction(t *testing.T) {
	c := NewPathCache(3, 0)

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("p%d", i)
		c.Put(c.Key(id, "goal"), testResult(id, "goal"))
	}
	require.Equal(t, 3, c.Len())

	// Touch p0 so p1 becomes the eviction candidate.
	_, ok := c.Get(c.Key("p0", "goal"))
	require.True(t, ok)

	c.Put(c.Key("p3", "goal"), testResult("p3", "goal"))
	assert.Equal(t, 3, c.Len())

	_, ok = c.Get(c.Key("p1", "goal"))
	assert.False(t, ok)
	_, ok = c.Get(c.Key("p0", "goal"))
	assert.True(t, ok)
}

func TestPathCacheTTLExpiry(t *testing.T) {
	c := NewPathCache(10, 10*time.Millisecond)

	key := c.Key("alice", "bob")
	c.Put(key, testResult("alice", "bob"))

	_, ok := c.Get(key)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, ok = c.Get(key)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestPathCacheInvalidate(t *testing.T) {
	c := NewPathCache(10, 0)
	c.Put(c.Key("a", "b"), testResult("a", "b"))
	c.Put(c.Key("a", "c"), testResult("a", "c"))
	require.Equal(t, 2, c.Len())

	c.Invalidate()
	assert.Equal(t, 0, c.Len())

	_, ok := c.Get(c.Key("a", "b"))
	assert.False(t, ok)
}

func TestPathCacheDisabled(t *testing.T) {
	c := NewPathCache(10, 0)
	c.SetEnabled(false)

	key := c.Key("a", "b")
	c.Put(key, testResult("a", "b"))
	_, ok := c.Get(key)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestPathCachePutUpdatesExisting(t *testing.T) {
	c := NewPathCache(10, 0)
	key := c.Key("a", "b")

	c.Put(key, testResult("a", "b"))
	c.Put(key, testResult("a", "x", "b"))

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "x", "b"}, got.NodeIDs)
	assert.Equal(t, 1, c.Len())
}
