package geo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"efleetsim/model"
)

func testNodes() []model.Node {
	return []model.Node{
		{Kind: model.NodeStop, StopID: "A", Location: model.Location{Lat: 40.0, Lon: -75.0}},
		{Kind: model.NodeStop, StopID: "B", Location: model.Location{Lat: 40.1, Lon: -75.1}},
		{Kind: model.NodeDepot, DepotID: "D1", Location: model.Location{Lat: 40.2, Lon: -75.2}},
	}
}

func TestCacheEnsureAllPopulatesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "distances.json")
	c := NewCache(path)
	require.NoError(t, c.Load())

	require.NoError(t, c.EnsureAll(testNodes()))

	km, ok := c.Get("A", "B")
	require.True(t, ok)
	assert.Greater(t, km, 0.0)

	// Symmetric lookup via the swapped pair hits the same cache key.
	km2, ok := c.Get("B", "A")
	require.True(t, ok)
	assert.Equal(t, km, km2)

	reloaded := NewCache(path)
	require.NoError(t, reloaded.Load())
	km3, ok := reloaded.Get("A", "B")
	require.True(t, ok)
	assert.Equal(t, km, km3)
}

func TestCacheEnsureAllRecomputesOnAnyMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "distances.json")
	c := NewCache(path)

	nodes := testNodes()
	require.NoError(t, c.EnsureAll(nodes[:2]))
	_, ok := c.Get("A", "D1")
	assert.False(t, ok, "D1 wasn't in the first EnsureAll call")

	require.NoError(t, c.EnsureAll(nodes))
	_, ok = c.Get("A", "D1")
	assert.True(t, ok, "adding a node with any missing pair should trigger a full recompute")
	_, ok = c.Get("A", "B")
	assert.True(t, ok, "previously resolved pairs should still be present after recompute")
}

func TestCacheDistanceKMAdHocLookupCachesWithoutFullRecompute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "distances.json")
	c := NewCache(path)

	a := model.Location{Lat: 40.0, Lon: -75.0}
	b := model.Location{Lat: 40.1, Lon: -75.1}
	km := c.DistanceKM("X", "Y", a, b)
	assert.Greater(t, km, 0.0)

	cached, ok := c.Get("X", "Y")
	require.True(t, ok)
	assert.Equal(t, km, cached)
}
