package geo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"efleetsim/model"
)

// Cache is a persistent "from|to" -> kilometers distance table, backed by a
// JSON file on disk and fronted by an in-memory memo layer for hot lookups
// during a run. Distances are symmetric; the cache key always orders the
// pair lexicographically so A->B and B->A share one entry.
//
// The validation policy mirrors the original distance precomputation: the
// cache is either fully populated for the node set a run needs, or it is
// not trusted at all. A single missing pair triggers a full recompute and
// rewrite of the on-disk file rather than a partial patch, so a cache file
// can never silently drift out of sync with a changed node set.
type Cache struct {
	path string

	mu      sync.Mutex
	entries map[string]float64

	memo *gocache.Cache
}

// NewCache returns a Cache backed by the JSON file at path. The file is not
// read until Load is called.
func NewCache(path string) *Cache {
	return &Cache{
		path:    path,
		entries: make(map[string]float64),
		memo:    gocache.New(gocache.NoExpiration, time.Hour),
	}
}

func cacheKey(fromID, toID string) string {
	if fromID > toID {
		fromID, toID = toID, fromID
	}
	return fromID + "|" + toID
}

// Load reads the on-disk cache file. A missing file is not an error; the
// cache simply starts empty.
func (c *Cache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read distance cache: %w", err)
	}
	var raw map[string]float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode distance cache: %w", err)
	}
	c.entries = raw
	for k, v := range raw {
		c.memo.SetDefault(k, v)
	}
	return nil
}

// Save writes the current cache contents to disk as pretty-printed JSON.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

func (c *Cache) saveLocked() error {
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create distance cache dir: %w", err)
		}
	}
	out, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode distance cache: %w", err)
	}
	if err := os.WriteFile(c.path, out, 0o644); err != nil {
		return fmt.Errorf("write distance cache: %w", err)
	}
	return nil
}

// Get returns the cached kilometer distance between from and to, if known.
func (c *Cache) Get(fromID, toID string) (float64, bool) {
	key := cacheKey(fromID, toID)
	if v, ok := c.memo.Get(key); ok {
		return v.(float64), true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// EnsureAll validates the cache against the full node set a run will need.
// If any pair among nodes is missing, every pairwise distance is
// recomputed from scratch and the on-disk file is rewritten; a cache that
// is only partially valid is never trusted. This validates all O(n²)
// pairs, a superset of the feasible edge set the optimizer actually
// queries: feasible edges churn tick to tick as disruptions reshape the
// graph, so caching the closure once is cheaper than revalidating per
// tick, at the price of a larger file.
func (c *Cache) EnsureAll(nodes []model.Node) error {
	c.mu.Lock()
	missing := false
	for i := 0; i < len(nodes) && !missing; i++ {
		for j := i + 1; j < len(nodes); j++ {
			key := cacheKey(nodes[i].ID(), nodes[j].ID())
			if _, ok := c.entries[key]; !ok {
				missing = true
				break
			}
		}
	}
	c.mu.Unlock()
	if !missing {
		return nil
	}
	recomputed := make(map[string]float64, len(nodes)*len(nodes)/2)
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			km := HaversineKM(nodes[i].Location, nodes[j].Location)
			recomputed[cacheKey(nodes[i].ID(), nodes[j].ID())] = km
		}
	}
	c.mu.Lock()
	c.entries = recomputed
	for k, v := range recomputed {
		c.memo.SetDefault(k, v)
	}
	err := c.saveLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return nil
}

// DistanceKM returns the cached distance, computing and caching it directly
// (without a full recompute) if EnsureAll has not yet been run for this
// pair. Used for ad hoc lookups outside the optimizer's graph build.
func (c *Cache) DistanceKM(fromID, toID string, fromLoc, toLoc model.Location) float64 {
	if km, ok := c.Get(fromID, toID); ok {
		return km
	}
	km := HaversineKM(fromLoc, toLoc)
	key := cacheKey(fromID, toID)
	c.mu.Lock()
	c.entries[key] = km
	c.mu.Unlock()
	c.memo.SetDefault(key, km)
	return km
}
