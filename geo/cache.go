package geo

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"wayfact.ai/data"
)

const (
	// keep only the most recent facts per cell
	maxFactsPerCell = 10
	cachePrefix     = "geocache/"
)

// Cache remembers which places were surfaced at a quantized position so a
// second static request at nearly the same spot does not repeat them.
// Entries expire after a TTL and the cache is capacity-bounded with
// oldest-first eviction. Live sessions do not use it - they carry their
// own history.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	max     int
	store   data.Store
	now     func() time.Time
}

type cacheEntry struct {
	Places  []string  `json:"places"`
	Touched time.Time `json:"touched"`
}

// NewCache creates a cache with the given TTL and capacity. A nil store
// means no persistence.
func NewCache(ttl time.Duration, max int, store data.Store) *Cache {
	c := &Cache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		max:     max,
		store:   store,
		now:     time.Now,
	}
	c.load()
	return c
}

func (c *Cache) load() {
	if c.store == nil {
		return
	}
	keys, err := c.store.Keys(cachePrefix)
	if err != nil {
		log.Printf("[geocache] load keys: %v", err)
		return
	}
	loaded, skipped := 0, 0
	for _, key := range keys {
		b, ok, err := c.store.Get(key)
		if err != nil || !ok {
			continue
		}
		var e cacheEntry
		if err := json.Unmarshal(b, &e); err != nil {
			continue
		}
		if c.now().Sub(e.Touched) >= c.ttl {
			c.store.Delete(key)
			skipped++
			continue
		}
		c.entries[key[len(cachePrefix):]] = &e
		loaded++
	}
	if loaded > 0 || skipped > 0 {
		log.Printf("[geocache] loaded %d cells, skipped %d expired", loaded, skipped)
	}
}

// Lookup returns the places already surfaced in the cell containing the
// position. Expired entries are invisible.
func (c *Cache) Lookup(lat, lon float64) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := CellKey(lat, lon)
	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.now().Sub(e.Touched) >= c.ttl {
		c.evict(key)
		return nil
	}

	places := make([]string, len(e.Places))
	copy(places, e.Places)
	return places
}

// Record adds a surfaced place to the cell containing the position.
func (c *Cache) Record(lat, lon float64, place string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := CellKey(lat, lon)
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.Touched) >= c.ttl {
		e = &cacheEntry{}
		c.entries[key] = e
	}

	e.Places = append(e.Places, place)
	if len(e.Places) > maxFactsPerCell {
		e.Places = e.Places[len(e.Places)-maxFactsPerCell:]
	}
	e.Touched = c.now()

	c.persist(key, e)
	c.cleanup()
}

// Len returns the number of live cells, for diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if c.now().Sub(e.Touched) < c.ttl {
			n++
		}
	}
	return n
}

// cleanup drops expired entries and evicts oldest-first past capacity.
// Called with the lock held.
func (c *Cache) cleanup() {
	now := c.now()
	for key, e := range c.entries {
		if now.Sub(e.Touched) >= c.ttl {
			c.evict(key)
		}
	}

	for len(c.entries) > c.max {
		var oldest string
		var oldestAt time.Time
		for key, e := range c.entries {
			if oldest == "" || e.Touched.Before(oldestAt) {
				oldest = key
				oldestAt = e.Touched
			}
		}
		c.evict(oldest)
	}
}

func (c *Cache) evict(key string) {
	delete(c.entries, key)
	if c.store != nil {
		c.store.Delete(cachePrefix + key)
	}
}

func (c *Cache) persist(key string, e *cacheEntry) {
	if c.store == nil {
		return
	}
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.store.Set(cachePrefix+key, b); err != nil {
		log.Printf("[geocache] persist %s: %v", key, err)
	}
}
