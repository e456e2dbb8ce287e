package geo

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"
)

// Prepared is a repaired, projected multipolygon together with its bound and
// planar area, ready for overlay.
type Prepared struct {
	Geometry orb.MultiPolygon
	Bound    orb.Bound
	Area     float64
}

// PreparedCache memoizes repair+projection per (county, bucket). The same
// county is clipped against every candidate jurisdiction in its bucket, so
// preparing it once pays for itself quickly.
type PreparedCache struct {
	cache *lruCache
}

// NewPreparedCache creates a cache holding at most maxEntries prepared
// geometries.
func NewPreparedCache(maxEntries int) *PreparedCache {
	return &PreparedCache{cache: newLRUCache(maxEntries)}
}

// Prepare returns the repaired, projected form of the county geometry for
// the given bucket, computing and caching it on first use.
func (c *PreparedCache) Prepare(fips string, geom orb.MultiPolygon, bucket RegionBucket) (Prepared, error) {
	key := fmt.Sprintf("%s|%s", fips, bucket)
	if p, ok := c.cache.get(key); ok {
		return p, nil
	}
	repaired, err := Repair(geom)
	if err != nil {
		return Prepared{}, fmt.Errorf("repair county %s: %w", fips, err)
	}
	projected := ProjectMultiPolygon(repaired, bucket)
	p := Prepared{Geometry: projected, Bound: projected.Bound(), Area: Area(projected)}
	c.cache.put(key, p)
	return p, nil
}

// lruCache is a simple thread-safe LRU cache for prepared geometries.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value Prepared
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (Prepared, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Prepared{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value Prepared) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
