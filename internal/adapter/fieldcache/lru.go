// Package fieldcache holds recently normalized fields in memory so repeated
// queries for the same model output do not refetch and resample the source.
package fieldcache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/Englacial/ismip-indexing/internal/domain"
)

// Entry is one normalized field together with its missing-data mask.
type Entry struct {
	Values   [][]float64
	Missing  [][]bool
	LastUsed time.Time
	CachedAt time.Time
}

// Cache is a fixed-capacity LRU of normalized fields.
type Cache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List

	hits      int64
	misses    int64
	evictions int64
}

type cacheItem struct {
	key   string
	entry *Entry
}

// New returns a cache that retains up to capacity fields.
func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Key identifies a normalized field: the record plus the slice and the
// resampling parameters that produced it.
func Key(rk domain.RecordKey, timeIndex int, method string, resKM int) string {
	return fmt.Sprintf("%s@%d/%s/%dkm", rk.String(), timeIndex, method, resKM)
}

// Get returns the cached field for key, if present.
func (c *Cache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(elem)
	item := elem.Value.(*cacheItem)
	item.entry.LastUsed = time.Now()
	c.hits++
	return item.entry, true
}

// Put stores a field, evicting the least recently used entry when full.
func (c *Cache) Put(key string, values [][]float64, missing [][]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		item := elem.Value.(*cacheItem)
		item.entry.Values = values
		item.entry.Missing = missing
		item.entry.LastUsed = now
		return
	}

	elem := c.order.PushFront(&cacheItem{
		key:   key,
		entry: &Entry{Values: values, Missing: missing, LastUsed: now, CachedAt: now},
	})
	c.items[key] = elem

	if c.order.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *Cache) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	item := elem.Value.(*cacheItem)
	c.order.Remove(elem)
	delete(c.items, item.key)
	c.evictions++
}

// Len reports the number of cached fields.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats reports hit, miss, and eviction counts since construction.
func (c *Cache) Stats() (hits, misses, evictions int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.evictions
}
