// Package cache implements a bounded FIFO byte cache used to avoid
// re-decompressing chunks on sequential reads and to deduplicate bytes
// across overlapping stream reads. Not thread-safe; each stream owns one.
package cache

// DefaultLimit is the default byte budget for a ChunkCache (5 MB).
const DefaultLimit = 5 * 1024 * 1024

// ChunkCache is a bounded, insertion-ordered (FIFO) cache mapping a
// member/chunk name to its decoded bytes.
type ChunkCache struct {
	limit int
	size  int
	order []string
	data  map[string][]byte
}

// New returns a ChunkCache with the given byte limit. A limit <= 0 uses
// DefaultLimit.
func New(limit int) *ChunkCache {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &ChunkCache{
		limit: limit,
		data:  make(map[string][]byte),
	}
}

// Put inserts value under key, incrementing total size by len(value), and
// evicts from the front of the insertion-order queue until total size is
// within the configured limit. Re-inserting an existing key appends a
// fresh entry at the back (the prior bytes are replaced and freed).
func (c *ChunkCache) Put(key string, value []byte) {
	if old, ok := c.data[key]; ok {
		c.size -= len(old)
		delete(c.data, key)
		c.removeFromOrder(key)
	}

	c.data[key] = value
	c.size += len(value)
	c.order = append(c.order, key)

	for c.size > c.limit && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if v, ok := c.data[oldest]; ok {
			c.size -= len(v)
			delete(c.data, oldest)
		}
	}
}

// Get returns the cached value for key and true, or (nil, false) on a miss.
func (c *ChunkCache) Get(key string) ([]byte, bool) {
	v, ok := c.data[key]
	return v, ok
}

// Expire silently removes key from the cache if present.
func (c *ChunkCache) Expire(key string) {
	if v, ok := c.data[key]; ok {
		c.size -= len(v)
		delete(c.data, key)
		c.removeFromOrder(key)
	}
}

// Len returns the number of cached entries.
func (c *ChunkCache) Len() int {
	return len(c.data)
}

// Size returns the current total cached byte count.
func (c *ChunkCache) Size() int {
	return c.size
}

func (c *ChunkCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
