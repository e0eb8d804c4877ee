package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache keeps results in process memory. It serves single-instance
// runs such as the CLI when Redis is not configured.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
	hits    int64
	misses  int64
}

type memoryEntry struct {
	entry   Entry
	expires time.Time
}

// NewMemoryCache creates an in-process cache
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryCache{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

// Get returns nil, nil on a miss or expired entry
func (c *MemoryCache) Get(ctx context.Context, key string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		delete(c.entries, key)
		c.misses++
		return nil, nil
	}
	c.hits++
	entry := e.entry
	return &entry, nil
}

// Set stores a copy of entry
func (c *MemoryCache) Set(ctx context.Context, key string, entry *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	stored := *entry
	stored.CachedAt = now.UTC()
	stored.TTL = int64(c.ttl.Seconds())
	c.entries[key] = memoryEntry{entry: stored, expires: now.Add(c.ttl)}
	return nil
}

// Stats returns hit counters and the number of live keys
func (c *MemoryCache) Stats(ctx context.Context) (*Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return &Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		HitRate:   hitRate(c.hits, c.misses),
		TotalKeys: int64(len(c.entries)),
	}, nil
}

// Close implements ResultCache
func (c *MemoryCache) Close() error {
	return nil
}
