// Package cache stores finished sanitization results so identical requests
// skip the model. Entries are keyed by content, profile policy and model.
package cache

import (
	"context"
	"time"
)

// Entry is one cached sanitization result
type Entry struct {
	Completion string    `json:"completion"`
	SourceType string    `json:"source_type"`
	Model      string    `json:"model"`
	CachedAt   time.Time `json:"cached_at"`
	TTL        int64     `json:"ttl"`
}

// Stats represents cache performance statistics
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	TotalKeys   int64   `json:"total_keys"`
	MemoryUsage int64   `json:"memory_usage_bytes"`
}

// Config contains cache configuration
type Config struct {
	RedisURL       string
	MaxConnections int
	MinIdleConns   int
	DefaultTTL     time.Duration
	KeyPrefix      string
}

// ResultCache is implemented by RedisCache and MemoryCache.
// Implementations must be safe for concurrent use.
type ResultCache interface {
	// Get returns nil, nil on a miss
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}
