package classifier

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/novadesk/triage/internal/domain"
)

// Cache stores classification results keyed by content hash. Identical
// ticket text within the TTL window costs one AI call, not N.
type Cache interface {
	Get(ctx context.Context, key string) (*domain.Classification, bool)
	Set(ctx context.Context, key string, result domain.Classification)
}

// CacheKey derives the cache key for a piece of ticket text.
func CacheKey(text string) string {
	sum := md5.Sum([]byte(text))
	return "classify:" + hex.EncodeToString(sum[:])
}

// RedisCache is the production cache backend.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed classification cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the cached classification, if present. Redis errors are
// treated as cache misses.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.Classification, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var result domain.Classification
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false
	}
	return &result, true
}

// Set stores the classification with the configured TTL. Write errors
// are ignored; the cache is best-effort.
func (c *RedisCache) Set(ctx context.Context, key string, result domain.Classification) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, data, c.ttl)
}

// MemoryCache is the fallback when Redis is not configured. Entries
// expire lazily on read.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

type memoryEntry struct {
	result    domain.Classification
	expiresAt time.Time
}

// NewMemoryCache creates an in-process classification cache.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryEntry)}
}

// Get returns the cached classification, if present and unexpired.
func (c *MemoryCache) Get(_ context.Context, key string) (*domain.Classification, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	result := entry.result
	return &result, true
}

// Set stores the classification with the configured TTL.
func (c *MemoryCache) Set(_ context.Context, key string, result domain.Classification) {
	c.mu.Lock()
	c.entries[key] = memoryEntry{result: result, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}
