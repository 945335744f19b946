package portal

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheSize is the default number of entries kept by a MemoryCache.
const DefaultCacheSize = 1000

// DefaultHintTTL is how long an item location hint is kept.
const DefaultHintTTL = 24 * time.Hour

// Cache stores small values by key. The client uses it to remember where
// an item was last found in its owner's content.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
}

// CacheEntry is a cached value with its expiry.
type CacheEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
	ETag      string    `json:"etag,omitempty"`
}

// Expired reports whether the entry is past its expiry. A zero ExpiresAt
// never expires.
func (e *CacheEntry) Expired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// CacheOptions holds settings shared by every cache backend.
type CacheOptions struct {
	// TTL is applied to entries written through LocationHints.
	TTL time.Duration
	// MaxSize bounds the number of entries of in-memory backends.
	MaxSize int
}

// DefaultCacheOptions returns the default cache options.
func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{
		TTL:     DefaultHintTTL,
		MaxSize: DefaultCacheSize,
	}
}

type memoryItem struct {
	entry    *CacheEntry
	storedAt time.Time
}

// MemoryCache is an in-memory Cache. When full, the oldest entry is evicted.
type MemoryCache struct {
	mu      sync.RWMutex
	items   map[string]memoryItem
	maxSize int
}

// NewMemoryCache creates a memory cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}

	return &MemoryCache{
		items:   make(map[string]memoryItem),
		maxSize: maxSize,
	}
}

// Get returns the entry stored under key.
func (c *MemoryCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, ErrCacheKeyNotFound
	}

	if item.entry.Expired() {
		_ = c.Delete(ctx, key)

		return nil, ErrCacheEntryExpired
	}

	return item.entry, nil
}

// Set stores entry under key.
func (c *MemoryCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		c.evictOldest()
	}

	c.items[key] = memoryItem{entry: entry, storedAt: time.Now()}

	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)

	return nil
}

// Clear removes every entry.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]memoryItem)

	return nil
}

// Has reports whether a live entry is stored under key.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]

	return ok && !item.entry.Expired()
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Cleanup drops expired entries.
func (c *MemoryCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, item := range c.items {
		if item.entry.Expired() {
			delete(c.items, key)
		}
	}
}

func (c *MemoryCache) evictOldest() {
	var (
		oldestKey string
		oldestAt  time.Time
	)

	for key, item := range c.items {
		if oldestKey == "" || item.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = item.storedAt
		}
	}

	delete(c.items, oldestKey)
}

// LocationHints remembers the content path under which an item was last
// found, so that later lookups can try it first.
type LocationHints struct {
	cache Cache
	ttl   time.Duration
}

// NewLocationHints wraps cache. A non-positive ttl means DefaultHintTTL.
func NewLocationHints(cache Cache, ttl time.Duration) *LocationHints {
	if cache == nil {
		cache = NewMemoryCache(DefaultCacheSize)
	}

	if ttl <= 0 {
		ttl = DefaultHintTTL
	}

	return &LocationHints{cache: cache, ttl: ttl}
}

// Lookup returns the remembered path of itemID.
func (h *LocationHints) Lookup(ctx context.Context, itemID string) (string, bool) {
	entry, err := h.cache.Get(ctx, hintKey(itemID))
	if err != nil || len(entry.Data) == 0 {
		return "", false
	}

	return string(entry.Data), true
}

// Remember stores path as the location of itemID.
func (h *LocationHints) Remember(ctx context.Context, itemID, path string) error {
	return h.cache.Set(ctx, hintKey(itemID), &CacheEntry{
		Data:      []byte(path),
		ExpiresAt: time.Now().Add(h.ttl),
	})
}

// Forget drops the remembered location of itemID.
func (h *LocationHints) Forget(ctx context.Context, itemID string) error {
	return h.cache.Delete(ctx, hintKey(itemID))
}

func hintKey(itemID string) string {
	return "item-location." + itemID
}
