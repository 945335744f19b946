package portal

import (
	"context"
	"fmt"
)

// CacheType selects a cache backend.
type CacheType string

const (
	// CacheTypeMemory keeps hints in process memory.
	CacheTypeMemory CacheType = "memory"

	// CacheTypeNATS shares hints through a NATS key-value bucket.
	CacheTypeNATS CacheType = "nats"

	// CacheTypeNone disables hints.
	CacheTypeNone CacheType = "none"
)

// CacheConfig configures the cache backend.
type CacheConfig struct {
	Type CacheType `json:"type" yaml:"type" mapstructure:"type"`

	// MaxSize bounds the memory backend. Defaults to DefaultCacheSize.
	MaxSize int `json:"max_size,omitempty" yaml:"max_size,omitempty" mapstructure:"max_size"`

	// NATS is required for CacheTypeNATS.
	NATS *NATSKVConfig `json:"-" yaml:"-" mapstructure:"-"`
}

// NewCacheFromConfig creates the configured backend. A nil config yields a
// memory cache.
func NewCacheFromConfig(config *CacheConfig) (Cache, error) {
	if config == nil {
		return NewMemoryCache(DefaultCacheSize), nil
	}

	switch config.Type {
	case CacheTypeMemory, "":
		return NewMemoryCache(config.MaxSize), nil

	case CacheTypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		cache, err := NewNATSKVCache(config.NATS)
		if err != nil {
			return nil, err
		}

		return cache, nil

	case CacheTypeNone:
		return NewNoOpCache(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCache, config.Type)
	}
}

// NoOpCache stores nothing.
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache.
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// Get always fails with ErrCacheDisabled.
func (c *NoOpCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	return nil, ErrCacheDisabled
}

// Set discards the entry.
func (c *NoOpCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	return nil
}

// Delete is a no-op.
func (c *NoOpCache) Delete(ctx context.Context, key string) error {
	return nil
}

// Clear is a no-op.
func (c *NoOpCache) Clear(ctx context.Context) error {
	return nil
}

// Has always returns false.
func (c *NoOpCache) Has(ctx context.Context, key string) bool {
	return false
}

// CacheChain layers caches: reads try each in order and backfill the
// faster ones, writes go to all of them.
type CacheChain struct {
	caches []Cache
}

// NewCacheChain creates a chain, fastest cache first.
func NewCacheChain(caches ...Cache) *CacheChain {
	return &CacheChain{caches: caches}
}

// Get returns the first hit.
func (c *CacheChain) Get(ctx context.Context, key string) (*CacheEntry, error) {
	for i, cache := range c.caches {
		entry, err := cache.Get(ctx, key)
		if err != nil {
			continue
		}

		for _, faster := range c.caches[:i] {
			_ = faster.Set(ctx, key, entry)
		}

		return entry, nil
	}

	return nil, ErrKeyNotFoundAnyCache
}

// Set writes to every cache and returns the last failure.
func (c *CacheChain) Set(ctx context.Context, key string, entry *CacheEntry) error {
	return c.each(func(cache Cache) error { return cache.Set(ctx, key, entry) })
}

// Delete removes key from every cache.
func (c *CacheChain) Delete(ctx context.Context, key string) error {
	return c.each(func(cache Cache) error { return cache.Delete(ctx, key) })
}

// Clear empties every cache.
func (c *CacheChain) Clear(ctx context.Context) error {
	return c.each(func(cache Cache) error { return cache.Clear(ctx) })
}

// Has reports whether any cache holds key.
func (c *CacheChain) Has(ctx context.Context, key string) bool {
	for _, cache := range c.caches {
		if cache.Has(ctx, key) {
			return true
		}
	}

	return false
}

func (c *CacheChain) each(apply func(Cache) error) error {
	var lastErr error

	for _, cache := range c.caches {
		err := apply(cache)
		if err != nil {
			lastErr = err
		}
	}

	return lastErr
}
