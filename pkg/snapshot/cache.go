package snapshot

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// Cached fronts a Store with an LRU of recently stored and loaded snapshots.
// Snapshots are immutable, so a cached hash is also known to be persisted and
// Put skips the backend for it.
type Cached struct {
	Store
	cache *lru.Cache
}

// NewCached wraps st with a cache of size entries.
func NewCached(st Store, size int) (*Cached, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("snapshot: cache: %w", err)
	}
	return &Cached{Store: st, cache: cache}, nil
}

// Put implements Store.
func (c *Cached) Put(ctx context.Context, data []byte) (string, error) {
	if h := Hash(data); c.cache.Contains(h) {
		return h, nil
	}
	h, err := c.Store.Put(ctx, data)
	if err != nil {
		return "", err
	}
	c.cache.Add(h, data)
	return h, nil
}

// Get implements Store.
func (c *Cached) Get(ctx context.Context, hash string) ([]byte, error) {
	if v, ok := c.cache.Get(hash); ok {
		return v.([]byte), nil
	}
	data, err := c.Store.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	if Hash(data) == hash {
		c.cache.Add(hash, data)
	}
	return data, nil
}

// Len returns the number of cached entries.
func (c *Cached) Len() int {
	return c.cache.Len()
}
