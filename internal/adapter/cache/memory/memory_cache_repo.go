// Package memory is the in-process cache used when no Redis is configured
// and by tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pashumandi/mandi-gateway/internal/port/cache"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

type CacheRepository struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func NewCacheRepository() *CacheRepository {
	return &CacheRepository{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

var _ cache.CacheRepository = (*CacheRepository)(nil)

func (c *CacheRepository) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, cache.ErrNotFound
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, cache.ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (c *CacheRepository) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

func (c *CacheRepository) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *CacheRepository) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *CacheRepository) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
