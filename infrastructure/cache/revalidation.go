package cache

import (
	"context"
	"sync"
	"time"
)

// RevalidationCache keeps server query results for a per-entry window.
type RevalidationCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

type cacheItem struct {
	value     interface{}
	expiresAt time.Time // zero means no expiry
}

// NewRevalidationCache creates a cache and starts its sweeper.
func NewRevalidationCache() *RevalidationCache {
	c := &RevalidationCache{
		items: make(map[string]cacheItem),
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	go c.cleanupExpired(time.Minute)

	return c
}

// Get retrieves a value that is still inside its window.
func (c *RevalidationCache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || item.expired(c.now()) {
		return nil, false
	}
	return item.value, true
}

// Set stores a value for ttl seconds. A negative ttl keeps it until it is
// deleted; zero stores nothing. Nothing is stored once ctx is done.
func (c *RevalidationCache) Set(ctx context.Context, key string, value interface{}, ttl int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl == 0 {
		return nil
	}

	item := cacheItem{value: value}
	if ttl > 0 {
		item.expiresAt = c.now().Add(time.Duration(ttl) * time.Second)
	}

	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()
	return nil
}

// Delete removes a value from cache
func (c *RevalidationCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// Clear removes all values from cache
func (c *RevalidationCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]cacheItem)
	return nil
}

// Stop ends the sweeper goroutine. It is safe to call more than once.
func (c *RevalidationCache) Stop() {
	c.once.Do(func() { close(c.stop) })
}

func (i cacheItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

func (c *RevalidationCache) cleanupExpired(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for key, item := range c.items {
				if item.expired(now) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
