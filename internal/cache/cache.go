package cache

import (
	"sync"
	"time"
)

// Cache is a small in-memory key/value cache with a single TTL.
// It is safe for concurrent use and supports periodic cleanup.
type Cache[V any] struct {
	mu sync.RWMutex

	ttl   time.Duration
	items map[string]cachedItem[V]
	now   func() time.Time

	// janitor
	janitorStop chan struct{}
}

// cachedItem wraps a cached value with an expiration time.
type cachedItem[V any] struct {
	value     V
	expiresAt time.Time
}

// DefaultTTL is used when New is given a TTL <= 0
const DefaultTTL = 5 * time.Minute

// New creates a Cache whose entries live for ttl.
func New[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		ttl:   ttl,
		items: make(map[string]cachedItem[V]),
		now:   time.Now,
	}
}

// TTL returns how long entries live
func (c *Cache[V]) TTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttl
}

// Set caches value under key.
func (c *Cache[V]) Set(key string, value V) {
	if c == nil || key == "" {
		return
	}
	c.mu.Lock()
	c.items[key] = cachedItem[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Add caches value only if key is absent or expired, and reports whether it did.
func (c *Cache[V]) Add(key string, value V) bool {
	if c == nil || key == "" {
		return false
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.items[key]; ok && !now.After(item.expiresAt) {
		return false
	}
	c.items[key] = cachedItem[V]{value: value, expiresAt: now.Add(c.ttl)}
	return true
}

// Get returns the cached value for key, if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil || key == "" {
		return zero, false
	}

	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}

	if c.now().After(item.expiresAt) {
		// Expired - evict eagerly
		c.Delete(key)
		return zero, false
	}
	return item.value, true
}

// Take returns and removes the value for key. Expired entries are not returned.
func (c *Cache[V]) Take(key string) (V, bool) {
	var zero V
	if c == nil || key == "" {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok {
		return zero, false
	}
	delete(c.items, key)
	if c.now().After(item.expiresAt) {
		return zero, false
	}
	return item.value, true
}

// Delete removes key
func (c *Cache[V]) Delete(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// PurgeExpired removes expired entries.
// This can be called manually or via the janitor.
func (c *Cache[V]) PurgeExpired() {
	if c == nil {
		return
	}
	now := c.now()

	c.mu.Lock()
	for k, v := range c.items {
		if now.After(v.expiresAt) {
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
}

// StartJanitor starts a background goroutine that periodically purges expired entries.
// It returns a function that can be called to stop the janitor.
// If interval <= 0, a default of one minute is used.
func (c *Cache[V]) StartJanitor(interval time.Duration) func() {
	if c == nil {
		return func() {}
	}
	if interval <= 0 {
		interval = time.Minute
	}

	c.mu.Lock()
	// If already running, stop the previous one
	if c.janitorStop != nil {
		close(c.janitorStop)
	}
	stop := make(chan struct{})
	c.janitorStop = stop
	c.mu.Unlock()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.PurgeExpired()
			case <-stop:
				return
			}
		}
	}()

	return func() {
		c.mu.Lock()
		if c.janitorStop == stop {
			close(stop)
			c.janitorStop = nil
		}
		c.mu.Unlock()
	}
}

// Len returns the number of non-expired entries.
// This performs an eager purge before counting.
func (c *Cache[V]) Len() int {
	if c == nil {
		return 0
	}
	c.PurgeExpired()

	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
