// ABOUTME: Thread-safe TTL cache mapping client idempotency keys to capture IDs
// ABOUTME: Lets retried capture submissions return the original capture instead of creating a duplicate

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry stores the capture ID, timestamp, and list element for a key.
type cacheEntry struct {
	captureID string
	storedAt  time.Time
	element   *list.Element
}

// Cache provides a thread-safe, TTL-based, size-limited mapping from client
// idempotency keys to capture IDs. Capture clients (share extensions, hotkey
// apps) retry aggressively on flaky networks; the cache lets a retried
// submission resolve to the capture the first attempt created. Uses a
// doubly-linked list to maintain insertion order for O(1) eviction.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   *list.List // keys in insertion order, oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates an idempotency cache with the specified TTL and maximum size.
// A background goroutine periodically cleans up expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Lookup returns the capture ID recorded for a key, if present and not
// expired.
func (c *Cache) Lookup(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Since(entry.storedAt) >= c.ttl {
		return "", false
	}
	return entry.captureID, true
}

// Remember records the capture created for a key. If the cache is at
// capacity, the oldest entry is evicted to make room. Re-remembering a key
// refreshes its timestamp and replaces the capture ID.
func (c *Cache) Remember(key, captureID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if entry, exists := c.entries[key]; exists {
		entry.captureID = captureID
		entry.storedAt = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.entries[key] = &cacheEntry{
		captureID: captureID,
		storedAt:  now,
		element:   elem,
	}
}

// evictOldest removes the oldest entry from the cache.
// Must be called with mu held. O(1) operation using the linked list.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) >= c.ttl {
			c.order.Remove(entry.element)
			delete(c.entries, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
