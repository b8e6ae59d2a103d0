package cache

import (
	"sync"
	"time"

	"github.com/shopsight/backend/internal/domain"
)

// cacheItem represents a single item in the cache with expiration
type cacheItem struct {
	Value      interface{}
	Expiration time.Time
}

// Memory is a thread-safe in-memory cache with TTL support. It is
// run-scoped: construct it at run start and Stop it at run end. It backs
// the robots ruleset and exchange-rate table caches.
type Memory struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
	done  chan struct{}
	once  sync.Once
}

// NewMemory creates a new in-memory cache
func NewMemory() *Memory {
	cache := &Memory{
		data: make(map[string]cacheItem),
		done: make(chan struct{}),
	}

	// Cleanup goroutine removes expired entries periodically
	go cache.cleanupExpired()

	return cache
}

// Get retrieves a value from the cache
func (c *Memory) Get(key string) (interface{}, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists {
		return nil, domain.ErrCacheMiss
	}

	// Check if expired
	if time.Now().After(item.Expiration) {
		return nil, domain.ErrCacheMiss
	}

	return item.Value, nil
}

// Set stores a value in the cache with TTL
func (c *Memory) Set(key string, value interface{}, ttl time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = cacheItem{
		Value:      value,
		Expiration: time.Now().Add(ttl),
	}
}

// Delete removes a value from the cache
func (c *Memory) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
}

// Exists checks if a key exists in the cache and is not expired
func (c *Memory) Exists(key string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists {
		return false
	}

	return !time.Now().After(item.Expiration)
}

// Size returns the current number of items in the cache
func (c *Memory) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Stop tears the cache down, ending the cleanup goroutine.
func (c *Memory) Stop() {
	c.once.Do(func() { close(c.done) })
}

// cleanupExpired removes expired entries from the cache periodically
func (c *Memory) cleanupExpired() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mutex.Lock()
			now := time.Now()
			for key, item := range c.data {
				if now.After(item.Expiration) {
					delete(c.data, key)
				}
			}
			c.mutex.Unlock()
		}
	}
}
