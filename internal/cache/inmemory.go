package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired in-memory entries are reclaimed.
const DefaultSweepInterval = 30 * time.Second

// InMemoryCache is the default backend. It keeps entries in a map guarded by
// a RWMutex and reclaims expired entries from a background sweeper.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	now     func() time.Time
	stop    chan struct{}
	closed  bool
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e *memEntry) expiredAt(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// InMemoryOption customizes an InMemoryCache.
type InMemoryOption func(*InMemoryCache)

// WithClock replaces the wall clock used for expiry checks.
func WithClock(now func() time.Time) InMemoryOption {
	return func(c *InMemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewInMemoryCache creates an in-memory cache. A sweepInterval <= 0 uses
// DefaultSweepInterval.
func NewInMemoryCache(sweepInterval time.Duration, opts ...InMemoryOption) *InMemoryCache {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	c := &InMemoryCache{
		entries: make(map[string]*memEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.sweepLoop(sweepInterval)
	return c
}

func (c *InMemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || entry.expiredAt(c.now()) {
		return nil, ErrNotFound
	}
	// Callers get their own copy.
	cp := make([]byte, len(entry.value))
	copy(cp, entry.value)
	return cp, nil
}

func (c *InMemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	c.entries[key] = &memEntry{value: cp, expiresAt: expiresAt}
	return nil
}

func (c *InMemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Len reports the number of stored entries, expired or not.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *InMemoryCache) Ping(_ context.Context) error { return nil }

func (c *InMemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.entries = map[string]*memEntry{}
	close(c.stop)
	return nil
}

func (c *InMemoryCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *InMemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, entry := range c.entries {
		if entry.expiredAt(now) {
			delete(c.entries, key)
		}
	}
}
