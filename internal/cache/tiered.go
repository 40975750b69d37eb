package cache

import (
	"context"
	"time"
)

// DefaultL1TTL bounds how long a tiered L1 copy may outlive an L2 change.
const DefaultL1TTL = 10 * time.Second

// TieredCache layers a fast local L1 over a shared L2. Reads check L1
// first and populate it on an L2 hit; writes and deletes go to both.
// Pair it with an Invalidator so sibling instances drop stale L1 copies
// before l1TTL runs out.
type TieredCache struct {
	l1    Cache
	l2    Cache
	l1TTL time.Duration
}

// NewTieredCache creates a two-level cache. l1TTL <= 0 uses DefaultL1TTL.
func NewTieredCache(l1, l2 Cache, l1TTL time.Duration) *TieredCache {
	if l1TTL <= 0 {
		l1TTL = DefaultL1TTL
	}
	return &TieredCache{l1: l1, l2: l2, l1TTL: l1TTL}
}

// L1 returns the local layer.
func (t *TieredCache) L1() Cache {
	return t.l1
}

func (t *TieredCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := t.l1.Get(ctx, key)
	if err == nil {
		return val, nil
	}

	val, err = t.l2.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	_ = t.l1.Set(ctx, key, val, t.l1TTL)
	return val, nil
}

func (t *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	l1TTL := t.l1TTL
	if ttl > 0 && ttl < l1TTL {
		l1TTL = ttl
	}
	_ = t.l1.Set(ctx, key, value, l1TTL)
	return t.l2.Set(ctx, key, value, ttl)
}

func (t *TieredCache) Delete(ctx context.Context, key string) error {
	_ = t.l1.Delete(ctx, key)
	return t.l2.Delete(ctx, key)
}

func (t *TieredCache) Ping(ctx context.Context) error {
	if err := t.l1.Ping(ctx); err != nil {
		return err
	}
	return t.l2.Ping(ctx)
}

func (t *TieredCache) Close() error {
	_ = t.l1.Close()
	return t.l2.Close()
}
