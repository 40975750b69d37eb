package cache

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// InvalidationChannel is the Redis Pub/Sub channel carrying keys that every
// storefront instance must drop from its local cache.
const InvalidationChannel = "storefront:cache:invalidate"

// Invalidator evicts keys from a local cache (the L1 of a TieredCache)
// when another instance publishes them on InvalidationChannel.
type Invalidator struct {
	local  Cache
	client *redis.Client
	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// NewInvalidator creates an invalidator for the given local cache.
func NewInvalidator(local Cache, client *redis.Client) *Invalidator {
	return &Invalidator{
		local:  local,
		client: client,
	}
}

// Start listens for invalidation signals. It blocks until ctx is cancelled
// or Close is called.
func (iv *Invalidator) Start(ctx context.Context) error {
	subCtx, cancel := context.WithCancel(ctx)
	iv.mu.Lock()
	if iv.closed {
		iv.mu.Unlock()
		cancel()
		return nil
	}
	iv.cancel = cancel
	iv.mu.Unlock()

	pubsub := iv.client.Subscribe(subCtx, InvalidationChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			_ = iv.local.Delete(subCtx, msg.Payload)
		}
	}
}

// Publish announces that key changed so sibling instances drop it.
func (iv *Invalidator) Publish(ctx context.Context, key string) error {
	return iv.client.Publish(ctx, InvalidationChannel, key).Err()
}

// Close stops the listener.
func (iv *Invalidator) Close() error {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	if iv.closed {
		return nil
	}
	iv.closed = true
	if iv.cancel != nil {
		iv.cancel()
	}
	return nil
}
