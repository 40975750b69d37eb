// Package productcache is the storefront's ephemeral product cache: one
// slot holding the last successful catalog fetch and its timestamp.
//
// An entry is valid only while now - timestamp < TTL. Get deletes an
// expired entry before reporting a miss, so a stale entry is never seen
// twice. Backend failures degrade to misses; the page still renders from
// the catalog.
package productcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oriys/storefront/internal/cache"
	"github.com/oriys/storefront/internal/domain"
	"github.com/oriys/storefront/internal/logging"
	"github.com/oriys/storefront/internal/metrics"
)

const (
	// DefaultKey is the fixed slot identifier.
	DefaultKey = "products_cache"
	// DefaultTTL is how long a fetch stays valid.
	DefaultTTL = 5 * time.Minute
)

// Entry is the value stored in the slot.
type Entry struct {
	Products  []domain.Product `json:"products"`
	Timestamp int64            `json:"timestamp"` // epoch milliseconds
}

// FetchedAt returns the entry timestamp as a time.
func (e *Entry) FetchedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Publisher announces invalidations to other instances.
type Publisher interface {
	Publish(ctx context.Context, key string) error
}

// Options configures a Store.
type Options struct {
	Key       string
	TTL       time.Duration
	Now       func() time.Time
	Metrics   *metrics.Metrics
	Publisher Publisher
}

// Store is the single-slot product cache over a cache.Cache backend.
type Store struct {
	backend   cache.Cache
	key       string
	ttl       time.Duration
	now       func() time.Time
	metrics   *metrics.Metrics
	publisher Publisher
}

// New creates a Store on backend.
func New(backend cache.Cache, opts Options) *Store {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		backend:   backend,
		key:       opts.Key,
		ttl:       opts.TTL,
		now:       opts.Now,
		metrics:   opts.Metrics,
		publisher: opts.Publisher,
	}
}

// TTL returns the validity window of an entry.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Get returns the stored entry if present and unexpired.
func (s *Store) Get(ctx context.Context) (*Entry, bool) {
	raw, err := s.backend.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			logging.Op().Warn("product cache read failed", "key", s.key, "error", err)
		}
		s.metrics.RecordCacheLookup("miss")
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		logging.Op().Warn("discarding undecodable product cache entry", "key", s.key, "error", err)
		s.remove(ctx)
		s.metrics.RecordCacheLookup("miss")
		return nil, false
	}

	if s.now().Sub(entry.FetchedAt()) >= s.ttl {
		s.remove(ctx)
		s.metrics.RecordCacheLookup("expired")
		return nil, false
	}

	s.metrics.RecordCacheLookup("hit")
	return &entry, true
}

// Put stores products with the current timestamp, replacing any entry.
func (s *Store) Put(ctx context.Context, products []domain.Product) error {
	if products == nil {
		products = []domain.Product{}
	}
	data, err := json.Marshal(&Entry{
		Products:  products,
		Timestamp: s.now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	// The backend TTL only reclaims space; validity is decided by Timestamp.
	return s.backend.Set(ctx, s.key, data, s.ttl)
}

// Invalidate drops the slot here and, when a publisher is configured, on
// every other instance.
func (s *Store) Invalidate(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.key); err != nil {
		return err
	}
	s.metrics.RecordCacheInvalidation()
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, s.key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) remove(ctx context.Context) {
	if err := s.backend.Delete(ctx, s.key); err != nil {
		logging.Op().Warn("product cache delete failed", "key", s.key, "error", err)
	}
}
