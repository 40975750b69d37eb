package catalog

import (
	"context"
	"fmt"

	"github.com/oriys/storefront/internal/domain"
	"golang.org/x/sync/singleflight"
)

// SharedFetcher coalesces concurrent fetches into one upstream request.
// Page loads that miss the cache at the same moment wait for the same
// response instead of each hitting the catalog.
type SharedFetcher struct {
	next  Fetcher
	group singleflight.Group
}

// NewSharedFetcher wraps next.
func NewSharedFetcher(next Fetcher) *SharedFetcher {
	return &SharedFetcher{next: next}
}

// Fetch joins an in-flight fetch or starts a new one. The upstream request
// runs with the context of the caller that started it; a caller whose own
// context ends stops waiting without cancelling the shared request.
func (s *SharedFetcher) Fetch(ctx context.Context) ([]domain.Product, error) {
	ch := s.group.DoChan("catalog", func() (any, error) {
		return s.next.Fetch(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", errCanceled, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		products := res.Val.([]domain.Product)
		// Callers share the slice header only; products are immutable.
		return products[:len(products):len(products)], nil
	}
}
