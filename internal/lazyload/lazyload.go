// Package lazyload defers loading of product images until they approach
// the viewport.
//
// An observed image carries its real source in data-src and the
// lazy-image class. Intersection events arrive as batches of Entry
// messages and are consumed by a single handler, Deliver, which moves
// data-src into src, drops the lazy-image class and stops observing the
// image. An image transitions at most once; repeated events for it are
// ignored.
package lazyload

import (
	"context"
	"sync"

	"golang.org/x/net/html"

	"github.com/oriys/storefront/internal/dom"
	"github.com/oriys/storefront/internal/metrics"
)

const (
	// PendingClass marks an image whose real source is not loaded yet.
	PendingClass = "lazy-image"
	// SourceAttr holds the real source of a pending image.
	SourceAttr = "data-src"
)

// Observer is the capability set the renderer registers images with.
type Observer interface {
	Observe(img *html.Node)
	Unobserve(img *html.Node)
}

// State is the load state of a product image.
type State int

const (
	StateEager   State = iota // src set at render time
	StatePending              // observed, waiting for intersection
	StateLoaded               // loaded after intersecting the viewport
	StateUnknown              // not a product image this loader rendered or tracked
)

func (s State) String() string {
	switch s {
	case StateEager:
		return "eager"
	case StatePending:
		return "lazy_pending"
	case StateLoaded:
		return "lazy_loaded"
	case StateUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// Entry is one intersection message.
type Entry struct {
	Target         *html.Node
	IsIntersecting bool
}

// Loader tracks observed images and applies intersection batches.
// It is safe for concurrent use, so batches may come from another goroutine
// via Run.
type Loader struct {
	mu       sync.Mutex
	layout   Layout
	order    []*html.Node
	observed map[*html.Node]struct{}
	loaded   map[*html.Node]struct{}
	metrics  *metrics.Metrics
}

// New creates a loader. layout is used by Scroll to compute intersections
// and may be nil when batches are only delivered from outside.
func New(layout Layout, m *metrics.Metrics) *Loader {
	return &Loader{
		layout:   layout,
		observed: make(map[*html.Node]struct{}),
		loaded:   make(map[*html.Node]struct{}),
		metrics:  m,
	}
}

// Observe registers img for intersection tracking. Already loaded images
// are not observed again.
func (l *Loader) Observe(img *html.Node) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, done := l.loaded[img]; done {
		return
	}
	if _, ok := l.observed[img]; ok {
		return
	}
	l.observed[img] = struct{}{}
	l.order = append(l.order, img)
}

// Unobserve stops tracking img.
func (l *Loader) Unobserve(img *html.Node) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unobserveLocked(img)
}

func (l *Loader) unobserveLocked(img *html.Node) {
	if _, ok := l.observed[img]; !ok {
		return
	}
	delete(l.observed, img)
	for i, n := range l.order {
		if n == img {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// Deliver handles one batch of intersection entries and returns the images
// that transitioned to loaded.
func (l *Loader) Deliver(entries []Entry) []*html.Node {
	l.mu.Lock()
	defer l.mu.Unlock()

	var loaded []*html.Node
	for _, e := range entries {
		if !e.IsIntersecting || e.Target == nil {
			continue
		}
		if _, ok := l.observed[e.Target]; !ok {
			continue
		}
		load(e.Target)
		l.loaded[e.Target] = struct{}{}
		l.unobserveLocked(e.Target)
		l.metrics.RecordLazyImageLoaded()
		loaded = append(loaded, e.Target)
	}
	return loaded
}

// Scroll computes the batch for viewport from the layout and delivers it.
func (l *Loader) Scroll(v Viewport) []*html.Node {
	if l.layout == nil {
		return nil
	}
	l.mu.Lock()
	entries := make([]Entry, 0, len(l.order))
	for _, img := range l.order {
		box, ok := l.layout.BoxOf(img)
		entries = append(entries, Entry{Target: img, IsIntersecting: ok && box.Intersects(v)})
	}
	l.mu.Unlock()
	return l.Deliver(entries)
}

// Run consumes batches from events until ctx ends or events is closed.
func (l *Loader) Run(ctx context.Context, events <-chan []Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-events:
			if !ok {
				return
			}
			l.Deliver(batch)
		}
	}
}

// State reports the load state of img. Images the loader never tracked
// are eager when they already carry a src and no pending marker; any other
// untracked node is StateUnknown.
func (l *Loader) State(img *html.Node) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.loaded[img]; ok {
		return StateLoaded
	}
	if _, ok := l.observed[img]; ok {
		return StatePending
	}
	if isEager(img) {
		return StateEager
	}
	return StateUnknown
}

func isEager(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || n.Data != "img" {
		return false
	}
	src, ok := dom.Attr(n, "src")
	return ok && src != "" && !dom.HasClass(n, PendingClass)
}

// Pending returns the number of images still observed.
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.observed)
}

// Loaded returns the number of images loaded through intersection.
func (l *Loader) Loaded() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.loaded)
}

func load(img *html.Node) {
	if src, ok := dom.Attr(img, SourceAttr); ok {
		dom.SetAttr(img, "src", src)
	}
	dom.RemoveClass(img, PendingClass)
}
