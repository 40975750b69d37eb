// Package storefront runs the page-load cycle: check the product cache,
// fetch the catalog on a miss, render the grid and fill the notice bar.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"

	"github.com/oriys/storefront/internal/catalog"
	"github.com/oriys/storefront/internal/dom"
	"github.com/oriys/storefront/internal/domain"
	"github.com/oriys/storefront/internal/lazyload"
	"github.com/oriys/storefront/internal/logging"
	"github.com/oriys/storefront/internal/metrics"
	"github.com/oriys/storefront/internal/noticebar"
	"github.com/oriys/storefront/internal/observability"
	"github.com/oriys/storefront/internal/productcache"
	"github.com/oriys/storefront/internal/render"
)

// ProductsSelector locates the product grid mount point.
const ProductsSelector = "#all-products .container"

// TimeoutMessage is shown when the catalog does not answer in time.
const TimeoutMessage = "request timed out"

const (
	SourceCache  = "cache"
	SourceRemote = "remote"
)

// ProductCache is the cache the bootstrap reads before and writes after
// each fetch.
type ProductCache interface {
	Get(ctx context.Context) (*productcache.Entry, bool)
	Put(ctx context.Context, products []domain.Product) error
}

// Options configures a Bootstrap.
type Options struct {
	Cache       ProductCache
	Fetcher     catalog.Fetcher
	EagerImages int // < 0 uses render.DefaultEagerImages
	Layout      lazyload.Layout
	Notice      noticebar.Notice
	Metrics     *metrics.Metrics
	PageLog     *logging.PageLogger
}

// Bootstrap owns the long-lived collaborators and runs page loads.
type Bootstrap struct {
	cache   ProductCache
	fetcher catalog.Fetcher
	eager   int
	layout  lazyload.Layout
	notice  noticebar.Notice
	metrics *metrics.Metrics
	pageLog *logging.PageLogger
}

// New creates a Bootstrap.
func New(opts Options) (*Bootstrap, error) {
	if opts.Cache == nil {
		return nil, fmt.Errorf("product cache is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("catalog fetcher is required")
	}
	return &Bootstrap{
		cache:   opts.Cache,
		fetcher: opts.Fetcher,
		eager:   opts.EagerImages,
		layout:  opts.Layout,
		notice:  opts.Notice,
		metrics: opts.Metrics,
		pageLog: opts.PageLog,
	}, nil
}

// Page is the outcome of one page-load cycle.
type Page struct {
	ID       string
	Doc      *dom.Document
	Loader   *lazyload.Loader
	Source   string
	Products []domain.Product
	Rendered render.Result
	Err      error
	Message  string

	state   State
	history []State
}

// State returns the current state.
func (p *Page) State() State {
	return p.state
}

// History returns every state the cycle passed through, starting at Idle.
func (p *Page) History() []State {
	return append([]State(nil), p.history...)
}

// Scroll moves the viewport and loads the images it reveals.
func (p *Page) Scroll(v lazyload.Viewport) int {
	return len(p.Loader.Scroll(v))
}

func (p *Page) transition(to State) {
	if !canTransition(p.state, to) {
		logging.Op().Error("invalid page state transition", "page", p.ID, "from", p.state, "to", to)
		return
	}
	p.state = to
	p.history = append(p.history, to)
}

// Load runs one page-load cycle against doc. Fetch failures end in
// StateError with a user-facing message; they are not returned.
func (b *Bootstrap) Load(ctx context.Context, doc *dom.Document) *Page {
	page := &Page{
		ID:      uuid.NewString(),
		Doc:     doc,
		Loader:  lazyload.New(b.layout, b.metrics),
		state:   StateIdle,
		history: []State{StateIdle},
	}

	ctx, span := observability.StartSpan(ctx, "storefront.page_load",
		observability.AttrRequestID.String(page.ID),
	)
	defer span.End()

	b.metrics.IncInFlight()
	defer b.metrics.DecInFlight()
	start := time.Now()

	if _, err := noticebar.Render(doc, b.notice); err != nil {
		logging.Op().Warn("notice bar render failed", "page", page.ID, "error", err)
	}

	var container *html.Node
	if doc != nil {
		container = doc.QuerySelector(ProductsSelector)
	}
	renderer := render.New(b.eager, page.Loader, b.metrics)

	page.transition(StateCheckingCache)
	if entry, ok := b.cache.Get(ctx); ok {
		page.Source = SourceCache
		page.Products = entry.Products
		page.Rendered = renderer.Render(entry.Products, container)
		page.transition(StateDisplaying)
		b.finish(ctx, span, page, start)
		return page
	}

	page.transition(StateLoading)
	page.Source = SourceRemote
	render.ShowLoading(container)

	products, err := b.fetcher.Fetch(ctx)
	if err != nil {
		page.Err = err
		page.Message = UserMessage(err)
		render.ShowError(container, page.Message)
		page.transition(StateError)
		observability.SetSpanError(span, err)
		b.finish(ctx, span, page, start)
		return page
	}

	if err := b.cache.Put(ctx, products); err != nil {
		logging.Op().Warn("product cache write failed", "page", page.ID, "error", err)
	}
	page.Products = products
	page.Rendered = renderer.Render(products, container)
	page.transition(StateDisplaying)
	b.finish(ctx, span, page, start)
	return page
}

// Products returns the product list the page would display, reading the
// cache first and filling it on a miss.
func (b *Bootstrap) Products(ctx context.Context) ([]domain.Product, string, error) {
	if entry, ok := b.cache.Get(ctx); ok {
		return entry.Products, SourceCache, nil
	}
	products, err := b.fetcher.Fetch(ctx)
	if err != nil {
		return nil, SourceRemote, err
	}
	if err := b.cache.Put(ctx, products); err != nil {
		logging.Op().Warn("product cache write failed", "error", err)
	}
	return products, SourceRemote, nil
}

func (b *Bootstrap) finish(ctx context.Context, span trace.Span, page *Page, start time.Time) {
	elapsed := time.Since(start)
	b.metrics.RecordPageLoad(page.Source, page.state.String(), elapsed)

	span.SetAttributes(
		observability.AttrPageState.String(page.state.String()),
		observability.AttrCacheResult.String(page.Source),
		observability.AttrProductCount.Int(len(page.Products)),
	)

	entry := &logging.PageLog{
		RequestID:  page.ID,
		TraceID:    observability.GetTraceID(ctx),
		Source:     page.Source,
		State:      page.state.String(),
		Products:   page.Rendered.Units,
		LazyImages: page.Rendered.Lazy,
		DurationMs: elapsed.Milliseconds(),
	}
	if page.Err != nil {
		entry.Error = page.Message
	}
	b.pageLog.Log(entry)
}

// UserMessage is the text shown in the error indicator for err. Timeouts
// get their own wording; other failures show the error itself.
func UserMessage(err error) string {
	if errors.Is(err, catalog.ErrTimeout) {
		return TimeoutMessage
	}
	return err.Error()
}
