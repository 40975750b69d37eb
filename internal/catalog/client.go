// Package catalog fetches the product list from the remote catalog API.
//
// A fetch is a race between the HTTP request and a timer. Whichever
// resolves first settles the fetch through an atomic check-and-set; the
// loser finds the fetch already settled and its result is dropped. A
// timeout cancels the in-flight request.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oriys/storefront/internal/domain"
	"github.com/oriys/storefront/internal/logging"
	"github.com/oriys/storefront/internal/metrics"
	"github.com/oriys/storefront/internal/observability"
)

const (
	// DefaultEndpoint is the public fake store catalog.
	DefaultEndpoint = "https://fakestoreapi.com/products"
	// DefaultTimeout bounds the wait for a catalog response.
	DefaultTimeout = 5 * time.Second

	maxBodyBytes = 10 << 20 // 10MB
)

// Fetcher produces the current product list.
type Fetcher interface {
	Fetch(ctx context.Context) ([]domain.Product, error)
}

// Config configures a Client.
type Config struct {
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

// Client is the remote catalog client. It never touches the cache.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	metrics    *metrics.Metrics

	lateResults atomic.Int64
}

type fetchResult struct {
	products []domain.Product
	err      error
}

// New creates a catalog client.
func New(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("catalog endpoint must be an http(s) URL: %q", cfg.Endpoint)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		endpoint:   endpoint,
		timeout:    cfg.Timeout,
		httpClient: httpClient,
		metrics:    cfg.Metrics,
	}, nil
}

// Endpoint returns the catalog URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// LateResults reports how many request outcomes arrived after their fetch
// had already been settled by the timer and were discarded.
func (c *Client) LateResults() int64 {
	return c.lateResults.Load()
}

// Fetch issues one GET to the catalog and returns the decoded products.
func (c *Client) Fetch(ctx context.Context) ([]domain.Product, error) {
	ctx, span := observability.StartClientSpan(ctx, "catalog.fetch",
		observability.AttrEndpoint.String(c.endpoint),
	)
	defer span.End()

	start := time.Now()
	products, err := c.race(ctx)
	c.metrics.RecordFetch(time.Since(start), Kind(err))

	if err != nil {
		span.SetAttributes(observability.AttrErrorKind.String(Kind(err)))
		observability.SetSpanError(span, err)
		logging.OpWithTrace(observability.GetTraceID(ctx), observability.GetSpanID(ctx)).
			Warn("catalog fetch failed", "endpoint", c.endpoint, "kind", Kind(err), "error", err)
		return nil, err
	}

	span.SetAttributes(observability.AttrProductCount.Int(len(products)))
	observability.SetSpanOK(span)
	logging.Op().Debug("catalog fetched", "endpoint", c.endpoint, "products", len(products), "duration", time.Since(start))
	return products, nil
}

func (c *Client) race(ctx context.Context) ([]domain.Product, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var settled atomic.Bool
	results := make(chan fetchResult, 1)
	timedOut := make(chan struct{})

	go func() {
		products, err := c.do(reqCtx)
		if !settled.CompareAndSwap(false, true) {
			c.lateResults.Add(1)
			logging.Op().Debug("discarding catalog result after timeout", "endpoint", c.endpoint)
			return
		}
		results <- fetchResult{products: products, err: err}
	}()

	timer := time.AfterFunc(c.timeout, func() {
		if settled.CompareAndSwap(false, true) {
			cancel()
			close(timedOut)
		}
	})
	defer timer.Stop()

	select {
	case r := <-results:
		return r.products, r.err
	case <-timedOut:
		return nil, ErrTimeout
	case <-ctx.Done():
		if settled.CompareAndSwap(false, true) {
			return nil, fmt.Errorf("%w: %v", errCanceled, ctx.Err())
		}
		// The request or the timer settled first; take its outcome.
		select {
		case r := <-results:
			return r.products, r.err
		case <-timedOut:
			return nil, ErrTimeout
		}
	}
}

func (c *Client) do(ctx context.Context) ([]domain.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode}
	}

	products, dropped, err := decodeProducts(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		c.metrics.RecordDroppedProducts(len(dropped))
		for _, err := range dropped {
			logging.Op().Warn("skipping catalog record", "endpoint", c.endpoint, "error", err)
		}
	}
	return products, nil
}

// decodeProducts rejects bodies that are not a JSON array of products.
// Records that decode but cannot be rendered are skipped and reported in
// dropped; they do not fail the fetch.
func decodeProducts(r io.Reader) (products []domain.Product, dropped []error, err error) {
	var all []domain.Product
	if err := json.NewDecoder(r).Decode(&all); err != nil {
		return nil, nil, &ParseError{Err: err}
	}
	if all == nil {
		return nil, nil, &ParseError{Err: fmt.Errorf("expected a JSON array of products")}
	}
	products = all[:0]
	for _, p := range all {
		if err := p.Validate(); err != nil {
			dropped = append(dropped, err)
			continue
		}
		products = append(products, p)
	}
	return products, dropped, nil
}
