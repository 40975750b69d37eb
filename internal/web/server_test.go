package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriys/storefront/internal/cache"
	"github.com/oriys/storefront/internal/dom"
	"github.com/oriys/storefront/internal/domain"
	"github.com/oriys/storefront/internal/lazyload"
	"github.com/oriys/storefront/internal/logging"
	"github.com/oriys/storefront/internal/metrics"
	"github.com/oriys/storefront/internal/noticebar"
	"github.com/oriys/storefront/internal/productcache"
	"github.com/oriys/storefront/internal/storefront"
)

type countingFetcher struct {
	calls atomic.Int32
	err   error
	n     int
}

func (f *countingFetcher) Fetch(ctx context.Context) ([]domain.Product, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Product, f.n)
	for i := range out {
		out[i] = domain.Product{
			ID:       i + 1,
			Title:    fmt.Sprintf("Item %d", i+1),
			Category: "misc",
			Price:    decimal.RequireFromString("12.5"),
			Image:    fmt.Sprintf("https://img.example/%d.jpg", i+1),
		}
	}
	return out, nil
}

func newTestHandler(t *testing.T, f *countingFetcher) (*Handler, *productcache.Store) {
	t.Helper()
	backend := cache.NewInMemoryCache(0)
	t.Cleanup(func() { backend.Close() })
	m := metrics.New("storefront_test", nil)
	store := productcache.New(backend, productcache.Options{Metrics: m})

	b, err := storefront.New(storefront.Options{
		Cache:       store,
		Fetcher:     f,
		EagerImages: 3,
		Layout:      lazyload.GridLayout{Columns: 3, CardHeight: 100},
		Notice:      noticebar.Notice{Country: "France", VAT: 20},
		Metrics:     m,
	})
	require.NoError(t, err)

	return &Handler{
		Bootstrap:   b,
		Invalidator: store,
		Cache:       backend,
		Metrics:     m,
		Shell:       NewShellData("Shop", lazyload.GridLayout{Columns: 3, CardHeight: 100}),
		Viewport:    lazyload.Viewport{Top: 0, Height: 0},
	}, store
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestPageRendersProducts(t *testing.T) {
	h, _ := newTestHandler(t, &countingFetcher{n: 9})
	rec := get(t, h.Router(), "/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "remote", rec.Header().Get("X-Page-Source"))
	assert.Equal(t, "displaying", rec.Header().Get("X-Page-State"))

	doc, err := dom.ParseString(rec.Body.String())
	require.NoError(t, err)
	assert.Len(t, dom.QuerySelectorAll(doc.Root(), "#all-products .container > div.product"), 9)
	assert.Len(t, dom.QuerySelectorAll(doc.Root(), "img.lazy-image"), 6)
	assert.Contains(t, rec.Body.String(), "Orders to <b>France</b>")
	assert.Contains(t, rec.Body.String(), "US$ 12.5")

	// Images left pending keep their source in data-src; the inline script
	// swaps it in once the browser reports an intersection.
	for _, img := range dom.QuerySelectorAll(doc.Root(), "img.lazy-image") {
		src, ok := dom.Attr(img, "data-src")
		assert.True(t, ok && src != "", "pending image needs data-src")
	}
	scripts := dom.QuerySelectorAll(doc.Root(), "body script")
	require.Len(t, scripts, 1)
	body := dom.TextContent(scripts[0])
	assert.Contains(t, body, "IntersectionObserver")
	assert.Contains(t, body, `getAttribute("data-src")`)
	assert.Contains(t, body, `classList.remove("lazy-image")`)
}

func TestPageGridMatchesLayout(t *testing.T) {
	h, _ := newTestHandler(t, &countingFetcher{n: 1})
	h.Shell = NewShellData("Shop", lazyload.GridLayout{Top: 40, Columns: 4, CardHeight: 300, Gap: 16})
	rec := get(t, h.Router(), "/")

	doc, err := dom.ParseString(rec.Body.String())
	require.NoError(t, err)
	style, _ := dom.Attr(doc.QuerySelector("#all-products"), "style")
	assert.Contains(t, style, "--columns: 4")
	assert.Contains(t, style, "--card-height: 300px")
	assert.Contains(t, style, "--grid-gap: 16px")
}

func TestAssetsServeStylesheet(t *testing.T) {
	h, _ := newTestHandler(t, &countingFetcher{n: 1})
	router := h.Router()

	page := get(t, router, "/")
	doc, err := dom.ParseString(page.Body.String())
	require.NoError(t, err)
	href, ok := dom.Attr(doc.QuerySelector(`link[rel="stylesheet"]`), "href")
	require.True(t, ok)

	rec := get(t, router, href)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
	assert.Contains(t, rec.Body.String(), ".lazy-image")

	assert.Equal(t, http.StatusNotFound, get(t, router, AssetsPrefix+"missing.css").Code)
}

func TestWriteJSONLogsEncodeFailure(t *testing.T) {
	var logs bytes.Buffer
	_, err := logging.Setup(logging.Options{Output: &logs})
	require.NoError(t, err)
	t.Cleanup(func() { logging.Setup(logging.Options{}) })

	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]any{"bad": make(chan int)})

	assert.Contains(t, logs.String(), "write JSON response")
}

func TestPageInitialViewportLoadsImages(t *testing.T) {
	h, _ := newTestHandler(t, &countingFetcher{n: 9})
	rec := get(t, h.Router(), "/?scroll=0&height=150")

	require.Equal(t, http.StatusOK, rec.Code)
	doc, err := dom.ParseString(rec.Body.String())
	require.NoError(t, err)
	// Rows 0 and 1 are visible, so only the third row stays pending.
	assert.Len(t, dom.QuerySelectorAll(doc.Root(), "img.lazy-image"), 3)
}

func TestPageRejectsBadViewport(t *testing.T) {
	h, _ := newTestHandler(t, &countingFetcher{n: 1})
	for _, target := range []string{"/?scroll=abc", "/?height=-1"} {
		rec := get(t, h.Router(), target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestPageShowsFetchError(t *testing.T) {
	h, _ := newTestHandler(t, &countingFetcher{err: errors.New("connection refused")})
	rec := get(t, h.Router(), "/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "error", rec.Header().Get("X-Page-State"))
	assert.Contains(t, rec.Body.String(), "Failed to load products. (error: connection refused)")
}

func TestProductsEndpointUsesCache(t *testing.T) {
	f := &countingFetcher{n: 2}
	h, _ := newTestHandler(t, f)
	router := h.Router()

	var body struct {
		Source   string           `json:"source"`
		Count    int              `json:"count"`
		Products []domain.Product `json:"products"`
	}

	rec := get(t, router, "/api/products")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "remote", body.Source)
	assert.Equal(t, 2, body.Count)

	rec = get(t, router, "/api/products")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "cache", body.Source)
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestProductsEndpointError(t *testing.T) {
	h, _ := newTestHandler(t, &countingFetcher{err: errors.New("boom")})
	rec := get(t, h.Router(), "/api/products")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")
}

func TestInvalidateForcesRefetch(t *testing.T) {
	f := &countingFetcher{n: 1}
	h, store := newTestHandler(t, f)
	router := h.Router()

	get(t, router, "/")
	_, ok := store.Get(context.Background())
	require.True(t, ok)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cache/invalidate", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, ok = store.Get(context.Background())
	assert.False(t, ok)

	rec = get(t, router, "/")
	assert.Equal(t, "remote", rec.Header().Get("X-Page-Source"))
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestHealthAndMetrics(t *testing.T) {
	h, _ := newTestHandler(t, &countingFetcher{n: 1})
	router := h.Router()

	rec := get(t, router, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	get(t, router, "/")
	rec = get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "storefront_test_"))
}

func TestNewDocumentHasMountPoints(t *testing.T) {
	doc, err := NewDocument(NewShellData("A & B", lazyload.GridLayout{Columns: 3}))
	require.NoError(t, err)
	assert.NotNil(t, doc.QuerySelector(noticebar.Selector))
	assert.NotNil(t, doc.QuerySelector(storefront.ProductsSelector))
	assert.Equal(t, "A & B", dom.TextContent(doc.QuerySelector("title")))
}
