package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oriys/storefront/internal/domain"
	"github.com/oriys/storefront/internal/metrics"
)

func newTestClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	c, err := New(Config{Endpoint: url, Timeout: timeout})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"title":"Shirt","price":19.99,"category":"men","image":"a.jpg"},
			{"id":2,"title":"Ring","price":9.5,"category":"jewelery","image":"b.jpg"}]`))
	}))
	defer srv.Close()

	products, err := newTestClient(t, srv.URL, time.Second).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	if products[0].Title != "Shirt" || products[0].DisplayPrice() != "US$ 19.99" {
		t.Fatalf("unexpected first product: %+v", products[0])
	}
	if products[1].ID != 2 || products[1].Category != "jewelery" {
		t.Fatalf("unexpected second product: %+v", products[1])
	}
}

func TestFetchEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	products, err := newTestClient(t, srv.URL, time.Second).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("expected no products, got %d", len(products))
	}
}

func TestFetchHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, time.Second).Fetch(context.Background())

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", statusErr.StatusCode)
	}
	if err.Error() != "HTTP error! status: 500" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if Kind(err) != KindHTTPStatus {
		t.Fatalf("unexpected kind %q", Kind(err))
	}
}

func TestFetchParseError(t *testing.T) {
	bodies := map[string]string{
		"not json":      `<html>oops</html>`,
		"object":        `{"products":[]}`,
		"null":          `null`,
		"bad price":     `[{"id":1,"title":"x","price":"abc"}]`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL, time.Second).Fetch(context.Background())
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
		})
	}
}

func TestFetchSkipsUnrenderableRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"title":"Shirt","price":19.99,"category":"men","image":"a.jpg"},
			{"id":2,"title":"","price":5,"category":"men","image":"b.jpg"},
			{"id":3,"title":"Ring","price":-1,"category":"jewelery","image":"c.jpg"},
			{"id":4,"title":"Drive","price":64,"category":"electronics","image":"d.jpg"}]`))
	}))
	defer srv.Close()

	m := metrics.New("catalog_test", nil)
	c, err := New(Config{Endpoint: srv.URL, Timeout: time.Second, Metrics: m})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	products, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(products) != 2 || products[0].ID != 1 || products[1].ID != 4 {
		t.Fatalf("expected products 1 and 4, got %+v", products)
	}
	body := scrape(t, m)
	if !strings.Contains(body, "catalog_test_catalog_products_dropped_total 2") {
		t.Fatalf("expected 2 dropped records in metrics:\n%s", body)
	}
}

func TestFetchAllRecordsUnrenderable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"price":1}]`))
	}))
	defer srv.Close()

	products, err := newTestClient(t, srv.URL, time.Second).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("expected no products, got %d", len(products))
	}
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestFetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url, time.Second).Fetch(context.Background())
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if Kind(err) != KindNetwork {
		t.Fatalf("unexpected kind %q", Kind(err))
	}
}

func TestFetchTimeoutDiscardsLateResponse(t *testing.T) {
	release := make(chan struct{})
	served := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(served)
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.Write([]byte(`[{"id":1,"title":"Late","price":1}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 50*time.Millisecond)

	start := time.Now()
	products, err := c.Fetch(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if products != nil {
		t.Fatalf("expected no products on timeout, got %v", products)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
	if Kind(err) != KindTimeout {
		t.Fatalf("unexpected kind %q", Kind(err))
	}

	close(release)
	<-served

	deadline := time.Now().Add(2 * time.Second)
	for c.LateResults() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.LateResults() != 1 {
		t.Fatalf("expected the late outcome to be discarded once, got %d", c.LateResults())
	}
}

func TestFetchResponseBeforeTimeoutDoesNotTimeOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"title":"Fast","price":1}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 200*time.Millisecond)
	if _, err := c.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	// Wait past the timeout; the settled fetch must not be touched again.
	time.Sleep(300 * time.Millisecond)
	if c.LateResults() != 0 {
		t.Fatalf("expected no late results, got %d", c.LateResults())
	}
}

func TestFetchCallerCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := newTestClient(t, srv.URL, 5*time.Second).Fetch(ctx)
	if Kind(err) != KindCanceled {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestNewRejectsBadEndpoint(t *testing.T) {
	if _, err := New(Config{Endpoint: "ftp://example.com"}); err == nil {
		t.Fatal("expected error for non-http endpoint")
	}
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New with defaults: %v", err)
	}
	if c.Endpoint() != DefaultEndpoint {
		t.Fatalf("expected default endpoint, got %q", c.Endpoint())
	}
}

type countingFetcher struct {
	calls   atomic.Int64
	release chan struct{}
}

func (f *countingFetcher) Fetch(ctx context.Context) ([]domain.Product, error) {
	f.calls.Add(1)
	<-f.release
	return []domain.Product{{ID: 1, Title: "Shirt"}}, nil
}

func TestSharedFetcherCoalesces(t *testing.T) {
	next := &countingFetcher{release: make(chan struct{})}
	shared := NewSharedFetcher(next)

	const callers = 10
	var wg sync.WaitGroup
	var started sync.WaitGroup
	started.Add(callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			products, err := shared.Fetch(context.Background())
			if err == nil && len(products) != 1 {
				err = errors.New("unexpected product count")
			}
			errs <- err
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(next.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("shared fetch failed: %v", err)
		}
	}
	if n := next.calls.Load(); n < 1 || n > 2 {
		t.Fatalf("expected fetches to be coalesced, got %d upstream calls", n)
	}
}
