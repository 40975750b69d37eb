package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordCacheLookup("hit")
	m.RecordFetch(time.Second, "timeout")
	m.RecordRender(1, 1, 0)
	m.RecordLazyImageLoaded()
	m.RecordDroppedProducts(2)
	m.RecordPageLoad("cache", "displaying", time.Millisecond)
	m.IncInFlight()
	m.DecInFlight()
	if m.Registry() != nil {
		t.Fatal("nil metrics should have no registry")
	}
}

func TestMetrics_Counters(t *testing.T) {
	m := New("storefront", nil)

	m.RecordCacheLookup("hit")
	m.RecordCacheLookup("hit")
	m.RecordCacheLookup("expired")
	m.RecordFetch(120*time.Millisecond, "")
	m.RecordFetch(5*time.Second, "timeout")
	m.RecordRender(5, 3, 2)
	m.RecordLazyImageLoaded()
	m.RecordDroppedProducts(2)
	m.RecordDroppedProducts(0)

	if got := testutil.ToFloat64(m.dropped); got != 2 {
		t.Fatalf("expected 2 dropped products, got %v", got)
	}

	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")); got != 2 {
		t.Fatalf("expected 2 cache hits, got %v", got)
	}
	if got := testutil.ToFloat64(m.fetchErrors.WithLabelValues("timeout")); got != 1 {
		t.Fatalf("expected 1 timeout, got %v", got)
	}
	if got := testutil.ToFloat64(m.productsRendered); got != 5 {
		t.Fatalf("expected 5 products rendered, got %v", got)
	}
	if got := testutil.ToFloat64(m.imagesByPolicy.WithLabelValues("lazy")); got != 2 {
		t.Fatalf("expected 2 lazy images, got %v", got)
	}
	if got := testutil.ToFloat64(m.lazyImagesLoaded); got != 1 {
		t.Fatalf("expected 1 lazy load, got %v", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New("storefront", nil)
	m.RecordPageLoad("remote", "displaying", 30*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "storefront_page_loads_total") {
		t.Fatalf("expected page load metric in output")
	}
}
