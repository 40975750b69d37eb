// Package web serves the storefront page and its small JSON API.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oriys/storefront/internal/lazyload"
	"github.com/oriys/storefront/internal/logging"
	"github.com/oriys/storefront/internal/metrics"
	"github.com/oriys/storefront/internal/observability"
	"github.com/oriys/storefront/internal/storefront"
)

// Invalidator drops the cached product list.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the storefront routes.
type Handler struct {
	Bootstrap   *storefront.Bootstrap
	Invalidator Invalidator
	Cache       Pinger // optional
	Metrics     *metrics.Metrics
	Shell       ShellData
	Viewport    lazyload.Viewport // initial viewport when the request names none
}

// Router builds the chi router with middleware.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/", h.Page)
	r.Handle(AssetsPrefix+"*", assetsHandler())
	r.Get("/health", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.Products)
		r.Post("/cache/invalidate", h.InvalidateCache)
	})
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}

	return observability.HTTPMiddleware(r)
}

// NewServer wraps handler in an http.Server with the daemon's timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Page handles GET / by running a page load into a fresh document.
// Optional query parameters scroll and height set the initial viewport.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	viewport, err := h.viewport(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := NewDocument(h.Shell)
	if err != nil {
		logging.Op().Error("build page shell", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	page := h.Bootstrap.Load(r.Context(), doc)
	if page.State() == storefront.StateDisplaying {
		page.Scroll(viewport)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Page-Source", page.Source)
	w.Header().Set("X-Page-State", page.State().String())
	if err := doc.Render(w); err != nil {
		logging.Op().Warn("write page", "page", page.ID, "error", err)
	}
}

func (h *Handler) viewport(r *http.Request) (lazyload.Viewport, error) {
	v := h.Viewport
	q := r.URL.Query()
	if s := q.Get("scroll"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return v, errBadQuery("scroll")
		}
		v.Top = n
	}
	if s := q.Get("height"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return v, errBadQuery("height")
		}
		v.Height = n
	}
	return v, nil
}

type errBadQuery string

func (e errBadQuery) Error() string {
	return "invalid " + string(e) + " parameter"
}

type productsResponse struct {
	Source   string `json:"source"`
	Count    int    `json:"count"`
	Products any    `json:"products"`
}

// Products handles GET /api/products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	products, source, err := h.Bootstrap.Products(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": storefront.UserMessage(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, productsResponse{
		Source:   source,
		Count:    len(products),
		Products: products,
	})
}

// InvalidateCache handles POST /api/cache/invalidate.
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if h.Invalidator == nil {
		http.Error(w, "cache invalidation not configured", http.StatusNotImplemented)
		return
	}
	if err := h.Invalidator.Invalidate(r.Context()); err != nil {
		logging.Op().Error("invalidate product cache", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := map[string]string{}
	if h.Cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Cache.Ping(ctx); err != nil {
			status = "degraded"
			checks["cache"] = err.Error()
		} else {
			checks["cache"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"checks": checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Op().Warn("write JSON response", "status", status, "error", err)
	}
}
