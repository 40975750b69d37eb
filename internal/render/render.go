// Package render turns a product list into the storefront's product grid.
package render

import (
	"fmt"
	"strconv"

	"golang.org/x/net/html"

	"github.com/oriys/storefront/internal/dom"
	"github.com/oriys/storefront/internal/domain"
	"github.com/oriys/storefront/internal/lazyload"
	"github.com/oriys/storefront/internal/metrics"
)

const (
	// DefaultEagerImages is how many leading product images load immediately.
	DefaultEagerImages = 3

	imageWidth   = 250
	addToBagText = "Add to bag"

	// LoadingMessage is shown while the catalog is being fetched.
	LoadingMessage = "Loading..."
	// ErrorPrefix starts the message shown when products cannot be loaded.
	ErrorPrefix = "Failed to load products."
)

// Result summarizes one render.
type Result struct {
	Units int
	Eager int
	Lazy  int
}

// Renderer builds product cards. Images at index < eager get their src at
// render time; the rest are registered with the observer.
type Renderer struct {
	eager    int
	observer lazyload.Observer
	metrics  *metrics.Metrics
}

// New creates a renderer. eager < 0 uses DefaultEagerImages.
func New(eager int, observer lazyload.Observer, m *metrics.Metrics) *Renderer {
	if eager < 0 {
		eager = DefaultEagerImages
	}
	return &Renderer{eager: eager, observer: observer, metrics: m}
}

// Render replaces the container's contents with one card per product.
// A nil container is a no-op.
func (r *Renderer) Render(products []domain.Product, container *html.Node) Result {
	if container == nil {
		return Result{}
	}
	r.release(container)
	dom.Clear(container)

	var res Result
	for i, p := range products {
		card, lazy := r.card(i, p)
		container.AppendChild(card)
		res.Units++
		if lazy {
			res.Lazy++
		} else {
			res.Eager++
		}
	}

	r.metrics.RecordRender(res.Units, res.Eager, res.Lazy)
	return res
}

// card builds:
//
//	div.product
//	  div.product-picture > img
//	  div.product-info > h5.categories, h4.title, h3.price > span, button
func (r *Renderer) card(i int, p domain.Product) (*html.Node, bool) {
	card := dom.NewElement("div", "product")

	picture := dom.NewElement("div", "product-picture")
	img := dom.NewElement("img")
	dom.SetAttr(img, lazyload.SourceAttr, p.Image)
	dom.AddClass(img, lazyload.PendingClass)
	dom.SetAttr(img, "alt", p.ImageAlt())
	dom.SetAttr(img, "width", strconv.Itoa(imageWidth))
	picture.AppendChild(img)

	lazy := i >= r.eager
	if !lazy {
		dom.SetAttr(img, "src", p.Image)
		dom.RemoveClass(img, lazyload.PendingClass)
	} else if r.observer != nil {
		r.observer.Observe(img)
	}

	info := dom.NewElement("div", "product-info")

	category := dom.NewElement("h5", "categories")
	dom.SetText(category, p.Category)

	title := dom.NewElement("h4", "title")
	dom.SetText(title, p.Title)

	price := dom.NewElement("h3", "price")
	priceSpan := dom.NewElement("span")
	dom.SetText(priceSpan, p.DisplayPrice())
	price.AppendChild(priceSpan)

	button := dom.NewElement("button")
	dom.SetText(button, addToBagText)

	dom.Append(info, category, title, price, button)
	dom.Append(card, picture, info)
	return card, lazy
}

// release stops observing images of the render being replaced.
func (r *Renderer) release(container *html.Node) {
	if r.observer == nil {
		return
	}
	for _, img := range dom.QuerySelectorAll(container, "img."+lazyload.PendingClass) {
		r.observer.Unobserve(img)
	}
}

// ShowLoading replaces the container's contents with the loading indicator.
func ShowLoading(container *html.Node) {
	if container == nil {
		return
	}
	p := dom.NewElement("p", "loading-message")
	dom.SetText(p, LoadingMessage)
	dom.Clear(container)
	container.AppendChild(p)
}

// ShowError replaces the container's contents with the error indicator.
func ShowError(container *html.Node, message string) {
	if container == nil {
		return
	}
	p := dom.NewElement("p", "error-message")
	dom.SetText(p, fmt.Sprintf("%s (error: %s)", ErrorPrefix, message))
	dom.Clear(container)
	container.AppendChild(p)
}
