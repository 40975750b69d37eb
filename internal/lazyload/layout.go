package lazyload

import (
	"golang.org/x/net/html"

	"github.com/oriys/storefront/internal/dom"
)

// Box is the vertical extent of an element in page coordinates.
type Box struct {
	Top    int
	Height int
}

// Viewport is the visible scroll region.
type Viewport struct {
	Top    int
	Height int
}

// Intersects reports whether the box overlaps the viewport.
func (b Box) Intersects(v Viewport) bool {
	if b.Height <= 0 || v.Height <= 0 {
		return false
	}
	return b.Top < v.Top+v.Height && v.Top < b.Top+b.Height
}

// Layout places images on the page.
type Layout interface {
	BoxOf(img *html.Node) (Box, bool)
}

// GridLayout places product cards in a fixed-column grid: the card's
// position among its sibling cards decides its row.
type GridLayout struct {
	Top        int // page offset of the first row
	Columns    int
	CardHeight int
	Gap        int
	CardClass  string // default "product"
}

// BoxOf returns the box of the card containing img.
func (g GridLayout) BoxOf(img *html.Node) (Box, bool) {
	class := g.CardClass
	if class == "" {
		class = "product"
	}
	card := dom.Closest(img, class)
	if card == nil {
		return Box{}, false
	}
	index := 0
	for s := card.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && dom.HasClass(s, class) {
			index++
		}
	}
	columns := g.Columns
	if columns <= 0 {
		columns = 1
	}
	row := index / columns
	return Box{
		Top:    g.Top + row*(g.CardHeight+g.Gap),
		Height: g.CardHeight,
	}, true
}
