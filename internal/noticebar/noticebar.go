// Package noticebar fills the country/VAT notice at the top of the page.
package noticebar

import (
	"fmt"
	"html"

	"github.com/oriys/storefront/internal/dom"
)

const (
	// Selector locates the notice bar mount point.
	Selector = "section.country-bar"
	// VisibleClass reveals the bar with its CSS transition.
	VisibleClass = "visible-with-css-delay"
)

// Notice is the bar content.
type Notice struct {
	Country string
	VAT     int
}

// Render writes the notice into the page. It reports whether the mount
// point was found; a missing bar is not an error.
func Render(doc *dom.Document, n Notice) (bool, error) {
	if doc == nil {
		return false, nil
	}
	bar := doc.QuerySelector(Selector)
	if bar == nil {
		return false, nil
	}
	fragment := fmt.Sprintf("<p>Orders to <b>%s</b> are subject to <b>%d%%</b> VAT</p>",
		html.EscapeString(n.Country), n.VAT)
	if err := dom.SetInnerHTML(bar, fragment); err != nil {
		return false, err
	}
	dom.AddClass(bar, VisibleClass)
	return true, nil
}
