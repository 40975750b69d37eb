package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Product is a single catalog item as served by the remote catalog API.
// Products are immutable once fetched.
type Product struct {
	ID          int             `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Description string          `json:"description,omitempty"`
	Rating      *Rating         `json:"rating,omitempty"`
}

// Rating is the upstream review summary. It is carried but not rendered.
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// CurrencyPrefix is the display prefix for every price.
const CurrencyPrefix = "US$"

// DisplayPrice formats the price the way the product card shows it,
// e.g. "US$ 19.99". The shortest decimal form is used, so 20 renders as "US$ 20".
func (p Product) DisplayPrice() string {
	return CurrencyPrefix + " " + p.Price.String()
}

// ImageAlt is the alternative text used for the product picture.
func (p Product) ImageAlt() string {
	return "product: " + p.Title
}

// Validate checks the fields the storefront needs to render a card.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("product %d: title is required", p.ID)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("product %d: price must not be negative", p.ID)
	}
	return nil
}
