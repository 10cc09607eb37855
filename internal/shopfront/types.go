package shopfront

import (
	"github.com/shopmesh/shopmesh-client/pkg/types"
)

// Cart is one shop's authoritative cart snapshot at fetch time. It is never
// cached beyond the view that requested it.
type Cart struct {
	ID          string          `json:"id"`
	CheckoutURL string          `json:"checkout_url"`
	Subtotal    types.Money     `json:"subtotal"`
	Total       types.Money     `json:"total"`
	Lines       []CartLine      `json:"lines"`
}

// CartLine is one row of a remote cart with its merchandise snapshot.
type CartLine struct {
	ID              string                 `json:"id"`
	MerchandiseID   string                 `json:"merchandise_id"`
	ProductTitle    string                 `json:"product_title"`
	Quantity        int                    `json:"quantity"`
	UnitPrice       types.Money            `json:"unit_price"`
	SelectedOptions []types.SelectedOption `json:"selected_options"`
	ImageURL        string                 `json:"image_url"`
}

// ItemCount sums the quantities across all lines.
func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	total := 0
	for _, line := range c.Lines {
		total += line.Quantity
	}
	return total
}

// ProductOption is one option dimension of a product with its value space.
type ProductOption struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// ProductVariant is one concrete purchasable SKU of a product. Within one
// product every variant carries the same option dimension names.
type ProductVariant struct {
	ID               string                 `json:"id"`
	Title            string                 `json:"title"`
	Price            types.Money            `json:"price"`
	ImageURL         string                 `json:"image_url"`
	ImageAlt         string                 `json:"image_alt"`
	AvailableForSale bool                   `json:"available_for_sale"`
	SelectedOptions  []types.SelectedOption `json:"selected_options"`
}

// Image is a product-level image.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// Product is the catalog payload backing a product page.
type Product struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	ProductType string           `json:"product_type"`
	Vendor      string           `json:"vendor"`
	Tags        []string         `json:"tags"`
	Options     []ProductOption  `json:"options"`
	Variants    []ProductVariant `json:"variants"`
	Images      []Image          `json:"images"`
}

// ShopPolicies carries the shop-level policy bodies rendered on the product
// page tabs. Empty body means the shop has not published that policy.
type ShopPolicies struct {
	Privacy  string `json:"privacy"`
	Refund   string `json:"refund"`
	Shipping string `json:"shipping"`
	Terms    string `json:"terms"`
}

// Recommendation is a related-product teaser.
type Recommendation struct {
	ID       string      `json:"id"`
	Handle   string      `json:"handle"`
	Title    string      `json:"title"`
	ImageURL string      `json:"image_url"`
	MinPrice types.Money `json:"min_price"`
	MaxPrice types.Money `json:"max_price"`
}
