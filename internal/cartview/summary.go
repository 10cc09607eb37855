package cartview

import (
	"fmt"
	"time"

	"github.com/shopmesh/shopmesh-client/internal/directory"
	"github.com/shopmesh/shopmesh-client/internal/shopfront"
	"github.com/shopmesh/shopmesh-client/pkg/types"
)

// ShopStatus is the terminal render state of one shop on the cart page.
type ShopStatus string

const (
	// StatusActive means the shop returned a live cart.
	StatusActive ShopStatus = "active"
	// StatusCheckedOut means the recorded cart no longer resolves,
	// normally because its checkout completed. The entry stays recorded;
	// the shop renders as done and contributes nothing to totals.
	StatusCheckedOut ShopStatus = "checked_out"
	// StatusUnavailable means the shop backend could not be reached. The
	// rest of the page renders normally around it.
	StatusUnavailable ShopStatus = "unavailable"
)

// ShopGroup is one shop's section of the aggregate cart page.
type ShopGroup struct {
	ShopDomain string          `json:"shop_domain"`
	ShopName   string          `json:"shop_name"`
	CartID     string          `json:"cart_id"`
	Status     ShopStatus      `json:"status"`
	Cart       *shopfront.Cart `json:"cart,omitempty"`
	Subtotal   types.Money     `json:"subtotal"`
	Items      []string        `json:"items"`
}

// Summary is the aggregate cart across every shop the shopper has carted
// with, in the order the carts were first created.
type Summary struct {
	Groups []ShopGroup `json:"groups"`
	// GrandTotal sums the per-shop subtotals as plain decimals. No
	// currency conversion happens; with mixed-currency shops the figure is
	// labeled with the first shop's currency and is not meaningful.
	GrandTotal types.Money `json:"grand_total"`
	ItemCount  int         `json:"item_count"`
	LoadedAt   time.Time   `json:"loaded_at"`
}

// clone copies the summary with its own groups slice, so an edit never
// mutates a snapshot a concurrent reader may still be serializing.
func (s *Summary) clone() *Summary {
	out := *s
	out.Groups = append([]ShopGroup(nil), s.Groups...)
	return &out
}

// AllSettled reports whether every shop reached a definite state, i.e. no
// shop was unavailable. Only then is the item count authoritative.
func (s *Summary) AllSettled() bool {
	for _, group := range s.Groups {
		if group.Status == StatusUnavailable {
			return false
		}
	}
	return true
}

func buildGroup(record recordView, shop *directory.Shop, cart *shopfront.Cart, status ShopStatus) ShopGroup {
	group := ShopGroup{
		ShopDomain: record.domain,
		CartID:     record.cartID,
		Status:     status,
	}
	if shop != nil {
		group.ShopName = shop.Name
	}
	if cart != nil {
		group.Cart = cart
		group.Subtotal = cart.Subtotal
		group.Items = itemsBreakdown(cart)
	}
	return group
}

func itemsBreakdown(cart *shopfront.Cart) []string {
	items := make([]string, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		items = append(items, fmt.Sprintf("%d x %s", line.Quantity, line.ProductTitle))
	}
	return items
}

func recomputeTotals(summary *Summary) {
	var grand types.Money
	total := 0
	first := true
	for _, group := range summary.Groups {
		if group.Status != StatusActive || group.Cart == nil {
			continue
		}
		if first {
			grand = group.Subtotal
			first = false
		} else {
			grand = grand.Add(group.Subtotal)
		}
		total += group.Cart.ItemCount()
	}
	summary.GrandTotal = grand
	summary.ItemCount = total
}

type recordView struct {
	domain string
	cartID string
}
