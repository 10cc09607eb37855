package cartstore

// EventKind discriminates cart-change notifications.
type EventKind string

const (
	// EventCartMap fires when the shop-domain → cart-id mapping changes.
	EventCartMap EventKind = "cart_map"
	// EventItemCount fires when the cross-shop item counter changes.
	EventItemCount EventKind = "item_count"
	// EventCheckoutCompleted fires when a shop's hosted thank-you page
	// reports a finished checkout.
	EventCheckoutCompleted EventKind = "checkout_completed"
	// EventSyncCart asks every view to re-read cart state from scratch.
	EventSyncCart EventKind = "sync_cart"
)

// Event is one cart-change notification. Events carry hints, not state:
// subscribers re-read the store rather than trusting the payload, so a lost
// or reordered event costs freshness, never correctness.
type Event struct {
	Kind       EventKind `json:"kind"`
	ShopDomain string    `json:"shop_domain,omitempty"`
	CartID     string    `json:"cart_id,omitempty"`
	// ItemCount keeps its zero value on the wire: "cart emptied" is a real
	// count, not an absent one.
	ItemCount int `json:"item_count"`
	// Origin identifies the emitting process so the redis bridge can drop
	// its own echoes.
	Origin string `json:"origin,omitempty"`
}
