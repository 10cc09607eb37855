package cartstore

import (
	"context"

	"github.com/shopmesh/shopmesh-client/pkg/db/models"
)

// Store owns the two persisted pieces of local cart state: the shop-domain
// → cart-id mapping and the cross-shop item counter. It never talks to shop
// backends; the ids it holds may be stale, and the mutation layer recovers
// from that.
type Store interface {
	// CartMap returns every recorded (shop domain, cart id) pair in
	// insertion order. An empty store yields an empty slice, not an error.
	CartMap(ctx context.Context) ([]models.CartRecord, error)

	// CartIDForShop returns the recorded cart id for one shop domain. The
	// boolean is false when no cart has been created for that shop yet.
	CartIDForShop(ctx context.Context, domain string) (string, bool, error)

	// SetCartIDForShop records the cart id for a shop, inserting at the end
	// of the map on first write. The write touches only that shop's row so
	// concurrent writers for other shops are never clobbered.
	SetCartIDForShop(ctx context.Context, domain, cartID string) error

	// ItemCount returns the persisted badge counter. False means the
	// counter has never been written and callers should recompute it.
	ItemCount(ctx context.Context) (int, bool, error)

	// SetItemCount overwrites the badge counter with an authoritative
	// value, typically after a fully successful aggregate load.
	SetItemCount(ctx context.Context, count int) error

	// IncrementItemCount adjusts the badge counter optimistically. The
	// result never goes below zero.
	IncrementItemCount(ctx context.Context, delta int) error

	// Subscribe registers a cart-change listener; the returned function
	// unsubscribes it.
	Subscribe(fn func(Event)) func()
}
