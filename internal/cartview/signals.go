package cartview

import (
	"strings"

	"github.com/shopmesh/shopmesh-client/internal/cartstore"
)

// ThankYouPage is the hosted-checkout path whose appearance means a
// checkout just completed somewhere.
const ThankYouPage = "/checkout/thank_you"

// IsCheckoutCompletion reports whether a reported checkout page path marks
// a finished checkout.
func IsCheckoutCompletion(page string) bool {
	return strings.HasPrefix(strings.TrimSpace(page), ThankYouPage)
}

// WatchResync subscribes reload on the cart-change feed: a completed
// checkout or an explicit sync request forces the next render to re-read
// everything instead of trusting local state. Returns the unsubscribe
// function.
func (a *Aggregator) WatchResync(onResync func(cartstore.Event)) func() {
	return a.store.Subscribe(func(event cartstore.Event) {
		switch event.Kind {
		case cartstore.EventCheckoutCompleted, cartstore.EventSyncCart:
			onResync(event)
		}
	})
}
