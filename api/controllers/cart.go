package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shopmesh/shopmesh-client/api/responses"
	"github.com/shopmesh/shopmesh-client/api/validators"
	"github.com/shopmesh/shopmesh-client/internal/cartops"
	"github.com/shopmesh/shopmesh-client/internal/cartstore"
	"github.com/shopmesh/shopmesh-client/internal/cartview"
	pkgerrors "github.com/shopmesh/shopmesh-client/pkg/errors"
	"github.com/shopmesh/shopmesh-client/pkg/logger"
)

// CartSummary renders the aggregate cart across every carted shop.
func CartSummary(agg *cartview.Aggregator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := agg.Load(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// CartCount serves the badge counter.
func CartCount(agg *cartview.Aggregator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := agg.ItemCount(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"item_count": count})
	}
}

type addItemRequest struct {
	ShopDomain string `json:"shop_domain" validate:"required"`
	VariantID  string `json:"variant_id" validate:"required"`
}

// CartAddItem adds one unit of a variant to the shop's accumulating cart,
// creating the cart (or transparently replacing a stale one) as needed.
func CartAddItem(factory *cartops.Factory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req addItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		mutator, err := factory.ForShop(ctx, req.ShopDomain)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		cart, err := mutator.AddToCart(ctx, req.VariantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"cart": cart})
	}
}

// CartBuyNow provisions a single-item cart and hands back its checkout URL
// for an immediate redirect.
func CartBuyNow(factory *cartops.Factory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req addItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		mutator, err := factory.ForShop(ctx, req.ShopDomain)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		cart, err := mutator.BuyNow(ctx, req.VariantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"cart":         cart,
			"checkout_url": cart.CheckoutURL,
		})
	}
}

type updateLineRequest struct {
	LineID   string `json:"line_id" validate:"required"`
	Quantity *int   `json:"quantity" validate:"required,min=0"`
}

// CartUpdateLine sets a line's quantity on the shop's recorded cart. Zero
// removes the line. The badge counter follows the edit through the
// aggregator.
func CartUpdateLine(factory *cartops.Factory, store cartstore.Store, agg *cartview.Aggregator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req updateLineRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		domain := chi.URLParam(r, "shopDomain")
		mutator, cartID, err := mutatorWithCart(ctx, factory, store, domain)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		cart, err := mutator.SetLineQuantity(ctx, cartID, req.LineID, *req.Quantity)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		agg.ApplyCartUpdate(ctx, domain, cart)
		responses.WriteSuccess(w, map[string]any{"cart": cart})
	}
}

// CartRemoveLine deletes one line from the shop's recorded cart. The line
// id arrives as a query parameter because remote line ids contain slashes.
func CartRemoveLine(factory *cartops.Factory, store cartstore.Store, agg *cartview.Aggregator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		lineID := strings.TrimSpace(r.URL.Query().Get("line_id"))
		if lineID == "" {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "line_id is required"))
			return
		}

		domain := chi.URLParam(r, "shopDomain")
		mutator, cartID, err := mutatorWithCart(ctx, factory, store, domain)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		cart, err := mutator.RemoveLine(ctx, cartID, lineID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		agg.ApplyCartUpdate(ctx, domain, cart)
		responses.WriteSuccess(w, map[string]any{"cart": cart})
	}
}

type signalRequest struct {
	CurrentCheckoutPage string `json:"current_checkout_page"`
	SyncCart            bool   `json:"sync_cart"`
}

// CartSignals accepts the external resync triggers: a hosted thank-you page
// reporting its path, or an explicit sync request. Either publishes a
// cart-change event that forces subscribers to reload from scratch.
func CartSignals(notifier *cartstore.Notifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req signalRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		switch {
		case cartview.IsCheckoutCompletion(req.CurrentCheckoutPage):
			notifier.Publish(cartstore.Event{Kind: cartstore.EventCheckoutCompleted})
		case req.SyncCart:
			notifier.Publish(cartstore.Event{Kind: cartstore.EventSyncCart})
		default:
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "no recognized signal in request"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}

func mutatorWithCart(ctx context.Context, factory *cartops.Factory, store cartstore.Store, domain string) (*cartops.Mutator, string, error) {
	if strings.TrimSpace(domain) == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "shop domain is required")
	}

	cartID, ok, err := store.CartIDForShop(ctx, domain)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "no cart recorded for shop").
			WithDetails(map[string]any{"shop_domain": domain})
	}

	mutator, err := factory.ForShop(ctx, domain)
	if err != nil {
		return nil, "", err
	}
	return mutator, cartID, nil
}
