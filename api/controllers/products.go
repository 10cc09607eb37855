package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shopmesh/shopmesh-client/api/responses"
	"github.com/shopmesh/shopmesh-client/api/validators"
	"github.com/shopmesh/shopmesh-client/internal/directory"
	"github.com/shopmesh/shopmesh-client/internal/shopfront"
	"github.com/shopmesh/shopmesh-client/internal/variant"
	pkgerrors "github.com/shopmesh/shopmesh-client/pkg/errors"
	"github.com/shopmesh/shopmesh-client/pkg/logger"
	"github.com/shopmesh/shopmesh-client/pkg/types"
)

// ProductSource is the catalog read surface of one shop connection.
type ProductSource interface {
	GetProduct(ctx context.Context, handle string) (*shopfront.Product, *shopfront.ShopPolicies, error)
	Recommendations(ctx context.Context, productID string) ([]shopfront.Recommendation, error)
}

// ProductConnector hands out per-shop catalog readers.
type ProductConnector interface {
	Connect(domain, accessToken string) ProductSource
}

type productPagePayload struct {
	Product          *shopfront.Product        `json:"product"`
	Policies         *shopfront.ShopPolicies   `json:"policies"`
	DefaultSelection types.OptionSelection     `json:"default_selection"`
	DefaultVariant   *shopfront.ProductVariant `json:"default_variant,omitempty"`
}

// ProductGet returns the product page payload with the default variant
// selection already resolved. The default is the first variant's options,
// available for sale or not.
func ProductGet(resolver directory.Resolver, connector ProductConnector, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		product, _, policies, err := loadProduct(ctx, resolver, connector, r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		selection := variant.DefaultSelection(product.Variants)
		payload := productPagePayload{
			Product:          product,
			Policies:         policies,
			DefaultSelection: selection,
		}
		if resolved, ok := variant.Resolve(product.Variants, selection); ok {
			payload.DefaultVariant = resolved
		}
		responses.WriteSuccess(w, payload)
	}
}

type resolveVariantRequest struct {
	Selection map[string]string `json:"selection" validate:"required,min=1"`
}

// ProductResolveVariant maps an option selection to a concrete variant. A
// selection the catalog cannot satisfy is a data problem, reported as an
// unprocessable entity so the storefront disables purchase actions; it is
// never a server error.
func ProductResolveVariant(resolver directory.Resolver, connector ProductConnector, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req resolveVariantRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		product, _, _, err := loadProduct(ctx, resolver, connector, r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resolved, ok := variant.Resolve(product.Variants, types.OptionSelection(req.Selection))
		if !ok {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeDataInconsistency, "no variant matches the selected options").
					WithDetails(map[string]any{"selection": req.Selection}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"variant": resolved})
	}
}

// ProductRecommendations returns related products for a product id.
func ProductRecommendations(resolver directory.Resolver, connector ProductConnector, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		productID := strings.TrimSpace(r.URL.Query().Get("product_id"))
		if productID == "" {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "product_id is required"))
			return
		}

		shop, err := resolver.ShopByID(ctx, chi.URLParam(r, "shopID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		conn := connector.Connect(shop.Domain, shop.StorefrontAccessToken)
		recs, err := conn.Recommendations(ctx, productID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"recommendations": recs})
	}
}

func loadProduct(ctx context.Context, resolver directory.Resolver, connector ProductConnector, r *http.Request) (*shopfront.Product, *directory.Shop, *shopfront.ShopPolicies, error) {
	shop, err := resolver.ShopByID(ctx, chi.URLParam(r, "shopID"))
	if err != nil {
		return nil, nil, nil, err
	}

	conn := connector.Connect(shop.Domain, shop.StorefrontAccessToken)
	product, policies, err := conn.GetProduct(ctx, chi.URLParam(r, "handle"))
	if err != nil {
		return nil, nil, nil, err
	}
	return product, shop, policies, nil
}
