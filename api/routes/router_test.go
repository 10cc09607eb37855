package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmesh/shopmesh-client/internal/cartops"
	"github.com/shopmesh/shopmesh-client/internal/cartstore"
	"github.com/shopmesh/shopmesh-client/internal/cartview"
	"github.com/shopmesh/shopmesh-client/internal/directory"
	"github.com/shopmesh/shopmesh-client/internal/shopfront"
	"github.com/shopmesh/shopmesh-client/pkg/config"
	pkgerrors "github.com/shopmesh/shopmesh-client/pkg/errors"
	"github.com/shopmesh/shopmesh-client/pkg/metrics"
)

// fakeShopBackend serves the storefront GraphQL surface for tests. The
// "domain" handed to the directory stub is the server URL itself, which the
// connection uses verbatim as its endpoint.
func fakeShopBackend(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.Contains(req.Query, "cartCreate"):
			w.Write([]byte(`{"data":{"cartCreate":{"cart":{"id":"cart-1","checkoutUrl":"https://shop.example/checkout/cart-1"},"userErrors":[]}}}`))
		case strings.Contains(req.Query, "cartLinesAdd"):
			if req.Variables["cartId"] == "cart-stale" {
				w.Write([]byte(`{"data":{"cartLinesAdd":{"cart":null,"userErrors":[]}}}`))
				return
			}
			w.Write([]byte(`{"data":{"cartLinesAdd":{"cart":{"id":"cart-1","checkoutUrl":"https://shop.example/checkout/cart-1"},"userErrors":[]}}}`))
		case strings.Contains(req.Query, "cartLinesRemove"), strings.Contains(req.Query, "cartLinesUpdate"):
			w.Write([]byte(`{"data":{"` + mutationName(req.Query) + `":{"cart":{
				"id":"cart-1",
				"checkoutUrl":"https://shop.example/checkout/cart-1",
				"estimatedCost":{"subtotalAmount":{"amount":"5.00","currencyCode":"CAD"},"totalAmount":{"amount":"5.00","currencyCode":"CAD"}},
				"lines":{"edges":[]}
			},"userErrors":[]}}}`))
		case strings.Contains(req.Query, "query getCart"):
			w.Write([]byte(`{"data":{"cart":{
				"id":"cart-1",
				"checkoutUrl":"https://shop.example/checkout/cart-1",
				"estimatedCost":{"subtotalAmount":{"amount":"10.00","currencyCode":"CAD"},"totalAmount":{"amount":"10.00","currencyCode":"CAD"}},
				"lines":{"edges":[{"node":{
					"id":"line-1","quantity":2,
					"merchandise":{"id":"variant-1","priceV2":{"amount":"5.00","currencyCode":"CAD"},"product":{"title":"Maple Syrup"},"selectedOptions":[]}
				}}]}
			}}}`))
		case strings.Contains(req.Query, "getProductPageData"):
			w.Write([]byte(`{"data":{
				"product":{
					"id":"product-1","title":"Maple Syrup","description":"","productType":"","vendor":"","tags":[],
					"options":[{"name":"Size","values":["250ml"]}],
					"variants":{"edges":[{"node":{
						"id":"variant-1","title":"250ml",
						"priceV2":{"amount":"5.00","currencyCode":"CAD"},
						"availableForSale":true,
						"selectedOptions":[{"name":"Size","value":"250ml"}]
					}}]},
					"images":{"edges":[]}
				},
				"shop":{"privacyPolicy":null,"refundPolicy":null,"shippingPolicy":null,"termsOfService":null}
			}}`))
		case strings.Contains(req.Query, "productRecommendations"):
			w.Write([]byte(`{"data":{"productRecommendations":[]}}`))
		default:
			t.Errorf("unexpected query: %s", req.Query)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func mutationName(query string) string {
	if strings.Contains(query, "cartLinesRemove") {
		return "cartLinesRemove"
	}
	return "cartLinesUpdate"
}

type stubResolver struct {
	shops []directory.Shop
}

func (s *stubResolver) ShopsByDomains(_ context.Context, domains []string) ([]directory.Shop, error) {
	var out []directory.Shop
	for _, shop := range s.shops {
		for _, domain := range domains {
			if shop.Domain == domain {
				out = append(out, shop)
			}
		}
	}
	return out, nil
}

func (s *stubResolver) ShopByID(_ context.Context, id string) (*directory.Shop, error) {
	for _, shop := range s.shops {
		if shop.ID == id {
			return &shop, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
}

func (s *stubResolver) ListShops(context.Context, directory.Filter) ([]directory.Shop, error) {
	return s.shops, nil
}

func newTestRouter(t *testing.T) (http.Handler, cartstore.Store, *cartstore.Notifier, string) {
	t.Helper()
	backend := fakeShopBackend(t)

	// The backend's host:port is the shop "domain"; Insecure points the
	// connection at plain http.
	shopDomain := strings.TrimPrefix(backend.URL, "http://")

	cfg := &config.Config{App: config.AppConfig{Env: "test", Port: "0"}}
	shopCfg := config.ShopfrontConfig{APIVersion: "2021-10", CallTimeout: 2 * time.Second, MaxLines: 20, Insecure: true}

	notifier := cartstore.NewNotifier()
	store := cartstore.NewMemoryStore(notifier)
	resolver := &stubResolver{shops: []directory.Shop{
		{ID: "shop-1", Domain: shopDomain, Name: "Shop A", StorefrontAccessToken: "tok-a"},
	}}
	registry := shopfront.NewRegistry(shopCfg, nil, nil)
	cartMetrics := metrics.NewCartMetrics(nil)

	agg := cartview.NewAggregator(store, resolver, cartview.RegistrySource{Registry: registry}, cartMetrics, nil)
	factory := cartops.NewFactory(store, resolver, cartops.RegistrySource{Registry: registry}, cartMetrics, nil)

	router := NewRouter(Deps{
		Config:     cfg,
		Directory:  resolver,
		Registry:   registry,
		Store:      store,
		Notifier:   notifier,
		Aggregator: agg,
		Mutators:   factory,
	})
	return router, store, notifier, shopDomain
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthLive(t *testing.T) {
	router, _, _, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-ShopMesh-Env"))
}

func TestAddItemCreatesCartAndBumpsCounter(t *testing.T) {
	router, store, _, shopDomain := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cart/items",
		`{"shop_domain":"`+shopDomain+`","variant_id":"variant-1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	id, ok, err := store.CartIDForShop(context.Background(), shopDomain)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cart-1", id)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/cart/count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"item_count":1`)
}

func TestAddItemUnknownShopIsNotFound(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cart/items",
		`{"shop_domain":"unknown.example","variant_id":"variant-1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestAddItemValidation(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", `{"shop_domain":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestCartSummaryAfterAdd(t *testing.T) {
	router, store, _, shopDomain := newTestRouter(t)
	require.NoError(t, store.SetCartIDForShop(context.Background(), shopDomain, "cart-1"))

	rec := doJSON(t, router, http.MethodGet, "/api/v1/cart", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var envelope struct {
		Data cartview.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Groups, 1)
	assert.Equal(t, cartview.StatusActive, envelope.Data.Groups[0].Status)
	assert.Equal(t, []string{"2 x Maple Syrup"}, envelope.Data.Groups[0].Items)
	assert.Equal(t, 2, envelope.Data.ItemCount)
}

func TestBuyNowReturnsCheckoutURL(t *testing.T) {
	router, _, _, shopDomain := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cart/buy-now",
		`{"shop_domain":"`+shopDomain+`","variant_id":"variant-1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "https://shop.example/checkout/cart-1")
}

func TestUpdateLineZeroRemoves(t *testing.T) {
	router, store, _, shopDomain := newTestRouter(t)
	require.NoError(t, store.SetCartIDForShop(context.Background(), shopDomain, "cart-1"))

	rec := doJSON(t, router, http.MethodPatch, "/api/v1/cart/"+shopDomain+"/lines",
		`{"line_id":"line-1","quantity":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRemoveLineUpdatesCounter(t *testing.T) {
	router, store, _, shopDomain := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cart/items",
		`{"shop_domain":"`+shopDomain+`","variant_id":"variant-1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The summary load settles the counter at the remote truth (2 items).
	rec = doJSON(t, router, http.MethodGet, "/api/v1/cart", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	count, known, err := store.ItemCount(context.Background())
	require.NoError(t, err)
	require.True(t, known)
	require.Equal(t, 2, count)

	// Removing the last line must pull the badge down to zero immediately,
	// not on the next full load.
	rec = doJSON(t, router, http.MethodDelete,
		"/api/v1/cart/"+shopDomain+"/lines?line_id=line-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/v1/cart/count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"item_count":0`)
}

func TestRemoveLineWithoutRecordedCart(t *testing.T) {
	router, _, _, shopDomain := newTestRouter(t)

	rec := doJSON(t, router, http.MethodDelete,
		"/api/v1/cart/"+shopDomain+"/lines?line_id=line-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignalsPublishCheckoutCompleted(t *testing.T) {
	router, _, notifier, _ := newTestRouter(t)

	var got []cartstore.EventKind
	unsubscribe := notifier.Subscribe(func(event cartstore.Event) {
		got = append(got, event.Kind)
	})
	defer unsubscribe()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cart/signals",
		`{"current_checkout_page":"/checkout/thank_you"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/cart/signals", `{"sync_cart":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/cart/signals", `{"current_checkout_page":"/cart"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, []cartstore.EventKind{cartstore.EventCheckoutCompleted, cartstore.EventSyncCart}, got)
}

func TestProductPageResolvesDefaultVariant(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/shops/shop-1/products/maple-syrup", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"default_variant"`)
	assert.Contains(t, rec.Body.String(), "variant-1")
}

func TestResolveVariantMismatchIsUnprocessable(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/shops/shop-1/products/maple-syrup/variant",
		`{"selection":{"Size":"10L"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "DATA_INCONSISTENCY")
}

func TestResolveVariantMatch(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/shops/shop-1/products/maple-syrup/variant",
		`{"selection":{"Size":"250ml"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "variant-1")
}

func TestMetricsEndpointWhenGathererWired(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := NewRouter(Deps{
		Config:  &config.Config{App: config.AppConfig{Env: "test"}},
		Metrics: reg,
	})

	rec := doJSON(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
