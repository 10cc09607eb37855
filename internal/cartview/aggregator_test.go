package cartview

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmesh/shopmesh-client/internal/cartstore"
	"github.com/shopmesh/shopmesh-client/internal/directory"
	"github.com/shopmesh/shopmesh-client/internal/shopfront"
	pkgerrors "github.com/shopmesh/shopmesh-client/pkg/errors"
	"github.com/shopmesh/shopmesh-client/pkg/metrics"
	"github.com/shopmesh/shopmesh-client/pkg/types"
)

type stubResolver struct {
	shops []directory.Shop
	err   error
	calls int
}

func (s *stubResolver) ShopsByDomains(_ context.Context, domains []string) ([]directory.Shop, error) {
	s.calls++
	return s.shops, s.err
}

func (s *stubResolver) ShopByID(context.Context, string) (*directory.Shop, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "not used")
}

func (s *stubResolver) ListShops(context.Context, directory.Filter) ([]directory.Shop, error) {
	return s.shops, s.err
}

type stubFetcher struct {
	mu    sync.Mutex
	carts map[string]*shopfront.Cart
	errs  map[string]error
	calls int
}

func (f *stubFetcher) GetCart(_ context.Context, cartID string) (*shopfront.Cart, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err, ok := f.errs[cartID]; ok {
		return nil, err
	}
	if cart, ok := f.carts[cartID]; ok {
		return cart, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not resolvable")
}

type stubSource struct {
	fetchers map[string]*stubFetcher
}

func (s *stubSource) Connect(domain, _ string) CartFetcher {
	return s.fetchers[domain]
}

func activeCart(id, title, amount, currency string, qty int) *shopfront.Cart {
	money := types.MustMoney(amount, currency)
	return &shopfront.Cart{
		ID:       id,
		Subtotal: money,
		Total:    money,
		Lines: []shopfront.CartLine{
			{ID: "line-" + id, ProductTitle: title, Quantity: qty, UnitPrice: money},
		},
	}
}

func twoShopFixture(t *testing.T) (*Aggregator, cartstore.Store, *stubResolver, *stubSource) {
	t.Helper()
	store := cartstore.NewMemoryStore(cartstore.NewNotifier())
	ctx := context.Background()
	require.NoError(t, store.SetCartIDForShop(ctx, "shop-a.example", "cart-a"))
	require.NoError(t, store.SetCartIDForShop(ctx, "shop-b.example", "cart-b"))

	resolver := &stubResolver{shops: []directory.Shop{
		{ID: "1", Domain: "shop-a.example", Name: "Shop A", StorefrontAccessToken: "tok-a"},
		{ID: "2", Domain: "shop-b.example", Name: "Shop B", StorefrontAccessToken: "tok-b"},
	}}
	source := &stubSource{fetchers: map[string]*stubFetcher{
		"shop-a.example": {carts: map[string]*shopfront.Cart{
			"cart-a": activeCart("cart-a", "Maple Syrup", "10.00", "CAD", 2),
		}},
		"shop-b.example": {carts: map[string]*shopfront.Cart{
			"cart-b": activeCart("cart-b", "Tea", "6.00", "CAD", 1),
		}},
	}}

	agg := NewAggregator(store, resolver, source, metrics.NewCartMetrics(nil), nil)
	return agg, store, resolver, source
}

func TestLoadGroupsShopsInInsertionOrder(t *testing.T) {
	agg, store, resolver, _ := twoShopFixture(t)
	ctx := context.Background()

	summary, err := agg.Load(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Groups, 2)
	assert.Equal(t, "shop-a.example", summary.Groups[0].ShopDomain)
	assert.Equal(t, "Shop A", summary.Groups[0].ShopName)
	assert.Equal(t, StatusActive, summary.Groups[0].Status)
	assert.Equal(t, []string{"2 x Maple Syrup"}, summary.Groups[0].Items)
	assert.Equal(t, "10.00 CAD", summary.Groups[0].Subtotal.Format())
	assert.Equal(t, "shop-b.example", summary.Groups[1].ShopDomain)

	assert.Equal(t, "16.00 CAD", summary.GrandTotal.Format())
	assert.Equal(t, 3, summary.ItemCount)
	assert.Equal(t, 1, resolver.calls, "directory is asked once, batched")

	// A fully settled load writes the authoritative counter back.
	count, known, err := store.ItemCount(ctx)
	require.NoError(t, err)
	require.True(t, known)
	assert.Equal(t, 3, count)
}

func TestLoadCheckedOutShopExcludedFromTotalsButKept(t *testing.T) {
	agg, store, _, source := twoShopFixture(t)
	ctx := context.Background()

	// Shop B's cart completed checkout: remote null.
	delete(source.fetchers["shop-b.example"].carts, "cart-b")

	summary, err := agg.Load(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Groups, 2)
	assert.Equal(t, StatusCheckedOut, summary.Groups[1].Status)
	assert.Nil(t, summary.Groups[1].Cart)
	assert.Equal(t, "10.00 CAD", summary.GrandTotal.Format())
	assert.Equal(t, 2, summary.ItemCount)

	// The mapping entry stays; only a new cart for that shop replaces it.
	id, ok, err := store.CartIDForShop(ctx, "shop-b.example")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cart-b", id)
}

func TestLoadUnavailableShopDoesNotBlankThePage(t *testing.T) {
	agg, store, _, source := twoShopFixture(t)
	ctx := context.Background()

	source.fetchers["shop-b.example"].errs = map[string]error{
		"cart-b": pkgerrors.New(pkgerrors.CodeShopUnavailable, "connection refused"),
	}

	summary, err := agg.Load(ctx)
	require.NoError(t, err, "one bad shop must not fail the load")
	require.Len(t, summary.Groups, 2)
	assert.Equal(t, StatusActive, summary.Groups[0].Status)
	assert.Equal(t, StatusUnavailable, summary.Groups[1].Status)
	assert.Equal(t, 2, summary.ItemCount)
	assert.False(t, summary.AllSettled())

	// An unsettled load must not overwrite the badge counter.
	_, known, err := store.ItemCount(ctx)
	require.NoError(t, err)
	assert.False(t, known)
}

func TestLoadMixedCurrenciesSumWithoutConversion(t *testing.T) {
	agg, _, _, source := twoShopFixture(t)
	ctx := context.Background()

	source.fetchers["shop-b.example"].carts["cart-b"] = activeCart("cart-b", "Tea", "6.00", "USD", 1)

	summary, err := agg.Load(ctx)
	require.NoError(t, err)

	// 10.00 CAD + 6.00 USD renders as 16.00 CAD: plain decimal addition,
	// labeled with the first shop's currency. Wrong, and faithful.
	assert.Equal(t, "16.00 CAD", summary.GrandTotal.Format())
}

func TestLoadEmptyCartMapResetsCounter(t *testing.T) {
	store := cartstore.NewMemoryStore(cartstore.NewNotifier())
	agg := NewAggregator(store, &stubResolver{}, &stubSource{}, metrics.NewCartMetrics(nil), nil)

	summary, err := agg.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Groups)
	assert.Zero(t, summary.ItemCount)

	count, known, err := store.ItemCount(context.Background())
	require.NoError(t, err)
	require.True(t, known)
	assert.Zero(t, count)
}

func TestLoadDirectoryFailureFailsTheLoad(t *testing.T) {
	agg, _, resolver, _ := twoShopFixture(t)
	resolver.err = pkgerrors.New(pkgerrors.CodeDependency, "directory down")
	resolver.shops = nil

	_, err := agg.Load(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestLoadShopMissingFromDirectoryIsUnavailable(t *testing.T) {
	agg, _, resolver, _ := twoShopFixture(t)
	resolver.shops = resolver.shops[:1]

	summary, err := agg.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Groups, 2)
	assert.Equal(t, StatusActive, summary.Groups[0].Status)
	assert.Equal(t, StatusUnavailable, summary.Groups[1].Status)
}

func TestApplyCartUpdateReplacesOneShopLocally(t *testing.T) {
	agg, store, _, source := twoShopFixture(t)
	ctx := context.Background()

	_, err := agg.Load(ctx)
	require.NoError(t, err)
	fetchesBefore := source.fetchers["shop-a.example"].calls + source.fetchers["shop-b.example"].calls

	updated := activeCart("cart-b", "Tea", "12.00", "CAD", 2)
	summary := agg.ApplyCartUpdate(ctx, "shop-b.example", updated)

	require.NotNil(t, summary)
	assert.Equal(t, "22.00 CAD", summary.GrandTotal.Format())
	assert.Equal(t, 4, summary.ItemCount)
	assert.Equal(t, []string{"2 x Tea"}, summary.Groups[1].Items)
	fetchesAfter := source.fetchers["shop-a.example"].calls + source.fetchers["shop-b.example"].calls
	assert.Equal(t, fetchesBefore, fetchesAfter, "line edits must not trigger a global re-fetch")

	count, known, err := store.ItemCount(ctx)
	require.NoError(t, err)
	require.True(t, known)
	assert.Equal(t, 4, count)
}

func TestApplyCartUpdateAfterRemovalWritesCounter(t *testing.T) {
	agg, store, _, _ := twoShopFixture(t)
	ctx := context.Background()

	_, err := agg.Load(ctx)
	require.NoError(t, err)

	// Shop B's last line was removed; the badge must follow without waiting
	// for the next full load.
	emptied := &shopfront.Cart{ID: "cart-b", Subtotal: types.MustMoney("0.00", "CAD")}
	summary := agg.ApplyCartUpdate(ctx, "shop-b.example", emptied)

	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.ItemCount)

	count, known, err := store.ItemCount(ctx)
	require.NoError(t, err)
	require.True(t, known)
	assert.Equal(t, 2, count)
}

func TestApplyCartUpdateWithoutLoadedSummaryReloads(t *testing.T) {
	agg, store, _, source := twoShopFixture(t)
	ctx := context.Background()

	// No prior Load: the remote edit already happened, so a full reload is
	// the authoritative fallback.
	updated := activeCart("cart-b", "Tea", "12.00", "CAD", 2)
	source.fetchers["shop-b.example"].carts["cart-b"] = updated

	summary := agg.ApplyCartUpdate(ctx, "shop-b.example", updated)
	require.NotNil(t, summary)
	assert.Equal(t, 4, summary.ItemCount)

	count, known, err := store.ItemCount(ctx)
	require.NoError(t, err)
	require.True(t, known)
	assert.Equal(t, 4, count)
}

func TestItemCountFallsBackToLoad(t *testing.T) {
	agg, store, _, _ := twoShopFixture(t)
	ctx := context.Background()

	count, err := agg.ItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Second read hits the persisted counter.
	require.NoError(t, store.SetItemCount(ctx, 9))
	count, err = agg.ItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, count)
}

func TestWatchResyncReactsToCheckoutAndSync(t *testing.T) {
	notifier := cartstore.NewNotifier()
	store := cartstore.NewMemoryStore(notifier)
	agg := NewAggregator(store, &stubResolver{}, &stubSource{}, metrics.NewCartMetrics(nil), nil)

	var got []cartstore.EventKind
	unsubscribe := agg.WatchResync(func(event cartstore.Event) {
		got = append(got, event.Kind)
	})
	defer unsubscribe()

	notifier.Publish(cartstore.Event{Kind: cartstore.EventCheckoutCompleted})
	notifier.Publish(cartstore.Event{Kind: cartstore.EventItemCount, ItemCount: 2})
	notifier.Publish(cartstore.Event{Kind: cartstore.EventSyncCart})

	assert.Equal(t, []cartstore.EventKind{cartstore.EventCheckoutCompleted, cartstore.EventSyncCart}, got)
}

func TestIsCheckoutCompletion(t *testing.T) {
	assert.True(t, IsCheckoutCompletion("/checkout/thank_you"))
	assert.True(t, IsCheckoutCompletion("/checkout/thank_you?order=1"))
	assert.False(t, IsCheckoutCompletion("/checkout"))
	assert.False(t, IsCheckoutCompletion(""))
}
