package cartops

import (
	"context"
	"time"

	"github.com/shopmesh/shopmesh-client/internal/cartstore"
	"github.com/shopmesh/shopmesh-client/internal/shopfront"
	pkgerrors "github.com/shopmesh/shopmesh-client/pkg/errors"
	"github.com/shopmesh/shopmesh-client/pkg/logger"
	"github.com/shopmesh/shopmesh-client/pkg/metrics"
)

// ShopCart is the slice of the shop connection the mutator drives. The
// concrete implementation lives in internal/shopfront.
type ShopCart interface {
	CreateCart(ctx context.Context, variantID string, quantity int) (*shopfront.Cart, error)
	AddLine(ctx context.Context, cartID, variantID string) (*shopfront.Cart, error)
	RemoveLine(ctx context.Context, cartID, lineID string) (*shopfront.Cart, error)
	UpdateLineQuantity(ctx context.Context, cartID, lineID string, quantity int) (*shopfront.Cart, error)
}

// CartState is the per-shop cart lifecycle the mutator moves through.
type CartState string

const (
	// StateNone means no cart has been created for the shop yet.
	StateNone CartState = "none"
	// StateActive means a cart id is recorded and believed valid.
	StateActive CartState = "active"
	// StateInvalidated means the recorded id stopped resolving remotely;
	// the next add transparently replaces it.
	StateInvalidated CartState = "invalidated"
)

// Mutator executes cart writes against one shop and keeps the local store
// in step. The shop backend is authoritative; the recorded cart id is only
// a hint, and a stale one heals itself on the next add.
type Mutator struct {
	shopDomain string
	shop       ShopCart
	store      cartstore.Store
	metrics    *metrics.CartMetrics
	logger     *logger.Logger
}

func NewMutator(shopDomain string, shop ShopCart, store cartstore.Store, m *metrics.CartMetrics, logg *logger.Logger) *Mutator {
	return &Mutator{
		shopDomain: shopDomain,
		shop:       shop,
		store:      store,
		metrics:    m,
		logger:     logg,
	}
}

// State reports the current lifecycle position for the shop. It only reads
// the local record; an Active result can still turn out stale remotely.
func (m *Mutator) State(ctx context.Context) (CartState, string, error) {
	cartID, ok, err := m.store.CartIDForShop(ctx, m.shopDomain)
	if err != nil {
		return StateNone, "", err
	}
	if !ok {
		return StateNone, "", nil
	}
	return StateActive, cartID, nil
}

// CreateCart provisions a fresh remote cart seeded with the variant and
// records its id.
func (m *Mutator) CreateCart(ctx context.Context, variantID string, quantity int) (*shopfront.Cart, error) {
	cart, err := m.shop.CreateCart(ctx, variantID, quantity)
	if err != nil {
		return nil, err
	}
	if err := m.store.SetCartIDForShop(ctx, m.shopDomain, cart.ID); err != nil {
		return nil, err
	}
	return cart, nil
}

// AddLine appends the variant to the given cart. When the backend reports
// the cart no longer resolves, the line lands in a brand-new cart instead
// and the store is repointed; the shopper never sees the stale id.
func (m *Mutator) AddLine(ctx context.Context, cartID, variantID string) (*shopfront.Cart, error) {
	cart, err := m.shop.AddLine(ctx, cartID, variantID)
	if err == nil {
		return cart, nil
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeStaleCart) {
		return nil, err
	}

	if m.logger != nil {
		logCtx := m.logger.WithShopDomain(ctx, m.shopDomain)
		logCtx = m.logger.WithCartID(logCtx, cartID)
		m.logger.Info(logCtx, "stale cart detected, creating replacement")
	}
	m.metrics.IncStaleRecovery()

	return m.CreateCart(ctx, variantID, 1)
}

// AddToCart is the storefront "add to cart" action: reuse the recorded cart
// when one exists, create one otherwise, and bump the badge counter
// optimistically. The counter is corrected on the next full cart load.
func (m *Mutator) AddToCart(ctx context.Context, variantID string) (*shopfront.Cart, error) {
	start := time.Now()
	cart, err := m.addToCart(ctx, variantID)
	m.metrics.ObserveOp("add_to_cart", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if err := m.store.IncrementItemCount(ctx, 1); err != nil && m.logger != nil {
		m.logger.Warn(ctx, "badge counter increment failed: "+err.Error())
	}
	return cart, nil
}

func (m *Mutator) addToCart(ctx context.Context, variantID string) (*shopfront.Cart, error) {
	cartID, ok, err := m.store.CartIDForShop(ctx, m.shopDomain)
	if err != nil {
		return nil, err
	}
	if !ok {
		return m.CreateCart(ctx, variantID, 1)
	}
	return m.AddLine(ctx, cartID, variantID)
}

// BuyNow provisions a single-item cart for immediate checkout and returns
// it with its checkout URL. The new id is recorded like any other create,
// so a pending accumulating cart for the shop is repointed.
func (m *Mutator) BuyNow(ctx context.Context, variantID string) (*shopfront.Cart, error) {
	start := time.Now()
	cart, err := m.CreateCart(ctx, variantID, 1)
	m.metrics.ObserveOp("buy_now", time.Since(start), err)
	return cart, err
}

// RemoveLine deletes one line from the shop's cart.
func (m *Mutator) RemoveLine(ctx context.Context, cartID, lineID string) (*shopfront.Cart, error) {
	start := time.Now()
	cart, err := m.shop.RemoveLine(ctx, cartID, lineID)
	m.metrics.ObserveOp("remove_line", time.Since(start), err)
	return cart, err
}

// SetLineQuantity updates one line's quantity. Zero routes to removal; the
// backend never sees a zero-quantity update.
func (m *Mutator) SetLineQuantity(ctx context.Context, cartID, lineID string, quantity int) (*shopfront.Cart, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative").
			WithDetails(map[string]any{"quantity": quantity})
	}
	if quantity == 0 {
		return m.RemoveLine(ctx, cartID, lineID)
	}

	start := time.Now()
	cart, err := m.shop.UpdateLineQuantity(ctx, cartID, lineID, quantity)
	m.metrics.ObserveOp("set_line_quantity", time.Since(start), err)
	return cart, err
}
