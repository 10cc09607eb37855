package cartops

import (
	"context"

	"github.com/shopmesh/shopmesh-client/internal/cartstore"
	"github.com/shopmesh/shopmesh-client/internal/directory"
	"github.com/shopmesh/shopmesh-client/internal/shopfront"
	pkgerrors "github.com/shopmesh/shopmesh-client/pkg/errors"
	"github.com/shopmesh/shopmesh-client/pkg/logger"
	"github.com/shopmesh/shopmesh-client/pkg/metrics"
)

// ConnectionSource hands out per-shop mutation connections.
type ConnectionSource interface {
	Connect(domain, accessToken string) ShopCart
}

// RegistrySource adapts the shopfront registry to ConnectionSource.
type RegistrySource struct {
	Registry *shopfront.Registry
}

func (r RegistrySource) Connect(domain, accessToken string) ShopCart {
	return r.Registry.Connect(domain, accessToken)
}

// Factory builds a Mutator for a shop domain on demand, resolving the
// shop's storefront credential through the directory.
type Factory struct {
	store       cartstore.Store
	directory   directory.Resolver
	connections ConnectionSource
	metrics     *metrics.CartMetrics
	logger      *logger.Logger
}

func NewFactory(store cartstore.Store, resolver directory.Resolver, connections ConnectionSource, m *metrics.CartMetrics, logg *logger.Logger) *Factory {
	return &Factory{
		store:       store,
		directory:   resolver,
		connections: connections,
		metrics:     m,
		logger:      logg,
	}
}

// ForShop resolves the domain through the directory and binds a mutator to
// it. An unknown domain is NOT_FOUND.
func (f *Factory) ForShop(ctx context.Context, domain string) (*Mutator, error) {
	shops, err := f.directory.ShopsByDomains(ctx, []string{domain})
	if err != nil {
		return nil, err
	}
	for _, shop := range shops {
		if shop.Domain == domain {
			conn := f.connections.Connect(shop.Domain, shop.StorefrontAccessToken)
			return NewMutator(shop.Domain, conn, f.store, f.metrics, f.logger), nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not registered").
		WithDetails(map[string]any{"shop_domain": domain})
}
