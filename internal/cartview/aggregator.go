package cartview

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/shopmesh/shopmesh-client/internal/cartstore"
	"github.com/shopmesh/shopmesh-client/internal/directory"
	"github.com/shopmesh/shopmesh-client/internal/shopfront"
	pkgerrors "github.com/shopmesh/shopmesh-client/pkg/errors"
	"github.com/shopmesh/shopmesh-client/pkg/logger"
	"github.com/shopmesh/shopmesh-client/pkg/metrics"
)

// CartFetcher is the read slice of a shop connection.
type CartFetcher interface {
	GetCart(ctx context.Context, cartID string) (*shopfront.Cart, error)
}

// ConnectionSource hands out per-shop cart fetchers.
type ConnectionSource interface {
	Connect(domain, accessToken string) CartFetcher
}

// RegistrySource adapts the shopfront registry to ConnectionSource.
type RegistrySource struct {
	Registry *shopfront.Registry
}

func (r RegistrySource) Connect(domain, accessToken string) CartFetcher {
	return r.Registry.Connect(domain, accessToken)
}

// Aggregator assembles the cross-shop cart page. Reads fan out to every
// carted shop concurrently and join before rendering; a failing shop
// degrades to an unavailable section instead of blanking the page.
type Aggregator struct {
	store       cartstore.Store
	directory   directory.Resolver
	connections ConnectionSource
	metrics     *metrics.CartMetrics
	logger      *logger.Logger

	// last is the most recent fully built summary, kept so line-level edits
	// can adjust the badge counter without a global re-fetch.
	mu   sync.Mutex
	last *Summary
}

func NewAggregator(store cartstore.Store, resolver directory.Resolver, connections ConnectionSource, m *metrics.CartMetrics, logg *logger.Logger) *Aggregator {
	return &Aggregator{
		store:       store,
		directory:   resolver,
		connections: connections,
		metrics:     m,
		logger:      logg,
	}
}

// Load builds the aggregate cart summary. Per-shop fetch failures are
// folded into the summary as unavailable sections; the returned error is
// reserved for failures that prevent building any summary at all (store or
// directory down).
func (a *Aggregator) Load(ctx context.Context) (*Summary, error) {
	records, err := a.store.CartMap(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{LoadedAt: time.Now().UTC()}
	if len(records) == 0 {
		if err := a.store.SetItemCount(ctx, 0); err != nil && a.logger != nil {
			a.logger.Warn(ctx, "resetting badge counter failed: "+err.Error())
		}
		a.remember(summary)
		return summary, nil
	}

	domains := make([]string, 0, len(records))
	for _, record := range records {
		domains = append(domains, record.ShopDomain)
	}
	shops, err := a.directory.ShopsByDomains(ctx, domains)
	if err != nil {
		return nil, err
	}
	shopsByDomain := make(map[string]*directory.Shop, len(shops))
	for i := range shops {
		shopsByDomain[shops[i].Domain] = &shops[i]
	}

	groups := make([]ShopGroup, len(records))
	var errMu sync.Mutex
	var fetchErrs error
	appendErr := func(err error) {
		errMu.Lock()
		fetchErrs = multierr.Append(fetchErrs, err)
		errMu.Unlock()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i, record := range records {
		view := recordView{domain: record.ShopDomain, cartID: record.CartID}
		shop := shopsByDomain[record.ShopDomain]
		slot := i

		if shop == nil {
			groups[slot] = buildGroup(view, nil, nil, StatusUnavailable)
			appendErr(pkgerrors.New(pkgerrors.CodeDependency, "shop missing from directory").
				WithDetails(map[string]any{"shop_domain": view.domain}))
			a.metrics.IncShopFetch(string(StatusUnavailable))
			continue
		}

		conn := a.connections.Connect(shop.Domain, shop.StorefrontAccessToken)
		g.Go(func() error {
			cart, err := conn.GetCart(groupCtx, view.cartID)
			switch {
			case err == nil:
				groups[slot] = buildGroup(view, shop, cart, StatusActive)
			case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
				groups[slot] = buildGroup(view, shop, nil, StatusCheckedOut)
			default:
				groups[slot] = buildGroup(view, shop, nil, StatusUnavailable)
				appendErr(err)
			}
			a.metrics.IncShopFetch(string(groups[slot].Status))
			return nil
		})
	}
	// Goroutines never return errors; Wait is the join barrier so every
	// slot is written before the summary is assembled.
	_ = g.Wait()

	summary.Groups = groups
	recomputeTotals(summary)

	if fetchErrs != nil && a.logger != nil {
		a.logger.Warn(ctx, "partial cart load: "+fetchErrs.Error())
	}

	// Only a load where every shop settled may overwrite the optimistic
	// badge counter with the true total.
	if summary.AllSettled() {
		if err := a.store.SetItemCount(ctx, summary.ItemCount); err != nil && a.logger != nil {
			a.logger.Warn(ctx, "persisting badge counter failed: "+err.Error())
		}
	}
	a.remember(summary)
	return summary, nil
}

// ApplyCartUpdate folds one shop's post-edit cart into the last loaded
// summary, recomputes totals, and persists the badge counter the way a
// settled load would, all without re-fetching the other shops. When no
// loaded summary covers the shop it falls back to a full reload, which is
// equally authoritative because the remote edit already happened.
func (a *Aggregator) ApplyCartUpdate(ctx context.Context, domain string, cart *shopfront.Cart) *Summary {
	a.mu.Lock()
	prev := a.last
	a.mu.Unlock()

	var summary *Summary
	if prev != nil {
		for i := range prev.Groups {
			if prev.Groups[i].ShopDomain != domain {
				continue
			}
			summary = prev.clone()
			view := recordView{domain: domain, cartID: cart.ID}
			shop := &directory.Shop{Domain: domain, Name: summary.Groups[i].ShopName}
			summary.Groups[i] = buildGroup(view, shop, cart, StatusActive)
			break
		}
	}
	if summary == nil {
		reloaded, err := a.Load(ctx)
		if err != nil {
			if a.logger != nil {
				a.logger.Warn(ctx, "reloading cart after line edit failed: "+err.Error())
			}
			return nil
		}
		return reloaded
	}

	recomputeTotals(summary)
	a.remember(summary)

	if summary.AllSettled() {
		if err := a.store.SetItemCount(ctx, summary.ItemCount); err != nil && a.logger != nil {
			a.logger.Warn(ctx, "persisting badge counter failed: "+err.Error())
		}
	}
	return summary
}

func (a *Aggregator) remember(summary *Summary) {
	a.mu.Lock()
	a.last = summary
	a.mu.Unlock()
}

// ItemCount returns the badge counter, preferring the persisted value and
// falling back to a full load when the counter has never been written.
func (a *Aggregator) ItemCount(ctx context.Context) (int, error) {
	count, known, err := a.store.ItemCount(ctx)
	if err != nil {
		return 0, err
	}
	if known {
		return count, nil
	}
	summary, err := a.Load(ctx)
	if err != nil {
		return 0, err
	}
	return summary.ItemCount, nil
}
