package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shopmesh/shopmesh-client/api/controllers"
	"github.com/shopmesh/shopmesh-client/api/middleware"
	"github.com/shopmesh/shopmesh-client/internal/cartops"
	"github.com/shopmesh/shopmesh-client/internal/cartstore"
	"github.com/shopmesh/shopmesh-client/internal/cartview"
	"github.com/shopmesh/shopmesh-client/internal/directory"
	"github.com/shopmesh/shopmesh-client/internal/shopfront"
	"github.com/shopmesh/shopmesh-client/pkg/config"
	"github.com/shopmesh/shopmesh-client/pkg/logger"
)

// registryConnector adapts the shopfront registry to the controllers'
// catalog-read interface.
type registryConnector struct {
	registry *shopfront.Registry
}

func (c registryConnector) Connect(domain, accessToken string) controllers.ProductSource {
	return c.registry.Connect(domain, accessToken)
}

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	Pingers    map[string]controllers.Pinger
	Directory  directory.Resolver
	Registry   *shopfront.Registry
	Store      cartstore.Store
	Notifier   *cartstore.Notifier
	Aggregator *cartview.Aggregator
	Mutators   *cartops.Factory
	Metrics    prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(deps.Logger),
		middleware.RequestID(deps.Logger),
		middleware.Logging(deps.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(deps.Config))
		r.Get("/ready", controllers.HealthReady(deps.Config, deps.Logger, deps.Pingers))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	connector := registryConnector{registry: deps.Registry}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/shops", func(r chi.Router) {
			r.Get("/", controllers.ShopsList(deps.Directory, deps.Logger))
			r.Route("/{shopID}", func(r chi.Router) {
				r.Get("/products/{handle}", controllers.ProductGet(deps.Directory, connector, deps.Logger))
				r.Post("/products/{handle}/variant", controllers.ProductResolveVariant(deps.Directory, connector, deps.Logger))
				r.Get("/recommendations", controllers.ProductRecommendations(deps.Directory, connector, deps.Logger))
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartSummary(deps.Aggregator, deps.Logger))
			r.Get("/count", controllers.CartCount(deps.Aggregator, deps.Logger))
			r.Post("/items", controllers.CartAddItem(deps.Mutators, deps.Logger))
			r.Post("/buy-now", controllers.CartBuyNow(deps.Mutators, deps.Logger))
			r.Post("/signals", controllers.CartSignals(deps.Notifier, deps.Logger))
			r.Route("/{shopDomain}/lines", func(r chi.Router) {
				r.Patch("/", controllers.CartUpdateLine(deps.Mutators, deps.Store, deps.Aggregator, deps.Logger))
				r.Delete("/", controllers.CartRemoveLine(deps.Mutators, deps.Store, deps.Aggregator, deps.Logger))
			})
		})
	})

	return r
}
