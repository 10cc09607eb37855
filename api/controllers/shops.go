package controllers

import (
	"net/http"
	"strings"

	"github.com/shopmesh/shopmesh-client/api/responses"
	"github.com/shopmesh/shopmesh-client/internal/directory"
	"github.com/shopmesh/shopmesh-client/pkg/logger"
)

type shopView struct {
	ID          string `json:"id"`
	Domain      string `json:"domain"`
	Name        string `json:"name"`
	Country     string `json:"country"`
	Description string `json:"description"`
	LogoURL     string `json:"logo_url"`
}

// ShopsList is the directory browse endpoint backing the marketplace index
// page. The storefront credential never leaves the server.
func ShopsList(resolver directory.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		filter := directory.Filter{
			Country: strings.TrimSpace(query.Get("country")),
			Query:   strings.TrimSpace(query.Get("q")),
			Sort:    directory.Sort(strings.TrimSpace(query.Get("sort"))),
		}

		shops, err := resolver.ListShops(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]shopView, 0, len(shops))
		for _, shop := range shops {
			views = append(views, shopView{
				ID:          shop.ID,
				Domain:      shop.Domain,
				Name:        shop.Name,
				Country:     shop.Country,
				Description: shop.Description,
				LogoURL:     shop.LogoURL,
			})
		}
		responses.WriteSuccess(w, map[string]any{"shops": views})
	}
}
