package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopmesh/shopmesh-client/pkg/config"
	pkgerrors "github.com/shopmesh/shopmesh-client/pkg/errors"
	"github.com/shopmesh/shopmesh-client/pkg/logger"
)

// Resolver looks shops up in the marketplace directory. The cart view and
// the product controllers consume it; nothing in this module writes to the
// directory.
type Resolver interface {
	ShopsByDomains(ctx context.Context, domains []string) ([]Shop, error)
	ShopByID(ctx context.Context, id string) (*Shop, error)
	ListShops(ctx context.Context, filter Filter) ([]Shop, error)
}

const shopsByDomainsQuery = `
query shopsByDomains($domains: [String!]!) {
  shops(domains: $domains) {
    id
    domain
    name
    country
    description
    logoUrl
    storefrontAccessToken
  }
}
`

const shopByIDQuery = `
query shopById($id: ID!) {
  shop(id: $id) {
    id
    domain
    name
    country
    description
    logoUrl
    storefrontAccessToken
  }
}
`

const listShopsQuery = `
query listShops($filter: ShopFilter) {
  shops(filter: $filter) {
    id
    domain
    name
    country
    description
    logoUrl
    storefrontAccessToken
  }
}
`

// Client is the GraphQL-over-HTTP directory resolver.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

var _ Resolver = (*Client)(nil)

func NewClient(cfg config.DirectoryConfig, httpClient *http.Client, logg *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		logger:     logg,
	}
}

// ShopsByDomains resolves credentials for the given domains in one batched
// call. Domains unknown to the directory are simply absent from the result;
// callers decide whether that is an error.
func (c *Client) ShopsByDomains(ctx context.Context, domains []string) ([]Shop, error) {
	if len(domains) == 0 {
		return nil, nil
	}

	var payload struct {
		Shops []wireShop `json:"shops"`
	}
	if err := c.do(ctx, shopsByDomainsQuery, map[string]any{"domains": domains}, &payload); err != nil {
		return nil, err
	}
	return decodeShops(payload.Shops), nil
}

// ShopByID resolves a single shop. A missing shop is NOT_FOUND, not a
// dependency failure.
func (c *Client) ShopByID(ctx context.Context, id string) (*Shop, error) {
	var payload struct {
		Shop *wireShop `json:"shop"`
	}
	if err := c.do(ctx, shopByIDQuery, map[string]any{"id": id}, &payload); err != nil {
		return nil, err
	}
	if payload.Shop == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found").
			WithDetails(map[string]any{"shop_id": id})
	}
	shop := decodeShop(*payload.Shop)
	return &shop, nil
}

// ListShops returns the browse listing under the given filter.
func (c *Client) ListShops(ctx context.Context, filter Filter) ([]Shop, error) {
	if !filter.Sort.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown sort order").
			WithDetails(map[string]any{"sort": string(filter.Sort)})
	}

	wireFilter := map[string]any{}
	if filter.Country != "" {
		wireFilter["country"] = filter.Country
	}
	if filter.Query != "" {
		wireFilter["query"] = filter.Query
	}
	if filter.Sort != "" {
		wireFilter["sort"] = string(filter.Sort)
	}

	var payload struct {
		Shops []wireShop `json:"shops"`
	}
	if err := c.do(ctx, listShopsQuery, map[string]any{"filter": wireFilter}, &payload); err != nil {
		return nil, err
	}
	return decodeShops(payload.Shops), nil
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

type wireShop struct {
	ID                    string `json:"id"`
	Domain                string `json:"domain"`
	Name                  string `json:"name"`
	Country               string `json:"country"`
	Description           string `json:"description"`
	LogoURL               string `json:"logoUrl"`
	StorefrontAccessToken string `json:"storefrontAccessToken"`
}

func (c *Client) do(ctx context.Context, query string, variables map[string]any, dest any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding directory request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building directory request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling directory")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading directory response")
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("directory returned status %d", resp.StatusCode)).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	var envelope gqlEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding directory response")
	}
	if len(envelope.Errors) > 0 {
		return pkgerrors.New(pkgerrors.CodeDependency, envelope.Errors[0].Message)
	}
	if dest != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, dest); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding directory payload")
		}
	}
	return nil
}

func decodeShop(wire wireShop) Shop {
	return Shop{
		ID:                    wire.ID,
		Domain:                wire.Domain,
		Name:                  wire.Name,
		Country:               wire.Country,
		Description:           wire.Description,
		LogoURL:               wire.LogoURL,
		StorefrontAccessToken: wire.StorefrontAccessToken,
	}
}

func decodeShops(wires []wireShop) []Shop {
	shops := make([]Shop, 0, len(wires))
	for _, wire := range wires {
		shops = append(shops, decodeShop(wire))
	}
	return shops
}
