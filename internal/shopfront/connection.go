package shopfront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopmesh/shopmesh-client/pkg/config"
	pkgerrors "github.com/shopmesh/shopmesh-client/pkg/errors"
	"github.com/shopmesh/shopmesh-client/pkg/logger"
	"github.com/shopmesh/shopmesh-client/pkg/types"
)

const accessTokenHeader = "X-Storefront-Access-Token"

// Connection is the remote-call handle for one shop's storefront backend.
// All cart reads and mutations for that shop flow through it. Mutations are
// serialized per connection: overlapping writes against the same cart risk
// a lost update on the remote side.
type Connection struct {
	domain      string
	endpoint    string
	accessToken string
	maxLines    int
	callTimeout time.Duration
	httpClient  *http.Client
	logger      *logger.Logger

	mu sync.Mutex // serializes cart mutations against this shop
}

// NewConnection binds a connection to one shop's endpoint and credential.
func NewConnection(cfg config.ShopfrontConfig, domain, accessToken string, httpClient *http.Client, logg *logger.Logger) *Connection {
	scheme := "https"
	if cfg.Insecure {
		scheme = "http"
	}
	endpoint := domain
	if !strings.Contains(domain, "://") {
		endpoint = fmt.Sprintf("%s://%s/api/%s/graphql.json", scheme, domain, cfg.APIVersion)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.CallTimeout}
	}
	maxLines := cfg.MaxLines
	if maxLines <= 0 {
		maxLines = 20
	}
	return &Connection{
		domain:      domain,
		endpoint:    endpoint,
		accessToken: accessToken,
		maxLines:    maxLines,
		callTimeout: cfg.CallTimeout,
		httpClient:  httpClient,
		logger:      logg,
	}
}

// Domain returns the shop domain this connection is bound to.
func (c *Connection) Domain() string {
	return c.domain
}

// CreateCart asks the shop backend for a new cart seeded with one line.
// The backend validates stock; failures are reported, not retried.
func (c *Connection) CreateCart(ctx context.Context, variantID string, quantity int) (*Cart, error) {
	if quantity < 1 {
		quantity = 1
	}
	variables := map[string]any{
		"input": map[string]any{
			"lines": []map[string]any{
				{"merchandiseId": variantID, "quantity": quantity},
			},
		},
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var payload struct {
		CartCreate wireCartPayload `json:"cartCreate"`
	}
	if err := c.do(ctx, cartCreateMutation, variables, &payload); err != nil {
		return nil, err
	}
	if err := userErrorsToError(payload.CartCreate.UserErrors); err != nil {
		return nil, err
	}
	if payload.CartCreate.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shop returned no cart on create")
	}
	return decodeCart(payload.CartCreate.Cart)
}

// AddLine appends one unit of the variant to an existing cart. A nil cart
// in the payload means the cart no longer resolves remotely, most commonly
// because checkout already completed against it; that surfaces as a
// STALE_CART error for the mutator's recovery path.
func (c *Connection) AddLine(ctx context.Context, cartID, variantID string) (*Cart, error) {
	variables := map[string]any{
		"cartId": cartID,
		"lines": []map[string]any{
			{"merchandiseId": variantID},
		},
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var payload struct {
		CartLinesAdd wireCartPayload `json:"cartLinesAdd"`
	}
	if err := c.do(ctx, cartLinesAddMutation, variables, &payload); err != nil {
		return nil, err
	}
	if payload.CartLinesAdd.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStaleCart, "cart no longer resolves").
			WithDetails(map[string]any{"cart_id": cartID})
	}
	if err := userErrorsToError(payload.CartLinesAdd.UserErrors); err != nil {
		return nil, err
	}
	return decodeCart(payload.CartLinesAdd.Cart)
}

// RemoveLine deletes one line and returns the updated cart.
func (c *Connection) RemoveLine(ctx context.Context, cartID, lineID string) (*Cart, error) {
	variables := map[string]any{
		"cartId":   cartID,
		"lineIds":  []string{lineID},
		"maxLines": c.maxLines,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var payload struct {
		CartLinesRemove wireCartPayload `json:"cartLinesRemove"`
	}
	if err := c.do(ctx, cartLinesRemoveMutation, variables, &payload); err != nil {
		return nil, err
	}
	if err := userErrorsToError(payload.CartLinesRemove.UserErrors); err != nil {
		return nil, err
	}
	if payload.CartLinesRemove.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStaleCart, "cart no longer resolves").
			WithDetails(map[string]any{"cart_id": cartID})
	}
	return decodeCart(payload.CartLinesRemove.Cart)
}

// UpdateLineQuantity sets the quantity of one line and returns the updated
// cart. Quantity zero must be routed to RemoveLine by the caller; the
// backend behavior for zero is undefined.
func (c *Connection) UpdateLineQuantity(ctx context.Context, cartID, lineID string, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a positive integer").
			WithDetails(map[string]any{"quantity": quantity})
	}
	variables := map[string]any{
		"cartId": cartID,
		"lines": []map[string]any{
			{"id": lineID, "quantity": quantity},
		},
		"maxLines": c.maxLines,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var payload struct {
		CartLinesUpdate wireCartPayload `json:"cartLinesUpdate"`
	}
	if err := c.do(ctx, cartLinesUpdateMutation, variables, &payload); err != nil {
		return nil, err
	}
	if err := userErrorsToError(payload.CartLinesUpdate.UserErrors); err != nil {
		return nil, err
	}
	if payload.CartLinesUpdate.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStaleCart, "cart no longer resolves").
			WithDetails(map[string]any{"cart_id": cartID})
	}
	return decodeCart(payload.CartLinesUpdate.Cart)
}

// GetCart fetches the current cart contents. A null cart is a valid
// terminal state ("already checked out") and comes back as NOT_FOUND, not
// as a dependency failure.
func (c *Connection) GetCart(ctx context.Context, cartID string) (*Cart, error) {
	variables := map[string]any{
		"id":       cartID,
		"maxLines": c.maxLines,
	}

	var payload struct {
		Cart *wireCart `json:"cart"`
	}
	if err := c.do(ctx, cartQuery, variables, &payload); err != nil {
		return nil, err
	}
	if payload.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not resolvable").
			WithDetails(map[string]any{"cart_id": cartID})
	}
	return decodeCart(payload.Cart)
}

// GetProduct loads the product page payload plus the shop's policy bodies.
func (c *Connection) GetProduct(ctx context.Context, handle string) (*Product, *ShopPolicies, error) {
	variables := map[string]any{"productHandle": handle}

	var payload struct {
		Product *wireProduct     `json:"product"`
		Shop    wireShopPolicies `json:"shop"`
	}
	if err := c.do(ctx, productPageQuery, variables, &payload); err != nil {
		return nil, nil, err
	}
	if payload.Product == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"handle": handle})
	}
	product, err := decodeProduct(payload.Product)
	if err != nil {
		return nil, nil, err
	}
	return product, decodePolicies(payload.Shop), nil
}

// Recommendations returns related products for the given product id.
func (c *Connection) Recommendations(ctx context.Context, productID string) ([]Recommendation, error) {
	variables := map[string]any{"productId": productID}

	var payload struct {
		ProductRecommendations []wireRecommendation `json:"productRecommendations"`
	}
	if err := c.do(ctx, recommendationsQuery, variables, &payload); err != nil {
		return nil, err
	}
	recs := make([]Recommendation, 0, len(payload.ProductRecommendations))
	for _, wire := range payload.ProductRecommendations {
		rec, err := decodeRecommendation(wire)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (c *Connection) do(ctx context.Context, query string, variables map[string]any, dest any) error {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(accessTokenHeader, c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeShopUnavailable, err, "calling shop backend").
			WithDetails(map[string]any{"shop_domain": c.domain})
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeShopUnavailable, err, "reading shop response").
			WithDetails(map[string]any{"shop_domain": c.domain})
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return pkgerrors.New(pkgerrors.CodeShopUnavailable, fmt.Sprintf("shop returned status %d", resp.StatusCode)).
			WithDetails(map[string]any{"shop_domain": c.domain, "status": resp.StatusCode})
	}

	var envelope gqlEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding shop response")
	}
	if len(envelope.Errors) > 0 {
		return pkgerrors.New(pkgerrors.CodeDependency, envelope.Errors[0].Message).
			WithDetails(map[string]any{"shop_domain": c.domain})
	}
	if dest != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, dest); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding shop payload")
		}
	}
	return nil
}

func userErrorsToError(userErrors []wireUserError) error {
	if len(userErrors) == 0 {
		return nil
	}
	first := userErrors[0]
	return pkgerrors.New(pkgerrors.CodeValidation, first.Message).
		WithDetails(map[string]any{"code": first.Code})
}

func decodeCart(wire *wireCart) (*Cart, error) {
	cart := &Cart{
		ID:          wire.ID,
		CheckoutURL: wire.CheckoutURL,
	}

	if wire.EstimatedCost != nil {
		subtotal, err := decodeMoney(wire.EstimatedCost.SubtotalAmount)
		if err != nil {
			return nil, err
		}
		total, err := decodeMoney(wire.EstimatedCost.TotalAmount)
		if err != nil {
			return nil, err
		}
		cart.Subtotal = subtotal
		cart.Total = total
	}

	if wire.Lines == nil {
		return cart, nil
	}
	for _, edge := range wire.Lines.Edges {
		node := edge.Node
		price, err := decodeMoney(node.Merchandise.PriceV2)
		if err != nil {
			return nil, err
		}
		line := CartLine{
			ID:            node.ID,
			MerchandiseID: node.Merchandise.ID,
			ProductTitle:  node.Merchandise.Product.Title,
			Quantity:      node.Quantity,
			UnitPrice:     price,
		}
		if node.Merchandise.Image != nil {
			line.ImageURL = node.Merchandise.Image.OriginalSrc
		}
		for _, opt := range node.Merchandise.SelectedOptions {
			line.SelectedOptions = append(line.SelectedOptions, types.SelectedOption{Name: opt.Name, Value: opt.Value})
		}
		cart.Lines = append(cart.Lines, line)
	}
	return cart, nil
}

func decodeProduct(wire *wireProduct) (*Product, error) {
	product := &Product{
		ID:          wire.ID,
		Title:       wire.Title,
		Description: wire.Description,
		ProductType: wire.ProductType,
		Vendor:      wire.Vendor,
		Tags:        wire.Tags,
	}
	for _, opt := range wire.Options {
		product.Options = append(product.Options, ProductOption{Name: opt.Name, Values: opt.Values})
	}
	for _, edge := range wire.Variants.Edges {
		variant, err := decodeVariant(edge.Node)
		if err != nil {
			return nil, err
		}
		product.Variants = append(product.Variants, variant)
	}
	for _, edge := range wire.Images.Edges {
		product.Images = append(product.Images, Image{URL: edge.Node.OriginalSrc, Alt: edge.Node.AltText})
	}
	return product, nil
}

func decodeVariant(wire wireVariant) (ProductVariant, error) {
	price, err := decodeMoney(wire.PriceV2)
	if err != nil {
		return ProductVariant{}, err
	}
	variant := ProductVariant{
		ID:               wire.ID,
		Title:            wire.Title,
		Price:            price,
		AvailableForSale: wire.AvailableForSale,
	}
	if wire.Image != nil {
		variant.ImageURL = wire.Image.OriginalSrc
		variant.ImageAlt = wire.Image.AltText
	}
	for _, opt := range wire.SelectedOptions {
		variant.SelectedOptions = append(variant.SelectedOptions, types.SelectedOption{Name: opt.Name, Value: opt.Value})
	}
	return variant, nil
}

func decodePolicies(wire wireShopPolicies) *ShopPolicies {
	policies := &ShopPolicies{}
	if wire.PrivacyPolicy != nil {
		policies.Privacy = wire.PrivacyPolicy.Body
	}
	if wire.RefundPolicy != nil {
		policies.Refund = wire.RefundPolicy.Body
	}
	if wire.ShippingPolicy != nil {
		policies.Shipping = wire.ShippingPolicy.Body
	}
	if wire.TermsOfService != nil {
		policies.Terms = wire.TermsOfService.Body
	}
	return policies
}

func decodeRecommendation(wire wireRecommendation) (Recommendation, error) {
	minPrice, err := decodeMoney(wire.PriceRange.MinVariantPrice)
	if err != nil {
		return Recommendation{}, err
	}
	maxPrice, err := decodeMoney(wire.PriceRange.MaxVariantPrice)
	if err != nil {
		return Recommendation{}, err
	}
	rec := Recommendation{
		ID:       wire.ID,
		Handle:   wire.Handle,
		Title:    wire.Title,
		MinPrice: minPrice,
		MaxPrice: maxPrice,
	}
	if len(wire.Images.Edges) > 0 {
		rec.ImageURL = wire.Images.Edges[0].Node.OriginalSrc
	}
	return rec, nil
}

func decodeMoney(wire wireMoney) (types.Money, error) {
	if wire.Amount == "" {
		return types.Money{Currency: wire.CurrencyCode}, nil
	}
	money, err := types.NewMoney(wire.Amount, wire.CurrencyCode)
	if err != nil {
		return types.Money{}, pkgerrors.Wrap(pkgerrors.CodeDataInconsistency, err, "malformed money amount")
	}
	return money, nil
}
