package shopfront

import "encoding/json"

// GraphQL documents for the storefront API. coreCartFields mirrors the
// fragment every cart-returning operation shares.

const coreCartFields = `
fragment CoreCartFields on Cart {
  id
  checkoutUrl
  estimatedCost {
    subtotalAmount {
      amount
      currencyCode
    }
    totalAmount {
      amount
      currencyCode
    }
  }
  lines(first: $maxLines) {
    edges {
      node {
        id
        merchandise {
          ... on ProductVariant {
            id
            image {
              originalSrc
            }
            priceV2 {
              amount
              currencyCode
            }
            product {
              title
            }
            selectedOptions {
              name
              value
            }
          }
        }
        quantity
      }
    }
  }
}
`

const cartCreateMutation = `
mutation cartCreate($input: CartInput) {
  cartCreate(input: $input) {
    cart {
      id
      checkoutUrl
    }
    userErrors {
      code
      field
      message
    }
  }
}
`

const cartLinesAddMutation = `
mutation cartLinesAdd($lines: [CartLineInput!]!, $cartId: ID!) {
  cartLinesAdd(lines: $lines, cartId: $cartId) {
    cart {
      id
      checkoutUrl
    }
    userErrors {
      code
      field
      message
    }
  }
}
`

const cartLinesRemoveMutation = coreCartFields + `
mutation cartLinesRemove($cartId: ID!, $lineIds: [ID!]!, $maxLines: Int!) {
  cartLinesRemove(cartId: $cartId, lineIds: $lineIds) {
    cart {
      ...CoreCartFields
    }
    userErrors {
      code
      field
      message
    }
  }
}
`

const cartLinesUpdateMutation = coreCartFields + `
mutation cartLinesUpdate($cartId: ID!, $lines: [CartLineUpdateInput!]!, $maxLines: Int!) {
  cartLinesUpdate(cartId: $cartId, lines: $lines) {
    cart {
      ...CoreCartFields
    }
    userErrors {
      code
      field
      message
    }
  }
}
`

const cartQuery = coreCartFields + `
query getCart($id: ID!, $maxLines: Int!) {
  cart(id: $id) {
    ...CoreCartFields
  }
}
`

const productPageQuery = `
query getProductPageData($productHandle: String!) {
  product(handle: $productHandle) {
    id
    title
    description
    productType
    tags
    vendor
    options(first: 100) {
      id
      name
      values
    }
    variants(first: 100) {
      edges {
        node {
          id
          title
          priceV2 {
            amount
            currencyCode
          }
          image {
            originalSrc
            altText
          }
          availableForSale
          selectedOptions {
            name
            value
          }
        }
      }
    }
    images(first: 10) {
      edges {
        node {
          originalSrc
          altText
        }
      }
    }
  }
  shop {
    privacyPolicy {
      body
    }
    refundPolicy {
      body
    }
    shippingPolicy {
      body
    }
    termsOfService {
      body
    }
  }
}
`

const recommendationsQuery = `
query getRecommendations($productId: ID!) {
  productRecommendations(productId: $productId) {
    id
    handle
    title
    images(first: 1) {
      edges {
        node {
          originalSrc
          altText
        }
      }
    }
    priceRange {
      minVariantPrice {
        amount
        currencyCode
      }
      maxVariantPrice {
        amount
        currencyCode
      }
    }
  }
}
`

// Wire shapes below mirror the storefront JSON payloads.

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors,omitempty"`
}

type wireMoney struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type wireImage struct {
	OriginalSrc string `json:"originalSrc"`
	AltText     string `json:"altText"`
}

type wireUserError struct {
	Code    string `json:"code"`
	Field   any    `json:"field"`
	Message string `json:"message"`
}

type wireSelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type wireCart struct {
	ID            string `json:"id"`
	CheckoutURL   string `json:"checkoutUrl"`
	EstimatedCost *struct {
		SubtotalAmount wireMoney `json:"subtotalAmount"`
		TotalAmount    wireMoney `json:"totalAmount"`
	} `json:"estimatedCost"`
	Lines *struct {
		Edges []struct {
			Node struct {
				ID          string `json:"id"`
				Quantity    int    `json:"quantity"`
				Merchandise struct {
					ID      string     `json:"id"`
					Image   *wireImage `json:"image"`
					PriceV2 wireMoney  `json:"priceV2"`
					Product struct {
						Title string `json:"title"`
					} `json:"product"`
					SelectedOptions []wireSelectedOption `json:"selectedOptions"`
				} `json:"merchandise"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"lines"`
}

type wireCartPayload struct {
	Cart       *wireCart       `json:"cart"`
	UserErrors []wireUserError `json:"userErrors"`
}

type wireVariant struct {
	ID               string               `json:"id"`
	Title            string               `json:"title"`
	PriceV2          wireMoney            `json:"priceV2"`
	Image            *wireImage           `json:"image"`
	AvailableForSale bool                 `json:"availableForSale"`
	SelectedOptions  []wireSelectedOption `json:"selectedOptions"`
}

type wireProduct struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ProductType string   `json:"productType"`
	Vendor      string   `json:"vendor"`
	Tags        []string `json:"tags"`
	Options     []struct {
		Name   string   `json:"name"`
		Values []string `json:"values"`
	} `json:"options"`
	Variants struct {
		Edges []struct {
			Node wireVariant `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
	Images struct {
		Edges []struct {
			Node wireImage `json:"node"`
		} `json:"edges"`
	} `json:"images"`
}

type wirePolicy struct {
	Body string `json:"body"`
}

type wireShopPolicies struct {
	PrivacyPolicy  *wirePolicy `json:"privacyPolicy"`
	RefundPolicy   *wirePolicy `json:"refundPolicy"`
	ShippingPolicy *wirePolicy `json:"shippingPolicy"`
	TermsOfService *wirePolicy `json:"termsOfService"`
}

type wireRecommendation struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
	Title  string `json:"title"`
	Images struct {
		Edges []struct {
			Node wireImage `json:"node"`
		} `json:"edges"`
	} `json:"images"`
	PriceRange struct {
		MinVariantPrice wireMoney `json:"minVariantPrice"`
		MaxVariantPrice wireMoney `json:"maxVariantPrice"`
	} `json:"priceRange"`
}
