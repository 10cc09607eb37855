package directory

// Shop is one merchant entry in the marketplace directory. The storefront
// access token is the credential the shop published for its storefront API;
// it is public-read scoped, not a secret.
type Shop struct {
	ID                    string `json:"id"`
	Domain                string `json:"domain"`
	Name                  string `json:"name"`
	Country               string `json:"country"`
	Description           string `json:"description"`
	LogoURL               string `json:"logo_url"`
	StorefrontAccessToken string `json:"-"`
}

// Filter narrows the directory browse listing.
type Filter struct {
	Country string `json:"country"`
	Query   string `json:"query"`
	Sort    Sort   `json:"sort"`
}

// Sort orders the browse listing.
type Sort string

const (
	SortNameAsc  Sort = "NAME_ASC"
	SortNameDesc Sort = "NAME_DESC"
	SortNewest   Sort = "NEWEST"
)

// Valid reports whether the sort is one the directory accepts. The zero
// value is valid and means directory-default ordering.
func (s Sort) Valid() bool {
	switch s {
	case "", SortNameAsc, SortNameDesc, SortNewest:
		return true
	}
	return false
}
