package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount tagged with its ISO currency code. Storefront
// backends return amounts as decimal strings ("10.0"), so arithmetic goes
// through shopspring/decimal instead of floats.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney parses a decimal string amount as returned by shop backends.
func NewMoney(amount, currency string) (Money, error) {
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	return Money{Amount: dec, Currency: currency}, nil
}

// MustMoney is a test/fixture helper; it panics on malformed amounts.
func MustMoney(amount, currency string) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Add sums the amounts. The currency of the receiver wins; no conversion or
// currency-match check is performed, mirroring the original marketplace
// behavior. Callers that care should compare Currency themselves.
func (m Money) Add(other Money) Money {
	return Money{
		Amount:   m.Amount.Add(other.Amount),
		Currency: m.Currency,
	}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Format renders the amount with two decimal places and the currency code,
// e.g. "10.00 CAD".
func (m Money) Format() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}
