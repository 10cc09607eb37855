package variant

import (
	"github.com/shopmesh/shopmesh-client/internal/shopfront"
	"github.com/shopmesh/shopmesh-client/pkg/types"
)

// Resolve maps an option selection to the concrete variant carrying exactly
// those option values. Linear scan, first match wins; within one product
// the option combination is unique so order only matters for malformed
// catalogs. A false result means the catalog and the selection disagree and
// callers must disable purchase actions rather than guess.
func Resolve(variants []shopfront.ProductVariant, selection types.OptionSelection) (*shopfront.ProductVariant, bool) {
	for i := range variants {
		if matches(variants[i], selection) {
			return &variants[i], true
		}
	}
	return nil, false
}

func matches(v shopfront.ProductVariant, selection types.OptionSelection) bool {
	for _, opt := range v.SelectedOptions {
		if selection[opt.Name] != opt.Value {
			return false
		}
	}
	return true
}

// DefaultSelection is the selection shown before the shopper touches any
// option control: the first variant's options, whether or not that variant
// is available for sale.
func DefaultSelection(variants []shopfront.ProductVariant) types.OptionSelection {
	selection := types.OptionSelection{}
	if len(variants) == 0 {
		return selection
	}
	for _, opt := range variants[0].SelectedOptions {
		selection[opt.Name] = opt.Value
	}
	return selection
}
