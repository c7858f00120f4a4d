package ranking

import (
	"github.com/rankowl/rank-tracker/internal/clients"
	"github.com/rankowl/rank-tracker/internal/domain/models"
)

// Position computes the 1-based rank of the item at index on the given
// 1-based page.
func Position(page, index, perPage int) int {
	return (page-1)*perPage + index + 1
}

// Resolution is the outcome of locating an advertised listing inside a
// scanned result window. A nil rank means the corresponding identifier rule
// did not match; that is a valid result, not an error.
type Resolution struct {
	PriceRank *int
	StoreRank *int
	PriceDiff *int
	StoreDiff *int
}

func (r Resolution) Found() bool {
	return r.PriceRank != nil || r.StoreRank != nil
}

// Resolve scans the concatenated result window once for each of the target's
// identifier rules. Diffs are baseline minus current, so positive means the
// listing improved; they are computed only when the target already carries a
// baseline for that rank type.
func Resolve(items []clients.Item, target models.AdSlotTarget) Resolution {

	var resolution Resolution

	for i, item := range items {
		rank := i + 1

		if resolution.PriceRank == nil &&
			target.PriceCompareID != "" && item.ProductID == target.PriceCompareID {
			priceRank := rank
			resolution.PriceRank = &priceRank
		}

		if resolution.StoreRank == nil &&
			target.ProductID != "" && item.ProductID == target.ProductID &&
			item.Seller == target.SellerName {
			storeRank := rank
			resolution.StoreRank = &storeRank
		}

		if resolution.PriceRank != nil && resolution.StoreRank != nil {
			break
		}
	}

	resolution.PriceDiff = Diff(target.PriceBaseline, resolution.PriceRank)
	resolution.StoreDiff = Diff(target.StoreBaseline, resolution.StoreRank)
	return resolution
}

// Diff returns baseline - current, or nil unless both exist.
func Diff(baseline, current *int) *int {
	if baseline == nil || current == nil {
		return nil
	}
	diff := *baseline - *current
	return &diff
}
