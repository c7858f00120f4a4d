package models

import "time"

// AdSlotTarget is an advertised listing to locate inside search results,
// matched either by its price-compare id or by a (product id, seller) pair.
type AdSlotTarget struct {
	ID             int
	KeywordID      int
	PriceCompareID string
	ProductID      string
	SellerName     string
	PriceBaseline  *int
	StoreBaseline  *int
	Active         bool `gorm:"default:true"`
	CreatedAt      time.Time
}

type AdSlotResult struct {
	ID          int
	AdSlotID    int `gorm:"index"`
	PriceRank   *int
	StoreRank   *int
	PriceDiff   *int
	StoreDiff   *int
	Found       bool
	CollectedAt time.Time
}
