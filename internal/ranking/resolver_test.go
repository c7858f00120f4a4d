package ranking

import (
	"testing"

	"github.com/rankowl/rank-tracker/internal/clients"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	"github.com/stretchr/testify/assert"
)

func Test_Position_SpansPages(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(1, Position(1, 0, 100))
	assert.Equal(100, Position(1, 99, 100))
	assert.Equal(101, Position(2, 0, 100))
	assert.Equal(105, Position(2, 4, 100))
	assert.Equal(300, Position(3, 99, 100))
}

func Test_Resolve_MatchesBothIdentifierRules(t *testing.T) {

	assert := assert.New(t)

	items := []clients.Item{
		{ProductID: "P1", Seller: "storeA"},
		{ProductID: "CMP7", Seller: "storeB"},
		{ProductID: "P9", Seller: "myStore"},
		{ProductID: "P9", Seller: "otherStore"},
	}

	target := models.AdSlotTarget{
		PriceCompareID: "CMP7",
		ProductID:      "P9",
		SellerName:     "myStore",
	}

	resolution := Resolve(items, target)

	assert.True(resolution.Found())
	if assert.NotNil(resolution.PriceRank) {
		assert.Equal(2, *resolution.PriceRank)
	}
	if assert.NotNil(resolution.StoreRank) {
		assert.Equal(3, *resolution.StoreRank)
	}
	//no baselines yet, so no diffs
	assert.Nil(resolution.PriceDiff)
	assert.Nil(resolution.StoreDiff)
}

func Test_Resolve_SameProductDifferentSellerIsNoMatch(t *testing.T) {

	assert := assert.New(t)

	items := []clients.Item{
		{ProductID: "P9", Seller: "otherStore"},
	}

	target := models.AdSlotTarget{ProductID: "P9", SellerName: "myStore"}

	resolution := Resolve(items, target)

	assert.False(resolution.Found())
	assert.Nil(resolution.PriceRank)
	assert.Nil(resolution.StoreRank)
}

func Test_Resolve_DiffIsBaselineMinusCurrent(t *testing.T) {

	assert := assert.New(t)

	baseline := 10
	items := make([]clients.Item, 7)
	for i := range items {
		items[i] = clients.Item{ProductID: "other"}
	}
	items[6] = clients.Item{ProductID: "CMP7"}

	target := models.AdSlotTarget{
		PriceCompareID: "CMP7",
		PriceBaseline:  &baseline,
	}

	resolution := Resolve(items, target)

	if assert.NotNil(resolution.PriceDiff) {
		//moved from 10 to 7, three positions up
		assert.Equal(3, *resolution.PriceDiff)
	}
	assert.Nil(resolution.StoreDiff)
}

func Test_Resolve_EmptyTargetMatchesNothing(t *testing.T) {

	assert := assert.New(t)

	items := []clients.Item{{ProductID: ""}}

	resolution := Resolve(items, models.AdSlotTarget{})

	assert.False(resolution.Found())
}
