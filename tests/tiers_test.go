package tests

import (
	"context"
	"testing"
	"time"

	"github.com/rankowl/rank-tracker/internal/domain/models"
	"github.com/rankowl/rank-tracker/internal/repositories"
	"github.com/stretchr/testify/assert"
)

func clearTiers() {
	dbCtx.DB.Exec("DELETE from current_ranks WHERE TRUE")
	dbCtx.DB.Exec("DELETE from hourly_ranks WHERE TRUE")
	dbCtx.DB.Exec("DELETE from daily_ranks WHERE TRUE")
	dbCtx.DB.Exec("DELETE from ad_slot_targets WHERE TRUE")
	dbCtx.DB.Exec("DELETE from ad_slot_results WHERE TRUE")
}

func Test_Tiers_ReplaceCurrentCarriesPreviousRank(t *testing.T) {

	defer clearTiers()
	ctx := context.Background()

	tiers := repositories.NewTiersRepository(dbCtx.DB)

	err := tiers.ReplaceCurrent(ctx, keyword.ID, []models.CurrentRank{
		{ProductID: "A", Rank: 1},
		{ProductID: "B", Rank: 2},
	})
	assert.NoError(t, err)

	err = tiers.ReplaceCurrent(ctx, keyword.ID, []models.CurrentRank{
		{ProductID: "B", Rank: 1},
		{ProductID: "C", Rank: 2},
	})
	assert.NoError(t, err)

	rows, err := tiers.CurrentFor(ctx, keyword.ID)
	assert.NoError(t, err)
	assert.Len(t, rows, 2)

	assert.Equal(t, "B", rows[0].ProductID)
	if assert.NotNil(t, rows[0].PreviousRank) {
		assert.Equal(t, 2, *rows[0].PreviousRank)
	}
	//moved from 2 to 1, one position up
	assert.Equal(t, 1, rows[0].Change())

	assert.Equal(t, "C", rows[1].ProductID)
	assert.Nil(t, rows[1].PreviousRank)
	assert.Equal(t, 0, rows[1].Change())
}

func Test_Tiers_UpsertHourlyKeepsRunningAverage(t *testing.T) {

	defer clearTiers()
	ctx := context.Background()

	tiers := repositories.NewTiersRepository(dbCtx.DB)
	bucket := time.Date(2026, 8, 31, 14, 25, 0, 0, time.UTC)

	for _, rank := range []int{10, 20, 30} {
		err := tiers.UpsertHourly(ctx, keyword.ID, bucket, []models.RawRanking{
			{ProductID: "P1", Rank: rank, Title: "product"},
		})
		assert.NoError(t, err)
	}

	from := bucket.Truncate(time.Hour)
	rows, err := tiers.HourlyBetween(ctx, keyword.ID, from, from.Add(time.Hour))
	assert.NoError(t, err)

	assert.Len(t, rows, 1)
	assert.Equal(t, 20.0, rows[0].AvgRank)
	assert.Equal(t, 10, rows[0].MinRank)
	assert.Equal(t, 30, rows[0].MaxRank)
	assert.Equal(t, 3, rows[0].SampleCount)
}

func Test_Tiers_UpsertDailyReplacesTheDayRow(t *testing.T) {

	defer clearTiers()
	ctx := context.Background()

	tiers := repositories.NewTiersRepository(dbCtx.DB)

	row := models.DailyRank{KeywordID: keyword.ID, Date: "2026-08-31", ProductID: "P1", AvgRank: 12, SampleCount: 4}
	assert.NoError(t, tiers.UpsertDaily(ctx, []models.DailyRank{row}))

	row.AvgRank = 9
	row.SampleCount = 6
	assert.NoError(t, tiers.UpsertDaily(ctx, []models.DailyRank{row}))

	rows, err := tiers.DailyFor(ctx, keyword.ID, "2026-08-31")
	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 9.0, rows[0].AvgRank)
	assert.Equal(t, 6, rows[0].SampleCount)
}

func Test_Tiers_HourlyRetentionSparesTheDayBeingFolded(t *testing.T) {

	defer clearTiers()
	ctx := context.Background()

	tiers := repositories.NewTiersRepository(dbCtx.DB)

	//one bucket per hour of the day that the next daily fold will read
	dayStart := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	for hour := 0; hour < 24; hour++ {
		err := tiers.UpsertHourly(ctx, keyword.ID, dayStart.Add(time.Duration(hour)*time.Hour), []models.RawRanking{
			{ProductID: "P1", Rank: hour + 1, Title: "product"},
		})
		assert.NoError(t, err)
	}

	//a cycle that finishes just after midnight runs its cleanup before
	//the fold at 00:05
	cycleEnd := dayStart.AddDate(0, 0, 1).Add(2 * time.Minute)
	_, err := tiers.RemoveHourlyBefore(ctx, cycleEnd.Add(-25*time.Hour))
	assert.NoError(t, err)

	rows, err := tiers.HourlyBetween(ctx, keyword.ID, dayStart, dayStart.AddDate(0, 0, 1))
	assert.NoError(t, err)
	assert.Len(t, rows, 24)
}

func Test_AdSlots_BaselineIsSetOnlyOnce(t *testing.T) {

	defer clearTiers()
	ctx := context.Background()

	adSlots := repositories.NewAdSlotsRepository(dbCtx.DB)

	target := models.AdSlotTarget{
		KeywordID:      keyword.ID,
		PriceCompareID: "CMP7",
		ProductID:      "P9",
		SellerName:     "myStore",
		Active:         true,
	}
	assert.NoError(t, dbCtx.DB.Create(&target).Error)

	assert.NoError(t, adSlots.SetPriceBaseline(ctx, target.ID, 5))
	//a later, worse observation must not move the baseline
	assert.NoError(t, adSlots.SetPriceBaseline(ctx, target.ID, 9))

	stored, err := adSlots.GetByID(ctx, target.ID)
	assert.NoError(t, err)
	if assert.NotNil(t, stored.PriceBaseline) {
		assert.Equal(t, 5, *stored.PriceBaseline)
	}
	assert.Nil(t, stored.StoreBaseline)
}
