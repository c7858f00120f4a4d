package tests

import (
	"context"
	"testing"
	"time"

	"github.com/rankowl/rank-tracker/internal/domain/models"
	"github.com/rankowl/rank-tracker/internal/repositories"
	"github.com/stretchr/testify/assert"
)

func clearRankings() {
	dbCtx.DB.Exec("DELETE from raw_rankings WHERE TRUE")
}

func Test_Rankings_LatestForReturnsOnlyTheNewestRun(t *testing.T) {

	defer clearRankings()
	ctx := context.Background()

	rankings := repositories.NewRankingsRepository(dbCtx.DB)

	older := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	newer := older.Add(30 * time.Minute)

	err := rankings.BatchInsert(ctx, []models.RawRanking{
		{KeywordID: keyword.ID, ProductID: "OLD1", Rank: 1, CollectedAt: older},
		{KeywordID: keyword.ID, ProductID: "OLD2", Rank: 2, CollectedAt: older},
		{KeywordID: keyword.ID, ProductID: "NEW2", Rank: 2, CollectedAt: newer},
		{KeywordID: keyword.ID, ProductID: "NEW1", Rank: 1, CollectedAt: newer},
		{KeywordID: keyword.ID, ProductID: "NEW3", Rank: 3, CollectedAt: newer},
	})
	assert.NoError(t, err)

	rows, err := rankings.LatestFor(ctx, keyword.ID, 2)
	assert.NoError(t, err)

	assert.Len(t, rows, 2)
	assert.Equal(t, "NEW1", rows[0].ProductID)
	assert.Equal(t, "NEW2", rows[1].ProductID)
}

func Test_Rankings_RemoveOlderThanPrunesExpiredRuns(t *testing.T) {

	defer clearRankings()
	ctx := context.Background()

	rankings := repositories.NewRankingsRepository(dbCtx.DB)

	expired := time.Now().UTC().Add(-4 * 24 * time.Hour)
	fresh := time.Now().UTC()

	err := rankings.BatchInsert(ctx, []models.RawRanking{
		{KeywordID: keyword.ID, ProductID: "EXPIRED", Rank: 1, CollectedAt: expired},
		{KeywordID: keyword.ID, ProductID: "FRESH", Rank: 1, CollectedAt: fresh},
	})
	assert.NoError(t, err)

	removed, err := rankings.RemoveOlderThan(ctx, time.Now().UTC().Add(-3*24*time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	rows, err := rankings.LatestFor(ctx, keyword.ID, 10)
	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, "FRESH", rows[0].ProductID)
}
