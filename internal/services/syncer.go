package services

import (
	"context"
	"time"

	"github.com/rankowl/rank-tracker/internal/domain/models"
	"github.com/rankowl/rank-tracker/internal/logger"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	// the daily fold at 00:05 local time still reads the previous day's
	// 00:00 bucket, so retention must exceed a full day
	hourlyRetention = 25 * time.Hour
	dailyRetention  = 30
)

type latestRankingSource interface {
	LatestFor(ctx context.Context, keywordID int, limit int) ([]models.RawRanking, error)
}

type tierStore interface {
	ReplaceCurrent(ctx context.Context, keywordID int, rows []models.CurrentRank) error
	UpsertHourly(ctx context.Context, keywordID int, bucket time.Time, observations []models.RawRanking) error
	HourlyBetween(ctx context.Context, keywordID int, from, to time.Time) ([]models.HourlyRank, error)
	UpsertDaily(ctx context.Context, rows []models.DailyRank) error
	RemoveHourlyBefore(ctx context.Context, cutoff time.Time) (int64, error)
	RemoveDailyBefore(ctx context.Context, date string) (int64, error)
}

// Syncer folds freshly collected raw rankings into the current, hourly and
// daily tiers. A failure for one keyword is logged and never aborts the
// batch.
type Syncer struct {
	rankings latestRankingSource
	tiers    tierStore
	topN     int
	location *time.Location
}

func NewSyncer(rankings latestRankingSource, tiers tierStore, topN int, location *time.Location) *Syncer {
	return &Syncer{
		rankings: rankings,
		tiers:    tiers,
		topN:     topN,
		location: location,
	}
}

// SyncCycle updates the current tier for each keyword of the finished cycle
// and folds the observations into the hour bucket.
func (s *Syncer) SyncCycle(ctx context.Context, keywordIDs []int) {

	now := time.Now()
	synced := 0

	for _, keywordID := range keywordIDs {
		if err := s.syncKeyword(ctx, keywordID, now); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeSync).
				Errorf("failed to sync keyword %d: %v", keywordID, err)
			continue
		}
		synced++
	}

	if removed, err := s.tiers.RemoveHourlyBefore(ctx, now.Add(-hourlyRetention)); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeSync).
			Errorf("failed to clean hourly tier: %v", err)
	} else if removed > 0 {
		log.Infof("removed %d expired hourly rows", removed)
	}

	log.Infof("synced tiers for %d/%d keywords", synced, len(keywordIDs))
}

func (s *Syncer) syncKeyword(ctx context.Context, keywordID int, now time.Time) error {

	raw, err := s.rankings.LatestFor(ctx, keywordID, s.topN)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	rows := lo.Map(raw, func(r models.RawRanking, _ int) models.CurrentRank {
		return models.CurrentRank{
			KeywordID: keywordID,
			ProductID: r.ProductID,
			Rank:      r.Rank,
			Title:     r.Title,
			Price:     r.Price,
			Seller:    r.Seller,
			Category:  r.Category,
		}
	})

	if err = s.tiers.ReplaceCurrent(ctx, keywordID, rows); err != nil {
		return err
	}

	return s.tiers.UpsertHourly(ctx, keywordID, now, raw)
}

// SyncDaily folds the hourly rows of the given local day into one daily
// snapshot per (keyword, product). Buckets are aggregated with a
// sample-weighted mean so the day average matches the raw observations.
func (s *Syncer) SyncDaily(ctx context.Context, keywordIDs []int, day time.Time) {

	local := day.In(s.location)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	to := from.AddDate(0, 0, 1)
	date := from.Format("2006-01-02")

	for _, keywordID := range keywordIDs {

		hours, err := s.tiers.HourlyBetween(ctx, keywordID, from, to)
		if err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeSync).
				Errorf("failed to read hourly rows for keyword %d: %v", keywordID, err)
			continue
		}
		if len(hours) == 0 {
			continue
		}

		rows := foldDaily(keywordID, date, hours)
		if err = s.tiers.UpsertDaily(ctx, rows); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeSync).
				Errorf("failed to upsert daily rows for keyword %d: %v", keywordID, err)
		}
	}

	cutoff := from.AddDate(0, 0, -dailyRetention).Format("2006-01-02")
	if removed, err := s.tiers.RemoveDailyBefore(ctx, cutoff); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeSync).
			Errorf("failed to clean daily tier: %v", err)
	} else if removed > 0 {
		log.Infof("removed %d expired daily rows", removed)
	}

	log.Infof("daily sync finished for %v (%d keywords)", date, len(keywordIDs))
}

func foldDaily(keywordID int, date string, hours []models.HourlyRank) []models.DailyRank {

	byProduct := lo.GroupBy(hours, func(h models.HourlyRank) string { return h.ProductID })

	rows := make([]models.DailyRank, 0, len(byProduct))
	for productID, buckets := range byProduct {

		row := models.DailyRank{
			KeywordID: keywordID,
			Date:      date,
			ProductID: productID,
			MinRank:   buckets[0].MinRank,
			MaxRank:   buckets[0].MaxRank,
		}

		var weightedSum float64
		var latest models.HourlyRank

		for _, bucket := range buckets {
			weightedSum += bucket.AvgRank * float64(bucket.SampleCount)
			row.SampleCount += bucket.SampleCount
			if bucket.MinRank < row.MinRank {
				row.MinRank = bucket.MinRank
			}
			if bucket.MaxRank > row.MaxRank {
				row.MaxRank = bucket.MaxRank
			}
			if bucket.Bucket.After(latest.Bucket) {
				latest = bucket
			}
		}

		row.AvgRank = weightedSum / float64(row.SampleCount)
		row.Title = latest.Title
		row.Price = latest.Price
		row.Seller = latest.Seller
		rows = append(rows, row)
	}

	return rows
}
