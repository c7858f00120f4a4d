package repositories

import (
	"context"
	"github.com/pkg/errors"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	"gorm.io/gorm"
	"time"
)

type Tiers struct {
	db *gorm.DB
}

func NewTiersRepository(db *gorm.DB) *Tiers {
	return &Tiers{db: db}
}

func (repo *Tiers) CurrentFor(ctx context.Context, keywordID int) ([]models.CurrentRank, error) {

	var rows []models.CurrentRank
	if err := repo.db.WithContext(ctx).
		Where("keyword_id = ?", keywordID).
		Order("rank").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ReplaceCurrent swaps the keyword's current tier for the fresh set in one
// transaction. previous_rank is filled from the rows being replaced, so it
// always reflects the rank immediately prior to this write.
func (repo *Tiers) ReplaceCurrent(ctx context.Context, keywordID int, rows []models.CurrentRank) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		var existing []models.CurrentRank
		if err := tx.Where("keyword_id = ?", keywordID).Find(&existing).Error; err != nil {
			return err
		}

		priorRanks := make(map[string]int, len(existing))
		for _, row := range existing {
			priorRanks[row.ProductID] = row.Rank
		}

		if err := tx.Delete(&models.CurrentRank{}, "keyword_id = ?", keywordID).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		for i := range rows {
			rows[i].ID = 0
			rows[i].KeywordID = keywordID
			rows[i].UpdatedAt = now
			rows[i].PreviousRank = nil
			if prior, ok := priorRanks[rows[i].ProductID]; ok {
				priorCopy := prior
				rows[i].PreviousRank = &priorCopy
			}
		}

		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

// UpsertHourly folds one observation per product into the keyword's bucket
// using a running mean; min/max are only ever tightened.
func (repo *Tiers) UpsertHourly(ctx context.Context, keywordID int, bucket time.Time,
	observations []models.RawRanking) error {

	bucket = bucket.Truncate(time.Hour).UTC()

	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, observation := range observations {

			var row models.HourlyRank
			err := tx.Where("keyword_id = ? AND product_id = ? AND bucket = ?",
				keywordID, observation.ProductID, bucket).First(&row).Error

			if errors.Is(err, gorm.ErrRecordNotFound) {
				row = models.HourlyRank{
					KeywordID:   keywordID,
					Bucket:      bucket,
					ProductID:   observation.ProductID,
					AvgRank:     float64(observation.Rank),
					MinRank:     observation.Rank,
					MaxRank:     observation.Rank,
					SampleCount: 1,
					Title:       observation.Title,
					Price:       observation.Price,
					Seller:      observation.Seller,
					UpdatedAt:   time.Now().UTC(),
				}
				if err = tx.Create(&row).Error; err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}

			row.Fold(observation.Rank)
			row.Title = observation.Title
			row.Price = observation.Price
			row.UpdatedAt = time.Now().UTC()
			if err = tx.Save(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *Tiers) HourlyBetween(ctx context.Context, keywordID int, from, to time.Time) ([]models.HourlyRank, error) {

	var rows []models.HourlyRank
	if err := repo.db.WithContext(ctx).
		Where("keyword_id = ? AND bucket >= ? AND bucket < ?", keywordID, from.UTC(), to.UTC()).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (repo *Tiers) UpsertDaily(ctx context.Context, rows []models.DailyRank) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if err := tx.Delete(&models.DailyRank{},
				"keyword_id = ? AND product_id = ? AND date = ?",
				row.KeywordID, row.ProductID, row.Date).Error; err != nil {
				return err
			}
			row.ID = 0
			row.UpdatedAt = time.Now().UTC()
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *Tiers) DailyFor(ctx context.Context, keywordID int, date string) ([]models.DailyRank, error) {

	var rows []models.DailyRank
	if err := repo.db.WithContext(ctx).
		Where("keyword_id = ? AND date = ?", keywordID, date).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (repo *Tiers) RemoveHourlyBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := repo.db.WithContext(ctx).Delete(&models.HourlyRank{}, "bucket < ?", cutoff.UTC())
	return res.RowsAffected, res.Error
}

func (repo *Tiers) RemoveDailyBefore(ctx context.Context, date string) (int64, error) {
	res := repo.db.WithContext(ctx).Delete(&models.DailyRank{}, "date < ?", date)
	return res.RowsAffected, res.Error
}
