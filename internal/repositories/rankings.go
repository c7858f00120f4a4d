package repositories

import (
	"context"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	"gorm.io/gorm"
	"time"
)

type Rankings struct {
	db *gorm.DB
}

func NewRankingsRepository(db *gorm.DB) *Rankings {
	return &Rankings{db: db}
}

func (repo *Rankings) BatchInsert(ctx context.Context, rankings []models.RawRanking) error {
	if len(rankings) == 0 {
		return nil
	}
	return repo.db.WithContext(ctx).CreateInBatches(rankings, 100).Error
}

// LatestFor returns the rows of the keyword's most recent collection run,
// bounded to the top limit by rank.
func (repo *Rankings) LatestFor(ctx context.Context, keywordID int, limit int) ([]models.RawRanking, error) {

	var rankings []models.RawRanking
	err := repo.db.WithContext(ctx).
		Where("keyword_id = ? AND collected_at = (?)", keywordID,
			repo.db.Model(&models.RawRanking{}).
				Select("MAX(collected_at)").
				Where("keyword_id = ?", keywordID)).
		Order("rank").
		Limit(limit).
		Find(&rankings).Error
	if err != nil {
		return nil, err
	}
	return rankings, nil
}

func (repo *Rankings) RemoveOlderThan(ctx context.Context, expirationTime time.Time) (int64, error) {
	res := repo.db.WithContext(ctx).Delete(&models.RawRanking{}, "collected_at < ?", expirationTime)
	return res.RowsAffected, res.Error
}
