package repositories

import (
	"context"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	"gorm.io/gorm"
	"time"
)

type Keywords struct {
	db *gorm.DB
}

func NewKeywordsRepository(db *gorm.DB) *Keywords {
	return &Keywords{db: db}
}

func (repo *Keywords) Add(ctx context.Context, keyword models.Keyword) error {
	return repo.db.WithContext(ctx).Create(&keyword).Error
}

func (repo *Keywords) Active(ctx context.Context, keywordType models.KeywordType) ([]models.Keyword, error) {

	var keywords []models.Keyword
	if err := repo.db.WithContext(ctx).
		Where("active = ? AND type = ?", true, keywordType).
		Order("priority DESC").
		Find(&keywords).Error; err != nil {
		return nil, err
	}
	return keywords, nil
}

func (repo *Keywords) GetByID(ctx context.Context, id int) (*models.Keyword, error) {

	var keyword models.Keyword
	if err := repo.db.WithContext(ctx).First(&keyword, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &keyword, nil
}

func (repo *Keywords) SetActive(ctx context.Context, id int, active bool) error {
	return repo.db.WithContext(ctx).Model(&models.Keyword{}).Where("id = ?", id).
		Update("active", active).Error
}

func (repo *Keywords) UpdateLastCollected(ctx context.Context, id int, at time.Time) error {
	return repo.db.WithContext(ctx).Model(&models.Keyword{}).Where("id = ?", id).
		Update("last_collected_at", at.UTC()).Error
}
