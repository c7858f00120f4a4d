package repositories

import (
	"context"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	"gorm.io/gorm"
)

type AdSlots struct {
	db *gorm.DB
}

func NewAdSlotsRepository(db *gorm.DB) *AdSlots {
	return &AdSlots{db: db}
}

func (repo *AdSlots) Active(ctx context.Context) ([]models.AdSlotTarget, error) {

	var targets []models.AdSlotTarget
	if err := repo.db.WithContext(ctx).Where("active = ?", true).Find(&targets).Error; err != nil {
		return nil, err
	}
	return targets, nil
}

func (repo *AdSlots) GetByID(ctx context.Context, id int) (*models.AdSlotTarget, error) {

	var target models.AdSlotTarget
	if err := repo.db.WithContext(ctx).First(&target, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &target, nil
}

// SetPriceBaseline records the first observed price rank. The WHERE clause
// keeps an existing baseline untouched, so the baseline is set at most once.
func (repo *AdSlots) SetPriceBaseline(ctx context.Context, id int, rank int) error {
	return repo.db.WithContext(ctx).Model(&models.AdSlotTarget{}).
		Where("id = ? AND price_baseline IS NULL", id).
		Update("price_baseline", rank).Error
}

func (repo *AdSlots) SetStoreBaseline(ctx context.Context, id int, rank int) error {
	return repo.db.WithContext(ctx).Model(&models.AdSlotTarget{}).
		Where("id = ? AND store_baseline IS NULL", id).
		Update("store_baseline", rank).Error
}

func (repo *AdSlots) SaveResult(ctx context.Context, result models.AdSlotResult) error {
	return repo.db.WithContext(ctx).Create(&result).Error
}
