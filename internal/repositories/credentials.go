package repositories

import (
	"context"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	"gorm.io/gorm"
	"time"
)

type Credentials struct {
	db *gorm.DB
}

func NewCredentialsRepository(db *gorm.DB) *Credentials {
	return &Credentials{db: db}
}

func (repo *Credentials) Active(ctx context.Context, provider string) ([]models.Credential, error) {

	var credentials []models.Credential
	if err := repo.db.WithContext(ctx).
		Where("active = ? AND provider = ?", true, provider).
		Order("id").
		Find(&credentials).Error; err != nil {
		return nil, err
	}
	return credentials, nil
}

func (repo *Credentials) BumpUsage(ctx context.Context, id int) error {
	return repo.db.WithContext(ctx).Model(&models.Credential{}).Where("id = ?", id).
		Updates(map[string]any{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": time.Now().UTC(),
		}).Error
}

func (repo *Credentials) MarkRateLimited(ctx context.Context, id int, at time.Time) error {
	return repo.db.WithContext(ctx).Model(&models.Credential{}).Where("id = ?", id).
		Update("rate_limited_at", at.UTC()).Error
}

func (repo *Credentials) ResetUsage(ctx context.Context, provider string) error {
	return repo.db.WithContext(ctx).Model(&models.Credential{}).Where("provider = ?", provider).
		Update("usage_count", 0).Error
}
