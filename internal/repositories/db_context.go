package repositories

import (
	"fmt"
	"github.com/glebarez/sqlite"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type DbContext struct {
	DB *gorm.DB
}

func NewDbContext(connectionString string) (*DbContext, error) {
	db, err := gorm.Open(sqlite.Open(connectionString), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}

	return &DbContext{DB: db}, nil
}

func (c *DbContext) Migrate() error {

	entities := []any{
		models.Keyword{},
		models.Credential{},
		models.CollectionJob{},
		models.RawRanking{},
		models.AdSlotTarget{},
		models.AdSlotResult{},
		models.CurrentRank{},
		models.HourlyRank{},
		models.DailyRank{},
	}

	for _, entity := range entities {
		if err := c.DB.AutoMigrate(entity); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", entity, err)
		}
	}

	if err := c.DB.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_keyword_text_type ON keywords (text, type); " +
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_current_keyword_product ON current_ranks (keyword_id, product_id); " +
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_hourly_keyword_product_bucket ON hourly_ranks (keyword_id, product_id, bucket); " +
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_daily_keyword_product_date ON daily_ranks (keyword_id, product_id, date);").
		Error; err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func (c *DbContext) Close() error {
	db, err := c.DB.DB()
	if err != nil {
		return err
	}

	return db.Close()
}
