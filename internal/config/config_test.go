package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Config_EnvironmentOverrideWorksCorrect(t *testing.T) {

	os.Setenv("MODE", "test")

	os.Setenv("DB_CONNECTION_STRING", "override.db")
	os.Setenv("LOG_LEVEL", "DEBUG")
	os.Setenv("APP_NAME", "override-app")
	os.Setenv("SHOPPING_BASE_URL", "https://override.example.com/shop.json")
	os.Setenv("MARKETPLACE_BASE_URL", "https://override.example.com/products")
	os.Setenv("CREDENTIAL_REFRESH_TTL", "10m")
	os.Setenv("COLLECTOR_CRON", "*/15 * * * *")
	os.Setenv("COLLECTOR_TIMEZONE", "UTC")
	os.Setenv("KEYWORD_CONCURRENCY", "8")
	os.Setenv("ADSLOT_CONCURRENCY", "4")

	cfg := Get()

	assert.Equal(t, "override.db", cfg.DB.ConnectionString)
	assert.Equal(t, LevelDebug, cfg.Logger.LogLevel)
	assert.Equal(t, "override-app", cfg.Logger.AppName)
	assert.Equal(t, "https://override.example.com/shop.json", cfg.Providers.Shopping.BaseURL)
	assert.Equal(t, "https://override.example.com/products", cfg.Providers.Marketplace.BaseURL)
	assert.Equal(t, 10*time.Minute, cfg.Providers.CredentialRefreshTTL)
	assert.Equal(t, "*/15 * * * *", cfg.Collector.CronExpression)
	assert.Equal(t, "UTC", cfg.Collector.Timezone)
	assert.Equal(t, 8, cfg.Collector.KeywordConcurrency)
	assert.Equal(t, 4, cfg.Collector.AdSlotConcurrency)
	assert.Equal(t, time.UTC, cfg.Collector.Location())
}

func Test_CollectorConfig_DefaultsCoverCollectionPolicy(t *testing.T) {

	cfg := CollectorConfig{}
	cfg.setDefaults()

	assert.Equal(t, 3, cfg.MaxPages)
	assert.Equal(t, 100, cfg.ItemsPerPage)
	assert.Equal(t, 50, cfg.BacklogThreshold)
	assert.Equal(t, 3, cfg.BlockedRetryCap)
	assert.Equal(t, 2*time.Second, cfg.PacingMin)
	assert.Equal(t, 15*time.Second, cfg.PacingMax)
	assert.NoError(t, cfg.validate())
}

func Test_CollectorConfig_RejectsInvalidTimezone(t *testing.T) {

	cfg := CollectorConfig{}
	cfg.setDefaults()
	cfg.Timezone = "Mars/Olympus"

	assert.Error(t, cfg.validate())
}
