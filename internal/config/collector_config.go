package config

import (
	"fmt"
	"github.com/spf13/viper"
	"time"
)

type CollectorConfig struct {
	CronExpression     string        `mapstructure:"cron_expression"`
	Timezone           string        `mapstructure:"timezone"`
	MaxPages           int           `mapstructure:"max_pages"`
	ItemsPerPage       int           `mapstructure:"items_per_page"`
	KeywordConcurrency int           `mapstructure:"keyword_concurrency"`
	AdSlotConcurrency  int           `mapstructure:"adslot_concurrency"`
	BacklogThreshold   int           `mapstructure:"backlog_threshold"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	BlockedRetryCap    int           `mapstructure:"blocked_retry_cap"`
	BlockedRetryDelay  time.Duration `mapstructure:"blocked_retry_delay"`
	PacingMin          time.Duration `mapstructure:"pacing_min"`
	PacingMax          time.Duration `mapstructure:"pacing_max"`
	RawRetentionDays   int           `mapstructure:"raw_retention_days"`
	FinishedJobsKept   int           `mapstructure:"finished_jobs_kept"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
}

func (config *CollectorConfig) setDefaults() {
	if config.CronExpression == "" {
		config.CronExpression = "*/30 * * * *"
	}
	if config.Timezone == "" {
		config.Timezone = "Asia/Seoul"
	}
	if config.MaxPages == 0 {
		config.MaxPages = 3
	}
	if config.ItemsPerPage == 0 {
		config.ItemsPerPage = 100
	}
	if config.KeywordConcurrency == 0 {
		config.KeywordConcurrency = 5
	}
	if config.AdSlotConcurrency == 0 {
		config.AdSlotConcurrency = 2
	}
	if config.BacklogThreshold == 0 {
		config.BacklogThreshold = 50
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 3
	}
	if config.BlockedRetryCap == 0 {
		config.BlockedRetryCap = 3
	}
	if config.BlockedRetryDelay == 0 {
		config.BlockedRetryDelay = 5 * time.Minute
	}
	if config.PacingMin == 0 {
		config.PacingMin = 2 * time.Second
	}
	if config.PacingMax == 0 {
		config.PacingMax = 15 * time.Second
	}
	if config.RawRetentionDays == 0 {
		config.RawRetentionDays = 3
	}
	if config.FinishedJobsKept == 0 {
		config.FinishedJobsKept = 200
	}
	if config.PollInterval == 0 {
		config.PollInterval = time.Second
	}
}

func (config CollectorConfig) validate() error {

	if _, err := time.LoadLocation(config.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
	}

	if config.PacingMin > config.PacingMax {
		return fmt.Errorf("pacing_min must not exceed pacing_max")
	}

	if config.ItemsPerPage < 1 || config.ItemsPerPage > 100 {
		return fmt.Errorf("items_per_page must be between 1 and 100")
	}

	return nil
}

func (config CollectorConfig) bindEnvironmentVariables() error {
	var errs []error

	if err := viper.BindEnv("collector.cron_expression", "COLLECTOR_CRON"); err != nil {
		errs = append(errs, err)
	}

	if err := viper.BindEnv("collector.timezone", "COLLECTOR_TIMEZONE"); err != nil {
		errs = append(errs, err)
	}

	if err := viper.BindEnv("collector.keyword_concurrency", "KEYWORD_CONCURRENCY"); err != nil {
		errs = append(errs, err)
	}

	if err := viper.BindEnv("collector.adslot_concurrency", "ADSLOT_CONCURRENCY"); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return createMultiError(errs)
	}

	return nil
}

// Location resolves the configured timezone; validate() guarantees it loads.
func (config CollectorConfig) Location() *time.Location {
	loc, _ := time.LoadLocation(config.Timezone)
	return loc
}
