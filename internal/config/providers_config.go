package config

import (
	"fmt"
	"github.com/spf13/viper"
	"strings"
	"time"
)

type ProvidersConfig struct {
	Shopping    ShoppingConfig    `mapstructure:"shopping"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`

	CredentialRefreshTTL time.Duration `mapstructure:"credential_refresh_ttl"`
	RateLimitWindow      time.Duration `mapstructure:"rate_limit_window"`
}

type ShoppingConfig struct {
	BaseURL              string  `mapstructure:"base_url"`
	MaxRequestsPerSecond float32 `mapstructure:"max_requests_per_second"`
}

type MarketplaceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

func (config ProvidersConfig) validate() error {

	var missingFields []string

	if config.Shopping.BaseURL == "" {
		missingFields = append(missingFields, "shopping.base_url")
	}

	if config.Marketplace.BaseURL == "" {
		missingFields = append(missingFields, "marketplace.base_url")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required variables: %s", strings.Join(missingFields, ", "))
	}

	return nil
}

func (config ProvidersConfig) bindEnvironmentVariables() error {
	var errs []error

	if err := viper.BindEnv("providers.shopping.base_url", "SHOPPING_BASE_URL"); err != nil {
		errs = append(errs, err)
	}

	if err := viper.BindEnv("providers.marketplace.base_url", "MARKETPLACE_BASE_URL"); err != nil {
		errs = append(errs, err)
	}

	if err := viper.BindEnv("providers.credential_refresh_ttl", "CREDENTIAL_REFRESH_TTL"); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return createMultiError(errs)
	}

	return nil
}
