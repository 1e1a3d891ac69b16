/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the investment-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                   string `mapstructure:"SERVER_PORT"`
	DatabaseURL                  string `mapstructure:"DATABASE_URL"`
	RedisURL                     string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix         string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                  string `mapstructure:"RABBITMQ_URL"`
	JWKSURL                      string `mapstructure:"JWKS_URL"`
	InternalAPIKey               string `mapstructure:"INTERNAL_API_KEY"`
	AccrualSchedule              string `mapstructure:"ACCRUAL_SCHEDULE"`
	AccrualPeriodMinutes         int    `mapstructure:"ACCRUAL_PERIOD_MINUTES"`
	AccrualMaxRetries            int    `mapstructure:"ACCRUAL_MAX_RETRIES"`
	DefaultMonthlyRate           string `mapstructure:"DEFAULT_MONTHLY_RATE"`
	WithdrawalRateLimitPerMinute int    `mapstructure:"WITHDRAWAL_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "coinharbor:rate_limit")
	viper.SetDefault("ACCRUAL_SCHEDULE", "* * * * *")
	viper.SetDefault("ACCRUAL_PERIOD_MINUTES", 1)
	viper.SetDefault("ACCRUAL_MAX_RETRIES", 3)
	viper.SetDefault("DEFAULT_MONTHLY_RATE", "5.0")
	viper.SetDefault("WITHDRAWAL_RATE_LIMIT_PER_MINUTE", 30)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "INVESTMENT_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "INVESTMENT_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("ACCRUAL_SCHEDULE")
	_ = viper.BindEnv("ACCRUAL_PERIOD_MINUTES")
	_ = viper.BindEnv("ACCRUAL_MAX_RETRIES")
	_ = viper.BindEnv("DEFAULT_MONTHLY_RATE")
	_ = viper.BindEnv("WITHDRAWAL_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("INVESTMENT_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "coinharbor:rate_limit"
	}

	config.AccrualSchedule = strings.TrimSpace(config.AccrualSchedule)
	if config.AccrualSchedule == "" {
		config.AccrualSchedule = "* * * * *"
	}
	if config.AccrualPeriodMinutes <= 0 {
		config.AccrualPeriodMinutes = 1
	}
	if config.AccrualMaxRetries <= 0 {
		config.AccrualMaxRetries = 3
	}
	config.DefaultMonthlyRate = strings.TrimSpace(config.DefaultMonthlyRate)
	if config.DefaultMonthlyRate == "" {
		config.DefaultMonthlyRate = "5.0"
	}
	if config.WithdrawalRateLimitPerMinute <= 0 {
		config.WithdrawalRateLimitPerMinute = 30
	}

	return
}
