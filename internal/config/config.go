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

// Config holds all the configuration variables for the ledger-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string  `mapstructure:"SERVER_PORT"`
	DatabaseURL          string  `mapstructure:"DATABASE_URL"`
	RedisURL             string  `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string  `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string  `mapstructure:"RABBITMQ_URL"`
	AuthJWKSURL          string  `mapstructure:"AUTH_JWKS_URL"`
	InternalAPIKey       string  `mapstructure:"INTERNAL_API_KEY"`
	SweepIntervalMinutes int     `mapstructure:"SWEEP_INTERVAL_MINUTES"`
	MiningPointsPerClaim int64   `mapstructure:"MINING_POINTS_PER_CLAIM"`
	MiningCooldownMin    int     `mapstructure:"MINING_COOLDOWN_MINUTES"`
	MiningDailyClaimCap  int     `mapstructure:"MINING_DAILY_CLAIM_CAP"`
	ReferralRewardAmount float64 `mapstructure:"REFERRAL_REWARD_AMOUNT"`

	WithdrawalRateLimitPerMinute  int `mapstructure:"WITHDRAWAL_RATE_LIMIT_PER_MINUTE"`
	MiningClaimRateLimitPerMinute int `mapstructure:"MINING_CLAIM_RATE_LIMIT_PER_MINUTE"`
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
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "zerthyx:rate_limit")
	viper.SetDefault("SWEEP_INTERVAL_MINUTES", 0) // 0 = externally triggered only
	viper.SetDefault("MINING_POINTS_PER_CLAIM", 1000)
	viper.SetDefault("MINING_COOLDOWN_MINUTES", 60)
	viper.SetDefault("MINING_DAILY_CLAIM_CAP", 24)
	viper.SetDefault("REFERRAL_REWARD_AMOUNT", 5.0)
	viper.SetDefault("WITHDRAWAL_RATE_LIMIT_PER_MINUTE", 5)
	viper.SetDefault("MINING_CLAIM_RATE_LIMIT_PER_MINUTE", 30)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "LEDGER_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("AUTH_JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "LEDGER_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("SWEEP_INTERVAL_MINUTES")
	_ = viper.BindEnv("MINING_POINTS_PER_CLAIM")
	_ = viper.BindEnv("MINING_COOLDOWN_MINUTES")
	_ = viper.BindEnv("MINING_DAILY_CLAIM_CAP")
	_ = viper.BindEnv("REFERRAL_REWARD_AMOUNT")
	_ = viper.BindEnv("WITHDRAWAL_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("MINING_CLAIM_RATE_LIMIT_PER_MINUTE")

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
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("LEDGER_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "zerthyx:rate_limit"
	}

	if config.SweepIntervalMinutes < 0 {
		log.Printf("level=warn component=config msg=\"negative sweep interval configured; disabling ticker\" minutes=%d", config.SweepIntervalMinutes)
		config.SweepIntervalMinutes = 0
	}
	if config.MiningPointsPerClaim <= 0 {
		config.MiningPointsPerClaim = 1000
	}
	if config.MiningCooldownMin <= 0 {
		config.MiningCooldownMin = 60
	}
	if config.MiningDailyClaimCap < 0 {
		config.MiningDailyClaimCap = 0
	}
	if config.ReferralRewardAmount < 0 {
		log.Printf("level=warn component=config msg=\"negative referral reward configured; coercing to zero\" amount=%f", config.ReferralRewardAmount)
		config.ReferralRewardAmount = 0
	}
	if config.WithdrawalRateLimitPerMinute < 0 {
		config.WithdrawalRateLimitPerMinute = 0
	}
	if config.MiningClaimRateLimitPerMinute < 0 {
		config.MiningClaimRateLimitPerMinute = 0
	}

	return
}
