package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Feed       FeedConfig       `mapstructure:"feed"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Mev        MevConfig        `mapstructure:"mev"`
	Validation ValidationConfig `mapstructure:"validation"`
	Poller     PollerConfig     `mapstructure:"poller"`
	Recovery   RecoveryConfig   `mapstructure:"recovery"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Clients    []ClientConfig   `mapstructure:"clients"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type AuthConfig struct {
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	APIKey        string `mapstructure:"api_key"`
}

type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	EventRetentionDays     int    `mapstructure:"event_retention_days"`
	CleanupIntervalMinutes int    `mapstructure:"cleanup_interval_minutes"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type FeedConfig struct {
	URL   string   `mapstructure:"url"`   // websocket quote feed endpoint
	Pairs []string `mapstructure:"pairs"` // e.g. ["USDC/WETH"]
}

type RiskConfig struct {
	ReferenceFeeTier int     `mapstructure:"reference_fee_tier"` // bps, e.g. 3000 (0.3%)
	MaxRouteImpact   float64 `mapstructure:"max_route_impact"`   // pct, routes above this never selected
}

type MevConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Level   string `mapstructure:"level"` // basic / standard / maximum
}

// ValidationConfig exposes the thresholds the validator applies.
type ValidationConfig struct {
	SuspiciousAmount       float64 `mapstructure:"suspicious_amount"`        // USDC
	DuplicateWindowSeconds int     `mapstructure:"duplicate_window_seconds"` // identical intent replay window
	BurstWindowSeconds     int     `mapstructure:"burst_window_seconds"`     // matching-request window
	BurstLimit             int     `mapstructure:"burst_limit"`              // matching requests allowed per window
	CacheSize              int     `mapstructure:"cache_size"`
}

type PollerConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
}

type RecoveryConfig struct {
	MaxRetries           int     `mapstructure:"max_retries"`
	BackoffMultiplier    float64 `mapstructure:"backoff_multiplier"`
	PendingExpiryMinutes int     `mapstructure:"pending_expiry_minutes"`
	SweepIntervalMinutes int     `mapstructure:"sweep_interval_minutes"`
}

type AnalyticsConfig struct {
	EventLogCap           int    `mapstructure:"event_log_cap"`
	HealthURL             string `mapstructure:"health_url"`
	HealthIntervalSeconds int    `mapstructure:"health_interval_seconds"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type ClientConfig struct {
	ID     string  `mapstructure:"id"`
	APIKey string  `mapstructure:"api_key"`
	QPS    float64 `mapstructure:"qps"`
	Burst  int     `mapstructure:"burst"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. SWAPGUARD_REDIS_ADDR
	viper.SetEnvPrefix("swapguard")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("auth.require_api_key", false)
	viper.SetDefault("risk.reference_fee_tier", 3000)
	viper.SetDefault("risk.max_route_impact", 2.0)
	viper.SetDefault("mev.enabled", true)
	viper.SetDefault("mev.level", "standard")
	viper.SetDefault("validation.suspicious_amount", 10000)
	viper.SetDefault("validation.duplicate_window_seconds", 30)
	viper.SetDefault("validation.burst_window_seconds", 60)
	viper.SetDefault("validation.burst_limit", 5)
	viper.SetDefault("validation.cache_size", 100)
	viper.SetDefault("poller.max_attempts", 10)
	viper.SetDefault("recovery.max_retries", 3)
	viper.SetDefault("recovery.backoff_multiplier", 1.5)
	viper.SetDefault("recovery.pending_expiry_minutes", 60)
	viper.SetDefault("recovery.sweep_interval_minutes", 5)
	viper.SetDefault("analytics.event_log_cap", 1000)
	viper.SetDefault("analytics.health_interval_seconds", 30)
	viper.SetDefault("database.event_retention_days", 30)
	viper.SetDefault("database.cleanup_interval_minutes", 60)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
