package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Signal   SignalConfig   `mapstructure:"signal"`
	Binance  BinanceConfig  `mapstructure:"binance"`
	Spot     SpotConfig     `mapstructure:"spot"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SignalConfig holds the signal engine behavior configuration
type SignalConfig struct {
	Watchlist             []string `mapstructure:"watchlist"`
	PumpThresholdPct      float64  `mapstructure:"pump_threshold_pct"`
	SampleIntervalSeconds int      `mapstructure:"sample_interval_seconds"`
	PumpIntervalSeconds   int      `mapstructure:"pump_interval_seconds"`
	HourlyCron            string   `mapstructure:"hourly_cron"`
	FourHourlyCron        string   `mapstructure:"four_hourly_cron"`
	Weights               Weights  `mapstructure:"weights"`
	HistoryDepthK         int      `mapstructure:"history_depth_k"`
}

// Weights are the fusion weights for the sentiment inputs.
type Weights struct {
	Global       float64 `mapstructure:"global"`
	Taker        float64 `mapstructure:"taker"`
	OpenInterest float64 `mapstructure:"open_interest"`
}

// BinanceConfig holds the futures data API configuration
type BinanceConfig struct {
	BaseURL               string  `mapstructure:"base_url"`
	RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds"`
	RequestsPerSecond     float64 `mapstructure:"requests_per_second"`
}

// SpotConfig holds the spot price lookup configuration
type SpotConfig struct {
	BaseURL string            `mapstructure:"base_url"`
	Coins   map[string]string `mapstructure:"coins"` // symbol -> coin id, e.g. BTCUSDT -> bitcoin
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	GroupChatID    string        `mapstructure:"group_chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds the journal configuration
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	MaxRows int    `mapstructure:"max_rows"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("FUTSENTRY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("signal.pump_threshold_pct", 2.5)
	v.SetDefault("signal.sample_interval_seconds", 60)
	v.SetDefault("signal.pump_interval_seconds", 300)
	v.SetDefault("signal.hourly_cron", "0 * * * *")
	v.SetDefault("signal.four_hourly_cron", "0 */4 * * *")
	v.SetDefault("signal.weights.global", 0.45)
	v.SetDefault("signal.weights.taker", 0.45)
	v.SetDefault("signal.weights.open_interest", 0.10)
	v.SetDefault("signal.history_depth_k", 5)

	v.SetDefault("binance.base_url", "https://fapi.binance.com")
	v.SetDefault("binance.request_timeout_seconds", 10)
	v.SetDefault("binance.requests_per_second", 5.0)

	v.SetDefault("spot.base_url", "https://api.coingecko.com/api/v3")

	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("storage.db_path", "./data/futsentry.db")
	v.SetDefault("storage.max_rows", 500)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid. Any error here is
// fatal: the engine must not start on a bad configuration.
func (c *Config) Validate() error {
	if len(c.Signal.Watchlist) == 0 {
		return fmt.Errorf("signal.watchlist must contain at least one symbol")
	}
	for _, s := range c.Signal.Watchlist {
		if s == "" {
			return fmt.Errorf("signal.watchlist must not contain empty symbols")
		}
	}
	if c.Signal.PumpThresholdPct < 0 {
		return fmt.Errorf("signal.pump_threshold_pct must not be negative")
	}
	if c.Signal.SampleIntervalSeconds < 1 {
		return fmt.Errorf("signal.sample_interval_seconds must be at least 1")
	}
	if c.Signal.PumpIntervalSeconds < 1 {
		return fmt.Errorf("signal.pump_interval_seconds must be at least 1")
	}
	if c.Signal.Weights.Global < 0 || c.Signal.Weights.Taker < 0 || c.Signal.Weights.OpenInterest < 0 {
		return fmt.Errorf("signal.weights must not be negative")
	}
	if c.Signal.Weights.Global+c.Signal.Weights.Taker <= 0 {
		return fmt.Errorf("signal.weights.global + signal.weights.taker must be positive")
	}
	if c.Signal.HistoryDepthK < 2 {
		return fmt.Errorf("signal.history_depth_k must be at least 2")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.Signal.HourlyCron); err != nil {
		return fmt.Errorf("signal.hourly_cron is not a valid cron spec: %w", err)
	}
	if _, err := parser.Parse(c.Signal.FourHourlyCron); err != nil {
		return fmt.Errorf("signal.four_hourly_cron is not a valid cron spec: %w", err)
	}

	if c.Binance.BaseURL == "" {
		return fmt.Errorf("binance.base_url is required")
	}
	if c.Binance.RequestTimeoutSeconds < 1 {
		return fmt.Errorf("binance.request_timeout_seconds must be at least 1")
	}
	if c.Binance.RequestsPerSecond <= 0 {
		return fmt.Errorf("binance.requests_per_second must be positive")
	}

	if c.Spot.BaseURL == "" {
		return fmt.Errorf("spot.base_url is required")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.GroupChatID == "" {
			return fmt.Errorf("telegram.group_chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxRows < 1 {
		return fmt.Errorf("storage.max_rows must be at least 1")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// RequestTimeout returns the per-request HTTP deadline.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Binance.RequestTimeoutSeconds) * time.Second
}

// SampleInterval returns the sampler task period.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.Signal.SampleIntervalSeconds) * time.Second
}

// PumpInterval returns the pump detector period.
func (c *Config) PumpInterval() time.Duration {
	return time.Duration(c.Signal.PumpIntervalSeconds) * time.Second
}
