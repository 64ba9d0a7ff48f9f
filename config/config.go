package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Rektflow   RektflowConfig   `yaml:"rektflow"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Channels   ChannelsConfig   `yaml:"channels"`
	Feed       FeedConfig       `yaml:"feed"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Notifier   NotifierConfig   `yaml:"notifier"`
	Health     HealthConfig     `yaml:"health"`
}

type RektflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type ChannelsConfig struct {
	RawBuffer int `yaml:"raw_buffer"`
}

type FeedConfig struct {
	Binance   BinanceFeedConfig `yaml:"binance"`
	Bybit     BybitFeedConfig   `yaml:"bybit"`
	Reconnect ReconnectConfig   `yaml:"reconnect"`
}

type BinanceFeedConfig struct {
	Enabled        bool     `yaml:"enabled"`
	URL            string   `yaml:"url"`
	IgnorePrefixes []string `yaml:"ignore_prefixes"`
}

type BybitFeedConfig struct {
	Enabled bool     `yaml:"enabled"`
	URL     string   `yaml:"url"`
	Symbols []string `yaml:"symbols"`
}

// ReconnectConfig drives the feed backoff state machine. A connection that
// survives liveness_seconds resets the delay back to initial_delay_ms.
type ReconnectConfig struct {
	InitialDelayMs  int `yaml:"initial_delay_ms"`
	MaxDelayMs      int `yaml:"max_delay_ms"`
	LivenessSeconds int `yaml:"liveness_seconds"`
}

type AggregatorConfig struct {
	MinNotionalUSD    float64 `yaml:"min_notional_usd"`
	ClusterMultiplier float64 `yaml:"cluster_multiplier"`
	WindowSeconds     int     `yaml:"window_seconds"`
	MaxWorkers        int     `yaml:"max_workers"`
}

type EnrichmentConfig struct {
	Provider string                  `yaml:"provider"`
	Bybit    BybitEnrichmentConfig   `yaml:"bybit"`
	Binance  BinanceEnrichmentConfig `yaml:"binance"`
	CacheTTL CacheTTLConfig          `yaml:"cache_ttl"`
}

type BybitEnrichmentConfig struct {
	URL               string `yaml:"url"`
	Category          string `yaml:"category"`
	OIInterval        string `yaml:"oi_interval"`
	RequestsPerSecond int    `yaml:"requests_per_second"`
	BurstSize         int    `yaml:"burst_size"`
	TimeoutMs         int    `yaml:"timeout_ms"`
}

type BinanceEnrichmentConfig struct {
	URL       string `yaml:"url"`
	OIPeriod  string `yaml:"oi_period"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type CacheTTLConfig struct {
	OpenInterestDeltaSeconds int `yaml:"open_interest_delta_seconds"`
	FundingRateSeconds       int `yaml:"funding_rate_seconds"`
}

type ClassifierConfig struct {
	NotionalMediumUSD  float64 `yaml:"notional_medium_usd"`
	NotionalHighUSD    float64 `yaml:"notional_high_usd"`
	OIDeltaScorePct    float64 `yaml:"oi_delta_score_pct"`
	OIBandPct          float64 `yaml:"oi_band_pct"`
	FundingOverridePct float64 `yaml:"funding_override_pct"`
}

type DispatcherConfig struct {
	MaxConcurrent        int `yaml:"max_concurrent"`
	ShutdownGraceSeconds int `yaml:"shutdown_grace_seconds"`
}

type NotifierConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIURL    string `yaml:"api_url"`
	BotToken  string `yaml:"bot_token"`
	ChatID    string `yaml:"chat_id"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides keeps the original deployment contract: credentials and
// a few tuning knobs come from the process environment when present.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TG_BOT_TOKEN"); v != "" {
		cfg.Notifier.Telegram.BotToken = strings.TrimSpace(v)
	}
	if v := os.Getenv("TG_CHAT_ID"); v != "" {
		cfg.Notifier.Telegram.ChatID = strings.TrimSpace(v)
	}
	if v := os.Getenv("MIN_LIQ_USD"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			cfg.Aggregator.MinNotionalUSD = f
		}
	}
	if v := os.Getenv("CLUSTER_WINDOW"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Aggregator.WindowSeconds = n
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Health.Address = ":" + strings.TrimSpace(v)
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Rektflow.Name == "" {
		return fmt.Errorf("rektflow.name is required")
	}

	if cfg.Rektflow.Version == "" {
		return fmt.Errorf("rektflow.version is required")
	}

	if cfg.Channels.RawBuffer <= 0 {
		return fmt.Errorf("channels.raw_buffer must be greater than 0")
	}

	if !cfg.Feed.Binance.Enabled && !cfg.Feed.Bybit.Enabled {
		return fmt.Errorf("at least one feed source must be enabled")
	}
	if cfg.Feed.Bybit.Enabled && len(cfg.Feed.Bybit.Symbols) == 0 {
		return fmt.Errorf("feed.bybit.symbols is required when the bybit feed is enabled")
	}

	if cfg.Aggregator.MinNotionalUSD <= 0 {
		return fmt.Errorf("aggregator.min_notional_usd must be greater than 0")
	}
	if cfg.Aggregator.ClusterMultiplier <= 0 {
		return fmt.Errorf("aggregator.cluster_multiplier must be greater than 0")
	}
	if cfg.Aggregator.WindowSeconds <= 0 {
		return fmt.Errorf("aggregator.window_seconds must be greater than 0")
	}

	switch cfg.Enrichment.Provider {
	case "bybit", "binance":
	default:
		return fmt.Errorf("enrichment.provider must be 'bybit' or 'binance'")
	}
	if cfg.Enrichment.CacheTTL.OpenInterestDeltaSeconds <= 0 {
		return fmt.Errorf("enrichment.cache_ttl.open_interest_delta_seconds must be greater than 0")
	}
	if cfg.Enrichment.CacheTTL.FundingRateSeconds <= 0 {
		return fmt.Errorf("enrichment.cache_ttl.funding_rate_seconds must be greater than 0")
	}

	if cfg.Dispatcher.ShutdownGraceSeconds <= 0 {
		return fmt.Errorf("dispatcher.shutdown_grace_seconds must be greater than 0")
	}

	if cfg.Notifier.Telegram.Enabled {
		if cfg.Notifier.Telegram.BotToken == "" || cfg.Notifier.Telegram.ChatID == "" {
			return fmt.Errorf("notifier.telegram.bot_token and notifier.telegram.chat_id are required when telegram is enabled")
		}
	}

	return nil
}
