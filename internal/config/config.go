// Package config loads engine configuration from file, environment, and
// flags via viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the detection engine.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	State      StateConfig      `mapstructure:"state"`
	Mempool    MempoolConfig    `mapstructure:"mempool"`
	Gas        GasConfig        `mapstructure:"gas"`
	Detectors  DetectorsConfig  `mapstructure:"detectors"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Sinks      SinksConfig      `mapstructure:"sinks"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	LogLevel   string           `mapstructure:"log_level"`
}

// ServerConfig contains the read API server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	APIKey       string        `mapstructure:"api_key"`
	RateLimit    int           `mapstructure:"rate_limit"`
}

// StateConfig contains world state store configuration.
type StateConfig struct {
	// RetainBlocks is the version history depth kept per entity.
	RetainBlocks uint64 `mapstructure:"retain_blocks"`
	// ReferenceTokens maps token addresses to fixed USD prices seeding
	// the price index (stables at 1.0, or a pinned native price).
	ReferenceTokens map[string]float64 `mapstructure:"reference_tokens"`
}

// MempoolConfig contains pending transaction pool configuration.
type MempoolConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// GasConfig contains gas price estimation configuration.
type GasConfig struct {
	BaseGasPriceGwei float64 `mapstructure:"base_gas_price_gwei"`
	EWMAAlpha        float64 `mapstructure:"ewma_alpha"`
	NativeToken      string  `mapstructure:"native_token"`
	NativeTokenUSD   float64 `mapstructure:"native_token_usd"`
}

// DetectorsConfig groups per-strategy configuration.
type DetectorsConfig struct {
	Arbitrage   ArbitrageConfig   `mapstructure:"arbitrage"`
	Liquidation LiquidationConfig `mapstructure:"liquidation"`
	Sandwich    SandwichConfig    `mapstructure:"sandwich"`
}

// ArbitrageConfig contains the cyclic arbitrage detector configuration.
type ArbitrageConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	MaxHops             int           `mapstructure:"max_hops"`
	ProbeNotionalUSD    float64       `mapstructure:"probe_notional_usd"`
	MinNetProfitUSD     float64       `mapstructure:"min_net_profit_usd"`
	HopConfidenceDecay  float64       `mapstructure:"hop_confidence_decay"`
	PriceStalenessBound time.Duration `mapstructure:"price_staleness_bound"`
}

// LiquidationConfig contains the liquidation monitor configuration.
type LiquidationConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	MinDeltaToReEmit    float64       `mapstructure:"min_delta_to_re_emit"`
	PriceStalenessBound time.Duration `mapstructure:"price_staleness_bound"`
	RecomputeWorkers    int           `mapstructure:"recompute_workers"`
	BatchSize           int           `mapstructure:"batch_size"`
}

// SandwichConfig contains the sandwich detector configuration.
type SandwichConfig struct {
	Enabled                  bool          `mapstructure:"enabled"`
	MaxCapitalUSD            float64       `mapstructure:"max_capital_usd"`
	MinVictimAmountUSD       float64       `mapstructure:"min_victim_amount_usd"`
	MinNetProfitUSD          float64       `mapstructure:"min_net_profit_usd"`
	BaseConfidence           float64       `mapstructure:"base_confidence"`
	CompetitionPenaltyWeight float64       `mapstructure:"competition_penalty_weight"`
	PriceStalenessBound      time.Duration `mapstructure:"price_staleness_bound"`
}

// ScoringConfig contains the scoring pipeline configuration.
type ScoringConfig struct {
	MinNetProfitUSD float64       `mapstructure:"min_net_profit_usd"`
	MinConfidence   float64       `mapstructure:"min_confidence"`
	MaxCandidateAge time.Duration `mapstructure:"max_candidate_age"`
	DedupWindow     time.Duration `mapstructure:"dedup_window"`
	ReEmitDelta     float64       `mapstructure:"re_emit_delta"`
	IntakeBuffer    int           `mapstructure:"intake_buffer"`
	OfferTimeout    time.Duration `mapstructure:"offer_timeout"`
}

// ProcessingConfig contains orchestrator configuration.
type ProcessingConfig struct {
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	DetectorTimeout time.Duration `mapstructure:"detector_timeout"`
}

// SinksConfig contains the optional outbound surfaces.
type SinksConfig struct {
	RedisURL     string `mapstructure:"redis_url"`
	RedisChannel string `mapstructure:"redis_channel"`
	PostgresURL  string `mapstructure:"postgres_url"`
}

// MonitoringConfig contains metrics configuration.
type MonitoringConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvPrefix("MEVSCOPE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.rate_limit", 100)

	viper.SetDefault("state.retain_blocks", 64)

	viper.SetDefault("mempool.ttl", "90s")

	viper.SetDefault("gas.base_gas_price_gwei", 20)
	viper.SetDefault("gas.ewma_alpha", 0.2)
	viper.SetDefault("gas.native_token_usd", 2500)

	viper.SetDefault("detectors.arbitrage.enabled", true)
	viper.SetDefault("detectors.arbitrage.max_hops", 3)
	viper.SetDefault("detectors.arbitrage.probe_notional_usd", 10000)
	viper.SetDefault("detectors.arbitrage.min_net_profit_usd", 10)
	viper.SetDefault("detectors.arbitrage.hop_confidence_decay", 0.85)
	viper.SetDefault("detectors.arbitrage.price_staleness_bound", "30s")

	viper.SetDefault("detectors.liquidation.enabled", true)
	viper.SetDefault("detectors.liquidation.min_delta_to_re_emit", 0.10)
	viper.SetDefault("detectors.liquidation.price_staleness_bound", "30s")
	viper.SetDefault("detectors.liquidation.recompute_workers", 4)
	viper.SetDefault("detectors.liquidation.batch_size", 64)

	viper.SetDefault("detectors.sandwich.enabled", true)
	viper.SetDefault("detectors.sandwich.max_capital_usd", 50000)
	viper.SetDefault("detectors.sandwich.min_victim_amount_usd", 2000)
	viper.SetDefault("detectors.sandwich.min_net_profit_usd", 10)
	viper.SetDefault("detectors.sandwich.base_confidence", 0.9)
	viper.SetDefault("detectors.sandwich.competition_penalty_weight", 0.6)
	viper.SetDefault("detectors.sandwich.price_staleness_bound", "30s")

	viper.SetDefault("scoring.min_net_profit_usd", 10)
	viper.SetDefault("scoring.min_confidence", 0.1)
	viper.SetDefault("scoring.max_candidate_age", "5s")
	viper.SetDefault("scoring.dedup_window", "30s")
	viper.SetDefault("scoring.re_emit_delta", 0.10)
	viper.SetDefault("scoring.intake_buffer", 1024)
	viper.SetDefault("scoring.offer_timeout", "5ms")

	viper.SetDefault("processing.workers", 8)
	viper.SetDefault("processing.queue_size", 4096)
	viper.SetDefault("processing.detector_timeout", "500ms")

	viper.SetDefault("sinks.redis_channel", "mevscope:opportunities")

	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_port", 9090)
}
