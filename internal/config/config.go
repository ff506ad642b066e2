// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Ethereum    EthereumConfig    `mapstructure:"ethereum"`
	Relays      RelaysConfig      `mapstructure:"relays"`
	Pricing     PricingConfig     `mapstructure:"pricing"`
	Tokens      []TokenConfig     `mapstructure:"tokens"`
	Risk        RiskConfig        `mapstructure:"risk"`
	Profit      ProfitConfig      `mapstructure:"profit"`
	Safety      SafetyConfig      `mapstructure:"safety"`
	Reliability ReliabilityConfig `mapstructure:"reliability"`
	Trading     TradingConfig     `mapstructure:"trading"`
	Server      ServerConfig      `mapstructure:"server"`
	Journal     JournalConfig     `mapstructure:"journal"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // json or console
}

// EthereumConfig holds Ethereum node configuration.
type EthereumConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"`
	HTTPURL        string        `mapstructure:"http_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RequestsPerMin int           `mapstructure:"requests_per_minute"`
}

// RelaysConfig lists bundle relays, tried in order.
type RelaysConfig struct {
	URLs        []string      `mapstructure:"urls"`
	SigningKey  string        `mapstructure:"signing_key"` // hex secp256k1 key for X-Flashbots-Signature
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
}

// PricingConfig configures price sources.
type PricingConfig struct {
	ExchangeWebSocketURL string        `mapstructure:"exchange_websocket_url"`
	ExchangeHTTPURL      string        `mapstructure:"exchange_http_url"`
	StaleTimeout         time.Duration `mapstructure:"stale_timeout"`
	FetchTimeout         time.Duration `mapstructure:"fetch_timeout"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl"`
	FallbackConfidence   float64       `mapstructure:"fallback_confidence"`
	NativeSymbol         string        `mapstructure:"native_symbol"`
}

// TokenConfig describes a tradable token and where its price comes from.
type TokenConfig struct {
	Symbol         string `mapstructure:"symbol"`
	Address        string `mapstructure:"address"`
	Decimals       uint8  `mapstructure:"decimals"`
	FeeOnTransfer  bool   `mapstructure:"fee_on_transfer"`
	Stable         bool   `mapstructure:"stable"`
	ExchangeSymbol string `mapstructure:"exchange_symbol"` // e.g. ETHUSDT
	ChainlinkFeed  string `mapstructure:"chainlink_feed"`
}

// AddressHex returns the token address as common.Address.
func (t TokenConfig) AddressHex() common.Address {
	return common.HexToAddress(t.Address)
}

// RiskConfig bounds capital exposure.
type RiskConfig struct {
	MaxConcurrentTrades int           `mapstructure:"max_concurrent_trades"`
	MaxDailyLoss        float64       `mapstructure:"max_daily_loss"`
	MaxLossPerHour      float64       `mapstructure:"max_loss_per_hour"`
	MaxLossPerBlock     float64       `mapstructure:"max_loss_per_block"`
	BlockWindow         time.Duration `mapstructure:"block_window"`
	MaxLoanAmount       float64       `mapstructure:"max_loan_amount"`
	MaxErrorsBeforeStop int           `mapstructure:"max_errors_before_stop"`
	ErrorTimeWindow     time.Duration `mapstructure:"error_time_window"`
	DailyResetHourUTC   int           `mapstructure:"daily_reset_hour_utc"`
}

func (c *RiskConfig) MaxDailyLossDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxDailyLoss)
}

func (c *RiskConfig) MaxLossPerHourDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxLossPerHour)
}

func (c *RiskConfig) MaxLossPerBlockDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxLossPerBlock)
}

func (c *RiskConfig) MaxLoanAmountDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxLoanAmount)
}

// ProfitConfig tunes net profit verification.
type ProfitConfig struct {
	MinProfitUSD       float64       `mapstructure:"min_profit_usd"`
	MinProfitRatio     float64       `mapstructure:"min_profit_ratio"`
	MinConfidence      float64       `mapstructure:"min_confidence"`
	GasSafetyMargin    float64       `mapstructure:"gas_safety_margin"`
	SlippageMargin     float64       `mapstructure:"slippage_margin"`
	MaxSlippage        float64       `mapstructure:"max_slippage"`
	ProtocolFeeBps     float64       `mapstructure:"protocol_fee_bps"`
	DefaultGasUnits    uint64        `mapstructure:"default_gas_units"`
	PriorityFeeGwei    float64       `mapstructure:"priority_fee_gwei"`
	WaitPollInterval   time.Duration `mapstructure:"wait_poll_interval"`
	WaitMaxDuration    time.Duration `mapstructure:"wait_max_duration"`
	ConfidenceFloor    float64       `mapstructure:"confidence_floor"`
	LargeTradeUSD      float64       `mapstructure:"large_trade_usd"`
	VeryLargeTradeUSD  float64       `mapstructure:"very_large_trade_usd"`
	MaxPriceDivergence float64       `mapstructure:"max_price_divergence"`
	MaxLegDeviation    float64       `mapstructure:"max_leg_deviation"`
}

func (c *ProfitConfig) MinProfitUSDDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitUSD)
}

func (c *ProfitConfig) MinProfitRatioDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitRatio)
}

func (c *ProfitConfig) GasSafetyMarginDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.GasSafetyMargin)
}

func (c *ProfitConfig) SlippageMarginDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.SlippageMargin)
}

// ProtocolFeeRate returns the fee as a fraction (9 bps = 0.0009).
func (c *ProfitConfig) ProtocolFeeRate() decimal.Decimal {
	return decimal.NewFromFloat(c.ProtocolFeeBps).Div(decimal.NewFromInt(10000))
}

// SafetyConfig groups the seven protection checks.
type SafetyConfig struct {
	Consensus   ConsensusConfig   `mapstructure:"consensus"`
	Builder     BuilderConfig     `mapstructure:"builder"`
	Transaction TransactionConfig `mapstructure:"transaction"`
	Oracle      OracleConfig      `mapstructure:"oracle"`
	Simulation  SimulationConfig  `mapstructure:"simulation"`
	Network     NetworkConfig     `mapstructure:"network"`
	Strategy    StrategyConfig    `mapstructure:"strategy"`

	// EscalateAfter consecutive builder or network rejections trip the
	// emergency stop. Zero disables.
	EscalateAfter int `mapstructure:"escalate_after"`
}

type ConsensusConfig struct {
	ReorgDepth         int           `mapstructure:"reorg_depth"`
	BlockWindow        int           `mapstructure:"block_window"`
	BaseFeeWindow      int           `mapstructure:"base_fee_window"`
	BaseFeeSpikeFactor float64       `mapstructure:"base_fee_spike_factor"`
	MaxTimestampDrift  time.Duration `mapstructure:"max_timestamp_drift"`
	MaxBundleBlockGap  uint64        `mapstructure:"max_bundle_block_gap"`
}

type BuilderConfig struct {
	DuplicateWindow time.Duration `mapstructure:"duplicate_window"`
	HistorySize     int           `mapstructure:"history_size"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	SubmitTimeout   time.Duration `mapstructure:"submit_timeout"`
}

type TransactionConfig struct {
	MaxNonceGap uint64 `mapstructure:"max_nonce_gap"`
}

type OracleConfig struct {
	SignedFeedMaxAge time.Duration `mapstructure:"signed_feed_max_age"`
	TWAPMaxAge       time.Duration `mapstructure:"twap_max_age"`
	ExchangeMaxAge   time.Duration `mapstructure:"exchange_max_age"`
	MaxDeviation     float64       `mapstructure:"max_deviation"`
}

type SimulationConfig struct {
	Window            int     `mapstructure:"window"`
	MinSamples        int     `mapstructure:"min_samples"`
	MinSuccessRate    float64 `mapstructure:"min_success_rate"`
	MinMatchRate      float64 `mapstructure:"min_match_rate"`
	GasLimitThreshold float64 `mapstructure:"gas_limit_threshold"`
}

type NetworkConfig struct {
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout"`
	MaxLatency        time.Duration `mapstructure:"max_latency"`
	MaxRequestsPerSec int           `mapstructure:"max_requests_per_sec"`
}

type StrategyConfig struct {
	FreshnessThreshold time.Duration `mapstructure:"freshness_threshold"`
	MaxAgeMultiplier   float64       `mapstructure:"max_age_multiplier"`
	GasWarGwei         float64       `mapstructure:"gas_war_gwei"`
}

// ReliabilityConfig tunes the health supervisor.
type ReliabilityConfig struct {
	CheckInterval    time.Duration `mapstructure:"check_interval"`
	ErrorBackoff     time.Duration `mapstructure:"error_backoff"`
	RecoveryCooldown time.Duration `mapstructure:"recovery_cooldown"`
	MaxRetries       int           `mapstructure:"max_retries"`
	CPUCritical      float64       `mapstructure:"cpu_critical"`
	CPUDegraded      float64       `mapstructure:"cpu_degraded"`
	MemoryCritical   float64       `mapstructure:"memory_critical"`
	MemoryDegraded   float64       `mapstructure:"memory_degraded"`
	DiskCritical     float64       `mapstructure:"disk_critical"`
	DiskDegraded     float64       `mapstructure:"disk_degraded"`
	DiskPath         string        `mapstructure:"disk_path"`
	CheckHistory     int           `mapstructure:"check_history"`
	MetricsHistory   int           `mapstructure:"metrics_history"`
	RecoveryHistory  int           `mapstructure:"recovery_history"`
}

// TradingConfig drives the evaluation loop.
type TradingConfig struct {
	Workers        int           `mapstructure:"workers"`
	EvalTimeout    time.Duration `mapstructure:"eval_timeout"`
	SenderAddress  string        `mapstructure:"sender_address"`
	InboxSize      int           `mapstructure:"inbox_size"`
	DryRun         bool          `mapstructure:"dry_run"`
	TopOpportunity int           `mapstructure:"top_opportunities"`
}

// SenderAddressHex returns the sender as common.Address.
func (c *TradingConfig) SenderAddressHex() common.Address {
	return common.HexToAddress(c.SenderAddress)
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	AdminToken   string        `mapstructure:"admin_token"`
}

// JournalConfig configures the decision journal. An empty DSN logs instead.
type JournalConfig struct {
	DSN string `mapstructure:"dsn"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceExporter  string `mapstructure:"trace_exporter"` // zipkin, otlp-grpc, otlp-http, console, none
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	ZipkinURL      string `mapstructure:"zipkin_url"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("FLASHGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "FLASHGUARD_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "FLASHGUARD_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "FLASHGUARD_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("ethereum.websocket_url", "FLASHGUARD_ETH_WS_URL", "ETH_WS_URL")
	v.BindEnv("ethereum.http_url", "FLASHGUARD_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.chain_id", "FLASHGUARD_ETH_CHAIN_ID", "ETH_CHAIN_ID")

	v.BindEnv("relays.urls", "FLASHGUARD_RELAY_URLS", "RELAY_URLS")
	v.BindEnv("relays.signing_key", "FLASHGUARD_RELAY_SIGNING_KEY", "FLASHBOTS_SIGNING_KEY")

	v.BindEnv("trading.sender_address", "FLASHGUARD_SENDER_ADDRESS", "SENDER_ADDRESS")
	v.BindEnv("trading.dry_run", "FLASHGUARD_DRY_RUN")

	v.BindEnv("risk.max_daily_loss", "FLASHGUARD_MAX_DAILY_LOSS")
	v.BindEnv("profit.min_profit_usd", "FLASHGUARD_MIN_PROFIT_USD")

	v.BindEnv("server.port", "FLASHGUARD_SERVER_PORT", "PORT")
	v.BindEnv("server.admin_token", "FLASHGUARD_ADMIN_TOKEN")

	v.BindEnv("journal.dsn", "FLASHGUARD_JOURNAL_DSN", "DATABASE_URL")

	v.BindEnv("telemetry.enabled", "FLASHGUARD_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "FLASHGUARD_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "FLASHGUARD_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "flashguard")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.request_timeout", "5s")
	v.SetDefault("ethereum.initial_backoff", "1s")
	v.SetDefault("ethereum.max_backoff", "30s")
	v.SetDefault("ethereum.poll_interval", "2s")
	v.SetDefault("ethereum.requests_per_minute", 600)

	v.SetDefault("relays.urls", []string{"https://relay.flashbots.net"})
	v.SetDefault("relays.timeout", "5s")
	v.SetDefault("relays.max_retries", 3)
	v.SetDefault("relays.backoff_base", "2s")

	v.SetDefault("pricing.exchange_websocket_url", "wss://stream.binance.com:9443")
	v.SetDefault("pricing.exchange_http_url", "https://api.binance.com")
	v.SetDefault("pricing.stale_timeout", "5s")
	v.SetDefault("pricing.fetch_timeout", "5s")
	v.SetDefault("pricing.cache_ttl", "10m")
	v.SetDefault("pricing.fallback_confidence", 0.8)
	v.SetDefault("pricing.native_symbol", "WETH")

	v.SetDefault("risk.max_concurrent_trades", 3)
	v.SetDefault("risk.max_daily_loss", 10000)
	v.SetDefault("risk.max_loss_per_hour", 5000)
	v.SetDefault("risk.max_loss_per_block", 1000)
	v.SetDefault("risk.block_window", "12s")
	v.SetDefault("risk.max_loan_amount", 100000)
	v.SetDefault("risk.max_errors_before_stop", 10)
	v.SetDefault("risk.error_time_window", "1h")
	v.SetDefault("risk.daily_reset_hour_utc", 0)

	v.SetDefault("profit.min_profit_usd", 500)
	v.SetDefault("profit.min_profit_ratio", 0.001)
	v.SetDefault("profit.min_confidence", 0.7)
	v.SetDefault("profit.gas_safety_margin", 1.3)
	v.SetDefault("profit.slippage_margin", 1.5)
	v.SetDefault("profit.max_slippage", 0.01)
	v.SetDefault("profit.protocol_fee_bps", 9)
	v.SetDefault("profit.default_gas_units", 300000)
	v.SetDefault("profit.priority_fee_gwei", 2)
	v.SetDefault("profit.wait_poll_interval", "10s")
	v.SetDefault("profit.wait_max_duration", "5m")
	v.SetDefault("profit.confidence_floor", 0.5)
	v.SetDefault("profit.large_trade_usd", 20000)
	v.SetDefault("profit.very_large_trade_usd", 50000)
	v.SetDefault("profit.max_price_divergence", 0.1)
	v.SetDefault("profit.max_leg_deviation", 0.05)

	v.SetDefault("safety.consensus.reorg_depth", 3)
	v.SetDefault("safety.consensus.block_window", 10)
	v.SetDefault("safety.consensus.base_fee_window", 20)
	v.SetDefault("safety.consensus.base_fee_spike_factor", 2.0)
	v.SetDefault("safety.consensus.max_timestamp_drift", "12s")
	v.SetDefault("safety.consensus.max_bundle_block_gap", 2)
	v.SetDefault("safety.builder.duplicate_window", "5s")
	v.SetDefault("safety.builder.history_size", 100)
	v.SetDefault("safety.builder.max_attempts", 3)
	v.SetDefault("safety.builder.retry_backoff", "2s")
	v.SetDefault("safety.builder.submit_timeout", "5s")
	v.SetDefault("safety.transaction.max_nonce_gap", 5)
	v.SetDefault("safety.oracle.signed_feed_max_age", "5m")
	v.SetDefault("safety.oracle.twap_max_age", "1m")
	v.SetDefault("safety.oracle.exchange_max_age", "10s")
	v.SetDefault("safety.oracle.max_deviation", 0.05)
	v.SetDefault("safety.simulation.window", 100)
	v.SetDefault("safety.simulation.min_samples", 10)
	v.SetDefault("safety.simulation.min_success_rate", 0.8)
	v.SetDefault("safety.simulation.min_match_rate", 0.9)
	v.SetDefault("safety.simulation.gas_limit_threshold", 0.95)
	v.SetDefault("safety.network.probe_timeout", "5s")
	v.SetDefault("safety.network.max_latency", "1s")
	v.SetDefault("safety.network.max_requests_per_sec", 10)
	v.SetDefault("safety.strategy.freshness_threshold", "2s")
	v.SetDefault("safety.strategy.max_age_multiplier", 3.0)
	v.SetDefault("safety.strategy.gas_war_gwei", 100)
	v.SetDefault("safety.escalate_after", 50)

	v.SetDefault("reliability.check_interval", "30s")
	v.SetDefault("reliability.error_backoff", "10s")
	v.SetDefault("reliability.recovery_cooldown", "5m")
	v.SetDefault("reliability.max_retries", 3)
	v.SetDefault("reliability.cpu_critical", 90)
	v.SetDefault("reliability.cpu_degraded", 70)
	v.SetDefault("reliability.memory_critical", 90)
	v.SetDefault("reliability.memory_degraded", 80)
	v.SetDefault("reliability.disk_critical", 95)
	v.SetDefault("reliability.disk_degraded", 85)
	v.SetDefault("reliability.disk_path", "/")
	v.SetDefault("reliability.check_history", 10)
	v.SetDefault("reliability.metrics_history", 100)
	v.SetDefault("reliability.recovery_history", 10)

	v.SetDefault("trading.workers", 3)
	v.SetDefault("trading.eval_timeout", "10s")
	v.SetDefault("trading.inbox_size", 64)
	v.SetDefault("trading.dry_run", true)
	v.SetDefault("trading.top_opportunities", 5)

	v.SetDefault("server.port", 8081)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "10s")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "flashguard")
	v.SetDefault("telemetry.trace_exporter", "zipkin")
	v.SetDefault("telemetry.zipkin_url", "http://localhost:9411/api/v2/spans")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.http_url is required")
	}
	if len(c.Relays.URLs) == 0 {
		return fmt.Errorf("relays.urls cannot be empty")
	}
	if c.Trading.SenderAddress != "" && !common.IsHexAddress(c.Trading.SenderAddress) {
		return fmt.Errorf("invalid trading.sender_address: %s", c.Trading.SenderAddress)
	}
	for _, t := range c.Tokens {
		if t.Symbol == "" {
			return fmt.Errorf("tokens: symbol is required")
		}
		if t.Address != "" && !common.IsHexAddress(t.Address) {
			return fmt.Errorf("invalid address for token %s: %s", t.Symbol, t.Address)
		}
		if t.ChainlinkFeed != "" && !common.IsHexAddress(t.ChainlinkFeed) {
			return fmt.Errorf("invalid chainlink_feed for token %s: %s", t.Symbol, t.ChainlinkFeed)
		}
	}
	if c.Risk.MaxConcurrentTrades < 1 {
		return fmt.Errorf("risk.max_concurrent_trades must be >= 1")
	}
	if c.Risk.MaxDailyLoss <= 0 || c.Risk.MaxLoanAmount <= 0 {
		return fmt.Errorf("risk.max_daily_loss and risk.max_loan_amount must be positive")
	}
	if c.Risk.MaxErrorsBeforeStop < 1 || c.Risk.ErrorTimeWindow <= 0 {
		return fmt.Errorf("risk error budget must be positive")
	}
	if c.Profit.MinConfidence < 0 || c.Profit.MinConfidence > 1 {
		return fmt.Errorf("profit.min_confidence must be within [0,1]")
	}
	if c.Profit.ConfidenceFloor > c.Profit.MinConfidence {
		return fmt.Errorf("profit.confidence_floor must not exceed profit.min_confidence")
	}
	if c.Profit.GasSafetyMargin < 1 || c.Profit.SlippageMargin < 1 {
		return fmt.Errorf("profit safety margins must be >= 1")
	}
	if c.Safety.Consensus.ReorgDepth < 1 || c.Safety.Consensus.BlockWindow < c.Safety.Consensus.ReorgDepth {
		return fmt.Errorf("safety.consensus.block_window must be >= reorg_depth >= 1")
	}
	if c.Safety.Simulation.MinSamples > c.Safety.Simulation.Window {
		return fmt.Errorf("safety.simulation.min_samples exceeds window")
	}
	if c.Reliability.CheckInterval <= 0 {
		return fmt.Errorf("reliability.check_interval must be positive")
	}
	if c.Trading.Workers < 1 {
		return fmt.Errorf("trading.workers must be >= 1")
	}
	return nil
}
