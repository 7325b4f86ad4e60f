// Package config loads and validates the bot's TOML configuration file
// and watches it for changes, broadcasting new snapshots to a watch
// channel consumed by the pricing pipeline. Structural parameters
// (the markets list, rate limits) are read once at startup; only the
// [lmsr]/[risk] numeric knobs are taken from the latest snapshot at
// the start of each pipeline step, per the hot-reload contract.
package config

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

// Mode selects whether the bot submits orders to the live CLOB or
// simulates fills against an in-memory paper book.
type Mode string

const (
	ModePaper Mode = "Paper"
	ModeLive  Mode = "Live"
)

// BotConfig is the [bot] section: identity, logging, and the dry-run/
// live switch.
type BotConfig struct {
	Name     string `toml:"name"`
	LogLevel string `toml:"log_level"`
	DryRun   bool   `toml:"dry_run"`
	Mode     Mode   `toml:"mode"`
	HTTPPort string `toml:"http_port"`
}

// APIConfig is the [api] section: transport endpoints and the shared
// HTTP client timeout.
type APIConfig struct {
	ClobBaseURL string `toml:"clob_base_url"`
	ClobWSURL   string `toml:"clob_ws_url"`
	RPCURL      string `toml:"rpc_url"`
	TimeoutMs   int64  `toml:"timeout_ms"`
}

// LMSRConfig is the [lmsr] section: pricing and sizing parameters
// consumed fresh at the start of every pipeline step.
type LMSRConfig struct {
	LiquidityParameter float64 `toml:"liquidity_parameter"`
	KellyFraction      float64 `toml:"kelly_fraction"`
	MinEdge            float64 `toml:"min_edge"`
	PriorWeight        float64 `toml:"prior_weight"`
}

// RiskConfig is the [risk] section, mirrored by internal/risk.Config.
type RiskConfig struct {
	MaxDailyLossFraction float64 `toml:"max_daily_loss_fraction"`
	MaxPositionSize      float64 `toml:"max_position_size"`
	MaxTotalExposure     float64 `toml:"max_total_exposure"`
	MinBankroll          float64 `toml:"min_bankroll"`
	CircuitBreakerLosses uint32  `toml:"circuit_breaker_losses"`
	CooldownSeconds      uint64  `toml:"cooldown_seconds"`
}

// RateLimitConfig is the [rate_limits] section, mirrored by
// internal/ordermanager.Config. Structural: applies on next
// subscription, never mutates in-flight orders.
type RateLimitConfig struct {
	MaxOrdersPerMinute int   `toml:"max_orders_per_minute"`
	MaxOrdersPerBatch  int   `toml:"max_orders_per_batch"`
	MinIntervalMs      int64 `toml:"min_interval_ms"`
}

// ContractsConfig is the [contracts] section: the three on-chain
// addresses settlement needs (conditional-tokens framework, CLOB
// exchange, collateral).
type ContractsConfig struct {
	ConditionalTokens string `toml:"conditional_tokens"`
	Exchange          string `toml:"exchange"`
	Collateral        string `toml:"collateral"`
}

// StrategyConfig is the [strategy] section: feed fan-in tuning.
type StrategyConfig struct {
	Assets      []string `toml:"assets"`
	DebounceMs  int64    `toml:"debounce_ms"`
	MinDeltaPct float64  `toml:"min_delta_pct"`
}

// PersistenceConfig is the [persistence] section: trade-log/snapshot
// sink selection, mirrored by internal/storage's FileStorage/
// PostgresStorage constructors.
type PersistenceConfig struct {
	Mode     string `toml:"mode"` // "file" (default) or "postgres"
	DataDir  string `toml:"data_dir"`
	Host     string `toml:"pg_host"`
	Port     string `toml:"pg_port"`
	User     string `toml:"pg_user"`
	Password string `toml:"pg_password"`
	Database string `toml:"pg_database"`
	SSLMode  string `toml:"pg_sslmode"`
}

// Config is the root of config.toml, matching spec.md's §6 sections
// exactly: [bot] [api] [lmsr] [risk] [rate_limits] [contracts]
// [strategy] [[markets]], plus [persistence] for the storage sink.
type Config struct {
	Bot         BotConfig         `toml:"bot"`
	API         APIConfig         `toml:"api"`
	LMSR        LMSRConfig        `toml:"lmsr"`
	Risk        RiskConfig        `toml:"risk"`
	RateLimits  RateLimitConfig   `toml:"rate_limits"`
	Contracts   ContractsConfig   `toml:"contracts"`
	Strategy    StrategyConfig    `toml:"strategy"`
	Persistence PersistenceConfig `toml:"persistence"`
	Markets     []types.Market    `toml:"markets"`
}

// Load reads and validates the config file at path. Secrets (API key/
// secret/passphrase, wallet key) are never read from this file — they
// come from environment variables, loaded separately via godotenv.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the structural and numeric invariants spec.md §6
// requires after parse: URLs non-empty, positive numerics, fractions
// in (0,1], at least one market, at least one asset.
func (c *Config) Validate() error {
	if c.Bot.Name == "" {
		return errors.New("bot.name must not be empty")
	}
	if c.Bot.Mode != ModePaper && c.Bot.Mode != ModeLive {
		return fmt.Errorf("bot.mode must be %q or %q, got %q", ModePaper, ModeLive, c.Bot.Mode)
	}
	if c.Bot.HTTPPort == "" {
		c.Bot.HTTPPort = "8080"
	}

	if c.API.ClobBaseURL == "" {
		return errors.New("api.clob_base_url must not be empty")
	}
	if c.API.ClobWSURL == "" {
		return errors.New("api.clob_ws_url must not be empty")
	}
	if c.API.RPCURL == "" {
		return errors.New("api.rpc_url must not be empty")
	}
	if c.API.TimeoutMs <= 0 {
		return fmt.Errorf("api.timeout_ms must be positive, got %d", c.API.TimeoutMs)
	}

	if c.LMSR.LiquidityParameter <= 0 {
		return fmt.Errorf("lmsr.liquidity_parameter must be positive, got %f", c.LMSR.LiquidityParameter)
	}
	if err := fraction01("lmsr.kelly_fraction", c.LMSR.KellyFraction); err != nil {
		return err
	}
	if c.LMSR.MinEdge < 0 {
		return fmt.Errorf("lmsr.min_edge must be non-negative, got %f", c.LMSR.MinEdge)
	}
	if err := fraction01("lmsr.prior_weight", c.LMSR.PriorWeight); err != nil {
		return err
	}

	if err := fraction01("risk.max_daily_loss_fraction", c.Risk.MaxDailyLossFraction); err != nil {
		return err
	}
	if c.Risk.MaxPositionSize <= 0 {
		return errors.New("risk.max_position_size must be positive")
	}
	if c.Risk.MaxTotalExposure <= 0 {
		return errors.New("risk.max_total_exposure must be positive")
	}
	if c.Risk.MinBankroll < 0 {
		return errors.New("risk.min_bankroll must be non-negative")
	}
	if c.Risk.CircuitBreakerLosses == 0 {
		return errors.New("risk.circuit_breaker_losses must be positive")
	}

	if c.RateLimits.MaxOrdersPerMinute <= 0 || c.RateLimits.MaxOrdersPerMinute > 50 {
		return fmt.Errorf("rate_limits.max_orders_per_minute must be in (0,50], got %d", c.RateLimits.MaxOrdersPerMinute)
	}
	if c.RateLimits.MaxOrdersPerBatch <= 0 {
		return errors.New("rate_limits.max_orders_per_batch must be positive")
	}
	if c.RateLimits.MinIntervalMs < 0 {
		return errors.New("rate_limits.min_interval_ms must be non-negative")
	}

	if c.Contracts.ConditionalTokens == "" || c.Contracts.Exchange == "" || c.Contracts.Collateral == "" {
		return errors.New("contracts addresses must all be set")
	}

	if len(c.Strategy.Assets) == 0 {
		return errors.New("strategy.assets must contain at least one asset")
	}
	if c.Strategy.MinDeltaPct <= 0 {
		return errors.New("strategy.min_delta_pct must be positive")
	}

	if len(c.Markets) == 0 {
		return errors.New("at least one [[markets]] entry is required")
	}
	for i, m := range c.Markets {
		if m.ConditionID == "" || m.YesTokenID == "" || m.NoTokenID == "" {
			return fmt.Errorf("markets[%d] missing condition_id/yes_token_id/no_token_id", i)
		}
	}

	if c.Persistence.Mode == "" {
		c.Persistence.Mode = "file"
	}
	switch c.Persistence.Mode {
	case "file":
		if c.Persistence.DataDir == "" {
			c.Persistence.DataDir = "data"
		}
	case "postgres":
		if c.Persistence.Database == "" {
			return errors.New("persistence.pg_database must be set when persistence.mode is \"postgres\"")
		}
	default:
		return fmt.Errorf("persistence.mode must be \"file\" or \"postgres\", got %q", c.Persistence.Mode)
	}

	return nil
}

func fraction01(field string, v float64) error {
	if v <= 0 || v > 1 {
		return fmt.Errorf("%s must be in (0,1], got %f", field, v)
	}
	return nil
}
