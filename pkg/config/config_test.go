package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

func validConfig() *Config {
	return &Config{
		Bot:  BotConfig{Name: "mm-bot", LogLevel: "info", Mode: ModePaper, HTTPPort: "8080"},
		API:  APIConfig{ClobBaseURL: "https://clob.polymarket.com", ClobWSURL: "wss://ws-subscriptions-clob.polymarket.com/ws/market", RPCURL: "https://polygon-rpc.com", TimeoutMs: 5000},
		LMSR: LMSRConfig{LiquidityParameter: 100, KellyFraction: 0.25, MinEdge: 0.02, PriorWeight: 0.7},
		Risk: RiskConfig{MaxDailyLossFraction: 0.3, MaxPositionSize: 500, MaxTotalExposure: 2000, MinBankroll: 50, CircuitBreakerLosses: 5, CooldownSeconds: 600},
		RateLimits: RateLimitConfig{MaxOrdersPerMinute: 20, MaxOrdersPerBatch: 5, MinIntervalMs: 100},
		Contracts:  ContractsConfig{ConditionalTokens: "0x1", Exchange: "0x2", Collateral: "0x3"},
		Strategy:   StrategyConfig{Assets: []string{"BTC"}, DebounceMs: 250, MinDeltaPct: 0.005},
		Markets: []types.Market{
			{ConditionID: "T-1", YesTokenID: "Y-1", NoTokenID: "N-1", Asset: types.AssetBTC, Active: true},
		},
	}
}

func TestConfig_Validate_OK(t *testing.T) {
	t.Parallel()
	require.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty bot name", func(c *Config) { c.Bot.Name = "" }},
		{"bad mode", func(c *Config) { c.Bot.Mode = "Sideways" }},
		{"empty clob base url", func(c *Config) { c.API.ClobBaseURL = "" }},
		{"empty ws url", func(c *Config) { c.API.ClobWSURL = "" }},
		{"empty rpc url", func(c *Config) { c.API.RPCURL = "" }},
		{"non-positive timeout", func(c *Config) { c.API.TimeoutMs = 0 }},
		{"non-positive liquidity", func(c *Config) { c.LMSR.LiquidityParameter = 0 }},
		{"kelly fraction out of range", func(c *Config) { c.LMSR.KellyFraction = 1.5 }},
		{"prior weight zero", func(c *Config) { c.LMSR.PriorWeight = 0 }},
		{"negative min edge", func(c *Config) { c.LMSR.MinEdge = -0.01 }},
		{"daily loss fraction out of range", func(c *Config) { c.Risk.MaxDailyLossFraction = 0 }},
		{"non-positive max position", func(c *Config) { c.Risk.MaxPositionSize = 0 }},
		{"non-positive max exposure", func(c *Config) { c.Risk.MaxTotalExposure = 0 }},
		{"zero breaker threshold", func(c *Config) { c.Risk.CircuitBreakerLosses = 0 }},
		{"rate limit too high", func(c *Config) { c.RateLimits.MaxOrdersPerMinute = 51 }},
		{"rate limit zero", func(c *Config) { c.RateLimits.MaxOrdersPerMinute = 0 }},
		{"zero batch size", func(c *Config) { c.RateLimits.MaxOrdersPerBatch = 0 }},
		{"missing contract address", func(c *Config) { c.Contracts.Exchange = "" }},
		{"no assets", func(c *Config) { c.Strategy.Assets = nil }},
		{"non-positive min delta", func(c *Config) { c.Strategy.MinDeltaPct = 0 }},
		{"no markets", func(c *Config) { c.Markets = nil }},
		{"market missing token id", func(c *Config) { c.Markets[0].YesTokenID = "" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

const sampleTOML = `
[bot]
name = "mm-bot"
log_level = "info"
dry_run = true
mode = "Paper"
http_port = "8080"

[api]
clob_base_url = "https://clob.polymarket.com"
clob_ws_url = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
rpc_url = "https://polygon-rpc.com"
timeout_ms = 5000

[lmsr]
liquidity_parameter = 100.0
kelly_fraction = 0.25
min_edge = 0.02
prior_weight = 0.7

[risk]
max_daily_loss_fraction = 0.3
max_position_size = 500.0
max_total_exposure = 2000.0
min_bankroll = 50.0
circuit_breaker_losses = 5
cooldown_seconds = 600

[rate_limits]
max_orders_per_minute = 20
max_orders_per_batch = 5
min_interval_ms = 100

[contracts]
conditional_tokens = "0x1"
exchange = "0x2"
collateral = "0x3"

[strategy]
assets = ["BTC", "ETH"]
debounce_ms = 250
min_delta_pct = 0.005

[[markets]]
condition_id = "cond-1"
yes_token_id = "yes-1"
no_token_id = "no-1"
asset = "BTC"
active = true
`

func TestLoad_ParsesAndValidates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTOML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mm-bot", cfg.Bot.Name)
	assert.Equal(t, ModePaper, cfg.Bot.Mode)
	assert.Len(t, cfg.Markets, 1)
	assert.Equal(t, "cond-1", cfg.Markets[0].ConditionID)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Strategy.Assets)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoad_InvalidAfterParse(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[bot]\nname = \"\"\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
