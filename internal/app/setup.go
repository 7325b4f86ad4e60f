package app

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/foresight-labs/lmsr-marketmaker/internal/engine"
	"github.com/foresight-labs/lmsr-marketmaker/internal/feed"
	"github.com/foresight-labs/lmsr-marketmaker/internal/markets"
	"github.com/foresight-labs/lmsr-marketmaker/internal/ordermanager"
	"github.com/foresight-labs/lmsr-marketmaker/internal/risk"
	"github.com/foresight-labs/lmsr-marketmaker/internal/storage"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/cache"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/chain"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/clob"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/config"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/execution"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/healthprobe"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/httpserver"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/websocket"
)

// paperStartingBalanceUSDC seeds the in-memory paper book when
// [bot].mode = "Paper". There is no config knob for it: paper mode is
// a development/backtest aid, not a production balance.
const paperStartingBalanceUSDC = 10_000.0

// defaultTickSize and defaultMinOrderSize seed pkg/execution.Live,
// which (unlike the metadata cache) does not vary these per token.
const (
	defaultTickSize     = 0.01
	defaultMinOrderSize = 5.0
)

// New constructs an App from a loaded, validated config. configPath is
// kept only to drive the hot-reload file watcher.
func New(cfg *config.Config, logger *zap.Logger, configPath string) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	a.healthChecker = healthprobe.New()
	a.watcher = config.NewWatcher(configPath, cfg, logger)
	a.registry = feed.NewRegistry()

	if err := a.setupMetadataCache(); err != nil {
		cancel()
		return nil, fmt.Errorf("setup metadata cache: %w", err)
	}
	if err := a.setupStorage(); err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}
	if err := a.setupChain(); err != nil {
		cancel()
		return nil, fmt.Errorf("setup chain client: %w", err)
	}
	a.setupFeed()
	if err := a.setupExecution(); err != nil {
		cancel()
		return nil, fmt.Errorf("setup execution: %w", err)
	}
	a.setupPipeline()
	a.setupHTTPServer()

	return a, nil
}

// setupMetadataCache builds the ristretto-backed tick-size/min-order-
// size cache shared by the metadata client.
func (a *App) setupMetadataCache() error {
	ristrettoCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}
	client := markets.NewMetadataClientWithConfig(markets.MetadataClientConfig{Logger: a.logger})
	a.metaCache = markets.NewCachedMetadataClient(client, ristrettoCache)
	return nil
}

// setupStorage selects the file or Postgres persistence sink per
// [persistence].mode.
func (a *App) setupStorage() error {
	if a.cfg.Persistence.Mode == "postgres" {
		store, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     a.cfg.Persistence.Host,
			Port:     a.cfg.Persistence.Port,
			User:     a.cfg.Persistence.User,
			Password: a.cfg.Persistence.Password,
			Database: a.cfg.Persistence.Database,
			SSLMode:  a.cfg.Persistence.SSLMode,
			Logger:   a.logger,
		})
		if err != nil {
			return err
		}
		a.store = store
		return nil
	}

	store, err := storage.NewFileStorage(a.cfg.Persistence.DataDir, a.logger)
	if err != nil {
		return err
	}
	a.store = store
	return nil
}

// setupChain builds the on-chain settlement client used for live
// balance checks and end-of-day redemption. It is optional: without a
// signing key configured, balance queries fall back to zero and
// redemption is unavailable, but paper-mode pricing still runs.
func (a *App) setupChain() error {
	privateKeyHex := os.Getenv("POLYMARKET_PRIVATE_KEY")
	if privateKeyHex == "" {
		a.logger.Warn("chain-client-disabled-no-private-key")
		return nil
	}
	client, err := chain.NewClient(chain.Config{
		RPCURL:            a.cfg.API.RPCURL,
		PrivateKeyHex:     privateKeyHex,
		USDCAddress:       a.cfg.Contracts.Collateral,
		ConditionalTokens: a.cfg.Contracts.ConditionalTokens,
		Logger:            a.logger,
	})
	if err != nil {
		return err
	}
	a.chainCli = client
	return nil
}

// setupFeed wires the WebSocket transport, the CLOB message parser,
// and the debounced fan-in manager. A pool shards connections once the
// configured market count grows past a single connection's practical
// subscription count.
func (a *App) setupFeed() {
	tokenCount := len(a.cfg.Markets) * 2
	poolSize := (tokenCount + 19) / 20
	if poolSize < 1 {
		poolSize = 1
	}

	pool := websocket.NewPool(websocket.PoolConfig{
		Size:                  poolSize,
		WSUrl:                 a.cfg.API.ClobWSURL,
		DialTimeout:           10 * time.Second,
		PongTimeout:           15 * time.Second,
		PingInterval:          10 * time.Second,
		ReconnectInitialDelay: 500 * time.Millisecond,
		ReconnectMaxDelay:     30 * time.Second,
		ReconnectBackoffMult:  2.0,
		MessageBufferSize:     256,
		Logger:                a.logger,
	})
	a.clobFeed = clob.NewFeed(pool, a.logger, 1024)
	a.feedMgr = feed.New(a.cfg.Strategy.MinDeltaPct, 1024, a.logger)
}

// setupExecution selects the paper or live execution backend per
// [bot].mode.
func (a *App) setupExecution() error {
	if a.cfg.Bot.Mode == config.ModePaper {
		a.exec = execution.NewPaper(paperStartingBalanceUSDC, a.logger)
		return nil
	}

	orderClient, err := clob.NewOrderClient(clob.Config{
		APIKey:        os.Getenv("POLYMARKET_API_KEY"),
		Secret:        os.Getenv("POLYMARKET_SECRET"),
		Passphrase:    os.Getenv("POLYMARKET_PASSPHRASE"),
		PrivateKeyHex: os.Getenv("POLYMARKET_PRIVATE_KEY"),
		ProxyAddress:  os.Getenv("POLYMARKET_PROXY_ADDRESS"),
		SignatureType: signatureTypeFromEnv(),
		Logger:        a.logger,
	})
	if err != nil {
		return fmt.Errorf("build order client: %w", err)
	}

	tickSize, minOrderSize := defaultTickSize, defaultMinOrderSize
	if len(a.cfg.Markets) > 0 {
		fetchCtx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
		ts, minSz, err := a.metaCache.GetTokenMetadata(fetchCtx, a.cfg.Markets[0].YesTokenID)
		cancel()
		if err != nil {
			a.logger.Warn("initial-metadata-fetch-failed-using-defaults", zap.Error(err))
		} else {
			tickSize, minOrderSize = ts, minSz
		}
	}

	var balanceFn execution.BalanceFunc
	if chainClient, ok := a.chainCli.(*chain.Client); ok {
		balanceFn = func(ctx context.Context) (float64, error) {
			balance, err := chainClient.USDCBalance(ctx, chainClient.Address())
			if err != nil {
				return 0, err
			}
			return float64(balance.Int64()) / 1e6, nil
		}
	}

	a.exec = execution.NewLive(execution.LiveConfig{
		Client:            orderClient,
		TickSize:          tickSize,
		MinOrderSize:      minOrderSize,
		Balance:           balanceFn,
		MaxRequestsPerMin: a.cfg.RateLimits.MaxOrdersPerMinute,
		Logger:            a.logger,
	})
	return nil
}

func signatureTypeFromEnv() int {
	raw := os.Getenv("POLYMARKET_SIGNATURE_TYPE")
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

// setupPipeline builds the order manager, risk manager (restored from
// the last persisted snapshot, if any), and engine. The engine reads
// from engineUpdates rather than feedMgr.Updates() directly so Run's
// relay goroutine can mirror every update into the debug registry
// first.
func (a *App) setupPipeline() {
	a.orders = ordermanager.New(a.exec, ordermanager.Config{
		MaxOrdersPerMinute: a.cfg.RateLimits.MaxOrdersPerMinute,
		MinIntervalMs:      a.cfg.RateLimits.MinIntervalMs,
	}, a.logger)

	a.riskMgr = risk.NewManager(toRiskConfig(a.cfg.Risk), a.logger)

	if snap, err := a.store.LoadSnapshot(a.ctx); err != nil {
		a.logger.Warn("snapshot-load-failed-starting-fresh", zap.Error(err))
	} else if snap != nil {
		a.riskMgr.Restore(snap.Risk)
		a.logger.Info("snapshot-restored",
			zap.Int("open-order-count", snap.OpenOrderCount),
			zap.Float64("cumulative-pnl", snap.CumulativePnL))
	}

	a.engineUpdates = make(chan types.PriceUpdate, 1024)
	a.engine = engine.New(engine.Config{
		LiquidityParam: a.cfg.LMSR.LiquidityParameter,
		KellyFraction:  a.cfg.LMSR.KellyFraction,
		PriorWeight:    a.cfg.LMSR.PriorWeight,
		MinEdge:        a.cfg.LMSR.MinEdge,
	}, a.orders, a.riskMgr, a.exec, a.engineUpdates, a.logger)
}

func toRiskConfig(c config.RiskConfig) risk.Config {
	return risk.Config{
		MaxDailyLossFraction: c.MaxDailyLossFraction,
		MaxPositionSize:      c.MaxPositionSize,
		MaxTotalExposure:     c.MaxTotalExposure,
		MinBankroll:          c.MinBankroll,
		CircuitBreakerLosses: c.CircuitBreakerLosses,
		CooldownSeconds:      c.CooldownSeconds,
	}
}

// setupHTTPServer builds the metrics/health/debug-quote HTTP server.
func (a *App) setupHTTPServer() {
	a.httpServer = httpserver.New(&httpserver.Config{
		Port:          a.cfg.Bot.HTTPPort,
		Logger:        a.logger,
		HealthChecker: a.healthChecker,
		Registry:      a.registry,
		Markets:       a.cfg.Markets,
	})
}
