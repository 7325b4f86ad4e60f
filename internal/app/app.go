// Package app wires the bot's config, transport, pricing, risk, and
// persistence components together and owns their startup/shutdown
// ordering. Adapted from the primary teacher's internal/app, which
// wired the discovery-service/orderbook-manager/arbitrage-detector
// pipeline the same way; this version wires the single-token maker
// pricing pipeline instead.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/foresight-labs/lmsr-marketmaker/internal/engine"
	"github.com/foresight-labs/lmsr-marketmaker/internal/feed"
	"github.com/foresight-labs/lmsr-marketmaker/internal/markets"
	"github.com/foresight-labs/lmsr-marketmaker/internal/ordermanager"
	"github.com/foresight-labs/lmsr-marketmaker/internal/risk"
	"github.com/foresight-labs/lmsr-marketmaker/internal/storage"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/chain"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/clob"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/config"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/execution"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/healthprobe"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/httpserver"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

// App owns every long-lived component of the running bot.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	watcher       *config.Watcher

	metaCache *markets.CachedMetadataClient
	chainCli  chain.Interface

	clobFeed *clob.Feed
	feedMgr  *feed.Manager
	registry *feed.Registry

	exec          execution.Interface
	orders        *ordermanager.Manager
	riskMgr       *risk.Manager
	engine        *engine.Engine
	engineUpdates chan types.PriceUpdate
	store         storage.Storage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}
