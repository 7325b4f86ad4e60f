package app

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/foresight-labs/lmsr-marketmaker/pkg/config"
)

// Run starts every long-lived component, blocks until a shutdown
// signal or a fatal error, then runs the graceful shutdown sequence.
func (a *App) Run() error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.Start(); err != nil {
			a.logger.Error("http-server-stopped", zap.Error(err))
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.watcher.Run(a.ctx); err != nil && a.ctx.Err() == nil {
			a.logger.Error("config-watcher-stopped", zap.Error(err))
		}
	}()

	a.wg.Add(1)
	go a.watchConfigReloads()

	if err := a.clobFeed.Start(a.ctx); err != nil {
		return err
	}

	var tokenIDs []string
	for _, m := range a.cfg.Markets {
		tokenIDs = append(tokenIDs, m.YesTokenID, m.NoTokenID)
	}
	if len(tokenIDs) > 0 {
		if err := a.clobFeed.Subscribe(a.ctx, tokenIDs); err != nil {
			return err
		}
	}

	a.wg.Add(1)
	go a.relaySnapshots()

	a.wg.Add(1)
	go a.relayUpdates()

	a.wg.Add(1)
	go a.relayFeedHealth()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.engine.Run(a.ctx); err != nil && a.ctx.Err() == nil {
			a.logger.Error("engine-stopped", zap.Error(err))
		}
	}()

	a.healthChecker.SetReady(true)
	a.logger.Info("bot-started", zap.String("mode", string(a.cfg.Bot.Mode)), zap.Int("markets", len(a.cfg.Markets)))

	a.waitForShutdown()
	return a.Shutdown()
}

// watchConfigReloads applies every new config snapshot's risk limits to
// the running risk manager, leaving LMSR/Kelly pricing parameters fixed
// for the process lifetime.
func (a *App) watchConfigReloads() {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case snap, ok := <-a.watcher.Snapshots():
			if !ok {
				return
			}
			a.applyConfigSnapshot(snap)
		}
	}
}

func (a *App) applyConfigSnapshot(snap *config.Config) {
	a.riskMgr.UpdateConfig(toRiskConfig(snap.Risk))
	a.logger.Info("risk-config-reloaded",
		zap.Float64("max-daily-loss-fraction", snap.Risk.MaxDailyLossFraction),
		zap.Float64("max-position-size", snap.Risk.MaxPositionSize))
}

// relaySnapshots forwards parsed order-book snapshots from the CLOB
// feed into the debounced fan-in manager.
func (a *App) relaySnapshots() {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case snap, ok := <-a.clobFeed.Snapshots():
			if !ok {
				return
			}
			a.feedMgr.Ingest(snap)
		}
	}
}

// relayUpdates is the single consumer of feedMgr's debounced update
// stream. It mirrors every update into the debug registry before
// forwarding it to the engine, so exactly one goroutine ever reads
// feedMgr.Updates() and both the registry and the engine stay current.
func (a *App) relayUpdates() {
	defer a.wg.Done()
	defer close(a.engineUpdates)
	for {
		select {
		case <-a.ctx.Done():
			return
		case u, ok := <-a.feedMgr.Updates():
			if !ok {
				return
			}
			a.registry.Record(u)
			select {
			case a.engineUpdates <- u:
			case <-a.ctx.Done():
				return
			}
		}
	}
}

// relayFeedHealth withdraws resting maker orders for tokens whose book
// feed shard has gone degraded or been abandoned. A maker order priced
// against a book that stopped updating is an unmanaged position, not a
// quote. Restored shards need no action: quoting resumes on the next
// snapshot once the engine observes a fresh price.
func (a *App) relayFeedHealth() {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case tokens, ok := <-a.clobFeed.Degraded():
			if !ok {
				return
			}
			a.logger.Warn("feed-degraded-withdrawing-quotes", zap.Strings("tokens", tokens))
			a.orders.WithdrawForTokens(a.ctx, tokens)
		case tokens, ok := <-a.clobFeed.Abandoned():
			if !ok {
				return
			}
			a.logger.Error("feed-abandoned-withdrawing-quotes", zap.Strings("tokens", tokens))
			a.orders.WithdrawForTokens(a.ctx, tokens)
		case tokens, ok := <-a.clobFeed.Restored():
			if !ok {
				return
			}
			a.logger.Info("feed-restored", zap.Strings("tokens", tokens))
		}
	}
}

func (a *App) waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
	}
}
