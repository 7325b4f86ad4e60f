package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/foresight-labs/lmsr-marketmaker/internal/storage"
)

// Shutdown runs the bot's graceful-stop sequence: stop intake, cancel
// all resting orders, persist final state, then tear down transport
// and storage. Each step logs and continues past its own failure so
// one broken component never blocks the rest of the sequence.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if a.orders != nil {
		if n, err := a.orders.CancelAll(shutdownCtx); err != nil {
			a.logger.Error("cancel-all-orders-failed", zap.Error(err))
		} else {
			a.logger.Info("cancel-all-orders-complete", zap.Int("cancelled", n))
		}
	}

	a.persistFinalSnapshot(shutdownCtx)

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	if err := a.clobFeed.Close(); err != nil {
		a.logger.Error("clob-feed-close-error", zap.Error(err))
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("storage-close-error", zap.Error(err))
		}
	}

	a.wg.Wait()
	a.logger.Info("application-shutdown-complete")
	return nil
}

func (a *App) persistFinalSnapshot(ctx context.Context) {
	if a.store == nil || a.riskMgr == nil {
		return
	}
	openOrders := 0
	if a.orders != nil {
		openOrders = a.orders.OpenOrderCount()
	}
	snap := storage.EngineSnapshot{
		Risk:           a.riskMgr.ToSnapshot(),
		OpenOrderCount: openOrders,
		CumulativePnL:  -a.riskMgr.DailyLoss(),
		SavedAtMs:      time.Now().UnixMilli(),
	}
	if err := a.store.SaveSnapshot(ctx, snap); err != nil {
		a.logger.Error("snapshot-save-failed", zap.Error(err))
	}
}
