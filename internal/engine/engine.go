// Package engine runs the event-driven pricing and quoting loop: one
// price update in, at most one maker order out. Adapted from
// original_source/src/usecases/arbitrage_engine.rs — the Rust
// original races broadcast receivers with a hand-rolled poll_fn because
// it fans in N per-market receivers itself; here internal/feed already
// performs that fan-in, so the Go loop only needs to select between
// the single updates channel, a daily-reset ticker, and shutdown.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/foresight-labs/lmsr-marketmaker/internal/fees"
	"github.com/foresight-labs/lmsr-marketmaker/internal/fusion"
	"github.com/foresight-labs/lmsr-marketmaker/internal/kelly"
	"github.com/foresight-labs/lmsr-marketmaker/internal/lmsr"
	"github.com/foresight-labs/lmsr-marketmaker/internal/ordermanager"
	"github.com/foresight-labs/lmsr-marketmaker/internal/risk"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/execution"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

// Config bundles the per-token domain models and thresholds the
// engine needs. MinEdge is the absolute net-edge floor below which a
// signal is ignored.
type Config struct {
	LiquidityParam float64
	KellyFraction  float64
	PriorWeight    float64
	MinEdge        float64
}

// Engine wires the Bayesian estimator, LMSR pricer, fee calculator,
// Kelly sizer, risk manager, and order manager into the ten-step
// pipeline triggered by every price update.
type Engine struct {
	updates <-chan types.PriceUpdate

	sizer     *kelly.Sizer
	feeCalc   fees.Calculator
	estimator *fusion.MultiSourceFuser
	orders    *ordermanager.Manager
	riskMgr   *risk.Manager
	exec      execution.Interface
	minEdge   float64

	log *zap.Logger
}

// New constructs an Engine. The estimator source name "consensus" is
// the single feed source fed by internal/feed; a multi-venue feed
// would call UpdateSource once per venue instead.
func New(cfg Config, orders *ordermanager.Manager, riskMgr *risk.Manager, exec execution.Interface, updates <-chan types.PriceUpdate, log *zap.Logger) *Engine {
	return &Engine{
		updates:   updates,
		sizer:     kelly.NewSizer(cfg.KellyFraction),
		feeCalc:   fees.Maker(),
		estimator: fusion.NewMultiSourceFuser(cfg.PriorWeight),
		orders:    orders,
		riskMgr:   riskMgr,
		exec:      exec,
		minEdge:   cfg.MinEdge,
		log:       log,
	}
}

// Run drives the event loop until ctx is cancelled. It never polls:
// every iteration blocks on a price update, the once-a-minute
// daily-reset check, or shutdown.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine-stopping")
			return nil
		case update, ok := <-e.updates:
			if !ok {
				e.log.Info("update-channel-closed-stopping")
				return nil
			}
			if err := e.processUpdate(ctx, update); err != nil {
				e.log.Warn("process-update-error", zap.String("token", update.Token), zap.Error(err))
			}
		case <-ticker.C:
			e.riskMgr.ResetDailyIfNewDay(time.Now())
		}
	}
}

// processUpdate runs the ten-step pipeline: validate mid -> Bayesian
// update -> LMSR fair value -> fee-net edge -> min-edge threshold ->
// risk.CanTrade -> bankroll query -> Kelly size -> risk.CanOpen ->
// PlaceMaker.
func (e *Engine) processUpdate(ctx context.Context, update types.PriceUpdate) error {
	mid, ok := update.ValidMid()
	if !ok {
		return nil
	}

	estimatedProb := e.estimator.UpdateSource("consensus", mid)
	fair := lmsr.FairPriceFromProb(estimatedProb)

	edge, isBuy, market, ok := e.bestDirection(fair, update)
	if !ok {
		return nil
	}

	if abs(edge) < e.minEdge {
		return nil
	}

	if !e.riskMgr.CanTrade() {
		e.log.Warn("risk-limits-reached-trade-blocked", zap.String("token", update.Token))
		return nil
	}

	side := types.Buy
	if !isBuy {
		side = types.Sell
	}

	bankroll, err := e.exec.AvailableBalance(ctx, side)
	if err != nil {
		return err
	}

	// A sell of YES at the bid is sized as a buy of the complementary
	// outcome: win probability 1-p at price 1-bid.
	var size float64
	if isBuy {
		size = e.sizer.OptimalSize(estimatedProb, market, bankroll)
	} else {
		size = e.sizer.OptimalSize(1-estimatedProb, 1-market, bankroll)
	}
	if size < 1.0 {
		return nil
	}

	if !e.riskMgr.CanOpen(size, bankroll) {
		e.log.Warn("risk-exposure-limit-trade-blocked", zap.String("token", update.Token))
		return nil
	}

	e.log.Info("signal-detected-placing-maker-order",
		zap.String("token", update.Token),
		zap.Float64("fair-value", fair),
		zap.Float64("edge", edge),
		zap.Float64("size", size))

	result, err := e.orders.PlaceMaker(ctx, update.Token, side, fair, size)
	if err != nil {
		return err
	}
	if result.Outcome == types.Placed {
		e.riskMgr.UpdateExposure(size)
	}
	return nil
}

// bestDirection evaluates the buy-side edge against the best ask and
// the sell-side edge against the best bid (whichever quotes are
// present) and returns the side whose edge is most favorable. Unlike
// picking a side by which pointer happens to be non-nil, this lets a
// two-sided book actually produce a sell-side maker order whenever
// fair value sits below the bid rather than above the ask.
func (e *Engine) bestDirection(fair float64, update types.PriceUpdate) (edge float64, isBuy bool, market float64, ok bool) {
	haveBuy := update.BestAsk != nil
	haveSell := update.BestBid != nil
	if !haveBuy && !haveSell {
		return 0, false, 0, false
	}

	var buyEdge, sellEdge float64
	if haveBuy {
		buyEdge = e.feeCalc.NetEdge(fair, *update.BestAsk, true)
	}
	if haveSell {
		sellEdge = e.feeCalc.NetEdge(fair, *update.BestBid, false)
	}

	switch {
	case haveBuy && haveSell:
		if buyEdge >= sellEdge {
			return buyEdge, true, *update.BestAsk, true
		}
		return sellEdge, false, *update.BestBid, true
	case haveBuy:
		return buyEdge, true, *update.BestAsk, true
	default:
		return sellEdge, false, *update.BestBid, true
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
