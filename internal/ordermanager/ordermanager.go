// Package ordermanager owns the maker order lifecycle: rate-limited
// placement, open-order tracking, and cancel-all on shutdown.
// Adapted from original_source/src/usecases/order_manager.rs, kept in
// the teacher's style (zap logging, injectable clock for tests).
package ordermanager

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/foresight-labs/lmsr-marketmaker/pkg/execution"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

// Config bounds order placement frequency.
type Config struct {
	MaxOrdersPerMinute int
	MinIntervalMs      int64
}

// Manager rate-limits and tracks maker order placement against an
// execution.Interface.
type Manager struct {
	exec execution.Interface
	log  *zap.Logger
	cfg  Config
	now  func() time.Time

	mu             sync.Mutex
	openOrders     map[string]types.Order
	orderTimes     []time.Time
	lastOrderTime  time.Time
	hasLastOrder   bool
}

// New constructs a Manager.
func New(exec execution.Interface, cfg Config, log *zap.Logger) *Manager {
	if cfg.MaxOrdersPerMinute <= 0 {
		cfg.MaxOrdersPerMinute = 50
	}
	return &Manager{
		exec:       exec,
		log:        log,
		cfg:        cfg,
		now:        time.Now,
		openOrders: make(map[string]types.Order),
	}
}

// PlaceMaker places a maker-only GTC order, subject to the rate
// window and minimum inter-order interval. It never returns an error
// for a skip — SkippedRate/SkippedInterval are ordinary outcomes.
func (m *Manager) PlaceMaker(ctx context.Context, token string, side types.OrderSide, price, size float64) (types.PlacementResult, error) {
	m.mu.Lock()
	now := m.now()
	m.pruneRateWindowLocked(now)

	if len(m.orderTimes) >= m.cfg.MaxOrdersPerMinute {
		m.mu.Unlock()
		m.log.Debug("rate-limit-reached-skipping-order", zap.String("token", token))
		return types.PlacementResult{Outcome: types.SkippedRate}, nil
	}
	if m.hasLastOrder {
		elapsed := now.Sub(m.lastOrderTime).Milliseconds()
		if elapsed < m.cfg.MinIntervalMs {
			m.mu.Unlock()
			m.log.Debug("min-interval-not-met",
				zap.Int64("elapsed-ms", elapsed),
				zap.Int64("min-ms", m.cfg.MinIntervalMs))
			return types.PlacementResult{Outcome: types.SkippedInterval}, nil
		}
	}
	m.mu.Unlock()

	order, err := types.NewOrder(token, side, price, size, now.UnixMilli())
	if err != nil {
		return types.PlacementResult{}, err
	}

	result, err := m.exec.PlaceOrder(ctx, order)
	if err != nil {
		return types.PlacementResult{}, err
	}

	if !result.Accepted {
		m.log.Warn("order-rejected", zap.String("reason", result.RejectReason))
		return types.PlacementResult{Outcome: types.Rejected, RejectReason: result.RejectReason}, nil
	}

	order.ID = result.OrderID
	m.mu.Lock()
	m.openOrders[order.ID] = order
	m.orderTimes = append(m.orderTimes, now)
	m.lastOrderTime = now
	m.hasLastOrder = true
	m.mu.Unlock()

	m.log.Info("maker-order-placed", zap.String("order-id", order.ID), zap.String("token", token))
	return types.PlacementResult{Outcome: types.Placed, OrderID: order.ID}, nil
}

// CancelAll cancels every tracked open order, used on graceful
// shutdown.
func (m *Manager) CancelAll(ctx context.Context) (int, error) {
	count, err := m.exec.CancelAllOrders(ctx)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	m.openOrders = make(map[string]types.Order)
	m.mu.Unlock()
	m.log.Info("all-orders-cancelled", zap.Int("count", count))
	return count, nil
}

// OpenOrderCount returns the number of orders this manager believes
// are currently resting.
func (m *Manager) OpenOrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.openOrders)
}

// WithdrawForTokens cancels every resting order on the given tokens.
// Called when the book feed backing those tokens goes degraded: a
// maker order left resting against a stale book is an unmanaged
// position, not a quote, so it must come off the moment the feed that
// priced it stops updating.
func (m *Manager) WithdrawForTokens(ctx context.Context, tokens []string) {
	for _, token := range tokens {
		results, err := m.exec.CancelOrdersForToken(ctx, token)
		if err != nil {
			m.log.Warn("withdraw-for-token-failed", zap.String("token", token), zap.Error(err))
			continue
		}

		m.mu.Lock()
		for id, o := range m.openOrders {
			if o.Token == token {
				delete(m.openOrders, id)
			}
		}
		m.mu.Unlock()

		m.log.Info("withdrew-orders-on-feed-degraded",
			zap.String("token", token),
			zap.Int("cancelled", len(results)))
	}
}

func (m *Manager) pruneRateWindowLocked(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for ; i < len(m.orderTimes); i++ {
		if m.orderTimes[i].After(cutoff) {
			break
		}
	}
	m.orderTimes = m.orderTimes[i:]
}
