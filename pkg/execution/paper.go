package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/foresight-labs/lmsr-marketmaker/internal/nonce"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

// Paper simulates the execution interface in memory against a single
// starting USDC balance. A buy is accepted only when price*size fits
// the remaining balance, which it then holds until cancelled; sells are
// accepted without a balance check. Orders are never filled. Adapted from the teacher's Executor.executePaper, scoped down
// from a YES/NO-pair simulation to single maker orders.
type Paper struct {
	log *zap.Logger

	mu          sync.Mutex
	balanceUSDC float64
	open        map[string]types.Order
}

// NewPaper constructs a paper executor seeded with a starting USDC balance.
func NewPaper(startingBalanceUSDC float64, log *zap.Logger) *Paper {
	return &Paper{
		log:         log,
		balanceUSDC: startingBalanceUSDC,
		open:        make(map[string]types.Order),
	}
}

func (p *Paper) PlaceOrder(_ context.Context, order types.Order) (PlaceResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cost := order.Price * order.Size
	if order.Side == types.Buy && cost > p.balanceUSDC {
		return PlaceResult{Accepted: false, RejectReason: "insufficient paper balance"}, nil
	}

	id := fmt.Sprintf("paper-%d", nonce.Next())
	order.ID = id
	p.open[id] = order
	if order.Side == types.Buy {
		p.balanceUSDC -= cost
	}

	p.log.Info("paper-order-placed",
		zap.String("order-id", id),
		zap.String("token", order.Token),
		zap.Float64("price", order.Price),
		zap.Float64("size", order.Size))

	return PlaceResult{Accepted: true, OrderID: id, TimestampMs: time.Now().UnixMilli()}, nil
}

func (p *Paper) CancelOrder(_ context.Context, orderID string) (CancelResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.open[orderID]
	if !ok {
		return CancelResult{Success: false, Error: "unknown order id"}, nil
	}
	if order.Side == types.Buy {
		p.balanceUSDC += order.Price * order.Size
	}
	delete(p.open, orderID)
	return CancelResult{Success: true}, nil
}

func (p *Paper) CancelAllOrders(ctx context.Context) (int, error) {
	p.mu.Lock()
	ids := make([]string, 0, len(p.open))
	for id := range p.open {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	count := 0
	for _, id := range ids {
		if res, _ := p.CancelOrder(ctx, id); res.Success {
			count++
		}
	}
	return count, nil
}

func (p *Paper) CancelOrdersForToken(ctx context.Context, token string) ([]CancelResult, error) {
	p.mu.Lock()
	ids := make([]string, 0)
	for id, o := range p.open {
		if o.Token == token {
			ids = append(ids, id)
		}
	}
	p.mu.Unlock()

	results := make([]CancelResult, 0, len(ids))
	for _, id := range ids {
		res, _ := p.CancelOrder(ctx, id)
		results = append(results, res)
	}
	return results, nil
}

func (p *Paper) GetOrderStatus(_ context.Context, orderID string) (types.OrderStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.open[orderID]
	if !ok {
		return types.OrderStatus{Kind: types.StatusUnknown}, nil
	}
	return types.OrderStatus{Kind: types.StatusOpen, Remaining: order.Size, Original: order.Size}, nil
}

func (p *Paper) GetOpenOrders(_ context.Context) ([]types.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]types.Order, 0, len(p.open))
	for _, o := range p.open {
		out = append(out, o)
	}
	return out, nil
}

func (p *Paper) AvailableBalance(_ context.Context, _ types.OrderSide) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balanceUSDC, nil
}

func (p *Paper) RateLimitStatus(_ context.Context) (RateLimitStatus, error) {
	return RateLimitStatus{Remaining: 1 << 30}, nil
}

func (p *Paper) IsHealthy(_ context.Context) bool { return true }

var _ Interface = (*Paper)(nil)
