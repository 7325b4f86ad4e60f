package execution

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/foresight-labs/lmsr-marketmaker/pkg/clob"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

// BalanceFunc reports the account's free USDC balance; injected so
// this package does not need to import pkg/chain directly.
type BalanceFunc func(ctx context.Context) (float64, error)

// Live implements Interface against the real CLOB via an
// *clob.OrderClient. Rate-limit accounting is a local sliding window
// mirroring the order manager's own limiter so RateLimitStatus reports
// something meaningful even before a request is attempted.
type Live struct {
	client      *clob.OrderClient
	tickSize    float64
	minSize     float64
	balance     BalanceFunc
	log         *zap.Logger
	maxPerMin   int

	mu      sync.Mutex
	recent  []time.Time
}

// LiveConfig configures a Live executor.
type LiveConfig struct {
	Client           *clob.OrderClient
	TickSize         float64
	MinOrderSize     float64
	Balance          BalanceFunc
	MaxRequestsPerMin int
	Logger           *zap.Logger
}

// NewLive constructs a Live executor.
func NewLive(cfg LiveConfig) *Live {
	maxPerMin := cfg.MaxRequestsPerMin
	if maxPerMin <= 0 {
		maxPerMin = 50
	}
	return &Live{
		client:    cfg.Client,
		tickSize:  cfg.TickSize,
		minSize:   cfg.MinOrderSize,
		balance:   cfg.Balance,
		maxPerMin: maxPerMin,
		log:       cfg.Logger,
	}
}

func (l *Live) PlaceOrder(ctx context.Context, order types.Order) (PlaceResult, error) {
	l.mark()

	resp, err := l.client.Place(ctx, order, l.tickSize, l.minSize)
	if err != nil {
		l.log.Warn("live-order-rejected", zap.String("token", order.Token), zap.String("error-class", classifyError(err)), zap.Error(err))
		return PlaceResult{Accepted: false, RejectReason: err.Error()}, nil
	}
	if !resp.Success {
		return PlaceResult{Accepted: false, RejectReason: resp.ErrorMsg}, nil
	}
	return PlaceResult{Accepted: true, OrderID: resp.OrderID, TimestampMs: time.Now().UnixMilli()}, nil
}

func (l *Live) CancelOrder(ctx context.Context, orderID string) (CancelResult, error) {
	l.mark()
	if err := l.client.CancelOne(ctx, orderID); err != nil {
		return CancelResult{Success: false, Error: err.Error()}, nil
	}
	return CancelResult{Success: true}, nil
}

func (l *Live) CancelAllOrders(ctx context.Context) (int, error) {
	l.mark()
	open, err := l.client.OpenOrders(ctx)
	if err != nil {
		return 0, err
	}
	if err := l.client.CancelAll(ctx); err != nil {
		return 0, err
	}
	return len(open), nil
}

func (l *Live) CancelOrdersForToken(ctx context.Context, token string) ([]CancelResult, error) {
	open, err := l.client.OpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	var results []CancelResult
	for _, o := range open {
		if o.TokenID != token {
			continue
		}
		res, _ := l.CancelOrder(ctx, o.OrderID)
		results = append(results, res)
	}
	return results, nil
}

func (l *Live) GetOrderStatus(ctx context.Context, orderID string) (types.OrderStatus, error) {
	resp, err := l.client.OrderStatus(ctx, orderID)
	if err != nil {
		return types.OrderStatus{}, err
	}
	return types.OrderStatus{
		Kind:      statusKindFromString(resp.Status),
		Remaining: resp.Size - resp.SizeFilled,
		Original:  resp.Size,
		Filled:    resp.SizeFilled,
	}, nil
}

func (l *Live) GetOpenOrders(ctx context.Context) ([]types.Order, error) {
	open, err := l.client.OpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Order, 0, len(open))
	for _, o := range open {
		side := types.Buy
		if o.Side == "SELL" {
			side = types.Sell
		}
		out = append(out, types.Order{
			ID:    o.OrderID,
			Token: o.TokenID,
			Side:  side,
			Price: o.Price,
			Size:  o.Size,
			Type:  o.OrderType,
		})
	}
	return out, nil
}

func (l *Live) AvailableBalance(ctx context.Context, _ types.OrderSide) (float64, error) {
	if l.balance == nil {
		return 0, nil
	}
	return l.balance(ctx)
}

func (l *Live) RateLimitStatus(_ context.Context) (RateLimitStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(time.Now())
	return RateLimitStatus{Remaining: l.maxPerMin - len(l.recent)}, nil
}

func (l *Live) IsHealthy(ctx context.Context) bool {
	_, err := l.client.OpenOrders(ctx)
	return err == nil
}

func (l *Live) mark() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.prune(now)
	l.recent = append(l.recent, now)
}

func (l *Live) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for ; i < len(l.recent); i++ {
		if l.recent[i].After(cutoff) {
			break
		}
	}
	l.recent = l.recent[i:]
}

func statusKindFromString(s string) types.OrderStatusKind {
	switch strings.ToLower(s) {
	case "live", "matched":
		return types.StatusOpen
	case "delayed":
		return types.StatusPartiallyFilled
	case "filled":
		return types.StatusFilled
	case "cancelled", "canceled":
		return types.StatusCancelled
	default:
		return types.StatusUnknown
	}
}

// classifyError buckets a CLOB error for logging/metrics, mirroring
// the teacher's executor.classifyError.
func classifyError(err error) string {
	if err == nil {
		return "unknown"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "dial"),
		strings.Contains(msg, "eof"),
		strings.Contains(msg, "network"):
		return "network"
	case strings.Contains(msg, "clob error"),
		strings.Contains(msg, "invalid"),
		strings.Contains(msg, "400"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "404"),
		strings.Contains(msg, "500"):
		return "api"
	case strings.Contains(msg, "missing"),
		strings.Contains(msg, "required"),
		strings.Contains(msg, "not configured"):
		return "validation"
	case strings.Contains(msg, "insufficient"),
		strings.Contains(msg, "balance"),
		strings.Contains(msg, "funds"):
		return "funds"
	default:
		return "unknown"
	}
}

var _ Interface = (*Live)(nil)
