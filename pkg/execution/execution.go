// Package execution defines the capability interface the pricing
// pipeline uses to place, cancel, and query maker orders and to read
// available trading balance. Two implementations exist: a paper
// simulator for dry-run/backtest use (Paper) and a live executor (Live)
// that submits through pkg/clob's OrderClient.
package execution

import (
	"context"

	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

// PlaceResult is the execution interface's response to a place request.
type PlaceResult struct {
	Accepted     bool
	OrderID      string
	RejectReason string
	TimestampMs  int64
}

// CancelResult is the response to a single cancel request.
type CancelResult struct {
	Success bool
	Error   string
}

// RateLimitStatus reports the caller's remaining request budget.
type RateLimitStatus struct {
	Remaining int
	ResetMs   int64
}

// Interface is the capability the engine and order manager consume for
// all order lifecycle and balance operations. Implementations must
// never block the caller beyond the configured HTTP timeout.
type Interface interface {
	PlaceOrder(ctx context.Context, order types.Order) (PlaceResult, error)
	CancelOrder(ctx context.Context, orderID string) (CancelResult, error)
	CancelAllOrders(ctx context.Context) (int, error)
	CancelOrdersForToken(ctx context.Context, token string) ([]CancelResult, error)
	GetOrderStatus(ctx context.Context, orderID string) (types.OrderStatus, error)
	GetOpenOrders(ctx context.Context) ([]types.Order, error)
	AvailableBalance(ctx context.Context, side types.OrderSide) (float64, error)
	RateLimitStatus(ctx context.Context) (RateLimitStatus, error)
	IsHealthy(ctx context.Context) bool
}
