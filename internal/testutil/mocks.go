package testutil

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/foresight-labs/lmsr-marketmaker/internal/storage"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/execution"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/wallet"
)

// errOrderNotFound is returned by MockExecution for unknown order IDs.
var errOrderNotFound = errors.New("testutil: order not found")

// MockExecution is an in-memory execution.Interface for testing the
// order manager and engine without a live CLOB connection.
type MockExecution struct {
	mu sync.Mutex

	orders    map[string]types.Order
	nextID    int
	balance   float64
	healthy   bool
	failPlace bool
}

// NewMockExecution creates a mock execution backend armed with the
// given available balance.
func NewMockExecution(balance float64) *MockExecution {
	return &MockExecution{
		orders:  make(map[string]types.Order),
		balance: balance,
		healthy: true,
	}
}

// SetFailPlace forces the next PlaceOrder calls to be rejected.
func (m *MockExecution) SetFailPlace(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPlace = fail
}

// SetHealthy controls the result of IsHealthy.
func (m *MockExecution) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = healthy
}

func (m *MockExecution) PlaceOrder(_ context.Context, order types.Order) (execution.PlaceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failPlace {
		return execution.PlaceResult{Accepted: false, RejectReason: "mock-rejected"}, nil
	}

	m.nextID++
	id := orderIDFromCounter(m.nextID)
	order.ID = id
	m.orders[id] = order

	return execution.PlaceResult{Accepted: true, OrderID: id, TimestampMs: order.TimestampMs}, nil
}

func (m *MockExecution) CancelOrder(_ context.Context, orderID string) (execution.CancelResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[orderID]; !ok {
		return execution.CancelResult{Success: false, Error: "not found"}, nil
	}
	delete(m.orders, orderID)
	return execution.CancelResult{Success: true}, nil
}

func (m *MockExecution) CancelAllOrders(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.orders)
	m.orders = make(map[string]types.Order)
	return n, nil
}

func (m *MockExecution) CancelOrdersForToken(_ context.Context, token string) ([]execution.CancelResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []execution.CancelResult
	for id, o := range m.orders {
		if o.Token == token {
			delete(m.orders, id)
			results = append(results, execution.CancelResult{Success: true})
		}
	}
	return results, nil
}

func (m *MockExecution) GetOrderStatus(_ context.Context, orderID string) (types.OrderStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if o, ok := m.orders[orderID]; ok {
		return types.OrderStatus{Original: o.Size, Remaining: o.Size}, nil
	}
	return types.OrderStatus{}, errOrderNotFound
}

func (m *MockExecution) GetOpenOrders(_ context.Context) ([]types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	orders := make([]types.Order, 0, len(m.orders))
	for _, o := range m.orders {
		orders = append(orders, o)
	}
	return orders, nil
}

func (m *MockExecution) AvailableBalance(_ context.Context, _ types.OrderSide) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance, nil
}

func (m *MockExecution) RateLimitStatus(_ context.Context) (execution.RateLimitStatus, error) {
	return execution.RateLimitStatus{Remaining: 10}, nil
}

func (m *MockExecution) IsHealthy(_ context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

func orderIDFromCounter(n int) string {
	const prefix = "mock-order-"
	digits := make([]byte, 0, 4)
	if n == 0 {
		digits = append(digits, '0')
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return prefix + string(digits)
}

var _ execution.Interface = (*MockExecution)(nil)

// MockStorage is an in-memory storage.Storage for testing.
type MockStorage struct {
	mu        sync.Mutex
	Trades    []types.TradeRecord
	PnL       []types.DailyPnLRecord
	snapshot  *storage.EngineSnapshot
	closeErr  error
}

// NewMockStorage creates a new mock storage sink.
func NewMockStorage() *MockStorage {
	return &MockStorage{}
}

func (m *MockStorage) AppendTrade(_ context.Context, rec types.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Trades = append(m.Trades, rec)
	return nil
}

func (m *MockStorage) AppendDailyPnL(_ context.Context, rec types.DailyPnLRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PnL = append(m.PnL, rec)
	return nil
}

func (m *MockStorage) SaveSnapshot(_ context.Context, snap storage.EngineSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = &snap
	return nil
}

func (m *MockStorage) LoadSnapshot(_ context.Context) (*storage.EngineSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot, nil
}

func (m *MockStorage) Close() error {
	return m.closeErr
}

var _ storage.Storage = (*MockStorage)(nil)

// MockWalletClient mirrors wallet.Client's public surface for tests
// that need deterministic balances/positions without RPC or HTTP
// calls.
type MockWalletClient struct {
	mu              sync.Mutex
	balances        *wallet.Balances
	positions       []wallet.Position
	getBalancesErr  error
	getPositionsErr error
}

// NewMockWalletClient creates a new mock wallet client with zeroed balances.
func NewMockWalletClient() *MockWalletClient {
	return &MockWalletClient{
		balances: &wallet.Balances{
			MATIC:         big.NewInt(0),
			USDC:          big.NewInt(0),
			USDCAllowance: big.NewInt(0),
		},
	}
}

// GetBalances returns the configured mock balances.
func (m *MockWalletClient) GetBalances(_ context.Context, _ common.Address) (*wallet.Balances, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getBalancesErr != nil {
		return nil, m.getBalancesErr
	}
	return &wallet.Balances{
		MATIC:         new(big.Int).Set(m.balances.MATIC),
		USDC:          new(big.Int).Set(m.balances.USDC),
		USDCAllowance: new(big.Int).Set(m.balances.USDCAllowance),
	}, nil
}

// GetPositions returns the configured mock positions.
func (m *MockWalletClient) GetPositions(_ context.Context, _ string) ([]wallet.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getPositionsErr != nil {
		return nil, m.getPositionsErr
	}
	result := make([]wallet.Position, len(m.positions))
	copy(result, m.positions)
	return result, nil
}

// SetBalances sets the mock balances that will be returned.
func (m *MockWalletClient) SetBalances(matic, usdc, allowance *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances = &wallet.Balances{MATIC: matic, USDC: usdc, USDCAllowance: allowance}
}

// SetUSDCBalance sets only the USDC balance.
func (m *MockWalletClient) SetUSDCBalance(usdc *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances.USDC = usdc
}

// SetPositions sets the mock positions that will be returned.
func (m *MockWalletClient) SetPositions(positions []wallet.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = positions
}

// SetGetBalancesError sets an error to be returned by GetBalances.
func (m *MockWalletClient) SetGetBalancesError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getBalancesErr = err
}

// SetGetPositionsError sets an error to be returned by GetPositions.
func (m *MockWalletClient) SetGetPositionsError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getPositionsErr = err
}

// ResetErrors clears all error states.
func (m *MockWalletClient) ResetErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getBalancesErr = nil
	m.getPositionsErr = nil
}

// NewUSDCBigInt converts a dollar amount into USDC's 6-decimal base units.
func NewUSDCBigInt(dollars float64) *big.Int {
	return big.NewInt(int64(dollars * 1e6))
}
