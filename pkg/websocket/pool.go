package websocket

import (
	"context"
	"fmt"
	"hash/crc32"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
	"go.uber.org/zap"
)

// defaultMaxConsecutiveFailures bounds how many back-to-back reconnect
// attempts a shard makes before it is declared abandoned. A maker
// cannot let a shard retry forever in silence while its tokens sit
// unquotable; an operator needs to see the shard surfaced as lost.
const defaultMaxConsecutiveFailures = 30

// PoolConfig holds WebSocket pool configuration.
type PoolConfig struct {
	Size                   int           // Number of WebSocket connections; no default is applied
	WSUrl                  string        // WebSocket URL
	DialTimeout            time.Duration // Connection timeout
	PongTimeout            time.Duration // Pong timeout
	PingInterval           time.Duration // Ping interval
	ReconnectInitialDelay  time.Duration // Initial reconnect delay
	ReconnectMaxDelay      time.Duration // Max reconnect delay
	ReconnectBackoffMult   float64       // Reconnect backoff multiplier
	MaxConsecutiveFailures int           // Per-shard reconnect budget before abandonment; 0 uses the default
	MessageBufferSize      int           // Per-connection buffer size
	Logger                 *zap.Logger
}

// Pool manages multiple WebSocket connections for load distribution
// across a bot's configured markets, and aggregates each shard's
// health so degraded/abandoned tokens can be withdrawn from quoting.
type Pool struct {
	cfg                PoolConfig
	managers           []*Manager
	tokenToIndex       map[string]int
	totalSubscriptions int
	mu                 sync.RWMutex
	messageChan        chan *types.OrderbookMessage
	degradedChan       chan []string
	restoredChan       chan []string
	abandonedChan      chan []string
	ctx                context.Context
	cancel             context.CancelFunc
	wg                 sync.WaitGroup
	logger             *zap.Logger
}

// NewPool creates a new WebSocket connection pool.
func NewPool(cfg PoolConfig) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = defaultMaxConsecutiveFailures
	}

	messageBufferSize := cfg.Size * cfg.MessageBufferSize

	pool := &Pool{
		cfg:           cfg,
		managers:      make([]*Manager, cfg.Size),
		tokenToIndex:  make(map[string]int),
		messageChan:   make(chan *types.OrderbookMessage, messageBufferSize),
		degradedChan:  make(chan []string, cfg.Size),
		restoredChan:  make(chan []string, cfg.Size),
		abandonedChan: make(chan []string, cfg.Size),
		ctx:           ctx,
		cancel:        cancel,
		logger:        cfg.Logger,
	}

	for i := range cfg.Size {
		id := strconv.Itoa(i)
		managerCfg := Config{
			ID:                     id,
			URL:                    cfg.WSUrl,
			DialTimeout:            cfg.DialTimeout,
			PongTimeout:            cfg.PongTimeout,
			PingInterval:           cfg.PingInterval,
			ReconnectInitialDelay:  cfg.ReconnectInitialDelay,
			ReconnectMaxDelay:      cfg.ReconnectMaxDelay,
			ReconnectBackoffMult:   cfg.ReconnectBackoffMult,
			MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
			MessageBufferSize:      cfg.MessageBufferSize,
			Logger:                 cfg.Logger.With(zap.Int("manager-id", i)),
			OnDegraded:             pool.forward(pool.degradedChan),
			OnRestored:             pool.forward(pool.restoredChan),
			OnAbandoned:            pool.forward(pool.abandonedChan),
		}

		pool.managers[i] = New(managerCfg)
	}

	return pool
}

// forward returns a callback that fans a shard's token list into a
// pool-wide channel, dropping (with a log) rather than blocking a
// shard's reconnect loop if the consumer is behind.
func (p *Pool) forward(ch chan []string) func(tokenIDs []string) {
	return func(tokenIDs []string) {
		select {
		case ch <- tokenIDs:
		default:
			p.logger.Warn("health-event-channel-full-dropping", zap.Int("token-count", len(tokenIDs)))
		}
	}
}

// Degraded returns token IDs withdrawn from quoting as their shard's
// connection drops. The caller should cancel resting orders on them.
func (p *Pool) Degraded() <-chan []string { return p.degradedChan }

// Restored returns token IDs whose shard has reconnected and
// resubscribed successfully; quoting may resume on them.
func (p *Pool) Restored() <-chan []string { return p.restoredChan }

// Abandoned returns token IDs whose shard exhausted its reconnect
// budget; these need operator attention, not just a retry.
func (p *Pool) Abandoned() <-chan []string { return p.abandonedChan }

// Start starts all WebSocket managers in the pool.
func (p *Pool) Start() error {
	p.logger.Info("websocket-pool-starting", zap.Int("pool-size", p.cfg.Size))

	errChan := make(chan error, p.cfg.Size)
	var startWg sync.WaitGroup

	for i, mgr := range p.managers {
		startWg.Add(1)
		go func(index int, manager *Manager) {
			defer startWg.Done()

			err := manager.Start()
			if err != nil {
				p.logger.Error("manager-start-failed",
					zap.Int("manager-id", index),
					zap.Error(err))
				errChan <- fmt.Errorf("manager %d start failed: %w", index, err)
			}
		}(i, mgr)
	}

	startWg.Wait()
	close(errChan)

	var startErrors []error
	for err := range errChan {
		startErrors = append(startErrors, err)
	}

	if len(startErrors) > 0 {
		return fmt.Errorf("failed to start %d managers: %v", len(startErrors), startErrors)
	}

	p.wg.Add(1)
	go p.multiplexMessages()

	PoolActiveConnections.Set(float64(p.cfg.Size))

	p.logger.Info("websocket-pool-started", zap.Int("active-managers", p.cfg.Size))

	return nil
}

// Subscribe distributes token subscriptions across managers using hash-based sharding.
func (p *Pool) Subscribe(ctx context.Context, tokenIDs []string) error {
	if len(tokenIDs) == 0 {
		return nil
	}

	tokensByManager := make(map[int][]string)
	newTokensCount := 0

	p.mu.Lock()
	for _, tokenID := range tokenIDs {
		if _, exists := p.tokenToIndex[tokenID]; exists {
			continue
		}

		managerIndex := p.getManagerIndex(tokenID)
		p.tokenToIndex[tokenID] = managerIndex
		tokensByManager[managerIndex] = append(tokensByManager[managerIndex], tokenID)
		newTokensCount++
	}
	p.mu.Unlock()

	errChan := make(chan error, len(tokensByManager))
	var subWg sync.WaitGroup

	for managerIndex, tokens := range tokensByManager {
		subWg.Add(1)
		go func(idx int, toks []string) {
			defer subWg.Done()

			err := p.managers[idx].Subscribe(ctx, toks)
			if err != nil {
				p.logger.Error("manager-subscribe-failed",
					zap.Int("manager-id", idx),
					zap.Int("token-count", len(toks)),
					zap.Error(err))
				errChan <- fmt.Errorf("manager %d subscribe failed: %w", idx, err)
			}
		}(managerIndex, tokens)
	}

	subWg.Wait()
	close(errChan)

	var subscribeErrors []error
	for err := range errChan {
		subscribeErrors = append(subscribeErrors, err)
	}

	if len(subscribeErrors) > 0 {
		return fmt.Errorf("failed to subscribe on %d managers: %v", len(subscribeErrors), subscribeErrors)
	}

	p.mu.Lock()
	p.totalSubscriptions += newTokensCount
	totalSubs := p.totalSubscriptions
	p.mu.Unlock()

	SubscriptionCount.Set(float64(totalSubs))
	p.updateDistributionMetrics()

	p.logger.Info("pool-subscribed-to-tokens",
		zap.Int("new-tokens", newTokensCount),
		zap.Int("total-subscriptions", totalSubs),
		zap.Int("managers-used", len(tokensByManager)))

	return nil
}

// Unsubscribe removes token subscriptions from their assigned managers.
func (p *Pool) Unsubscribe(ctx context.Context, tokenIDs []string) error {
	if len(tokenIDs) == 0 {
		return nil
	}

	tokensByManager := make(map[int][]string)
	removedTokensCount := 0

	p.mu.Lock()
	for _, tokenID := range tokenIDs {
		if managerIndex, exists := p.tokenToIndex[tokenID]; exists {
			tokensByManager[managerIndex] = append(tokensByManager[managerIndex], tokenID)
			delete(p.tokenToIndex, tokenID)
			removedTokensCount++
		}
	}
	p.mu.Unlock()

	errChan := make(chan error, len(tokensByManager))
	var unsubWg sync.WaitGroup

	for managerIndex, tokens := range tokensByManager {
		unsubWg.Add(1)
		go func(idx int, toks []string) {
			defer unsubWg.Done()

			err := p.managers[idx].Unsubscribe(ctx, toks)
			if err != nil {
				p.logger.Error("manager-unsubscribe-failed",
					zap.Int("manager-id", idx),
					zap.Int("token-count", len(toks)),
					zap.Error(err))
				errChan <- fmt.Errorf("manager %d unsubscribe failed: %w", idx, err)
			}
		}(managerIndex, tokens)
	}

	unsubWg.Wait()
	close(errChan)

	var unsubscribeErrors []error
	for err := range errChan {
		unsubscribeErrors = append(unsubscribeErrors, err)
	}

	if len(unsubscribeErrors) > 0 {
		return fmt.Errorf("failed to unsubscribe on %d managers: %v", len(unsubscribeErrors), unsubscribeErrors)
	}

	p.mu.Lock()
	p.totalSubscriptions -= removedTokensCount
	totalSubs := p.totalSubscriptions
	p.mu.Unlock()

	SubscriptionCount.Set(float64(totalSubs))

	p.logger.Info("pool-unsubscribed-from-tokens",
		zap.Int("removed-tokens", removedTokensCount),
		zap.Int("total-subscriptions", totalSubs),
		zap.Int("managers-used", len(tokensByManager)))

	return nil
}

// MessageChan returns the multiplexed message channel receiving from all managers.
func (p *Pool) MessageChan() <-chan *types.OrderbookMessage {
	return p.messageChan
}

// Close gracefully closes all WebSocket managers in the pool.
func (p *Pool) Close() error {
	p.logger.Info("closing-websocket-pool")

	p.cancel()

	var closeWg sync.WaitGroup
	for i, mgr := range p.managers {
		closeWg.Add(1)
		go func(index int, manager *Manager) {
			defer closeWg.Done()

			err := manager.Close()
			if err != nil {
				p.logger.Error("manager-close-failed",
					zap.Int("manager-id", index),
					zap.Error(err))
			}
		}(i, mgr)
	}

	closeWg.Wait()
	p.wg.Wait()

	close(p.messageChan)
	close(p.degradedChan)
	close(p.restoredChan)
	close(p.abandonedChan)

	PoolActiveConnections.Set(0)

	p.logger.Info("websocket-pool-closed")

	return nil
}

// multiplexMessages receives messages from all managers and forwards to pool's message channel.
func (p *Pool) multiplexMessages() {
	defer p.wg.Done()

	cases := make([]reflect.SelectCase, len(p.managers)+1)

	cases[0] = reflect.SelectCase{
		Dir:  reflect.SelectRecv,
		Chan: reflect.ValueOf(p.ctx.Done()),
	}

	for i, mgr := range p.managers {
		cases[i+1] = reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(mgr.MessageChan()),
		}
	}

	p.logger.Info("message-multiplexer-started", zap.Int("manager-count", len(p.managers)))

	for {
		chosen, value, ok := reflect.Select(cases)

		if chosen == 0 {
			p.logger.Info("message-multiplexer-stopped")
			return
		}

		if !ok {
			p.logger.Warn("manager-channel-closed", zap.Int("manager-id", chosen-1))
			cases[chosen].Chan = reflect.ValueOf(make(chan *types.OrderbookMessage))
			continue
		}

		msg, ok := value.Interface().(*types.OrderbookMessage)
		if !ok {
			p.logger.Error("invalid-message-type",
				zap.Int("manager-id", chosen-1),
				zap.String("type", fmt.Sprintf("%T", value.Interface())))
			continue
		}

		select {
		case p.messageChan <- msg:
		default:
			p.logger.Warn("dropped-message-from-multiplexer",
				zap.Int("manager-id", chosen-1),
				zap.String("asset-id", msg.AssetID))
		}
	}
}

// getManagerIndex calculates the manager index for a token ID using CRC32 hash.
// Must be called with p.mu held.
func (p *Pool) getManagerIndex(tokenID string) int {
	hash := crc32.ChecksumIEEE([]byte(tokenID))
	return int(hash) % p.cfg.Size
}

// updateDistributionMetrics updates Prometheus metrics for subscription distribution.
func (p *Pool) updateDistributionMetrics() {
	subscriptionsPerManager := make(map[int]int)

	p.mu.RLock()
	for _, managerIndex := range p.tokenToIndex {
		subscriptionsPerManager[managerIndex]++
	}
	p.mu.RUnlock()

	for _, count := range subscriptionsPerManager {
		PoolSubscriptionDistribution.Observe(float64(count))
	}
}
