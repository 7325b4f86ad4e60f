package websocket

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrReconnectAbandoned is returned once a ReconnectManager configured
// with MaxConsecutiveFailures has exhausted its retry budget. The
// caller must treat this as a hard feed loss, not a transient one: a
// maker cannot keep resting orders against a shard that may never come
// back.
var ErrReconnectAbandoned = errors.New("websocket: reconnect attempts exhausted")

// ReconnectConfig holds the configuration for exponential backoff reconnection.
type ReconnectConfig struct {
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterPercent     float64 // 0.2 = 20%
	// MaxConsecutiveFailures bounds how many failed connection attempts
	// ReconnectManager will make before giving up and returning
	// ErrReconnectAbandoned. Zero means retry forever, matching a feed
	// that backs no resting exposure.
	MaxConsecutiveFailures int
}

// ReconnectManager handles exponential backoff reconnection with jitter.
type ReconnectManager struct {
	config              ReconnectConfig
	logger              *zap.Logger
	currentBackoff      time.Duration
	consecutiveFailures int
	mu                  sync.Mutex
}

// NewReconnectManager creates a new reconnection manager with the specified config.
func NewReconnectManager(cfg ReconnectConfig, logger *zap.Logger) *ReconnectManager {
	return &ReconnectManager{
		config:         cfg,
		logger:         logger,
		currentBackoff: cfg.InitialDelay,
	}
}

// Reconnect attempts to reconnect using the provided connect function
// with exponential backoff. Returns ErrReconnectAbandoned once
// MaxConsecutiveFailures consecutive attempts have failed.
func (rm *ReconnectManager) Reconnect(ctx context.Context, connectFunc func(context.Context) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		backoff := rm.nextBackoff()

		rm.logger.Info("attempting-reconnection",
			zap.Duration("backoff", backoff),
			zap.Int("consecutive-failures", rm.Failures()))

		ReconnectAttemptsTotal.Inc()

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}

		err := connectFunc(ctx)
		if err == nil {
			rm.Reset()
			rm.logger.Info("reconnection-successful")
			return nil
		}

		rm.logger.Warn("reconnection-failed", zap.Error(err))
		ReconnectFailuresTotal.Inc()

		if rm.incrementBackoff() {
			rm.logger.Error("reconnection-abandoned-after-max-failures",
				zap.Int("max-consecutive-failures", rm.config.MaxConsecutiveFailures))
			return ErrReconnectAbandoned
		}
	}
}

// Reset resets the backoff to the initial delay and clears the
// consecutive-failure count.
func (rm *ReconnectManager) Reset() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.currentBackoff = rm.config.InitialDelay
	rm.consecutiveFailures = 0
}

// Failures returns the current consecutive-failure count.
func (rm *ReconnectManager) Failures() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.consecutiveFailures
}

// nextBackoff returns the current backoff duration with jitter applied.
func (rm *ReconnectManager) nextBackoff() time.Duration {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	jitter := rand.Float64() * rm.config.JitterPercent
	backoffFloat := float64(rm.currentBackoff) * (1.0 + jitter)

	return time.Duration(backoffFloat)
}

// incrementBackoff increases the backoff duration by the multiplier,
// capped at MaxDelay, and bumps the consecutive-failure count. Returns
// true once that count reaches MaxConsecutiveFailures (when configured).
func (rm *ReconnectManager) incrementBackoff() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	newBackoff := time.Duration(float64(rm.currentBackoff) * rm.config.BackoffMultiplier)
	if newBackoff > rm.config.MaxDelay {
		rm.currentBackoff = rm.config.MaxDelay
	} else {
		rm.currentBackoff = newBackoff
	}

	rm.consecutiveFailures++
	return rm.config.MaxConsecutiveFailures > 0 && rm.consecutiveFailures >= rm.config.MaxConsecutiveFailures
}
