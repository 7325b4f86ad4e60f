// Package risk implements the Armed/Tripped circuit-breaker state
// machine that gates every trade decision in the pricing pipeline.
//
// All decisions are local and synchronous: the risk manager never
// performs I/O. A request denied by risk is not an error — it is a
// negative acknowledgement the engine treats as "no trade".
package risk

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds the risk manager's limits, mirroring the [risk] section
// of the TOML configuration file.
type Config struct {
	MaxDailyLossFraction float64
	MaxPositionSize      float64
	MaxTotalExposure     float64
	MinBankroll          float64
	CircuitBreakerLosses uint32
	CooldownSeconds      uint64
}

// state identifies which of the two breaker states is active.
type state int

const (
	armed state = iota
	tripped
)

// Manager tracks daily loss, consecutive losses, and exposure against
// the configured limits, tripping a cooldown breaker when the
// consecutive-loss threshold is reached.
type Manager struct {
	cfg Config
	log *zap.Logger

	mu                sync.Mutex
	st                state
	trippedAtMs       int64
	dailyLoss         float64
	consecutiveLosses uint32
	totalExposure     float64
	lastResetDate     string

	nowMs func() int64
}

// NewManager creates a risk manager armed from the given config.
func NewManager(cfg Config, log *zap.Logger) *Manager {
	return &Manager{
		cfg:   cfg,
		log:   log,
		st:    armed,
		nowMs: func() int64 { return time.Now().UnixMilli() },
	}
}

// CanTrade reports whether trading is currently allowed: true when
// Armed, or when Tripped but the cooldown window has elapsed (in which
// case the breaker resets to Armed as a side effect).
func (m *Manager) CanTrade() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canTradeLocked()
}

func (m *Manager) canTradeLocked() bool {
	if m.st != tripped {
		return true
	}
	elapsedSec := (m.nowMs() - m.trippedAtMs) / 1000
	if elapsedSec < int64(m.cfg.CooldownSeconds) {
		return false
	}
	m.st = armed
	m.trippedAtMs = 0
	m.log.Info("risk-breaker-cooldown-elapsed")
	return true
}

// CanOpen reports whether a new position of the given size is allowed
// against the current bankroll, combining the trade gate with position,
// exposure, and daily-loss limits.
func (m *Manager) CanOpen(size, bankroll float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.canTradeLocked() {
		return false
	}
	if bankroll < m.cfg.MinBankroll {
		m.log.Warn("bankroll-below-minimum", zap.Float64("bankroll", bankroll), zap.Float64("min", m.cfg.MinBankroll))
		return false
	}
	if size > m.cfg.MaxPositionSize {
		return false
	}
	if m.totalExposure+size > m.cfg.MaxTotalExposure {
		return false
	}
	maxLoss := bankroll * m.cfg.MaxDailyLossFraction
	if m.dailyLoss+maxWorstCase(size) > maxLoss {
		m.log.Warn("daily-loss-limit-reached", zap.Float64("daily-loss", m.dailyLoss), zap.Float64("max", maxLoss))
		return false
	}
	return true
}

// maxWorstCase bounds the loss a single position can realize: a maker
// order's worst case is losing the full notional staked.
func maxWorstCase(size float64) float64 {
	if size < 0 {
		return 0
	}
	return size
}

// RecordTrade folds a realized PnL into the daily-loss/consecutive-loss
// counters. A loss increments the streak and daily loss; a win resets
// the streak. Crossing the configured threshold trips the breaker.
func (m *Manager) RecordTrade(pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pnl < 0 {
		m.dailyLoss += -pnl
		m.consecutiveLosses++
		if m.consecutiveLosses >= m.cfg.CircuitBreakerLosses {
			m.trip()
		}
		return
	}
	m.consecutiveLosses = 0
}

func (m *Manager) trip() {
	m.st = tripped
	m.trippedAtMs = m.nowMs()
	m.log.Warn("risk-breaker-tripped",
		zap.Uint32("consecutive-losses", m.consecutiveLosses),
		zap.Uint64("cooldown-seconds", m.cfg.CooldownSeconds))
}

// UpdateConfig replaces the manager's limits, applied to every
// decision from the next call onward. Counters (daily loss,
// consecutive losses, tripped state) are untouched — only the
// thresholds they are compared against change, so a hot-reloaded
// config can tighten or loosen limits without resetting the breaker.
func (m *Manager) UpdateConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}

// UpdateExposure replaces the tracked total exposure.
func (m *Manager) UpdateExposure(exposure float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalExposure = exposure
}

// ResetDaily zeroes the daily counters and forces the breaker back to
// Armed. Called at the UTC day boundary.
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Info("risk-daily-reset", zap.Float64("prior-daily-loss", m.dailyLoss))
	m.dailyLoss = 0
	m.consecutiveLosses = 0
	m.st = armed
	m.trippedAtMs = 0
}

// ResetDailyIfNewDay calls ResetDaily the first time it observes a UTC
// date different from the last reset, so a periodic caller (e.g. a
// once-a-minute ticker) only resets once per day regardless of how
// often it's invoked.
func (m *Manager) ResetDailyIfNewDay(now time.Time) {
	today := now.UTC().Format("2006-01-02")

	m.mu.Lock()
	if m.lastResetDate == today {
		m.mu.Unlock()
		return
	}
	m.lastResetDate = today
	m.mu.Unlock()

	m.ResetDaily()
}

// DailyLoss returns the current accumulated daily loss.
func (m *Manager) DailyLoss() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyLoss
}

// IsTripped reports whether the breaker is currently in the Tripped
// state (regardless of whether cooldown has since elapsed).
func (m *Manager) IsTripped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st == tripped
}

// Snapshot is the persisted form of risk state, restored on startup
// from the persistence interface per spec.md §4.8's engine init step 1.
type Snapshot struct {
	DailyLoss         float64
	ConsecutiveLosses uint32
	TotalExposure     float64
	Tripped           bool
	TrippedAtMs       int64
	LastResetDate     string
}

// ToSnapshot captures the manager's current state for persistence.
func (m *Manager) ToSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		DailyLoss:         m.dailyLoss,
		ConsecutiveLosses: m.consecutiveLosses,
		TotalExposure:     m.totalExposure,
		Tripped:           m.st == tripped,
		TrippedAtMs:       m.trippedAtMs,
		LastResetDate:     m.lastResetDate,
	}
}

// Restore replaces the manager's state with a previously captured
// Snapshot. Called once at startup before the engine begins consuming
// feed events.
func (m *Manager) Restore(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyLoss = s.DailyLoss
	m.consecutiveLosses = s.ConsecutiveLosses
	m.totalExposure = s.TotalExposure
	m.trippedAtMs = s.TrippedAtMs
	m.lastResetDate = s.LastResetDate
	if s.Tripped {
		m.st = tripped
	} else {
		m.st = armed
	}
}

