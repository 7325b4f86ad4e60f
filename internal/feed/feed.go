// Package feed fans in per-token order-book snapshots from one or
// more wire sources into debounced PriceUpdate events, rejecting
// stale/out-of-order sequence numbers and dropping updates that move
// the mid price by less than a configured threshold. Adapted from the
// teacher's internal/orderbook.Manager, generalized from a
// best-bid/ask cache to the debounced single-token broadcast the
// pricing engine consumes.
package feed

import (
	"sync"

	"go.uber.org/zap"

	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

// DefaultDebounce is the minimum relative mid-price move
// (|new-last|/last) required to forward an update: 0.005, i.e. 0.5%.
const DefaultDebounce = 0.005

// Manager fans snapshots from any number of sources into a single
// PriceUpdate channel shared by all tokens, deduplicating via a
// per-token debounce and rejecting regressed per-token sequence numbers.
type Manager struct {
	log      *zap.Logger
	debounce float64

	mu        sync.Mutex
	lastSeq   map[string]uint64
	lastMid   map[string]float64
	out       chan types.PriceUpdate
	dropCount uint64
}

// New constructs a feed Manager. debounce <= 0 uses DefaultDebounce.
func New(debounce float64, bufferSize int, log *zap.Logger) *Manager {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Manager{
		log:      log,
		debounce: debounce,
		lastSeq:  make(map[string]uint64),
		lastMid:  make(map[string]float64),
		out:      make(chan types.PriceUpdate, bufferSize),
	}
}

// Updates returns the channel of forwarded, debounced price updates.
func (m *Manager) Updates() <-chan types.PriceUpdate {
	return m.out
}

// DropCount returns how many snapshots were discarded (stale sequence
// or full output channel) since construction.
func (m *Manager) DropCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropCount
}

// Ingest accepts one order-book snapshot from any source, derives a
// PriceUpdate from its best bid/ask, and forwards it if the sequence
// advances and the mid has moved by at least the debounce threshold.
func (m *Manager) Ingest(snap types.OrderBookSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.lastSeq[snap.Token]; ok && snap.Sequence <= prev {
		m.dropCount++
		m.log.Debug("drop-stale-sequence",
			zap.String("token", snap.Token),
			zap.Uint64("seq", snap.Sequence),
			zap.Uint64("last-seq", prev))
		return
	}
	m.lastSeq[snap.Token] = snap.Sequence

	bestBid, hasBid := snap.BestBid()
	bestAsk, hasAsk := snap.BestAsk()
	var bidPtr, askPtr, midPtr, bidSizePtr, askSizePtr *float64
	if hasBid {
		p := bestBid.Price
		s := bestBid.Size
		bidPtr, bidSizePtr = &p, &s
	}
	if hasAsk {
		p := bestAsk.Price
		s := bestAsk.Size
		askPtr, askSizePtr = &p, &s
	}
	if hasBid && hasAsk {
		mid := (bestBid.Price + bestAsk.Price) / 2
		midPtr = &mid

		if last, seen := m.lastMid[snap.Token]; seen && last != 0 {
			if abs(mid-last)/abs(last) < m.debounce {
				return
			}
		}
		m.lastMid[snap.Token] = mid
	}

	update, err := types.NewPriceUpdate(
		"", snap.Token, bidPtr, askPtr, midPtr, bidSizePtr, askSizePtr, snap.Sequence, snap.TimestampMs,
	)
	if err != nil {
		m.dropCount++
		m.log.Debug("drop-invalid-update", zap.String("token", snap.Token), zap.Error(err))
		return
	}

	select {
	case m.out <- update:
	default:
		m.dropCount++
		m.log.Warn("update-channel-full-dropping", zap.String("token", snap.Token))
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
