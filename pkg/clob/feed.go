package clob

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

// transport is the subset of pkg/websocket.Manager and pkg/websocket.Pool
// that Feed needs. A single Manager is enough for a handful of tokens; a
// Pool shards many token subscriptions across several connections. Feed
// is agnostic to which one backs it.
type transport interface {
	Start() error
	Subscribe(ctx context.Context, tokenIDs []string) error
	MessageChan() <-chan *types.OrderbookMessage
	Close() error
}

// healthReporter is implemented by transports that report whether their
// connection is up; IsHealthy uses it. *websocket.Manager satisfies it,
// *websocket.Pool does not. Shard degraded/restored events come through
// channelHealthSource instead.
type healthReporter interface {
	Connected() bool
}

// channelHealthSource is implemented by transports that support shard
// health transitions as channels. *websocket.Pool wires its
// Config-time OnDegraded/OnRestored/OnAbandoned callbacks into exactly
// these three channels internally; Feed just relays them.
type channelHealthSource interface {
	Degraded() <-chan []string
	Restored() <-chan []string
	Abandoned() <-chan []string
}

// Feed wraps the raw WebSocket transport, parsing each OrderbookMessage
// into a validated OrderBookSnapshot and forwarding it to a consumer
// (internal/feed's fan-in). It assigns its own per-token sequence
// counter since the CLOB's wire format carries none. When the
// underlying transport is a *websocket.Pool, Feed also forwards its
// shard degraded/restored/abandoned events so callers can withdraw
// resting orders for tokens whose book feed has gone stale.
type Feed struct {
	mgr       transport
	log       *zap.Logger
	snapshots chan types.OrderBookSnapshot
	seq       map[string]uint64

	degraded  chan []string
	restored  chan []string
	abandoned chan []string
}

// NewFeed builds a Feed over an already-constructed transport (a
// *websocket.Manager for a single connection, or a *websocket.Pool when
// sharding many token subscriptions across connections).
func NewFeed(mgr transport, log *zap.Logger, bufferSize int) *Feed {
	f := &Feed{
		mgr:       mgr,
		log:       log,
		snapshots: make(chan types.OrderBookSnapshot, bufferSize),
		seq:       make(map[string]uint64),
		degraded:  make(chan []string, bufferSize),
		restored:  make(chan []string, bufferSize),
		abandoned: make(chan []string, bufferSize),
	}
	if src, ok := mgr.(channelHealthSource); ok {
		go f.relay(src.Degraded(), f.degraded)
		go f.relay(src.Restored(), f.restored)
		go f.relay(src.Abandoned(), f.abandoned)
	}
	return f
}

func (f *Feed) relay(src <-chan []string, dst chan []string) {
	for tokens := range src {
		select {
		case dst <- tokens:
		default:
			f.log.Warn("feed-health-channel-full-dropping", zap.Int("token-count", len(tokens)))
		}
	}
}

// Start begins the parse loop and the underlying connection. It
// returns once the initial connection succeeds; parsing runs in the
// background until ctx is cancelled.
func (f *Feed) Start(ctx context.Context) error {
	if err := f.mgr.Start(); err != nil {
		return err
	}
	go f.parseLoop(ctx)
	return nil
}

// Subscribe requests book and price-change updates for the given
// token IDs.
func (f *Feed) Subscribe(ctx context.Context, tokenIDs []string) error {
	return f.mgr.Subscribe(ctx, tokenIDs)
}

// Snapshots returns the channel of parsed, validated order-book
// snapshots. Malformed wire messages are dropped with a logged warning
// rather than propagated.
func (f *Feed) Snapshots() <-chan types.OrderBookSnapshot {
	return f.snapshots
}

// IsHealthy reports whether the underlying WebSocket connection is up.
// Transports that don't expose connection state (e.g. test fakes) are
// treated as healthy as long as they exist.
func (f *Feed) IsHealthy() bool {
	if f.mgr == nil {
		return false
	}
	if hr, ok := f.mgr.(healthReporter); ok {
		return hr.Connected()
	}
	return true
}

// Degraded emits token IDs whenever the shard carrying them drops its
// connection. Resting maker orders on these tokens are priced against
// a book that has stopped updating and must be withdrawn.
func (f *Feed) Degraded() <-chan []string {
	return f.degraded
}

// Restored emits token IDs whenever a previously degraded shard
// reconnects and resubscribes. Quoting resumes naturally on the next
// snapshot; no action is required beyond observability.
func (f *Feed) Restored() <-chan []string {
	return f.restored
}

// Abandoned emits token IDs whenever a shard exhausts its reconnect
// budget and gives up. Unlike Degraded, this is terminal for the
// shard until the process restarts.
func (f *Feed) Abandoned() <-chan []string {
	return f.abandoned
}

// Close tears down the underlying connection.
func (f *Feed) Close() error {
	return f.mgr.Close()
}

func (f *Feed) parseLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-f.mgr.MessageChan():
			if !ok {
				return
			}
			f.handle(msg)
		}
	}
}

func (f *Feed) handle(msg *types.OrderbookMessage) {
	if msg.EventType != "book" && msg.EventType != "price_change" {
		return
	}

	bids, err := parseLevels(msg.Bids)
	if err != nil {
		f.log.Warn("drop-malformed-level", zap.String("side", "bid"), zap.Error(err))
		return
	}
	asks, err := parseLevels(msg.Asks)
	if err != nil {
		f.log.Warn("drop-malformed-level", zap.String("side", "ask"), zap.Error(err))
		return
	}
	if len(bids) == 0 && len(asks) == 0 {
		return
	}

	f.seq[msg.AssetID]++
	snap, err := types.NewOrderBookSnapshot(msg.AssetID, bids, asks, f.seq[msg.AssetID], msg.Timestamp)
	if err != nil {
		f.log.Warn("drop-invalid-snapshot", zap.String("token", msg.AssetID), zap.Error(err))
		return
	}

	select {
	case f.snapshots <- snap:
	default:
		f.log.Warn("snapshot-channel-full-dropping", zap.String("token", msg.AssetID))
	}
}

func parseLevels(levels []types.PriceLevel) ([]types.Level, error) {
	out := make([]types.Level, 0, len(levels))
	for _, l := range levels {
		price, err := strconv.ParseFloat(l.Price, 64)
		if err != nil {
			return nil, err
		}
		size, err := strconv.ParseFloat(l.Size, 64)
		if err != nil {
			return nil, err
		}
		if size <= 0 {
			continue
		}
		out = append(out, types.Level{Price: price, Size: size})
	}
	return out, nil
}
