package types

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

// OrderbookMessage is a raw message from the CLOB WebSocket feed, before
// it is parsed into an OrderBookSnapshot / PriceUpdate pair.
type OrderbookMessage struct {
	EventType string       `json:"event_type"` // "book", "price_change", "last_trade_price"
	AssetID   string       `json:"asset_id"`
	Market    string       `json:"market"`
	Timestamp int64        `json:"-"`
	Hash      string       `json:"hash,omitempty"`
	Bids      []PriceLevel `json:"bids,omitempty"`
	Asks      []PriceLevel `json:"asks,omitempty"`
}

// UnmarshalJSON handles the CLOB's string-encoded timestamp field.
func (o *OrderbookMessage) UnmarshalJSON(data []byte) error {
	type Alias OrderbookMessage
	aux := &struct {
		TimestampStr string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(o),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.TimestampStr != "" {
		ts, err := strconv.ParseInt(aux.TimestampStr, 10, 64)
		if err != nil {
			return err
		}
		o.Timestamp = ts
	}

	return nil
}

// PriceLevel is a single (price, size) level as received on the wire.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// Level is a parsed, validated order-book level: price in (0,1), size > 0.
type Level struct {
	Price float64
	Size  float64
}

// OrderBookSnapshot is the fan-in's parsed, invariant-checked view of a
// token's book: bids sorted descending, asks sorted ascending, no level
// with size <= 0, and a per-token monotonically non-decreasing sequence.
type OrderBookSnapshot struct {
	Token       string
	Bids        []Level
	Asks        []Level
	Sequence    uint64
	TimestampMs int64
}

// NewOrderBookSnapshot validates and sorts levels before returning a
// snapshot. Levels with non-positive size are rejected outright.
func NewOrderBookSnapshot(token string, bids, asks []Level, sequence uint64, tsMs int64) (OrderBookSnapshot, error) {
	if token == "" {
		return OrderBookSnapshot{}, ErrEmptyTokenID
	}
	for _, l := range bids {
		if l.Size <= 0 {
			return OrderBookSnapshot{}, ErrNonPositiveSize
		}
	}
	for _, l := range asks {
		if l.Size <= 0 {
			return OrderBookSnapshot{}, ErrNonPositiveSize
		}
	}

	sortedBids := append([]Level(nil), bids...)
	sort.Slice(sortedBids, func(i, j int) bool { return sortedBids[i].Price > sortedBids[j].Price })
	sortedAsks := append([]Level(nil), asks...)
	sort.Slice(sortedAsks, func(i, j int) bool { return sortedAsks[i].Price < sortedAsks[j].Price })

	return OrderBookSnapshot{
		Token:       token,
		Bids:        sortedBids,
		Asks:        sortedAsks,
		Sequence:    sequence,
		TimestampMs: tsMs,
	}, nil
}

// BestBid returns the highest bid level, if any.
func (s OrderBookSnapshot) BestBid() (Level, bool) {
	if len(s.Bids) == 0 {
		return Level{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the lowest ask level, if any.
func (s OrderBookSnapshot) BestAsk() (Level, bool) {
	if len(s.Asks) == 0 {
		return Level{}, false
	}
	return s.Asks[0], true
}

// Summary describes a flattened best-bid/best-ask view of one token.
// No other package of the module uses it.
type Summary struct {
	MarketID     string
	TokenID      string
	Outcome      string
	BestBidPrice float64
	BestBidSize  float64
	BestAskPrice float64
	BestAskSize  float64
	LastUpdated  time.Time
}
