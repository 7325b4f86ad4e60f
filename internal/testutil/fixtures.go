package testutil

import (
	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

// CreateTestMarket builds a test market with YES/NO tokens, mirroring
// the [[markets]] TOML schema.
func CreateTestMarket(conditionID, yesTokenID, noTokenID string) types.Market {
	return types.Market{
		ConditionID: conditionID,
		YesTokenID:  yesTokenID,
		NoTokenID:   noTokenID,
		Asset:       types.AssetBTC,
		Active:      true,
	}
}

// CreateTestLevels builds a small descending-bid/ascending-ask book.
func CreateTestLevels() (bids, asks []types.Level) {
	bids = []types.Level{
		{Price: 0.52, Size: 100},
		{Price: 0.51, Size: 50},
	}
	asks = []types.Level{
		{Price: 0.53, Size: 100},
		{Price: 0.54, Size: 50},
	}
	return bids, asks
}

// CreateTestOrderBookSnapshot builds a valid snapshot for a token.
func CreateTestOrderBookSnapshot(token string, sequence uint64, tsMs int64) types.OrderBookSnapshot {
	bids, asks := CreateTestLevels()
	snap, err := types.NewOrderBookSnapshot(token, bids, asks, sequence, tsMs)
	if err != nil {
		panic(err) // fixture inputs are always valid
	}
	return snap
}

// CreateTestOrderbookMessage builds a raw wire-format book message, as
// if freshly decoded off the CLOB websocket.
func CreateTestOrderbookMessage(eventType, assetID, marketID string) *types.OrderbookMessage {
	return &types.OrderbookMessage{
		EventType: eventType,
		AssetID:   assetID,
		Market:    marketID,
		Bids: []types.PriceLevel{
			{Price: "0.52", Size: "100.0"},
			{Price: "0.51", Size: "50.0"},
		},
		Asks: []types.PriceLevel{
			{Price: "0.53", Size: "100.0"},
			{Price: "0.54", Size: "50.0"},
		},
	}
}

// CreateTestPriceUpdate builds a price update with bid/ask/mid all set.
func CreateTestPriceUpdate(market, token string, mid float64, sequence uint64, tsMs int64) types.PriceUpdate {
	bid := mid - 0.01
	ask := mid + 0.01
	bidSize := 100.0
	askSize := 100.0
	upd, err := types.NewPriceUpdate(market, token, &bid, &ask, &mid, &bidSize, &askSize, sequence, tsMs)
	if err != nil {
		panic(err)
	}
	return upd
}

// CreateTestOrder builds a valid post-only maker order.
func CreateTestOrder(token string, side types.OrderSide, price, size float64, tsMs int64) types.Order {
	order, err := types.NewOrder(token, side, price, size, tsMs)
	if err != nil {
		panic(err)
	}
	return order
}
