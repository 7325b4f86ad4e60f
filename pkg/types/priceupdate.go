package types

// PriceUpdate is a single quote tick for one token. BestBid, BestAsk,
// and Mid are optional (a feed may report only a subset at any given
// moment); when present they must satisfy best_bid <= mid <= best_ask,
// and BestBid and BestAsk lie strictly within (0,1). Mid's range is not
// checked on construction; ValidMid reports it.
type PriceUpdate struct {
	Market      string
	Token       string
	BestBid     *float64
	BestAsk     *float64
	Mid         *float64
	BidSize     *float64
	AskSize     *float64
	Sequence    uint64
	TimestampMs int64
}

// NewPriceUpdate validates the bid/mid/ask ordering and the bid and ask
// ranges before returning a PriceUpdate. Any of bid/ask/mid may be nil.
func NewPriceUpdate(market, token string, bestBid, bestAsk, mid, bidSize, askSize *float64, sequence uint64, tsMs int64) (PriceUpdate, error) {
	if token == "" {
		return PriceUpdate{}, ErrEmptyTokenID
	}
	if bestBid != nil && (*bestBid <= 0 || *bestBid >= 1) {
		return PriceUpdate{}, ErrPriceOutOfRange
	}
	if bestAsk != nil && (*bestAsk <= 0 || *bestAsk >= 1) {
		return PriceUpdate{}, ErrPriceOutOfRange
	}
	if bestBid != nil && mid != nil && *bestBid > *mid {
		return PriceUpdate{}, ErrInvalidMidpoint
	}
	if mid != nil && bestAsk != nil && *mid > *bestAsk {
		return PriceUpdate{}, ErrInvalidMidpoint
	}
	return PriceUpdate{
		Market:      market,
		Token:       token,
		BestBid:     bestBid,
		BestAsk:     bestAsk,
		Mid:         mid,
		BidSize:     bidSize,
		AskSize:     askSize,
		Sequence:    sequence,
		TimestampMs: tsMs,
	}, nil
}

// ValidMid reports whether the update carries a mid-price strictly
// within (0,1), returning it if so.
func (u PriceUpdate) ValidMid() (float64, bool) {
	if u.Mid == nil {
		return 0, false
	}
	m := *u.Mid
	if m <= 0 || m >= 1 {
		return 0, false
	}
	return m, true
}
