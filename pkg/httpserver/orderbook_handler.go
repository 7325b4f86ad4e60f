package httpserver

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/foresight-labs/lmsr-marketmaker/internal/feed"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

// OrderbookHandler serves the latest known quote for each side of a
// configured market, read from the feed registry rather than any live
// connection — it answers from whatever the pricing pipeline has most
// recently observed.
type OrderbookHandler struct {
	registry *feed.Registry
	markets  []types.Market
	logger   *zap.Logger
}

// NewOrderbookHandler creates a new orderbook handler.
func NewOrderbookHandler(registry *feed.Registry, markets []types.Market, logger *zap.Logger) *OrderbookHandler {
	return &OrderbookHandler{registry: registry, markets: markets, logger: logger}
}

// TokenQuote is the latest known top-of-book for one outcome token.
type TokenQuote struct {
	TokenID string   `json:"token_id"`
	Outcome string   `json:"outcome"`
	BestBid *float64 `json:"best_bid,omitempty"`
	BestAsk *float64 `json:"best_ask,omitempty"`
	Mid     *float64 `json:"mid,omitempty"`
}

// OrderbookResponse is the HTTP response for a market's quotes.
type OrderbookResponse struct {
	ConditionID string     `json:"condition_id"`
	Asset       string     `json:"asset"`
	Yes         TokenQuote `json:"yes"`
	No          TokenQuote `json:"no"`
}

// ErrorResponse is an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleOrderbook handles GET /api/orderbook?condition_id=<id> requests.
func (h *OrderbookHandler) HandleOrderbook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conditionID := r.URL.Query().Get("condition_id")
	if conditionID == "" {
		h.writeError(w, "missing required query parameter: condition_id", http.StatusBadRequest)
		return
	}

	h.logger.Debug("orderbook-request-received", zap.String("condition-id", conditionID))

	var market *types.Market
	for i := range h.markets {
		if h.markets[i].ConditionID == conditionID {
			market = &h.markets[i]
			break
		}
	}
	if market == nil {
		h.writeError(w, "market not found or not configured", http.StatusNotFound)
		return
	}

	response := OrderbookResponse{
		ConditionID: market.ConditionID,
		Asset:       string(market.Asset),
		Yes:         h.quoteFor(market.YesTokenID, "YES"),
		No:          h.quoteFor(market.NoTokenID, "NO"),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

func (h *OrderbookHandler) quoteFor(tokenID, outcome string) TokenQuote {
	quote := TokenQuote{TokenID: tokenID, Outcome: outcome}
	upd, found := h.registry.Get(tokenID)
	if !found {
		h.logger.Debug("orderbook-not-available", zap.String("token-id", tokenID), zap.String("outcome", outcome))
		return quote
	}
	quote.BestBid = upd.BestBid
	quote.BestAsk = upd.BestAsk
	quote.Mid = upd.Mid
	return quote
}

// writeError writes a JSON error response.
func (h *OrderbookHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
