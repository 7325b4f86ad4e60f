// Package lmsr implements the Logarithmic Market Scoring Rule pricing
// primitives used to price binary outcome tokens.
package lmsr

import "math"

const (
	minFairPrice = 0.01
	maxFairPrice = 0.99
)

// Pricer computes LMSR cost and price functions for a fixed liquidity
// parameter b. b controls market depth: higher b means more liquidity,
// tighter spreads, slower price movement.
type Pricer struct {
	b float64
}

// NewPricer creates a Pricer with the given liquidity parameter.
// b must be positive; a non-positive value is clamped to 1.0 so the
// pricer never divides by zero.
func NewPricer(b float64) *Pricer {
	if b <= 0 {
		b = 1.0
	}
	return &Pricer{b: b}
}

// Liquidity returns the configured liquidity parameter.
func (p *Pricer) Liquidity() float64 {
	return p.b
}

// Cost computes the LMSR cost function C(q) = b*ln(exp(q_yes/b)+exp(q_no/b))
// using the log-sum-exp trick so it stays finite for large |q|/b.
func (p *Pricer) Cost(qYes, qNo float64) float64 {
	a := qYes / p.b
	bExp := qNo / p.b
	m := math.Max(a, bExp)
	return p.b * (m + math.Log(math.Exp(a-m)+math.Exp(bExp-m)))
}

// PriceYes computes the instantaneous marginal price of the YES outcome.
//
// Computed as 1/(1+exp((q_no-q_yes)/b)), the numerically stable form of
// exp(q_yes/b)/(exp(q_yes/b)+exp(q_no/b)).
func (p *Pricer) PriceYes(qYes, qNo float64) float64 {
	return 1.0 / (1.0 + math.Exp((qNo-qYes)/p.b))
}

// PriceNo computes the instantaneous marginal price of the NO outcome.
func (p *Pricer) PriceNo(qYes, qNo float64) float64 {
	return 1.0 - p.PriceYes(qYes, qNo)
}

// CostToBuyYes computes the cost of acquiring delta additional YES shares.
func (p *Pricer) CostToBuyYes(qYes, qNo, delta float64) float64 {
	return p.Cost(qYes+delta, qNo) - p.Cost(qYes, qNo)
}

// CostToBuyNo computes the cost of acquiring delta additional NO shares.
func (p *Pricer) CostToBuyNo(qYes, qNo, delta float64) float64 {
	return p.Cost(qYes, qNo+delta) - p.Cost(qYes, qNo)
}

// FairPriceFromProb maps an externally estimated probability to a fair
// price. In the reduced market-making mode the caller supplies the
// probability directly (the LMSR is at equilibrium by construction at
// that probability), so this clamps to [0.01, 0.99] and returns it
// unchanged.
func FairPriceFromProb(prob float64) float64 {
	if prob < minFairPrice {
		return minFairPrice
	}
	if prob > maxFairPrice {
		return maxFairPrice
	}
	return prob
}

// Edge computes the relative dislocation between a fair price and the
// observed market price: |fair-market|/market.
func Edge(market, fair float64) float64 {
	if market == 0 {
		return 0
	}
	return math.Abs((fair - market) / market)
}
