// Package fees implements Polymarket's maker/taker fee curve and the
// net-edge helper used by the pricing pipeline.
//
// Maker orders pay zero fees; taker orders pay a parabolic fee that
// peaks at p=0.50 and vanishes at the price extremes.
package fees

import "math"

const (
	// StandardRate is the default taker fee rate for ordinary markets.
	StandardRate = 0.0025
	// HighVolatilityRate applies to crypto short-duration markets.
	HighVolatilityRate = 0.025
	// DefaultExponent is the parabolic curve exponent (n in rate*p^n*(1-p)^n).
	DefaultExponent = 2
)

// Calculator computes maker/taker fees and net edge for a given rate and
// exponent. isMaker is set only by Maker(); any engine path reaching the
// core must construct Maker(), never TakerStandard() or
// TakerHighVolatility().
type Calculator struct {
	rate     float64
	exponent int
	isMaker  bool
}

// Maker returns a calculator for maker orders: fee is always zero.
func Maker() *Calculator {
	return &Calculator{rate: StandardRate, exponent: DefaultExponent, isMaker: true}
}

// TakerStandard returns a calculator for standard taker markets.
func TakerStandard() *Calculator {
	return &Calculator{rate: StandardRate, exponent: DefaultExponent}
}

// TakerHighVolatility returns a calculator for crypto short-duration
// markets, which carry a higher taker fee rate.
func TakerHighVolatility() *Calculator {
	return &Calculator{rate: HighVolatilityRate, exponent: DefaultExponent}
}

// TakerFee computes rate*p^n*(1-p)^n*size. Returns 0 outside (0,1).
func (c *Calculator) TakerFee(price, size float64) float64 {
	if price <= 0 || price >= 1 {
		return 0
	}
	factor := math.Pow(price, float64(c.exponent)) * math.Pow(1-price, float64(c.exponent))
	return c.rate * factor * size
}

// MakerFee is always zero on the Polymarket CLOB.
func (c *Calculator) MakerFee(_, _ float64) float64 {
	return 0
}

// NetEdge computes the edge after fees. For a buy: fair-market-fee; for
// a sell: market-fair-fee. fee is zero for a maker calculator, otherwise
// TakerFee(market, 1).
func (c *Calculator) NetEdge(fair, market float64, isBuy bool) float64 {
	var fee float64
	if !c.isMaker {
		fee = c.TakerFee(market, 1)
	}
	if isBuy {
		return fair - market - fee
	}
	return market - fair - fee
}
