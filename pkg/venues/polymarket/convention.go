// Package polymarket implements the Polymarket CLOB gateway: key-pair
// authentication with EIP-712 signed orders, decimal prices per outcome
// token, and the clob REST/websocket surface.
package polymarket

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// amountDecimals is the fixed-point scale of on-chain amounts: USDC and
// outcome tokens both carry six decimals.
const amountDecimals = 6

// NormalizePrice snaps a price onto the token's tick grid and clamps it into
// the tradable band [tick, 1-tick]. Prices at 0 or 1 denote certainty and are
// never tradable.
func NormalizePrice(price, tick float64) float64 {
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	if t.IsZero() {
		t = decimal.NewFromFloat(0.01)
	}
	p = p.Div(t).Round(0).Mul(t)

	min := t
	max := decimal.NewFromInt(1).Sub(t)
	if p.LessThan(min) {
		p = min
	}
	if p.GreaterThan(max) {
		p = max
	}
	f, _ := p.Float64()
	return f
}

// Complement re-expresses a price on the opposite outcome token. Trading the
// no side of a market at p is trading the complementary token at 1-p.
func Complement(price float64) float64 {
	f, _ := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(price)).Float64()
	return f
}

// makerTakerAmounts computes the raw 6-decimal order amounts. A buy offers
// collateral for shares: maker = price*size USDC, taker = size shares. A sell
// is the mirror image.
func makerTakerAmounts(side string, price, size float64) (maker, taker *big.Int) {
	p := decimal.NewFromFloat(price)
	s := decimal.NewFromFloat(size)
	collateral := p.Mul(s).Shift(amountDecimals).Round(0)
	shares := s.Shift(amountDecimals).Round(0)

	if side == sideBuy {
		return collateral.BigInt(), shares.BigInt()
	}
	return shares.BigInt(), collateral.BigInt()
}
