package common

import "errors"

// ErrNoLiquidity is returned when the book side needed for an estimate is
// empty.
var ErrNoLiquidity = errors.New("no liquidity on required book side")

// Estimate computes an advisory fill estimate for a market order against the
// given snapshot. For a buy, amount is the notional to spend and the expected
// quantity is amount / estimatedPrice; for a sell, amount is the share count.
// Slippage is relative to the best ask (buys) or best bid (sells), as a
// percentage. The estimate never blocks submission and never guarantees the
// realized fill.
func Estimate(snap MarketSnapshot, action Action, amount float64) (FillEstimate, error) {
	est := FillEstimate{
		InstrumentID: snap.InstrumentID,
		Action:       action,
		Amount:       amount,
		BestBid:      snap.BestBid,
		BestAsk:      snap.BestAsk,
		Midpoint:     snap.Midpoint(),
	}
	if amount <= 0 {
		return est, errors.New("estimate amount must be positive")
	}

	switch action {
	case ActionBuy:
		if len(snap.Asks) == 0 {
			return est, ErrNoLiquidity
		}
		price, shares := walkNotional(snap.Asks, amount)
		est.Price = price
		est.ExpectedQuantity = shares
		if snap.BestAsk > 0 {
			est.SlippagePct = (price - snap.BestAsk) / snap.BestAsk * 100
		}
	case ActionSell:
		if len(snap.Bids) == 0 {
			return est, ErrNoLiquidity
		}
		price := walkShares(snap.Bids, amount)
		est.Price = price
		est.ExpectedQuantity = amount
		if snap.BestBid > 0 {
			est.SlippagePct = (snap.BestBid - price) / snap.BestBid * 100
		}
	default:
		return est, errors.New("estimate requires a buy or sell action")
	}

	return est, nil
}

// walkNotional spends notional down the ask levels and returns the volume
// weighted price plus the shares acquired. If visible depth runs out, the
// remainder is priced at the worst visible level; the estimate is advisory.
func walkNotional(asks []BookLevel, notional float64) (price, shares float64) {
	remaining := notional
	worst := asks[0].Price
	for _, lvl := range asks {
		if remaining <= 0 {
			break
		}
		worst = lvl.Price
		levelCost := lvl.Price * lvl.Size
		if levelCost >= remaining {
			shares += remaining / lvl.Price
			remaining = 0
			break
		}
		shares += lvl.Size
		remaining -= levelCost
	}
	if remaining > 0 && worst > 0 {
		shares += remaining / worst
	}
	if shares == 0 {
		return 0, 0
	}
	return notional / shares, shares
}

// walkShares sells size down the bid levels and returns the volume weighted
// price.
func walkShares(bids []BookLevel, size float64) float64 {
	remaining := size
	proceeds := 0.0
	worst := bids[0].Price
	for _, lvl := range bids {
		if remaining <= 0 {
			break
		}
		worst = lvl.Price
		if lvl.Size >= remaining {
			proceeds += remaining * lvl.Price
			remaining = 0
			break
		}
		proceeds += lvl.Size * lvl.Price
		remaining -= lvl.Size
	}
	if remaining > 0 {
		proceeds += remaining * worst
	}
	return proceeds / size
}
