package common

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotFreshness is the window inside which a snapshot may back the
// POST_ONLY crossing check. An older snapshot invalidates the check and must
// be re-fetched.
const SnapshotFreshness = 5 * time.Second

// Validate applies the venue's local invariants to an intent before any
// network call. Rules run in order and the first failure wins:
//
//  1. limit-price presence, open-interval price bound, and tick-grid bound
//  2. minimum tradable size
//  3. POST_ONLY crossing check against a fresh snapshot
//
// snap is required only for POST_ONLY intents. Validate has no side effects.
func Validate(intent OrderIntent, rules VenueRules, snap *MarketSnapshot) error {
	if intent.Market() {
		if intent.LimitPrice != 0 {
			return validationf(KindLimitPrice, "market order must not carry a limit price")
		}
	} else {
		if intent.LimitPrice == 0 {
			return validationf(KindLimitPrice, "limit order requires a limit price")
		}
		// Boundary values denote certainty and are not tradable.
		if intent.LimitPrice <= rules.MinPrice || intent.LimitPrice >= rules.MaxPrice {
			return validationf(KindPriceBound, "price %.4f outside open interval (%.4f, %.4f)",
				intent.LimitPrice, rules.MinPrice, rules.MaxPrice)
		}
		// The wire carries tick-aligned prices. A price that snaps onto the
		// boundary, like 0.004 on a one-cent grid, must fail here rather than
		// round to a certainty price downstream.
		if rules.PriceTick > 0 {
			if snapped := snapToTick(intent.LimitPrice, rules.PriceTick); snapped <= rules.MinPrice || snapped >= rules.MaxPrice {
				return validationf(KindPriceBound, "price %.4f snaps to %.4f, outside open interval (%.4f, %.4f)",
					intent.LimitPrice, snapped, rules.MinPrice, rules.MaxPrice)
			}
		}
	}

	// Market buys may be notional (spend Amount) or sized in contracts,
	// depending on what the venue supports. One of the two must be present.
	if intent.Market() && intent.Action == ActionBuy && intent.Quantity == 0 {
		if intent.Amount <= 0 {
			return validationf(KindMinSize, "market buy requires a positive notional amount or quantity")
		}
	} else if intent.Quantity < rules.MinSize || intent.Quantity <= 0 {
		return validationf(KindMinSize, "quantity %.4f below venue minimum %.4f",
			intent.Quantity, rules.MinSize)
	}

	if intent.TimeInForce == TIFPostOnly {
		if snap == nil {
			return validationf(KindStaleSnapshot, "post-only check requires a market snapshot")
		}
		if snap.Age() > SnapshotFreshness {
			return validationf(KindStaleSnapshot, "snapshot is %s old, freshness window is %s",
				snap.Age().Round(time.Millisecond), SnapshotFreshness)
		}
		// A crossing maker order would be rejected by the venue or silently
		// convert to a taker order, defeating the fee-avoidance intent.
		switch intent.Action {
		case ActionBuy:
			if intent.LimitPrice >= snap.BestAsk {
				return validationf(KindCrossing, "buy at %.4f would cross best ask %.4f",
					intent.LimitPrice, snap.BestAsk)
			}
		case ActionSell:
			if intent.LimitPrice <= snap.BestBid {
				return validationf(KindCrossing, "sell at %.4f would cross best bid %.4f",
					intent.LimitPrice, snap.BestBid)
			}
		}
	}

	return nil
}

// snapToTick rounds a price onto the tick grid with exact decimal
// arithmetic, matching what venue encoders do on the wire.
func snapToTick(price, tick float64) float64 {
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	snapped, _ := p.Div(t).Round(0).Mul(t).Float64()
	return snapped
}
