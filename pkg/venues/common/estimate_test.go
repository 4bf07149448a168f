package common

import (
	"errors"
	"math"
	"testing"
	"time"
)

func approx(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}

func TestEstimateBuyAtBestAsk(t *testing.T) {
	// Buying $50 notional with plenty of depth at 0.40 fills at the ask:
	// 125 shares, zero slippage.
	snap := MarketSnapshot{
		InstrumentID: "TOK",
		BestBid:      0.38,
		BestAsk:      0.40,
		Asks:         []BookLevel{{Price: 0.40, Size: 1000}},
		Bids:         []BookLevel{{Price: 0.38, Size: 1000}},
		Timestamp:    time.Now(),
	}

	est, err := Estimate(snap, ActionBuy, 50)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if !approx(est.ExpectedQuantity, 125, 1e-9) {
		t.Fatalf("ExpectedQuantity=%v, expected 125", est.ExpectedQuantity)
	}
	if !approx(est.Price, 0.40, 1e-9) {
		t.Fatalf("Price=%v, expected 0.40", est.Price)
	}
	if !approx(est.SlippagePct, 0, 1e-9) {
		t.Fatalf("SlippagePct=%v, expected 0", est.SlippagePct)
	}
}

func TestEstimateBuyWalksDepth(t *testing.T) {
	// $50 against 50 shares @0.40 then 0.50: 20 spent at 0.40, 30 at 0.50
	// buys 60 more, 110 shares total.
	snap := MarketSnapshot{
		InstrumentID: "TOK",
		BestAsk:      0.40,
		Asks: []BookLevel{
			{Price: 0.40, Size: 50},
			{Price: 0.50, Size: 500},
		},
		Timestamp: time.Now(),
	}

	est, err := Estimate(snap, ActionBuy, 50)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if !approx(est.ExpectedQuantity, 110, 1e-9) {
		t.Fatalf("ExpectedQuantity=%v, expected 110", est.ExpectedQuantity)
	}
	wantPrice := 50.0 / 110.0
	if !approx(est.Price, wantPrice, 1e-9) {
		t.Fatalf("Price=%v, expected %v", est.Price, wantPrice)
	}
	wantSlip := (wantPrice - 0.40) / 0.40 * 100
	if !approx(est.SlippagePct, wantSlip, 1e-9) {
		t.Fatalf("SlippagePct=%v, expected %v", est.SlippagePct, wantSlip)
	}
}

func TestEstimateSellSlippage(t *testing.T) {
	// Selling 100 shares into 40 @0.50 then 0.45: vwap 0.47, slippage 6%
	// relative to the best bid.
	snap := MarketSnapshot{
		InstrumentID: "TOK",
		BestBid:      0.50,
		Bids: []BookLevel{
			{Price: 0.50, Size: 40},
			{Price: 0.45, Size: 500},
		},
		Timestamp: time.Now(),
	}

	est, err := Estimate(snap, ActionSell, 100)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if !approx(est.Price, 0.47, 1e-9) {
		t.Fatalf("Price=%v, expected 0.47", est.Price)
	}
	if !approx(est.SlippagePct, (0.50-0.47)/0.50*100, 1e-9) {
		t.Fatalf("SlippagePct=%v", est.SlippagePct)
	}
	if est.ExpectedQuantity != 100 {
		t.Fatalf("ExpectedQuantity=%v, expected the requested shares", est.ExpectedQuantity)
	}
}

func TestEstimateEmptyBook(t *testing.T) {
	snap := MarketSnapshot{InstrumentID: "TOK", Timestamp: time.Now()}
	if _, err := Estimate(snap, ActionBuy, 10); !errors.Is(err, ErrNoLiquidity) {
		t.Fatalf("err=%v, expected ErrNoLiquidity", err)
	}
	if _, err := Estimate(snap, ActionSell, 10); !errors.Is(err, ErrNoLiquidity) {
		t.Fatalf("err=%v, expected ErrNoLiquidity", err)
	}
}
