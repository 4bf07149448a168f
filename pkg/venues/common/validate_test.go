package common

import (
	"errors"
	"testing"
	"time"
)

var testRules = VenueRules{MinPrice: 0, MaxPrice: 1, PriceTick: 0.01, MinSize: 0.01}

func freshSnapshot(bid, ask float64) *MarketSnapshot {
	return &MarketSnapshot{
		InstrumentID: "TOK",
		BestBid:      bid,
		BestAsk:      ask,
		Timestamp:    time.Now(),
	}
}

func TestValidateRuleOrder(t *testing.T) {
	tests := []struct {
		name     string
		intent   OrderIntent
		snap     *MarketSnapshot
		wantKind ValidationKind
	}{
		{
			name: "limit without price",
			intent: OrderIntent{
				Action: ActionBuy, Quantity: 1, TimeInForce: TIFGTC,
			},
			wantKind: KindLimitPrice,
		},
		{
			name: "market with price",
			intent: OrderIntent{
				Action: ActionSell, Quantity: 1, LimitPrice: 0.5, TimeInForce: TIFFOK,
			},
			wantKind: KindLimitPrice,
		},
		{
			name: "price at lower bound",
			intent: OrderIntent{
				Action: ActionBuy, Quantity: 1, LimitPrice: 0, TimeInForce: TIFGTC,
			},
			wantKind: KindLimitPrice, // zero price reads as absent
		},
		{
			name: "price at upper bound",
			intent: OrderIntent{
				Action: ActionBuy, Quantity: 1, LimitPrice: 1, TimeInForce: TIFGTC,
			},
			wantKind: KindPriceBound,
		},
		{
			name: "price above upper bound",
			intent: OrderIntent{
				Action: ActionBuy, Quantity: 1, LimitPrice: 1.2, TimeInForce: TIFGTC,
			},
			wantKind: KindPriceBound,
		},
		{
			name: "price bound wins over size",
			intent: OrderIntent{
				Action: ActionBuy, Quantity: 0, LimitPrice: 1.5, TimeInForce: TIFGTC,
			},
			wantKind: KindPriceBound,
		},
		{
			name: "price snaps to the floor",
			intent: OrderIntent{
				Action: ActionBuy, Quantity: 1, LimitPrice: 0.004, TimeInForce: TIFGTC,
			},
			wantKind: KindPriceBound, // rounds to 0.00 on a one-cent grid
		},
		{
			name: "price snaps to the cap",
			intent: OrderIntent{
				Action: ActionBuy, Quantity: 1, LimitPrice: 0.999, TimeInForce: TIFGTC,
			},
			wantKind: KindPriceBound, // rounds to 1.00
		},
		{
			name: "half tick above the last tradable price",
			intent: OrderIntent{
				Action: ActionBuy, Quantity: 1, LimitPrice: 0.995, TimeInForce: TIFGTC,
			},
			wantKind: KindPriceBound, // rounds to 1.00, not down to 0.99
		},
		{
			name: "below minimum size",
			intent: OrderIntent{
				Action: ActionBuy, Quantity: 0.001, LimitPrice: 0.5, TimeInForce: TIFGTC,
			},
			wantKind: KindMinSize,
		},
		{
			name: "market buy without amount",
			intent: OrderIntent{
				Action: ActionBuy, TimeInForce: TIFFOK,
			},
			wantKind: KindMinSize,
		},
		{
			name: "post-only without snapshot",
			intent: OrderIntent{
				Action: ActionBuy, Quantity: 1, LimitPrice: 0.5, TimeInForce: TIFPostOnly,
			},
			wantKind: KindStaleSnapshot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.intent, testRules, tt.snap)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("error %v does not wrap ErrValidation", err)
			}
			if got := ValidationKindOf(err); got != tt.wantKind {
				t.Fatalf("kind=%s, expected %s (%v)", got, tt.wantKind, err)
			}
		})
	}
}

func TestValidatePostOnlyCrossing(t *testing.T) {
	snap := freshSnapshot(0.40, 0.45)

	tests := []struct {
		name     string
		action   Action
		price    float64
		wantKind ValidationKind // "" means accept
	}{
		{"buy below ask is maker", ActionBuy, 0.44, ""},
		{"buy at ask crosses", ActionBuy, 0.45, KindCrossing},
		{"buy above ask crosses", ActionBuy, 0.50, KindCrossing},
		{"sell above bid is maker", ActionSell, 0.41, ""},
		{"sell at bid crosses", ActionSell, 0.40, KindCrossing},
		{"sell below bid crosses", ActionSell, 0.35, KindCrossing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := OrderIntent{
				Action:      tt.action,
				Quantity:    5,
				LimitPrice:  tt.price,
				TimeInForce: TIFPostOnly,
			}
			err := Validate(intent, testRules, snap)
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("expected accept, got %v", err)
				}
				return
			}
			if got := ValidationKindOf(err); got != tt.wantKind {
				t.Fatalf("kind=%s, expected %s (%v)", got, tt.wantKind, err)
			}
		})
	}
}

func TestValidateStaleSnapshot(t *testing.T) {
	snap := freshSnapshot(0.40, 0.45)
	snap.Timestamp = time.Now().Add(-SnapshotFreshness - time.Second)

	intent := OrderIntent{
		Action: ActionBuy, Quantity: 1, LimitPrice: 0.42, TimeInForce: TIFPostOnly,
	}
	err := Validate(intent, testRules, snap)
	if got := ValidationKindOf(err); got != KindStaleSnapshot {
		t.Fatalf("kind=%s, expected %s", got, KindStaleSnapshot)
	}
}

func TestValidateAcceptsPlainLimit(t *testing.T) {
	intent := OrderIntent{
		Action: ActionBuy, Quantity: 10, LimitPrice: 0.30, TimeInForce: TIFGTC,
	}
	if err := Validate(intent, testRules, nil); err != nil {
		t.Fatalf("expected accept, got %v", err)
	}
}

func TestValidateAcceptsGridBoundaries(t *testing.T) {
	// The first and last tick prices are tradable; only the snapped-to
	// boundaries are not.
	for _, price := range []float64{0.01, 0.99} {
		intent := OrderIntent{
			Action: ActionBuy, Quantity: 1, LimitPrice: price, TimeInForce: TIFGTC,
		}
		if err := Validate(intent, testRules, nil); err != nil {
			t.Fatalf("price %v rejected: %v", price, err)
		}
	}
}
