// Package common defines the venue-agnostic order execution contract shared
// by every venue implementation.
package common

import (
	"encoding/json"
	"time"
)

// Venue identifies a trading platform.
type Venue string

const (
	VenueKalshi     Venue = "kalshi"
	VenuePolymarket Venue = "polymarket"
)

// Side selects the binary outcome. Kalshi calls these yes/no; Polymarket
// addresses each outcome by token, with SideNo mapping to the complementary
// token of the instrument.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Action denotes buy or sell.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// TimeInForce captures TIF semantics.
type TimeInForce string

const (
	TIFGTC      TimeInForce = "GTC"       // resting limit order
	TIFFOK      TimeInForce = "FOK"       // market order, fill in full or not at all
	TIFPostOnly TimeInForce = "POST_ONLY" // must add liquidity, rejected if it would cross
)

// OrderIntent is the abstract, venue-agnostic order request.
//
// LimitPrice is a probability in the venue's native decimal domain (0..1);
// it is present iff TimeInForce != FOK. Quantity is the share/contract count.
// Amount is the notional to spend and applies only to FOK buys, where the
// realized quantity depends on the fill price.
type OrderIntent struct {
	Venue        Venue
	InstrumentID string
	Side         Side
	Action       Action
	Quantity     float64
	Amount       float64
	LimitPrice   float64
	TimeInForce  TimeInForce
	ClientID     string
}

// Market returns true when the intent describes a market order.
func (i OrderIntent) Market() bool {
	return i.TimeInForce == TIFFOK
}

// BookLevel is one price level of an order book, best first.
type BookLevel struct {
	Price float64
	Size  float64
}

// MarketSnapshot is the best bid/ask plus visible depth for one instrument.
// It is fetched fresh per decision and never cached beyond it.
type MarketSnapshot struct {
	InstrumentID string
	BestBid      float64
	BestAsk      float64
	Bids         []BookLevel
	Asks         []BookLevel
	Timestamp    time.Time
}

// Midpoint derives the mid price. Not stored.
func (s MarketSnapshot) Midpoint() float64 {
	return (s.BestBid + s.BestAsk) / 2
}

// Age reports how stale the snapshot is.
func (s MarketSnapshot) Age() time.Duration {
	return time.Since(s.Timestamp)
}

// ResultStatus tags an ExecutionResult.
type ResultStatus string

const (
	StatusAccepted       ResultStatus = "accepted"
	StatusRejected       ResultStatus = "rejected"
	StatusTransportError ResultStatus = "transport_error"
)

// ExecutionResult is the classified outcome of one execution call. Exactly
// one variant applies: Accepted carries the venue order id and echo, Rejected
// carries the server's reason verbatim, TransportError carries the cause.
// Only transport errors are safe to retry.
type ExecutionResult struct {
	Status  ResultStatus
	OrderID string
	Reason  string
	Cause   error
	Echo    json.RawMessage
}

// Accepted builds an accepted result.
func Accepted(orderID string, echo json.RawMessage) ExecutionResult {
	return ExecutionResult{Status: StatusAccepted, OrderID: orderID, Echo: echo}
}

// Reject builds a venue-side rejection carrying the server's reason verbatim.
func Reject(reason string) ExecutionResult {
	return ExecutionResult{Status: StatusRejected, Reason: reason}
}

// Transport builds a transport failure result.
func Transport(cause error) ExecutionResult {
	return ExecutionResult{Status: StatusTransportError, Cause: cause}
}

// OK reports whether the call was accepted by the venue.
func (r ExecutionResult) OK() bool {
	return r.Status == StatusAccepted
}

// BatchOutcome holds per-item results in submission order. One item's failure
// never discards or reorders the others.
type BatchOutcome []ExecutionResult

// OpenOrder is a simplified view of a resting order.
type OpenOrder struct {
	OrderID      string    `json:"order_id"`
	InstrumentID string    `json:"instrument_id"`
	Side         Side      `json:"side"`
	Action       Action    `json:"action"`
	Price        float64   `json:"price"`
	Remaining    float64   `json:"remaining"`
	CreatedAt    time.Time `json:"created_at"`
}

// VenueRules are the static trading constraints of a venue, expressed in the
// normalized probability domain. MinPrice/MaxPrice bound an open interval:
// the boundary values denote certainty and are not tradable.
type VenueRules struct {
	MinPrice  float64
	MaxPrice  float64
	PriceTick float64
	MinSize   float64
}

// FillEstimate is the advisory output of the fill estimator. It never blocks
// submission and never guarantees the realized fill.
type FillEstimate struct {
	InstrumentID     string  `json:"instrument_id"`
	Action           Action  `json:"action"`
	Amount           float64 `json:"amount"`
	Price            float64 `json:"price"`
	SlippagePct      float64 `json:"slippage_pct"`
	ExpectedQuantity float64 `json:"expected_quantity"`
	BestBid          float64 `json:"best_bid"`
	BestAsk          float64 `json:"best_ask"`
	Midpoint         float64 `json:"midpoint"`
}

// Balance is a venue account balance view.
type Balance struct {
	Available      float64 `json:"available"`
	PortfolioValue float64 `json:"portfolio_value"`
}
