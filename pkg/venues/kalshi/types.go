package kalshi

import (
	"math"
	"time"

	"execution-core/pkg/venues/common"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	MemberID string `json:"member_id"`
}

// createOrderRequest is the wire payload for POST /portfolio/orders. Price is
// always carried as yes_price regardless of the requested side.
type createOrderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Count         int    `json:"count"`
	Type          string `json:"type"`
	YesPrice      int    `json:"yes_price,omitempty"`
	PostOnly      bool   `json:"post_only,omitempty"`
	BuyMaxCost    int    `json:"buy_max_cost,omitempty"`
}

type orderView struct {
	OrderID        string    `json:"order_id"`
	Ticker         string    `json:"ticker"`
	Side           string    `json:"side"`
	Action         string    `json:"action"`
	Status         string    `json:"status"`
	YesPrice       int       `json:"yes_price"`
	RemainingCount int       `json:"remaining_count"`
	CreatedTime    time.Time `json:"created_time"`
}

type orderEnvelope struct {
	Order orderView `json:"order"`
}

type ordersEnvelope struct {
	Orders []orderView `json:"orders"`
}

type batchCancelRequest struct {
	IDs []string `json:"ids"`
}

type amendOrderRequest struct {
	Price int `json:"price,omitempty"`
	Count int `json:"count,omitempty"`
}

type decreaseOrderRequest struct {
	ReduceBy int `json:"reduce_by"`
}

type marketView struct {
	Ticker string `json:"ticker"`
	Status string `json:"status"`
	YesBid int    `json:"yes_bid"`
	YesAsk int    `json:"yes_ask"`
	NoBid  int    `json:"no_bid"`
	NoAsk  int    `json:"no_ask"`
}

type marketEnvelope struct {
	Market marketView `json:"market"`
}

// orderbookView carries resting bids per side as [price_cents, count] pairs.
// Yes-side asks are the mirror of no-side bids at 100 minus the price.
type orderbookView struct {
	Yes [][2]int `json:"yes"`
	No  [][2]int `json:"no"`
}

type orderbookEnvelope struct {
	Orderbook orderbookView `json:"orderbook"`
}

type balanceResponse struct {
	Balance        int64 `json:"balance"`         // cents
	PortfolioValue int64 `json:"portfolio_value"` // cents
}

// encodeOrder lowers an abstract intent to the wire payload. Limit prices
// arrive in the probability domain and leave as yes-side cents.
func encodeOrder(intent common.OrderIntent) createOrderRequest {
	req := createOrderRequest{
		Ticker:        intent.InstrumentID,
		ClientOrderID: intent.ClientID,
		Side:          string(intent.Side),
		Action:        string(intent.Action),
		Count:         int(math.Round(intent.Quantity)),
	}
	switch intent.TimeInForce {
	case common.TIFFOK:
		req.Type = "market"
		if intent.Action == common.ActionBuy && intent.Amount > 0 {
			req.BuyMaxCost = int(math.Round(intent.Amount * 100))
		}
	default:
		req.Type = "limit"
		req.YesPrice = YesCents(intent.Side, CentsFromProbability(intent.LimitPrice))
		req.PostOnly = intent.TimeInForce == common.TIFPostOnly
	}
	return req
}

func decodeOrder(v orderView) common.OpenOrder {
	side := common.Side(v.Side)
	return common.OpenOrder{
		OrderID:      v.OrderID,
		InstrumentID: v.Ticker,
		Side:         side,
		Action:       common.Action(v.Action),
		Price:        ProbabilityFromCents(SideCents(v.YesPrice, side)),
		Remaining:    float64(v.RemainingCount),
		CreatedAt:    v.CreatedTime,
	}
}
