package polymarket

import (
	"sort"
	"strconv"
	"time"

	"execution-core/pkg/venues/common"
)

// postOrderRequest is the wire payload for POST /order. Owner is the API key
// of the credential that signed the request.
type postOrderRequest struct {
	Order     SignedOrder `json:"order"`
	Owner     string      `json:"owner"`
	OrderType string      `json:"orderType"`
}

type postOrderResponse struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
}

type cancelOrderRequest struct {
	OrderID string `json:"orderID"`
}

type cancelOrdersResponse struct {
	Canceled    []string          `json:"canceled"`
	NotCanceled map[string]string `json:"not_canceled"`
}

// bookLevel carries decimal strings on the wire.
type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type bookResponse struct {
	AssetID   string      `json:"asset_id"`
	Timestamp string      `json:"timestamp"`
	Bids      []bookLevel `json:"bids"`
	Asks      []bookLevel `json:"asks"`
}

type tickSizeResponse struct {
	MinimumTickSize float64 `json:"minimum_tick_size"`
}

type negRiskResponse struct {
	NegRisk bool `json:"neg_risk"`
}

type midpointResponse struct {
	Mid string `json:"mid"`
}

type openOrderView struct {
	ID           string `json:"id"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	CreatedAt    int64  `json:"created_at"`
}

func parseLevels(levels []bookLevel, desc bool) []common.BookLevel {
	out := make([]common.BookLevel, 0, len(levels))
	for _, lvl := range levels {
		price, err1 := strconv.ParseFloat(lvl.Price, 64)
		size, err2 := strconv.ParseFloat(lvl.Size, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, common.BookLevel{Price: price, Size: size})
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}

func decodeBook(tokenID string, resp bookResponse) common.MarketSnapshot {
	snap := common.MarketSnapshot{
		InstrumentID: tokenID,
		Bids:         parseLevels(resp.Bids, true),
		Asks:         parseLevels(resp.Asks, false),
		Timestamp:    time.Now(),
	}
	if len(snap.Bids) > 0 {
		snap.BestBid = snap.Bids[0].Price
	}
	if len(snap.Asks) > 0 {
		snap.BestAsk = snap.Asks[0].Price
	}
	return snap
}

func decodeOpenOrder(v openOrderView) common.OpenOrder {
	price, _ := strconv.ParseFloat(v.Price, 64)
	original, _ := strconv.ParseFloat(v.OriginalSize, 64)
	matched, _ := strconv.ParseFloat(v.SizeMatched, 64)

	action := common.ActionBuy
	if v.Side == sideSell {
		action = common.ActionSell
	}
	return common.OpenOrder{
		OrderID:      v.ID,
		InstrumentID: v.AssetID,
		Side:         common.SideYes, // orders address a token directly
		Action:       action,
		Price:        price,
		Remaining:    original - matched,
		CreatedAt:    time.Unix(v.CreatedAt, 0),
	}
}
