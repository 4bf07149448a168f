package polymarket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"execution-core/pkg/venues/common"
)

var testSecret = base64.URLEncoding.EncodeToString([]byte("test-secret"))

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sessions := common.NewSessionManager(time.Minute, nil)
	client, err := New(Config{
		PrivateKey: testKey,
		APIKey:     "key-1",
		APISecret:  testSecret,
		Passphrase: "phrase",
		BaseURL:    srv.URL,
	}, sessions, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

// marketData answers the public reads every order placement performs.
func marketData(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tick-size":
			json.NewEncoder(w).Encode(tickSizeResponse{MinimumTickSize: 0.01})
		case "/neg-risk":
			json.NewEncoder(w).Encode(negRiskResponse{NegRisk: false})
		default:
			next(w, r)
		}
	}
}

func TestSubmitOrderSignsAndPosts(t *testing.T) {
	var captured postOrderRequest
	var headers http.Header
	client := newTestClient(t, marketData(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/order" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		headers = r.Header.Clone()
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(postOrderResponse{Success: true, OrderID: "0xabc"})
	}))

	res := client.SubmitOrder(context.Background(), common.OrderIntent{
		Venue:        common.VenuePolymarket,
		InstrumentID: "7001",
		Side:         common.SideYes,
		Action:       common.ActionBuy,
		Quantity:     100,
		LimitPrice:   0.50,
		TimeInForce:  common.TIFGTC,
	})
	if !res.OK() {
		t.Fatalf("result=%+v, expected accepted", res)
	}
	if res.OrderID != "0xabc" {
		t.Fatalf("OrderID=%q", res.OrderID)
	}
	if captured.Owner != "key-1" || captured.OrderType != "GTC" {
		t.Fatalf("owner/type %s/%s", captured.Owner, captured.OrderType)
	}
	if captured.Order.Signature == "" {
		t.Fatal("order went out unsigned")
	}
	if captured.Order.MakerAmount != "50000000" {
		t.Fatalf("MakerAmount=%s", captured.Order.MakerAmount)
	}
	for _, h := range []string{"Poly_address", "Poly_signature", "Poly_timestamp", "Poly_api_key", "Poly_passphrase"} {
		if headers.Get(h) == "" {
			t.Fatalf("missing auth header %s", h)
		}
	}
}

func TestSubmitOrderNoSideFlips(t *testing.T) {
	// Buying the no side at 0.30 is selling the token at 0.70.
	var captured postOrderRequest
	client := newTestClient(t, marketData(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(postOrderResponse{Success: true, OrderID: "0x1"})
	}))

	res := client.SubmitOrder(context.Background(), common.OrderIntent{
		InstrumentID: "7001",
		Side:         common.SideNo,
		Action:       common.ActionBuy,
		Quantity:     10,
		LimitPrice:   0.30,
		TimeInForce:  common.TIFGTC,
	})
	if !res.OK() {
		t.Fatalf("result=%+v", res)
	}
	if captured.Order.Side != sideSell {
		t.Fatalf("Side=%s, expected the flipped sell", captured.Order.Side)
	}
	// SELL of 10 shares at 0.70: taker receives 7 USDC.
	if captured.Order.MakerAmount != "10000000" || captured.Order.TakerAmount != "7000000" {
		t.Fatalf("amounts %s/%s", captured.Order.MakerAmount, captured.Order.TakerAmount)
	}
}

func TestSubmitOrderMarketSellFloor(t *testing.T) {
	var captured postOrderRequest
	client := newTestClient(t, marketData(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(postOrderResponse{Success: true, OrderID: "0x2"})
	}))

	res := client.SubmitOrder(context.Background(), common.OrderIntent{
		InstrumentID: "7001",
		Side:         common.SideYes,
		Action:       common.ActionSell,
		Quantity:     50,
		TimeInForce:  common.TIFFOK,
	})
	if !res.OK() {
		t.Fatalf("result=%+v", res)
	}
	// 50 shares offered at the 0.01 floor: 0.5 USDC taker amount.
	if captured.Order.TakerAmount != "500000" {
		t.Fatalf("TakerAmount=%s, expected the floor price", captured.Order.TakerAmount)
	}
}

func TestSubmitOrderMarketBuySizesAgainstBook(t *testing.T) {
	var captured postOrderRequest
	client := newTestClient(t, marketData(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/book" {
			json.NewEncoder(w).Encode(bookResponse{
				Asks: []bookLevel{{Price: "0.40", Size: "1000"}},
				Bids: []bookLevel{{Price: "0.38", Size: "1000"}},
			})
			return
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(postOrderResponse{Success: true, OrderID: "0x3"})
	}))

	res := client.SubmitOrder(context.Background(), common.OrderIntent{
		InstrumentID: "7001",
		Side:         common.SideYes,
		Action:       common.ActionBuy,
		Amount:       50,
		TimeInForce:  common.TIFFOK,
	})
	if !res.OK() {
		t.Fatalf("result=%+v", res)
	}
	if captured.OrderType != "FOK" {
		t.Fatalf("OrderType=%s", captured.OrderType)
	}
	// $50 at the 0.40 ask buys 125 shares.
	if captured.Order.MakerAmount != "50000000" || captured.Order.TakerAmount != "125000000" {
		t.Fatalf("amounts %s/%s", captured.Order.MakerAmount, captured.Order.TakerAmount)
	}
}

func TestSubmitOrderMarketBuyNoSide(t *testing.T) {
	var captured postOrderRequest
	client := newTestClient(t, marketData(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/book" {
			json.NewEncoder(w).Encode(bookResponse{
				Bids: []bookLevel{{Price: "0.60", Size: "1000"}},
				Asks: []bookLevel{{Price: "0.65", Size: "1000"}},
			})
			return
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(postOrderResponse{Success: true, OrderID: "0x4"})
	}))

	// $50 of the no side: the no ask is 1-0.60=0.40, so 125 shares, posted as
	// the flipped FOK sell at 0.60.
	res := client.SubmitOrder(context.Background(), common.OrderIntent{
		InstrumentID: "7001",
		Side:         common.SideNo,
		Action:       common.ActionBuy,
		Amount:       50,
		TimeInForce:  common.TIFFOK,
	})
	if !res.OK() {
		t.Fatalf("result=%+v", res)
	}
	if captured.OrderType != "FOK" {
		t.Fatalf("OrderType=%s, expected the market buy to stay FOK", captured.OrderType)
	}
	if captured.Order.Side != sideSell {
		t.Fatalf("Side=%s, expected the flipped sell", captured.Order.Side)
	}
	// SELL of 125 shares at 0.60: maker 125 shares, taker 75 USDC.
	if captured.Order.MakerAmount != "125000000" || captured.Order.TakerAmount != "75000000" {
		t.Fatalf("amounts %s/%s", captured.Order.MakerAmount, captured.Order.TakerAmount)
	}
}

func TestSubmitOrderMarketSellNoSide(t *testing.T) {
	var captured postOrderRequest
	client := newTestClient(t, marketData(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(postOrderResponse{Success: true, OrderID: "0x5"})
	}))

	res := client.SubmitOrder(context.Background(), common.OrderIntent{
		InstrumentID: "7001",
		Side:         common.SideNo,
		Action:       common.ActionSell,
		Quantity:     50,
		TimeInForce:  common.TIFFOK,
	})
	if !res.OK() {
		t.Fatalf("result=%+v", res)
	}
	if captured.Order.Side != sideBuy {
		t.Fatalf("Side=%s, expected the flipped buy", captured.Order.Side)
	}
	// Selling 50 no shares at the 0.01 floor flips to buying at 0.99: maker
	// 49.5 USDC, taker 50 shares.
	if captured.Order.MakerAmount != "49500000" || captured.Order.TakerAmount != "50000000" {
		t.Fatalf("amounts %s/%s", captured.Order.MakerAmount, captured.Order.TakerAmount)
	}
}

func TestSnapshotPrefersLiveBook(t *testing.T) {
	// The REST book is down; only the attached feed can answer.
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "book unavailable", http.StatusInternalServerError)
	})

	stream := NewStream("", nil)
	stream.handle([]byte(`{"event_type":"book","asset_id":"7001",` +
		`"buys":[{"price":"0.40","size":"10"}],"sells":[{"price":"0.45","size":"5"}]}`))
	client.UseStream(stream)

	snap, err := client.Snapshot(context.Background(), "7001")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.BestBid != 0.40 || snap.BestAsk != 0.45 {
		t.Fatalf("top of book %v/%v, expected the live feed's", snap.BestBid, snap.BestAsk)
	}

	// Tokens the feed has not seen still fall through to REST.
	if _, err := client.Snapshot(context.Background(), "other"); err == nil {
		t.Fatal("expected the REST fallback failure to surface")
	}
}

func TestSubmitOrderRejectionVerbatim(t *testing.T) {
	client := newTestClient(t, marketData(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(postOrderResponse{Success: false, ErrorMsg: "not enough balance / allowance"})
	}))

	res := client.SubmitOrder(context.Background(), common.OrderIntent{
		InstrumentID: "7001", Side: common.SideYes, Action: common.ActionBuy,
		Quantity: 10, LimitPrice: 0.50, TimeInForce: common.TIFGTC,
	})
	if res.Status != common.StatusRejected {
		t.Fatalf("status=%s", res.Status)
	}
	if res.Reason != "not enough balance / allowance" {
		t.Fatalf("Reason=%q, expected the venue message verbatim", res.Reason)
	}
}

func TestBatchCancelAggregatesFailures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(cancelOrdersResponse{
			Canceled:    []string{"0x1"},
			NotCanceled: map[string]string{"0x2": "order not found"},
		})
	})

	err := client.BatchCancel(context.Background(), []string{"0x1", "0x2"})
	if err == nil {
		t.Fatal("expected the partial failure to surface")
	}
}

func TestBatchCancelAllCanceled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(cancelOrdersResponse{Canceled: []string{"0x1", "0x2"}})
	})
	if err := client.BatchCancel(context.Background(), []string{"0x1", "0x2"}); err != nil {
		t.Fatalf("BatchCancel: %v", err)
	}
}

func TestSnapshotOrdersBook(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(bookResponse{
			Bids: []bookLevel{{Price: "0.38", Size: "10"}, {Price: "0.40", Size: "5"}},
			Asks: []bookLevel{{Price: "0.48", Size: "7"}, {Price: "0.45", Size: "3"}},
		})
	})

	snap, err := client.Snapshot(context.Background(), "7001")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.BestBid != 0.40 || snap.BestAsk != 0.45 {
		t.Fatalf("top of book %v/%v", snap.BestBid, snap.BestAsk)
	}
	if snap.Bids[0].Price != 0.40 || snap.Asks[0].Price != 0.45 {
		t.Fatal("levels not sorted best-first")
	}
}

func TestL2SignatureDeterministic(t *testing.T) {
	a, err := l2Signature(testSecret, "1700000000", http.MethodPost, "/order", []byte(`{"x":1}`))
	if err != nil {
		t.Fatalf("l2Signature: %v", err)
	}
	b, _ := l2Signature(testSecret, "1700000000", http.MethodPost, "/order", []byte(`{"x":1}`))
	if a != b {
		t.Fatal("same inputs signed differently")
	}
	c, _ := l2Signature(testSecret, "1700000001", http.MethodPost, "/order", []byte(`{"x":1}`))
	if a == c {
		t.Fatal("timestamp not covered by the signature")
	}
	if _, err := l2Signature("not base64!!", "1", "GET", "/", nil); err == nil {
		t.Fatal("invalid secret accepted")
	}
}
