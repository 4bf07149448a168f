package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"execution-core/pkg/venues/common"
)

const (
	// DefaultBaseURL is the production trade API root.
	DefaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2"

	// batchLimit is the venue's hard cap on orders per batched call.
	batchLimit = 20

	orderbookDepth = 32
)

// Config holds Kalshi credentials and tunables.
type Config struct {
	Email    string
	Password string
	BaseURL  string
	TokenTTL time.Duration
	Timeout  time.Duration
}

// Client is the Kalshi gateway. It authenticates through the session manager
// and re-expresses all prices on the canonical yes side in cents.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sessions   *common.SessionManager
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New builds a client and registers it as the venue's authenticator.
func New(cfg Config, sessions *common.SessionManager, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sessions:   sessions,
		// Basic access tier: 10 requests per second with a small burst.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		logger:  logger,
	}
	sessions.Register(c)
	return c
}

func (c *Client) Venue() common.Venue { return common.VenueKalshi }

// Rules are uniform across Kalshi markets: whole-cent ticks over the open
// (0, 1) interval, one contract minimum.
func (c *Client) Rules(ctx context.Context, instrumentID string) (common.VenueRules, error) {
	return common.VenueRules{
		MinPrice:  0,
		MaxPrice:  1,
		PriceTick: 0.01,
		MinSize:   1,
	}, nil
}

func (c *Client) BatchLimit() int { return batchLimit }

// do performs one HTTP exchange. A returned error is a transport failure; any
// HTTP status comes back with the raw body for the caller to classify.
func (c *Client) do(ctx context.Context, method, path string, body any, token string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.sessions.Invalidate(common.VenueKalshi)
	}
	return resp.StatusCode, raw, nil
}

// doJSON runs do and decodes a 2xx body into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, token string, out any) (int, error) {
	status, raw, err := c.do(ctx, method, path, body, token)
	if err != nil {
		return 0, err
	}
	if status >= 200 && status < 300 && out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return status, fmt.Errorf("decode response: %w", err)
		}
	}
	return status, nil
}

// doAuthed resolves a live bearer token and performs the exchange with it.
func (c *Client) doAuthed(ctx context.Context, method, path string, body any) (int, []byte, error) {
	cred, err := c.sessions.Ensure(ctx, common.VenueKalshi)
	if err != nil {
		return 0, nil, err
	}
	return c.do(ctx, method, path, body, cred.Token)
}

// SubmitOrder places one order. A notional market buy without a contract
// count is sized against a fresh book first, with the notional re-applied as
// the venue-side cost cap.
func (c *Client) SubmitOrder(ctx context.Context, intent common.OrderIntent) common.ExecutionResult {
	if intent.Market() && intent.Action == common.ActionBuy && intent.Quantity == 0 {
		snap, err := c.Snapshot(ctx, intent.InstrumentID)
		if err != nil {
			return common.Transport(fmt.Errorf("size market buy: %w", err))
		}
		est, err := common.Estimate(snap, common.ActionBuy, intent.Amount)
		if err != nil {
			return common.Transport(fmt.Errorf("size market buy: %w", err))
		}
		intent.Quantity = math.Floor(est.ExpectedQuantity)
		if intent.Quantity < 1 {
			return common.Reject("notional too small for one contract at current prices")
		}
	}

	status, raw, err := c.doAuthed(ctx, http.MethodPost, "/portfolio/orders", encodeOrder(intent))
	if err != nil {
		return common.Transport(err)
	}
	if status < 200 || status >= 300 {
		return common.ClassifyHTTP(common.VenueKalshi, status, raw)
	}

	var env orderEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return common.Transport(fmt.Errorf("decode order response: %w", err))
	}
	c.logger.Info("order accepted",
		zap.String("venue", "kalshi"),
		zap.String("ticker", intent.InstrumentID),
		zap.String("order_id", env.Order.OrderID),
	)
	return common.Accepted(env.Order.OrderID, raw)
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) common.ExecutionResult {
	status, raw, err := c.doAuthed(ctx, http.MethodDelete, "/portfolio/orders/"+orderID, nil)
	if err != nil {
		return common.Transport(err)
	}
	if status < 200 || status >= 300 {
		return common.ClassifyHTTP(common.VenueKalshi, status, raw)
	}
	return common.Accepted(orderID, raw)
}

// BatchCancel cancels the given orders in one call. On failure the orders
// remain open and the venue's response is surfaced as-is.
func (c *Client) BatchCancel(ctx context.Context, orderIDs []string) error {
	status, raw, err := c.doAuthed(ctx, http.MethodDelete, "/portfolio/orders/batched", batchCancelRequest{IDs: orderIDs})
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		res := common.ClassifyHTTP(common.VenueKalshi, status, raw)
		if res.Status == common.StatusTransportError {
			return res.Cause
		}
		return fmt.Errorf("batch cancel rejected: %s", res.Reason)
	}
	return nil
}

func (c *Client) OpenOrders(ctx context.Context) ([]common.OpenOrder, error) {
	status, raw, err := c.doAuthed(ctx, http.MethodGet, "/portfolio/orders?status=resting", nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("open orders: status %d: %s", status, raw)
	}
	var env ordersEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	orders := make([]common.OpenOrder, 0, len(env.Orders))
	for _, v := range env.Orders {
		orders = append(orders, decodeOrder(v))
	}
	return orders, nil
}

// AmendOrder updates a resting order's price and/or count in place. Price
// arrives in the probability domain on the order's original side.
func (c *Client) AmendOrder(ctx context.Context, orderID string, price, quantity float64) common.ExecutionResult {
	req := amendOrderRequest{}
	if price > 0 {
		req.Price = CentsFromProbability(price)
	}
	if quantity > 0 {
		req.Count = int(math.Round(quantity))
	}
	status, raw, err := c.doAuthed(ctx, http.MethodPost, "/portfolio/orders/"+orderID+"/amend", req)
	if err != nil {
		return common.Transport(err)
	}
	if status < 200 || status >= 300 {
		return common.ClassifyHTTP(common.VenueKalshi, status, raw)
	}
	var env orderEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return common.Transport(fmt.Errorf("decode amend response: %w", err))
	}
	return common.Accepted(env.Order.OrderID, raw)
}

// DecreaseOrder reduces a resting order's remaining count without touching
// its queue position for the residual.
func (c *Client) DecreaseOrder(ctx context.Context, orderID string, reduceBy int) common.ExecutionResult {
	status, raw, err := c.doAuthed(ctx, http.MethodPost, "/portfolio/orders/"+orderID+"/decrease",
		decreaseOrderRequest{ReduceBy: reduceBy})
	if err != nil {
		return common.Transport(err)
	}
	if status < 200 || status >= 300 {
		return common.ClassifyHTTP(common.VenueKalshi, status, raw)
	}
	return common.Accepted(orderID, raw)
}

func (c *Client) Balance(ctx context.Context) (common.Balance, error) {
	status, raw, err := c.doAuthed(ctx, http.MethodGet, "/portfolio/balance", nil)
	if err != nil {
		return common.Balance{}, err
	}
	if status < 200 || status >= 300 {
		return common.Balance{}, fmt.Errorf("balance: status %d: %s", status, raw)
	}
	var resp balanceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return common.Balance{}, fmt.Errorf("decode balance: %w", err)
	}
	return common.Balance{
		Available:      float64(resp.Balance) / 100,
		PortfolioValue: float64(resp.PortfolioValue) / 100,
	}, nil
}

// Snapshot reads the market's top of book and visible depth. All prices come
// back in the yes-side probability domain; no-side resting bids appear as
// yes-side asks at the complementary price.
func (c *Client) Snapshot(ctx context.Context, instrumentID string) (common.MarketSnapshot, error) {
	status, raw, err := c.doAuthed(ctx, http.MethodGet, "/markets/"+instrumentID, nil)
	if err != nil {
		return common.MarketSnapshot{}, err
	}
	if status < 200 || status >= 300 {
		return common.MarketSnapshot{}, fmt.Errorf("market %s: status %d: %s", instrumentID, status, raw)
	}
	var mkt marketEnvelope
	if err := json.Unmarshal(raw, &mkt); err != nil {
		return common.MarketSnapshot{}, fmt.Errorf("decode market: %w", err)
	}

	status, raw, err = c.doAuthed(ctx, http.MethodGet,
		fmt.Sprintf("/markets/%s/orderbook?depth=%d", instrumentID, orderbookDepth), nil)
	if err != nil {
		return common.MarketSnapshot{}, err
	}
	if status < 200 || status >= 300 {
		return common.MarketSnapshot{}, fmt.Errorf("orderbook %s: status %d: %s", instrumentID, status, raw)
	}
	var book orderbookEnvelope
	if err := json.Unmarshal(raw, &book); err != nil {
		return common.MarketSnapshot{}, fmt.Errorf("decode orderbook: %w", err)
	}

	snap := common.MarketSnapshot{
		InstrumentID: instrumentID,
		BestBid:      ProbabilityFromCents(mkt.Market.YesBid),
		BestAsk:      ProbabilityFromCents(mkt.Market.YesAsk),
		Bids:         yesBids(book.Orderbook.Yes),
		Asks:         yesAsks(book.Orderbook.No),
		Timestamp:    time.Now(),
	}
	return snap, nil
}

// yesBids converts yes-side resting bids to levels, best (highest) first.
func yesBids(levels [][2]int) []common.BookLevel {
	out := make([]common.BookLevel, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, common.BookLevel{
			Price: ProbabilityFromCents(lvl[0]),
			Size:  float64(lvl[1]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	return out
}

// yesAsks mirrors no-side resting bids into yes-side asks at 100-p, best
// (lowest) first.
func yesAsks(levels [][2]int) []common.BookLevel {
	out := make([]common.BookLevel, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, common.BookLevel{
			Price: ProbabilityFromCents(centsMax - lvl[0]),
			Size:  float64(lvl[1]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}
