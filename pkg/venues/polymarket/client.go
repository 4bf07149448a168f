package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"execution-core/pkg/venues/common"
)

const (
	// DefaultBaseURL is the production CLOB root.
	DefaultBaseURL = "https://clob.polymarket.com"

	// batchLimit is the venue's cap on orders per batched call.
	batchLimit = 15

	defaultMinSize = 0.01
)

// Config holds Polymarket credentials and tunables. API credentials are
// optional; absent ones are derived from the wallet key on first use.
type Config struct {
	PrivateKey    string
	Funder        string
	APIKey        string
	APISecret     string
	Passphrase    string
	BaseURL       string
	RPCURL        string
	SignatureType int
	Timeout       time.Duration
}

// Client is the Polymarket CLOB gateway. Orders are signed locally with the
// wallet key; reads go out unauthenticated except for portfolio state.
type Client struct {
	cfg        Config
	signer     *Signer
	httpClient *http.Client
	sessions   *common.SessionManager
	limiter    *rate.Limiter
	logger     *zap.Logger
	chain      *ChainReader
	clock      *common.TimeSync
	stream     *Stream
}

// New builds a client and registers it as the venue's authenticator. A chain
// reader is attached when an RPC endpoint is configured.
func New(cfg Config, sessions *common.SessionManager, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	signer, err := NewSigner(cfg.PrivateKey, cfg.Funder, cfg.SignatureType)
	if err != nil {
		return nil, err
	}
	c := &Client{
		cfg:        cfg,
		signer:     signer,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sessions:   sessions,
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
		logger:     logger,
	}
	if cfg.RPCURL != "" {
		chain, err := NewChainReader(cfg.RPCURL, signer.Funder())
		if err != nil {
			return nil, err
		}
		c.chain = chain
	}
	// HMAC timestamps use the venue clock so local skew cannot invalidate
	// request signatures.
	c.clock = common.NewTimeSync(c.serverTime, logger)
	sessions.Register(c)
	return c, nil
}

// StartClock begins periodic clock synchronization against the venue.
func (c *Client) StartClock(ctx context.Context) {
	c.clock.Start(ctx)
}

// UseStream attaches a live market feed. Snapshot consults it before falling
// back to the REST book read.
func (c *Client) UseStream(s *Stream) {
	c.stream = s
}

// serverTime reads the venue clock, in unix milliseconds.
func (c *Client) serverTime(ctx context.Context) (int64, error) {
	status, raw, err := c.doPublic(ctx, "/time", nil, nil)
	if err != nil {
		return 0, err
	}
	if status < 200 || status >= 300 {
		return 0, fmt.Errorf("server time: status %d: %s", status, raw)
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse server time: %w", err)
	}
	return secs * 1000, nil
}

func (c *Client) Venue() common.Venue { return common.VenuePolymarket }

func (c *Client) BatchLimit() int { return batchLimit }

// execute runs one rate-limited HTTP exchange, decoding 2xx bodies into out.
func (c *Client) execute(req *http.Request, out any) (int, []byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return 0, nil, err
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
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, raw, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, raw, nil
}

func (c *Client) doPublic(ctx context.Context, path string, query url.Values, out any) (int, []byte, error) {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, err
	}
	return c.execute(req, out)
}

// doAuthed signs the request with the L2 header set. The HMAC covers the
// method, path and body.
func (c *Client) doAuthed(ctx context.Context, method, path string, body any, out any) (int, []byte, error) {
	cred, err := c.sessions.Ensure(ctx, common.VenuePolymarket)
	if err != nil {
		return 0, nil, err
	}

	var payload []byte
	var reader io.Reader
	if body != nil {
		payload, err = json.Marshal(body)
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
	ts := fmt.Sprintf("%d", c.clock.Now())
	if err := authHeaders(req, cred, c.signer.Address(), ts, method, path, payload); err != nil {
		return 0, nil, err
	}

	status, raw, err := c.execute(req, out)
	if status == http.StatusUnauthorized {
		c.sessions.Invalidate(common.VenuePolymarket)
	}
	return status, raw, err
}

// Rules resolves the per-token tick size. The tradable band is the open unit
// interval; NormalizePrice later clamps onto [tick, 1-tick].
func (c *Client) Rules(ctx context.Context, instrumentID string) (common.VenueRules, error) {
	tick, _, err := c.tokenParams(ctx, instrumentID)
	if err != nil {
		return common.VenueRules{}, err
	}
	return common.VenueRules{
		MinPrice:  0,
		MaxPrice:  1,
		PriceTick: tick,
		MinSize:   defaultMinSize,
	}, nil
}

// tokenParams fetches tick size and neg-risk flag in parallel; both are
// needed before signing an order.
func (c *Client) tokenParams(ctx context.Context, tokenID string) (tick float64, negRisk bool, err error) {
	query := url.Values{"token_id": {tokenID}}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var resp tickSizeResponse
		status, raw, err := c.doPublic(gctx, "/tick-size", query, &resp)
		if err != nil {
			return err
		}
		if status < 200 || status >= 300 {
			return fmt.Errorf("tick size: status %d: %s", status, raw)
		}
		tick = resp.MinimumTickSize
		return nil
	})
	g.Go(func() error {
		var resp negRiskResponse
		status, raw, err := c.doPublic(gctx, "/neg-risk", query, &resp)
		if err != nil {
			return err
		}
		if status < 200 || status >= 300 {
			return fmt.Errorf("neg risk: status %d: %s", status, raw)
		}
		negRisk = resp.NegRisk
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, false, err
	}
	if tick <= 0 {
		tick = 0.01
	}
	return tick, negRisk, nil
}

// Snapshot returns the token's order book: the live feed when it holds a
// fresh book for the token, the REST read otherwise.
func (c *Client) Snapshot(ctx context.Context, instrumentID string) (common.MarketSnapshot, error) {
	if c.stream != nil {
		if snap, ok := c.stream.Book(instrumentID); ok && snap.Age() <= common.SnapshotFreshness {
			return snap, nil
		}
	}

	var resp bookResponse
	status, raw, err := c.doPublic(ctx, "/book", url.Values{"token_id": {instrumentID}}, &resp)
	if err != nil {
		return common.MarketSnapshot{}, err
	}
	if status < 200 || status >= 300 {
		return common.MarketSnapshot{}, fmt.Errorf("book %s: status %d: %s", instrumentID, status, raw)
	}
	return decodeBook(instrumentID, resp), nil
}

// Midpoint reads the venue's midpoint for a token.
func (c *Client) Midpoint(ctx context.Context, tokenID string) (float64, error) {
	var resp midpointResponse
	status, raw, err := c.doPublic(ctx, "/midpoint", url.Values{"token_id": {tokenID}}, &resp)
	if err != nil {
		return 0, err
	}
	if status < 200 || status >= 300 {
		return 0, fmt.Errorf("midpoint %s: status %d: %s", tokenID, status, raw)
	}
	return strconv.ParseFloat(resp.Mid, 64)
}

// SubmitOrder signs and posts one order. Intents on the no side are
// re-expressed as the equivalent flipped order at the complementary price.
// Market buys are sized against a fresh book on the intent's own side before
// flipping; market sells post a resting order at the price floor: immediate
// in practice, best effort by construction. Limit prices have passed the
// validation gate in-band, so NormalizePrice only snaps them to the grid;
// its clamp guards the floor and sizing paths.
func (c *Client) SubmitOrder(ctx context.Context, intent common.OrderIntent) common.ExecutionResult {
	tick, negRisk, err := c.tokenParams(ctx, intent.InstrumentID)
	if err != nil {
		return common.Transport(err)
	}

	orderType := "GTC"
	price := intent.LimitPrice
	size := intent.Quantity

	// Resolve market-order pricing and sizing on the caller's action first;
	// the side flip below must not change which arm applies.
	switch {
	case intent.Market() && intent.Action == common.ActionBuy:
		snap, err := c.Snapshot(ctx, intent.InstrumentID)
		if err != nil {
			return common.Transport(fmt.Errorf("size market buy: %w", err))
		}
		bestAsk := snap.BestAsk
		if intent.Side == common.SideNo {
			// The no side's ask is the complement of the token's best bid.
			bestAsk = Complement(snap.BestBid)
		}
		if bestAsk <= 0 || bestAsk >= 1 {
			return common.Reject("no liquidity to buy against")
		}
		price = NormalizePrice(bestAsk, tick)
		if size == 0 {
			size = intent.Amount / price
		}
		orderType = "FOK"
	case intent.Market():
		// Sell at the floor for an immediate fill.
		price = tick
	default:
		price = NormalizePrice(price, tick)
	}

	side := sideBuy
	if intent.Action == common.ActionSell {
		side = sideSell
	}
	if intent.Side == common.SideNo {
		price = NormalizePrice(Complement(price), tick)
		if side == sideBuy {
			side = sideSell
		} else {
			side = sideBuy
		}
	}

	order, err := c.signer.SignOrder(intent.InstrumentID, side, price, size, 0, negRisk)
	if err != nil {
		return common.Transport(fmt.Errorf("sign order: %w", err))
	}

	cred, err := c.sessions.Ensure(ctx, common.VenuePolymarket)
	if err != nil {
		return common.Transport(err)
	}

	var resp postOrderResponse
	status, raw, err := c.doAuthed(ctx, http.MethodPost, "/order", postOrderRequest{
		Order:     order,
		Owner:     cred.APIKey,
		OrderType: orderType,
	}, &resp)
	if err != nil {
		return common.Transport(err)
	}
	if status < 200 || status >= 300 {
		return common.ClassifyHTTP(common.VenuePolymarket, status, raw)
	}
	if !resp.Success {
		return common.Reject(resp.ErrorMsg)
	}
	c.logger.Info("order accepted",
		zap.String("venue", "polymarket"),
		zap.String("token_id", intent.InstrumentID),
		zap.String("order_id", resp.OrderID),
	)
	return common.Accepted(resp.OrderID, raw)
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) common.ExecutionResult {
	var resp cancelOrdersResponse
	status, raw, err := c.doAuthed(ctx, http.MethodDelete, "/order", cancelOrderRequest{OrderID: orderID}, &resp)
	if err != nil {
		return common.Transport(err)
	}
	if status < 200 || status >= 300 {
		return common.ClassifyHTTP(common.VenuePolymarket, status, raw)
	}
	if reason, ok := resp.NotCanceled[orderID]; ok {
		return common.Reject(reason)
	}
	return common.Accepted(orderID, raw)
}

// BatchCancel cancels the given orders in one call. Per-order failures are
// aggregated; any failure means those orders remain open.
func (c *Client) BatchCancel(ctx context.Context, orderIDs []string) error {
	var resp cancelOrdersResponse
	status, raw, err := c.doAuthed(ctx, http.MethodDelete, "/orders", orderIDs, &resp)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("batch cancel: status %d: %s", status, raw)
	}
	var failed error
	for id, reason := range resp.NotCanceled {
		failed = multierr.Append(failed, fmt.Errorf("order %s: %s", id, reason))
	}
	return failed
}

// CancelAllOrders cancels every open order for the account in one call.
func (c *Client) CancelAllOrders(ctx context.Context) error {
	status, raw, err := c.doAuthed(ctx, http.MethodDelete, "/cancel-all", nil, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("cancel all: status %d: %s", status, raw)
	}
	return nil
}

func (c *Client) OpenOrders(ctx context.Context) ([]common.OpenOrder, error) {
	var views []openOrderView
	status, raw, err := c.doAuthed(ctx, http.MethodGet, "/data/orders", nil, &views)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("open orders: status %d: %s", status, raw)
	}
	orders := make([]common.OpenOrder, 0, len(views))
	for _, v := range views {
		orders = append(orders, decodeOpenOrder(v))
	}
	return orders, nil
}

// Balance reads the funder's USDC balance on chain. Requires a configured
// RPC endpoint.
func (c *Client) Balance(ctx context.Context) (common.Balance, error) {
	if c.chain == nil {
		return common.Balance{}, fmt.Errorf("no rpc endpoint configured")
	}
	usdc, err := c.chain.CollateralBalance(ctx)
	if err != nil {
		return common.Balance{}, err
	}
	return common.Balance{Available: usdc}, nil
}

// TokenBalance reads the funder's holding of one outcome token.
func (c *Client) TokenBalance(ctx context.Context, tokenID string) (float64, error) {
	if c.chain == nil {
		return 0, fmt.Errorf("no rpc endpoint configured")
	}
	return c.chain.OutcomeBalance(ctx, tokenID)
}
