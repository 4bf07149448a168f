package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"execution-core/pkg/venues/common"
)

// DefaultStreamURL is the market-channel websocket endpoint.
const DefaultStreamURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

const (
	handshakeTimeout = 30 * time.Second
	writeTimeout     = 10 * time.Second
	pingInterval     = 50 * time.Second
)

// Stream maintains live books for a set of tokens over the market websocket
// channel. It is an optional acceleration: Snapshot remains the source of
// truth for validation reads.
type Stream struct {
	url    string
	logger *zap.Logger

	mu    sync.RWMutex
	books map[string]common.MarketSnapshot

	conn     *websocket.Conn
	stopPing chan struct{}
}

func NewStream(url string, logger *zap.Logger) *Stream {
	if url == "" {
		url = DefaultStreamURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		url:    url,
		logger: logger,
		books:  make(map[string]common.MarketSnapshot),
	}
}

type marketSubscription struct {
	AssetsIDs []string `json:"assets_ids"`
	Type      string   `json:"type"`
}

// Connect dials the endpoint, subscribes to the given tokens and starts the
// read and ping loops. The loops stop when ctx is cancelled.
func (s *Stream) Connect(ctx context.Context, tokenIDs []string) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.url, http.Header{})
	if err != nil {
		return fmt.Errorf("dial market stream: %w", err)
	}
	s.conn = conn
	s.stopPing = make(chan struct{})

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(marketSubscription{AssetsIDs: tokenIDs, Type: "market"}); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe: %w", err)
	}

	go s.pingLoop()
	go s.readLoop(ctx)
	return nil
}

func (s *Stream) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopPing:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Warn("market stream ping failed", zap.Error(err))
				return
			}
		}
	}
}

type streamEvent struct {
	EventType string      `json:"event_type"`
	AssetID   string      `json:"asset_id"`
	Buys      []bookLevel `json:"buys"`
	Sells     []bookLevel `json:"sells"`
	BestBid   string      `json:"best_bid"`
	BestAsk   string      `json:"best_ask"`
}

func (s *Stream) readLoop(ctx context.Context) {
	defer s.Close()
	for {
		if ctx.Err() != nil {
			return
		}
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("market stream closed", zap.Error(err))
			}
			return
		}
		s.handle(raw)
	}
}

// handle applies one event. Book events replace the token's snapshot;
// best_bid_ask events update the top of book in place.
func (s *Stream) handle(raw []byte) {
	var ev streamEvent
	if err := json.Unmarshal(raw, &ev); err != nil || ev.AssetID == "" {
		return
	}

	switch ev.EventType {
	case "book":
		snap := common.MarketSnapshot{
			InstrumentID: ev.AssetID,
			Bids:         parseLevels(ev.Buys, true),
			Asks:         parseLevels(ev.Sells, false),
			Timestamp:    time.Now(),
		}
		if len(snap.Bids) > 0 {
			snap.BestBid = snap.Bids[0].Price
		}
		if len(snap.Asks) > 0 {
			snap.BestAsk = snap.Asks[0].Price
		}
		s.mu.Lock()
		s.books[ev.AssetID] = snap
		s.mu.Unlock()
	case "best_bid_ask":
		bid, err1 := strconv.ParseFloat(ev.BestBid, 64)
		ask, err2 := strconv.ParseFloat(ev.BestAsk, 64)
		if err1 != nil || err2 != nil {
			return
		}
		s.mu.Lock()
		snap := s.books[ev.AssetID]
		snap.InstrumentID = ev.AssetID
		snap.BestBid = bid
		snap.BestAsk = ask
		snap.Timestamp = time.Now()
		s.books[ev.AssetID] = snap
		s.mu.Unlock()
	}
}

// Book returns the live snapshot for a token, if one has arrived.
func (s *Stream) Book(tokenID string) (common.MarketSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.books[tokenID]
	return snap, ok
}

// Close tears the connection down.
func (s *Stream) Close() error {
	select {
	case <-s.stopPing:
	default:
		close(s.stopPing)
	}
	if s.conn == nil {
		return nil
	}
	deadline := time.Now().Add(5 * time.Second)
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return s.conn.Close()
}
