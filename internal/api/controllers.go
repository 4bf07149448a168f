package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"execution-core/pkg/venues/common"
)

type orderRequest struct {
	Venue        string  `json:"venue" binding:"required,oneof=kalshi polymarket"`
	InstrumentID string  `json:"instrument_id" binding:"required,min=1"`
	Side         string  `json:"side" binding:"required,oneof=yes no"`
	Action       string  `json:"action" binding:"required,oneof=buy sell"`
	Quantity     float64 `json:"quantity"`
	Amount       float64 `json:"amount"`
	Price        float64 `json:"price"`
	TimeInForce  string  `json:"time_in_force" binding:"required,oneof=GTC FOK POST_ONLY"`
	ClientID     string  `json:"client_id"`
}

func (r orderRequest) intent() common.OrderIntent {
	return common.OrderIntent{
		Venue:        common.Venue(r.Venue),
		InstrumentID: r.InstrumentID,
		Side:         common.Side(r.Side),
		Action:       common.Action(r.Action),
		Quantity:     r.Quantity,
		Amount:       r.Amount,
		LimitPrice:   r.Price,
		TimeInForce:  common.TimeInForce(r.TimeInForce),
		ClientID:     r.ClientID,
	}
}

type batchRequest struct {
	Venue  string         `json:"venue" binding:"required,oneof=kalshi polymarket"`
	Orders []orderRequest `json:"orders" binding:"required,min=1,dive"`
}

type estimateRequest struct {
	Venue        string  `json:"venue" binding:"required,oneof=kalshi polymarket"`
	InstrumentID string  `json:"instrument_id" binding:"required,min=1"`
	Action       string  `json:"action" binding:"required,oneof=buy sell"`
	Amount       float64 `json:"amount" binding:"gt=0"`
}

type amendRequest struct {
	Venue    string  `json:"venue" binding:"required,oneof=kalshi polymarket"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// resultStatus maps a classified execution result onto an HTTP status.
func resultStatus(res common.ExecutionResult) int {
	switch res.Status {
	case common.StatusAccepted:
		return http.StatusOK
	case common.StatusRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func resultBody(res common.ExecutionResult) gin.H {
	body := gin.H{"status": res.Status}
	switch res.Status {
	case common.StatusAccepted:
		body["order_id"] = res.OrderID
	case common.StatusRejected:
		body["reason"] = res.Reason
	case common.StatusTransportError:
		body["error"] = res.Cause.Error()
		body["retryable"] = true
	}
	return body
}

func (s *Server) submitOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	res := s.Coord.Submit(c.Request.Context(), req.intent())
	c.JSON(resultStatus(res), resultBody(res))
}

func (s *Server) submitBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	intents := make([]common.OrderIntent, 0, len(req.Orders))
	for _, o := range req.Orders {
		intents = append(intents, o.intent())
	}

	outcome, err := s.Coord.SubmitBatch(c.Request.Context(), common.Venue(req.Venue), intents)
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			respondError(c, http.StatusUnprocessableEntity, string(common.ValidationKindOf(err)), err.Error())
			return
		}
		respondError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	items := make([]gin.H, 0, len(outcome))
	for _, res := range outcome {
		items = append(items, resultBody(res))
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}

func (s *Server) listOrders(c *gin.Context) {
	venue, ok := venueParam(c)
	if !ok {
		return
	}
	orders, err := s.Coord.OpenOrders(c.Request.Context(), venue)
	if err != nil {
		respondError(c, http.StatusBadGateway, "venue_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) cancelOrder(c *gin.Context) {
	venue, ok := venueParam(c)
	if !ok {
		return
	}
	res := s.Coord.Cancel(c.Request.Context(), venue, c.Param("id"))
	c.JSON(resultStatus(res), resultBody(res))
}

// cancelAll cancels every open order, for one venue or across all of them.
// Nothing open is a success, not an error.
func (s *Server) cancelAll(c *gin.Context) {
	ctx := c.Request.Context()

	if c.Query("venue") == "" {
		n, err := s.Coord.CancelAllVenues(ctx)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"canceled": n, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"canceled": n})
		return
	}

	venue, ok := venueParam(c)
	if !ok {
		return
	}
	n, err := s.Coord.CancelAll(ctx, venue)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"canceled": n, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"canceled": n})
}

func (s *Server) amendOrder(c *gin.Context) {
	var req amendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	res := s.Coord.Amend(c.Request.Context(), common.Venue(req.Venue), c.Param("id"), req.Price, req.Quantity)
	c.JSON(resultStatus(res), resultBody(res))
}

func (s *Server) getBook(c *gin.Context) {
	venue, ok := venueParam(c)
	if !ok {
		return
	}
	instrument := c.Query("instrument_id")
	if instrument == "" {
		respondError(c, http.StatusBadRequest, "bad_request", "instrument_id is required")
		return
	}
	snap, err := s.Coord.Snapshot(c.Request.Context(), venue, instrument)
	if err != nil {
		respondError(c, http.StatusBadGateway, "venue_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"instrument_id": snap.InstrumentID,
		"best_bid":      snap.BestBid,
		"best_ask":      snap.BestAsk,
		"midpoint":      snap.Midpoint(),
		"bids":          snap.Bids,
		"asks":          snap.Asks,
		"timestamp":     snap.Timestamp,
	})
}

func (s *Server) estimateFill(c *gin.Context) {
	var req estimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	est, err := s.Coord.Estimate(c.Request.Context(), common.Venue(req.Venue),
		req.InstrumentID, common.Action(req.Action), req.Amount)
	if err != nil {
		if errors.Is(err, common.ErrNoLiquidity) {
			respondError(c, http.StatusUnprocessableEntity, "no_liquidity", err.Error())
			return
		}
		respondError(c, http.StatusBadGateway, "venue_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, est)
}

func (s *Server) getBalance(c *gin.Context) {
	venue, ok := venueParam(c)
	if !ok {
		return
	}
	bal, err := s.Coord.Balance(c.Request.Context(), venue)
	if err != nil {
		respondError(c, http.StatusBadGateway, "venue_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, bal)
}
