// Package execution coordinates order flow across venues: local validation,
// client id assignment, batch fan-out and the two-phase cancel-all.
package execution

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"execution-core/pkg/venues/common"
)

// Coordinator routes intents to registered venue gateways. It owns every
// pre-flight check; gateways only speak wire formats.
type Coordinator struct {
	gateways map[common.Venue]common.Gateway
	logger   *zap.Logger
}

func NewCoordinator(logger *zap.Logger, gateways ...common.Gateway) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		gateways: make(map[common.Venue]common.Gateway, len(gateways)),
		logger:   logger,
	}
	for _, gw := range gateways {
		c.gateways[gw.Venue()] = gw
	}
	return c
}

// Venues lists the registered venues.
func (c *Coordinator) Venues() []common.Venue {
	out := make([]common.Venue, 0, len(c.gateways))
	for v := range c.gateways {
		out = append(out, v)
	}
	return out
}

func (c *Coordinator) gateway(venue common.Venue) (common.Gateway, error) {
	gw, ok := c.gateways[venue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownVenue, venue)
	}
	return gw, nil
}

// Submit validates one intent and submits it. Local failures come back as
// rejections without touching the network; a missing client id is assigned
// here so every order is traceable.
func (c *Coordinator) Submit(ctx context.Context, intent common.OrderIntent) common.ExecutionResult {
	gw, err := c.gateway(intent.Venue)
	if err != nil {
		return common.Reject(err.Error())
	}

	rules, err := gw.Rules(ctx, intent.InstrumentID)
	if err != nil {
		return common.Transport(fmt.Errorf("venue rules: %w", err))
	}

	// The crossing check needs a fresh book; other intents validate offline.
	var snap *common.MarketSnapshot
	if intent.TimeInForce == common.TIFPostOnly {
		s, err := gw.Snapshot(ctx, intent.InstrumentID)
		if err != nil {
			return common.Transport(fmt.Errorf("snapshot: %w", err))
		}
		snap = &s
	}

	if err := common.Validate(intent, rules, snap); err != nil {
		c.logger.Debug("intent rejected locally",
			zap.String("venue", string(intent.Venue)),
			zap.String("instrument", intent.InstrumentID),
			zap.String("kind", string(common.ValidationKindOf(err))),
		)
		return common.Reject(err.Error())
	}

	if intent.ClientID == "" {
		intent.ClientID = uuid.NewString()
	}

	res := gw.SubmitOrder(ctx, intent)
	switch res.Status {
	case common.StatusAccepted:
		c.logger.Info("order submitted",
			zap.String("venue", string(intent.Venue)),
			zap.String("instrument", intent.InstrumentID),
			zap.String("order_id", res.OrderID),
			zap.String("client_id", intent.ClientID),
		)
	case common.StatusRejected:
		c.logger.Warn("order rejected by venue",
			zap.String("venue", string(intent.Venue)),
			zap.String("instrument", intent.InstrumentID),
			zap.String("reason", res.Reason),
		)
	case common.StatusTransportError:
		c.logger.Error("order submission failed in transport",
			zap.String("venue", string(intent.Venue)),
			zap.String("instrument", intent.InstrumentID),
			zap.Error(res.Cause),
		)
	}
	return res
}

// SubmitBatch submits intents independently and in order. A batch over the
// venue's cap is refused outright before any item goes out; one item's
// failure never affects the others.
func (c *Coordinator) SubmitBatch(ctx context.Context, venue common.Venue, intents []common.OrderIntent) (common.BatchOutcome, error) {
	gw, err := c.gateway(venue)
	if err != nil {
		return nil, err
	}
	if limit := gw.BatchLimit(); len(intents) > limit {
		return nil, &common.ValidationError{
			Kind: common.KindBatchLimit,
			Msg:  fmt.Sprintf("batch of %d exceeds venue limit %d", len(intents), limit),
		}
	}

	outcome := make(common.BatchOutcome, 0, len(intents))
	for _, intent := range intents {
		intent.Venue = venue
		outcome = append(outcome, c.Submit(ctx, intent))
	}
	return outcome, nil
}

// Cancel cancels a single order.
func (c *Coordinator) Cancel(ctx context.Context, venue common.Venue, orderID string) common.ExecutionResult {
	gw, err := c.gateway(venue)
	if err != nil {
		return common.Reject(err.Error())
	}
	return gw.CancelOrder(ctx, orderID)
}

// CancelAll enumerates open orders and cancels them in batches. Zero open
// orders is a successful no-op. A cancel failure is surfaced as-is: the
// affected orders remain open and no partial success is inferred for them.
func (c *Coordinator) CancelAll(ctx context.Context, venue common.Venue) (int, error) {
	gw, err := c.gateway(venue)
	if err != nil {
		return 0, err
	}

	orders, err := gw.OpenOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("enumerate open orders: %w", err)
	}
	if len(orders) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.OrderID)
	}

	canceled := 0
	limit := gw.BatchLimit()
	for start := 0; start < len(ids); start += limit {
		end := start + limit
		if end > len(ids) {
			end = len(ids)
		}
		if err := gw.BatchCancel(ctx, ids[start:end]); err != nil {
			return canceled, err
		}
		canceled += end - start
	}

	c.logger.Info("canceled all open orders",
		zap.String("venue", string(venue)),
		zap.Int("count", canceled),
	)
	return canceled, nil
}

// CancelAllVenues runs CancelAll on every registered venue, aggregating
// failures so one venue's outage does not hide another's result.
func (c *Coordinator) CancelAllVenues(ctx context.Context) (int, error) {
	total := 0
	var errs error
	for venue := range c.gateways {
		n, err := c.CancelAll(ctx, venue)
		total += n
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", venue, err))
		}
	}
	return total, errs
}

// OpenOrders lists a venue's resting orders.
func (c *Coordinator) OpenOrders(ctx context.Context, venue common.Venue) ([]common.OpenOrder, error) {
	gw, err := c.gateway(venue)
	if err != nil {
		return nil, err
	}
	return gw.OpenOrders(ctx)
}

// Snapshot reads a fresh book through the venue gateway.
func (c *Coordinator) Snapshot(ctx context.Context, venue common.Venue, instrumentID string) (common.MarketSnapshot, error) {
	gw, err := c.gateway(venue)
	if err != nil {
		return common.MarketSnapshot{}, err
	}
	return gw.Snapshot(ctx, instrumentID)
}

// Estimate walks the live book to price a hypothetical market order. Purely
// advisory: it never blocks a subsequent submission.
func (c *Coordinator) Estimate(ctx context.Context, venue common.Venue, instrumentID string, action common.Action, amount float64) (common.FillEstimate, error) {
	snap, err := c.Snapshot(ctx, venue, instrumentID)
	if err != nil {
		return common.FillEstimate{}, err
	}
	return common.Estimate(snap, action, amount)
}

// Amend forwards to venues that support in-place amendment.
func (c *Coordinator) Amend(ctx context.Context, venue common.Venue, orderID string, price, quantity float64) common.ExecutionResult {
	gw, err := c.gateway(venue)
	if err != nil {
		return common.Reject(err.Error())
	}
	amender, ok := gw.(common.Amender)
	if !ok {
		return common.Reject(fmt.Sprintf("venue %s does not support amend", venue))
	}
	return amender.AmendOrder(ctx, orderID, price, quantity)
}

// Balance reads the account balance on venues that expose one.
func (c *Coordinator) Balance(ctx context.Context, venue common.Venue) (common.Balance, error) {
	gw, err := c.gateway(venue)
	if err != nil {
		return common.Balance{}, err
	}
	reader, ok := gw.(common.BalanceReader)
	if !ok {
		return common.Balance{}, fmt.Errorf("venue %s does not expose a balance", venue)
	}
	return reader.Balance(ctx)
}
