package common

import "context"

// Gateway abstracts a trading venue. Implementations classify every execution
// outcome into an ExecutionResult; the error returns on read operations are
// transport failures.
type Gateway interface {
	Venue() Venue
	// Rules returns the trading constraints for an instrument. Venues with
	// per-instrument tick sizes may need one read call here.
	Rules(ctx context.Context, instrumentID string) (VenueRules, error)
	// BatchLimit is the venue's hard cap on orders per batch.
	BatchLimit() int
	// Snapshot fetches a fresh best bid/ask plus visible depth. Single read,
	// no retries; callers handle staleness explicitly.
	Snapshot(ctx context.Context, instrumentID string) (MarketSnapshot, error)
	SubmitOrder(ctx context.Context, intent OrderIntent) ExecutionResult
	CancelOrder(ctx context.Context, orderID string) ExecutionResult
	// BatchCancel issues one batched cancel for the given ids. A returned
	// error means the orders remain open; no partial success is inferred.
	BatchCancel(ctx context.Context, orderIDs []string) error
	OpenOrders(ctx context.Context) ([]OpenOrder, error)
}

// Amender is implemented by venues that support amending a resting order in
// place (price and/or size).
type Amender interface {
	AmendOrder(ctx context.Context, orderID string, price float64, quantity float64) ExecutionResult
}

// BalanceReader is implemented by venues that expose an account balance read.
type BalanceReader interface {
	Balance(ctx context.Context) (Balance, error)
}
