package common

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TimeSync tracks the offset between the local clock and a venue's server
// clock. Signed requests use the adjusted time so that a skewed local clock
// does not invalidate signatures.
type TimeSync struct {
	serverTime   func(ctx context.Context) (int64, error)
	syncInterval time.Duration
	logger       *zap.Logger

	mu       sync.RWMutex
	offset   int64 // milliseconds, server minus local
	lastSync time.Time
}

// NewTimeSync creates a TimeSync around a server-time fetcher returning unix
// milliseconds.
func NewTimeSync(fetch func(ctx context.Context) (int64, error), logger *zap.Logger) *TimeSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimeSync{
		serverTime:   fetch,
		syncInterval: 30 * time.Minute,
		logger:       logger,
	}
}

// Start performs an initial sync and then re-syncs periodically until ctx is
// cancelled.
func (ts *TimeSync) Start(ctx context.Context) {
	if err := ts.Sync(ctx); err != nil {
		ts.logger.Warn("initial time sync failed", zap.Error(err))
	}

	go func() {
		ticker := time.NewTicker(ts.syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ts.Sync(ctx); err != nil {
					ts.logger.Warn("time sync failed", zap.Error(err))
				}
			}
		}
	}()
}

// Sync measures the server offset once, assuming symmetric network latency.
func (ts *TimeSync) Sync(ctx context.Context) error {
	before := time.Now().UnixMilli()
	server, err := ts.serverTime(ctx)
	if err != nil {
		return err
	}
	after := time.Now().UnixMilli()
	local := before + (after-before)/2

	ts.mu.Lock()
	ts.offset = server - local
	ts.lastSync = time.Now()
	ts.mu.Unlock()

	ts.logger.Debug("time sync", zap.Int64("offset_ms", server-local))
	return nil
}

// Now returns the current unix time in seconds, adjusted for server offset.
func (ts *TimeSync) Now() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return (time.Now().UnixMilli() + ts.offset) / 1000
}
