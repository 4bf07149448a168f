package common

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultRefreshMargin is the fixed buffer subtracted from a credential's
// expiry. A credential inside the margin is treated as expired so it is never
// handed out for immediate use at the boundary.
const DefaultRefreshMargin = 60 * time.Second

// Credential is opaque secret material issued by a venue. A zero ExpiresAt
// marks a non-expiring key-pair credential.
type Credential struct {
	Token      string
	APIKey     string
	APISecret  string
	Passphrase string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// ValidAt reports whether the credential may still be used at t, honoring the
// refresh margin.
func (c Credential) ValidAt(t time.Time, margin time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return t.Before(c.ExpiresAt.Add(-margin))
}

// Authenticator performs a venue's login or key-derivation exchange.
type Authenticator interface {
	Venue() Venue
	Login(ctx context.Context) (Credential, error)
}

// SessionManager owns the per-venue credential lifecycle. It refreshes
// proactively inside the margin, serializes refreshes so only one is in
// flight per venue, and never returns an expired credential — not even when
// a refresh fails.
type SessionManager struct {
	margin time.Duration
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[Venue]*sessionEntry
}

type sessionEntry struct {
	auth Authenticator

	mu    sync.RWMutex
	cred  Credential
	valid bool
}

// NewSessionManager creates a manager with the given refresh margin. The
// margin must be strictly positive; zero or negative falls back to the
// default.
func NewSessionManager(margin time.Duration, logger *zap.Logger) *SessionManager {
	if margin <= 0 {
		margin = DefaultRefreshMargin
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		margin:  margin,
		logger:  logger,
		entries: make(map[Venue]*sessionEntry),
	}
}

// Register adds a venue authenticator. Later registrations replace earlier
// ones for the same venue.
func (m *SessionManager) Register(auth Authenticator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[auth.Venue()] = &sessionEntry{auth: auth}
}

// Ensure returns a credential valid beyond the refresh margin, performing the
// venue's login exchange when the cached one is absent or expiring.
// Concurrent callers either observe the still-valid cached credential or
// await the single in-flight refresh.
func (m *SessionManager) Ensure(ctx context.Context, venue Venue) (Credential, error) {
	m.mu.RLock()
	entry, ok := m.entries[venue]
	m.mu.RUnlock()
	if !ok {
		return Credential{}, &AuthError{Venue: venue, Err: ErrUnknownVenue}
	}

	// Fast path: cached credential still valid at check time.
	entry.mu.RLock()
	if entry.valid && entry.cred.ValidAt(time.Now(), m.margin) {
		cred := entry.cred
		entry.mu.RUnlock()
		return cred, nil
	}
	entry.mu.RUnlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if entry.valid && entry.cred.ValidAt(time.Now(), m.margin) {
		return entry.cred, nil
	}

	// Keep the stale credential out of circulation while the refresh runs:
	// a failed refresh must not leave an expired credential reusable.
	entry.valid = false

	cred, err := entry.auth.Login(ctx)
	if err != nil {
		m.logger.Warn("credential refresh failed",
			zap.String("venue", string(venue)),
			zap.Error(err),
		)
		return Credential{}, &AuthError{Venue: venue, Err: err}
	}

	entry.cred = cred
	entry.valid = true
	m.logger.Info("credential refreshed",
		zap.String("venue", string(venue)),
		zap.Time("expires_at", cred.ExpiresAt),
	)
	return cred, nil
}

// Invalidate drops the cached credential for a venue, forcing a refresh on
// the next Ensure. Used when a venue starts answering 401.
func (m *SessionManager) Invalidate(venue Venue) {
	m.mu.RLock()
	entry, ok := m.entries[venue]
	m.mu.RUnlock()
	if !ok {
		return
	}
	entry.mu.Lock()
	entry.valid = false
	entry.mu.Unlock()
}
