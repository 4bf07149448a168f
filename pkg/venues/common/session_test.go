package common

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeAuth struct {
	venue  Venue
	logins atomic.Int64
	delay  time.Duration
	err    error
	ttl    time.Duration
}

func (a *fakeAuth) Venue() Venue { return a.venue }

func (a *fakeAuth) Login(ctx context.Context) (Credential, error) {
	a.logins.Add(1)
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	if a.err != nil {
		return Credential{}, a.err
	}
	now := time.Now()
	cred := Credential{Token: "tok", IssuedAt: now}
	if a.ttl > 0 {
		cred.ExpiresAt = now.Add(a.ttl)
	}
	return cred, nil
}

func TestEnsureRefreshesInsideMargin(t *testing.T) {
	// A credential expiring in 30s with a 60s margin must be refreshed on the
	// very next Ensure call.
	auth := &fakeAuth{venue: VenueKalshi, ttl: time.Hour}
	mgr := NewSessionManager(60*time.Second, nil)
	mgr.Register(auth)

	if _, err := mgr.Ensure(context.Background(), VenueKalshi); err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	if got := auth.logins.Load(); got != 1 {
		t.Fatalf("logins=%d, expected 1", got)
	}

	// Force the cached credential inside the margin.
	entry := mgr.entries[VenueKalshi]
	entry.mu.Lock()
	entry.cred.ExpiresAt = time.Now().Add(30 * time.Second)
	entry.mu.Unlock()

	if _, err := mgr.Ensure(context.Background(), VenueKalshi); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if got := auth.logins.Load(); got != 2 {
		t.Fatalf("logins=%d, expected refresh to run", got)
	}
}

func TestEnsureReusesValidCredential(t *testing.T) {
	auth := &fakeAuth{venue: VenueKalshi, ttl: time.Hour}
	mgr := NewSessionManager(time.Minute, nil)
	mgr.Register(auth)

	for i := 0; i < 5; i++ {
		if _, err := mgr.Ensure(context.Background(), VenueKalshi); err != nil {
			t.Fatalf("Ensure %d: %v", i, err)
		}
	}
	if got := auth.logins.Load(); got != 1 {
		t.Fatalf("logins=%d, expected a single login for a valid credential", got)
	}
}

func TestEnsureNonExpiringCredential(t *testing.T) {
	// Zero ExpiresAt marks a key-pair credential that never refreshes.
	auth := &fakeAuth{venue: VenuePolymarket}
	mgr := NewSessionManager(time.Minute, nil)
	mgr.Register(auth)

	for i := 0; i < 3; i++ {
		cred, err := mgr.Ensure(context.Background(), VenuePolymarket)
		if err != nil {
			t.Fatalf("Ensure %d: %v", i, err)
		}
		if !cred.ExpiresAt.IsZero() {
			t.Fatalf("expected non-expiring credential")
		}
	}
	if got := auth.logins.Load(); got != 1 {
		t.Fatalf("logins=%d, expected 1", got)
	}
}

func TestEnsureRefreshFailureKeepsStaleOut(t *testing.T) {
	auth := &fakeAuth{venue: VenueKalshi, err: errors.New("bad credentials")}
	mgr := NewSessionManager(time.Minute, nil)
	mgr.Register(auth)

	_, err := mgr.Ensure(context.Background(), VenueKalshi)
	if err == nil {
		t.Fatal("expected auth error")
	}
	if !IsAuthError(err) {
		t.Fatalf("error %v is not an AuthError", err)
	}

	// The failed refresh must not leave anything reusable behind.
	entry := mgr.entries[VenueKalshi]
	entry.mu.RLock()
	valid := entry.valid
	entry.mu.RUnlock()
	if valid {
		t.Fatal("stale credential left in circulation after refresh failure")
	}
}

func TestEnsureSingleRefreshInFlight(t *testing.T) {
	auth := &fakeAuth{venue: VenueKalshi, ttl: time.Hour, delay: 50 * time.Millisecond}
	mgr := NewSessionManager(time.Minute, nil)
	mgr.Register(auth)

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = mgr.Ensure(context.Background(), VenueKalshi)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if got := auth.logins.Load(); got != 1 {
		t.Fatalf("logins=%d, expected concurrent callers to await one refresh", got)
	}
}

func TestEnsureUnknownVenue(t *testing.T) {
	mgr := NewSessionManager(time.Minute, nil)
	_, err := mgr.Ensure(context.Background(), Venue("nope"))
	if !errors.Is(err, ErrUnknownVenue) {
		t.Fatalf("error %v, expected ErrUnknownVenue", err)
	}
}
